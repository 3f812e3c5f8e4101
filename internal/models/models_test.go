package models

import (
	"testing"
	"time"
)

func TestRefreshTokenIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "future expiration",
			expiresAt: time.Now().Add(1 * time.Hour),
			want:      false,
		},
		{
			name:      "just expired",
			expiresAt: time.Now().Add(-1 * time.Second),
			want:      true,
		},
		{
			name:      "expired yesterday",
			expiresAt: time.Now().Add(-24 * time.Hour),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := RefreshToken{ID: "jti", UserID: "u1", ExpiresAt: tt.expiresAt}
			if got := token.IsExpired(); got != tt.want {
				t.Errorf("RefreshToken.IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnumValidity(t *testing.T) {
	if !SubjectGeneralKnowledge.Valid() || Subject("History").Valid() {
		t.Error("unexpected subject validity")
	}
	if !DifficultyHard.Valid() || Difficulty("Expert").Valid() {
		t.Error("unexpected difficulty validity")
	}
	if !RoleAdmin.Valid() || Role("parent").Valid() {
		t.Error("unexpected role validity")
	}
	if RoleStudent.IsStaff() || !RoleTeacher.IsStaff() || !RoleAdmin.IsStaff() {
		t.Error("unexpected staff roles")
	}
}

func TestFeedbackStatusTransitions(t *testing.T) {
	tests := []struct {
		from FeedbackStatus
		to   FeedbackStatus
		want bool
	}{
		{StatusOpen, StatusInProgress, true},
		{StatusOpen, StatusResolved, true},
		{StatusOpen, StatusClosed, true},
		{StatusInProgress, StatusOpen, true},
		{StatusResolved, StatusOpen, true},
		{StatusResolved, StatusInProgress, false},
		{StatusClosed, StatusOpen, false},
		{StatusClosed, StatusClosed, false},
		{StatusInProgress, StatusInProgress, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGameSessionHelpers(t *testing.T) {
	session := GameSession{
		Questions: []GameQuestion{{ID: "q1", CorrectAnswer: 1}, {ID: "q2", CorrectAnswer: 0}},
		Answers:   []GameAnswer{{QuestionID: "q1", SelectedAnswer: 1, IsCorrect: true}},
	}

	if _, ok := session.Question("q2"); !ok {
		t.Error("expected q2 to be part of the session")
	}
	if _, ok := session.Question("q3"); ok {
		t.Error("q3 is not part of the session")
	}
	if !session.HasAnswered("q1") || session.HasAnswered("q2") {
		t.Error("unexpected answered state")
	}
	if session.CorrectCount() != 1 {
		t.Errorf("CorrectCount() = %d, want 1", session.CorrectCount())
	}
}

func TestSettingsPatchApply(t *testing.T) {
	settings := DefaultSettings(time.Now())
	theme := "dark"
	volume := 10

	AppSettingsPatch{
		Theme:         &theme,
		SoundVolume:   &volume,
		Accessibility: &AccessibilitySettings{LargeText: true},
	}.Apply(&settings)

	if settings.Theme != "dark" || settings.SoundVolume != 10 || !settings.Accessibility.LargeText {
		t.Errorf("patch not applied: %+v", settings)
	}
	if settings.Language != "en" || settings.MusicVolume != 60 {
		t.Errorf("untouched fields changed: %+v", settings)
	}
}

func TestTimeRangeSince(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	if got := TimeRangeWeek.Since(now); got == nil || !got.Equal(now.AddDate(0, 0, -7)) {
		t.Errorf("week = %v", got)
	}
	if got := TimeRangeQuarter.Since(now); got == nil || got.Month() != time.March {
		t.Errorf("quarter = %v", got)
	}
	if got := TimeRangeAll.Since(now); got != nil {
		t.Errorf("all = %v, want nil", got)
	}
}

func TestGameResultPercentage(t *testing.T) {
	if got := (GameResult{Score: 8, TotalQuestions: 10}).Percentage(); got != 80 {
		t.Errorf("Percentage() = %v, want 80", got)
	}
	if got := (GameResult{}).Percentage(); got != 0 {
		t.Errorf("Percentage() of empty result = %v, want 0", got)
	}
}
