package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edugame/internal/events"
	"edugame/internal/models"
	"edugame/internal/validation"
)

func TestCalculateStars(t *testing.T) {
	tests := []struct {
		score, total int
		want         int
	}{
		{95, 100, 5},
		{85, 100, 4},
		{75, 100, 3},
		{65, 100, 2},
		{50, 100, 1},
		{90, 100, 5},
		{80, 100, 4},
		{70, 100, 3},
		{60, 100, 2},
		{89, 100, 4},
		{59, 100, 1},
		{9, 10, 5},
		{7, 10, 3},
		{0, 10, 1},
		{10, 10, 5},
		{0, 0, 1},
	}

	for _, tt := range tests {
		if got := CalculateStars(tt.score, tt.total); got != tt.want {
			t.Errorf("CalculateStars(%d, %d) = %d, want %d", tt.score, tt.total, got, tt.want)
		}
	}
}

func TestGameSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.addQuestions(t, 3, 1, models.SubjectMath)
	level := f.addLevel(t, 1, models.SubjectMath, 2, ids)

	session, err := f.games.StartGameSession(ctx, level.ID, models.Player{StudentID: "student-1", StudentName: "Emma"})
	require.NoError(t, err)
	assert.Equal(t, 3, session.TotalQuestions)
	assert.Equal(t, level.Title, session.LevelTitle)
	assert.Empty(t, session.Answers)

	// every fixture question has answer 1
	res, err := f.games.SubmitAnswer(ctx, session.ID, ids[0], 1, 4)
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)

	res, err = f.games.SubmitAnswer(ctx, session.ID, ids[1], 0, 6)
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, 1, res.CorrectAnswer)

	_, err = f.games.SubmitAnswer(ctx, session.ID, ids[0], 1, 1)
	assert.ErrorIs(t, err, ErrAlreadyAnswered)

	_, err = f.games.SubmitAnswer(ctx, session.ID, "other", 1, 1)
	assert.ErrorIs(t, err, ErrQuestionNotInSession)

	_, err = f.games.SubmitAnswer(ctx, session.ID, ids[2], 1, -1)
	var verrs validation.Errors
	assert.True(t, errors.As(err, &verrs))

	f.clock.Advance(90 * time.Second)
	result, err := f.games.CompleteGameSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 3, result.TotalQuestions)
	assert.Equal(t, 1, result.Stars)
	assert.Equal(t, 90, result.Duration)
	assert.Equal(t, "student-1", result.StudentID)
	assert.Equal(t, "Emma", result.StudentName)
	assert.False(t, result.IsOffline)

	_, err = f.games.CompleteGameSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrGameSessionNotFound)
	_, err = f.games.SubmitAnswer(ctx, session.ID, ids[2], 1, 1)
	assert.ErrorIs(t, err, ErrGameSessionNotFound)

	assert.Equal(t, []string{events.TopicGameCompleted}, f.events.Topics())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GamesCompleted.WithLabelValues("Math")))

	stored, err := f.games.GetResults(ctx, models.ProgressFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, result.ID, stored[0].ID)
}

func TestCompleteGameSessionRetriesAfterStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.addQuestions(t, 2, 1, models.SubjectMath)
	level := f.addLevel(t, 1, models.SubjectMath, 1, ids)

	session, err := f.games.StartGameSession(ctx, level.ID, models.Player{StudentID: "student-1", StudentName: "Emma"})
	require.NoError(t, err)
	_, err = f.games.SubmitAnswer(ctx, session.ID, ids[0], 1, 3)
	require.NoError(t, err)

	_, err = f.db.Exec("ALTER TABLE game_results RENAME TO game_results_moved")
	require.NoError(t, err)
	_, err = f.games.CompleteGameSession(ctx, session.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrGameSessionNotFound)

	_, err = f.db.Exec("ALTER TABLE game_results_moved RENAME TO game_results")
	require.NoError(t, err)
	result, err := f.games.CompleteGameSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, "student-1", result.StudentID)

	_, err = f.games.CompleteGameSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrGameSessionNotFound)
}

func TestStartGameSessionCapsAtTen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.addQuestions(t, 12, 2, models.SubjectSpelling)
	level := f.addLevel(t, 2, models.SubjectSpelling, 8, ids)

	session, err := f.games.StartGameSession(ctx, level.ID, models.Player{})
	require.NoError(t, err)
	assert.Len(t, session.Questions, 10)
	assert.Equal(t, 10, session.TotalQuestions)
	assert.Equal(t, anonymousStudentName, session.StudentName)

	seen := map[string]bool{}
	for _, q := range session.Questions {
		assert.False(t, seen[q.ID], "question %s drawn twice", q.ID)
		seen[q.ID] = true
	}
}

func TestStartGameSessionErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.games.StartGameSession(ctx, "missing", models.Player{})
	assert.ErrorIs(t, err, ErrLevelNotFound)

	ids := f.addQuestions(t, 1, 1, models.SubjectMath)
	level := f.addLevel(t, 1, models.SubjectMath, 1, ids)
	// retired outside the service, which refuses this for referenced questions
	_, err = f.db.Exec("UPDATE questions SET is_active = ? WHERE id = ?", false, ids[0])
	require.NoError(t, err)

	_, err = f.games.StartGameSession(ctx, level.ID, models.Player{})
	assert.ErrorIs(t, err, ErrLevelHasNoQuestions)
}

func TestCompleteOfflineSessionRegrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.addQuestions(t, 4, 1, models.SubjectMath)
	level := f.addLevel(t, 1, models.SubjectMath, 2, ids)

	session := models.GameSession{
		ID:          "offline-1",
		LevelID:     level.ID,
		StudentName: "Offline Kid",
		Questions: []models.GameQuestion{
			{ID: ids[0]}, {ID: ids[1]}, {ID: ids[2]}, {ID: ids[3]},
		},
		Answers: []models.GameAnswer{
			{QuestionID: ids[0], SelectedAnswer: 1, IsCorrect: true},
			{QuestionID: ids[1], SelectedAnswer: 1, IsCorrect: true},
			{QuestionID: ids[2], SelectedAnswer: 1, IsCorrect: true},
			// the client's claim is ignored
			{QuestionID: ids[3], SelectedAnswer: 3, IsCorrect: true},
		},
		Score:     4,
		StartedAt: f.clock.Now().Add(-2 * time.Minute),
	}

	result, err := f.games.CompleteOfflineSession(ctx, session, models.Player{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Score)
	assert.Equal(t, 4, result.TotalQuestions)
	assert.Equal(t, 3, result.Stars)
	assert.Equal(t, 120, result.Duration)
	assert.Equal(t, "Offline Kid", result.StudentName)
	assert.Equal(t, "offline-1", result.SessionID)
	assert.True(t, result.IsOffline)
}

func TestCompleteOfflineSessionIgnoresClaimedStudentID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.addQuestions(t, 1, 1, models.SubjectMath)
	level := f.addLevel(t, 1, models.SubjectMath, 1, ids)

	session := models.GameSession{
		LevelID:   level.ID,
		StudentID: "victim-student",
		Questions: []models.GameQuestion{{ID: ids[0]}},
		Answers:   []models.GameAnswer{{QuestionID: ids[0], SelectedAnswer: 1}},
	}

	result, err := f.games.CompleteOfflineSession(ctx, session, models.Player{})
	require.NoError(t, err)
	assert.Empty(t, result.StudentID)
	assert.Equal(t, anonymousStudentName, result.StudentName)

	progress, err := f.games.GetStudentProgress(ctx, "victim-student")
	require.NoError(t, err)
	assert.Equal(t, 0, progress.TotalGamesPlayed)

	result, err = f.games.CompleteOfflineSession(ctx, session, models.Player{StudentID: "student-1", StudentName: "Emma"})
	require.NoError(t, err)
	assert.Equal(t, "student-1", result.StudentID)
	assert.Equal(t, "Emma", result.StudentName)
}

func TestCompleteOfflineSessionRejectsBadSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.addQuestions(t, 2, 1, models.SubjectMath)
	level := f.addLevel(t, 1, models.SubjectMath, 1, ids)

	_, err := f.games.CompleteOfflineSession(ctx, models.GameSession{}, models.Player{})
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "levelId")
	assert.Contains(t, verrs, "questions")

	_, err = f.games.CompleteOfflineSession(ctx, models.GameSession{
		LevelID:   "missing",
		Questions: []models.GameQuestion{{ID: ids[0]}},
	}, models.Player{})
	assert.ErrorIs(t, err, ErrLevelNotFound)

	_, err = f.games.CompleteOfflineSession(ctx, models.GameSession{
		LevelID:   level.ID,
		Questions: []models.GameQuestion{{ID: "made-up"}},
	}, models.Player{})
	assert.ErrorIs(t, err, ErrUnknownQuestions)

	_, err = f.games.CompleteOfflineSession(ctx, models.GameSession{
		LevelID:   level.ID,
		Questions: []models.GameQuestion{{ID: ids[0]}},
		Answers:   []models.GameAnswer{{QuestionID: ids[1]}},
	}, models.Player{})
	assert.ErrorIs(t, err, ErrQuestionNotInSession)

	_, err = f.games.CompleteOfflineSession(ctx, models.GameSession{
		LevelID:   level.ID,
		Questions: []models.GameQuestion{{ID: ids[0]}},
		Answers:   []models.GameAnswer{{QuestionID: ids[0]}, {QuestionID: ids[0]}},
	}, models.Player{})
	assert.ErrorIs(t, err, ErrAlreadyAnswered)

	results, err := f.games.GetResults(ctx, models.ProgressFilter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetStudentProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	progress, err := f.games.GetStudentProgress(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 0, progress.TotalGamesPlayed)
	assert.Equal(t, models.SubjectMath, progress.FavoriteSubject)
	assert.Empty(t, progress.Achievements)

	subjects := []models.Subject{
		models.SubjectSpelling, models.SubjectMath, models.SubjectSpelling,
		models.SubjectMath, models.SubjectGeneralKnowledge, models.SubjectMath,
	}
	for i, subject := range subjects {
		f.addResult(t, models.GameResult{
			StudentID:   "student-1",
			StudentName: "Emma",
			Subject:     subject,
			Score:       9,
			CompletedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	f.addResult(t, models.GameResult{StudentID: "student-2", Score: 1, Subject: models.SubjectSpelling})

	progress, err = f.games.GetStudentProgress(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 6, progress.TotalGamesPlayed)
	assert.Equal(t, 30, progress.TotalStars)
	assert.Equal(t, 9.0, progress.AverageScore)
	assert.Equal(t, models.SubjectMath, progress.FavoriteSubject)
	require.Len(t, progress.RecentGames, 5)
	assert.True(t, progress.RecentGames[0].CompletedAt.Equal(base.Add(5*time.Hour)))

	require.Len(t, progress.Achievements, 2)
	assert.Equal(t, "star-collector", progress.Achievements[0].ID)
	// two 5-star games reach 10 stars
	assert.True(t, progress.Achievements[0].UnlockedAt.Equal(base.Add(time.Hour)))
	assert.Equal(t, "dedicated-learner", progress.Achievements[1].ID)
	assert.True(t, progress.Achievements[1].UnlockedAt.Equal(base.Add(4*time.Hour)))
}

func TestFavoriteSubjectTieGoesToLaterSubject(t *testing.T) {
	results := []models.GameResult{
		{Subject: models.SubjectMath},
		{Subject: models.SubjectSpelling},
	}
	assert.Equal(t, models.SubjectSpelling, favoriteSubject(results))
}

func TestGetProgressStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addResult(t, models.GameResult{StudentID: "a", Score: 6, Subject: models.SubjectMath, Grade: 1, CompletedAt: base})
	f.addResult(t, models.GameResult{StudentID: "b", Score: 9, Subject: models.SubjectSpelling, Grade: 2, CompletedAt: base.Add(time.Minute)})
	f.addResult(t, models.GameResult{Score: 7, Subject: models.SubjectMath, Grade: 1, CompletedAt: base.Add(2 * time.Minute)})
	f.addResult(t, models.GameResult{Score: 4, Subject: models.SubjectMath, Grade: 1, CompletedAt: base.Add(3 * time.Minute)})

	stats, err := f.games.GetProgressStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalGames)
	// two named students plus the anonymous bucket
	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 6.5, stats.AverageScore)
	assert.Equal(t, map[models.Subject]int{models.SubjectMath: 3, models.SubjectSpelling: 1}, stats.SubjectBreakdown)
	assert.Equal(t, map[int]int{1: 3, 2: 1}, stats.GradeBreakdown)

	scores := make([]int, 0, len(stats.TopPerformers))
	for _, r := range stats.TopPerformers {
		scores = append(scores, r.Score)
	}
	assert.Equal(t, []int{9, 7, 6, 4}, scores)
}
