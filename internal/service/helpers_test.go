package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"edugame/internal/database"
	"edugame/internal/events"
	"edugame/internal/gamestate"
	"edugame/internal/logger"
	"edugame/internal/metrics"
	"edugame/internal/models"
	"edugame/internal/repository"
	"edugame/internal/security"
	"edugame/internal/testutil"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	db        *database.DB
	clock     *testClock
	events    *events.Recorder
	metrics   *metrics.Metrics
	sessions  *gamestate.MemoryStore
	results   *repository.ResultRepository
	questions *QuestionService
	levels    *LevelService
	games     *GameService
	analytics *AnalyticsService
	feedback  *FeedbackService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	clock := &testClock{t: base}
	log := logger.Discard()

	questionRepo := repository.NewQuestionRepository(db)
	levelRepo := repository.NewLevelRepository(db)
	resultRepo := repository.NewResultRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	f := &fixture{
		db:       db,
		clock:    clock,
		events:   &events.Recorder{},
		metrics:  metrics.New(),
		sessions: gamestate.NewMemoryStore(time.Hour),
		results:  resultRepo,
	}

	f.questions = NewQuestionService(questionRepo)
	f.questions.now = clock.Now
	f.levels = NewLevelService(levelRepo, questionRepo)
	f.levels.now = clock.Now
	f.games = NewGameService(levelRepo, questionRepo, resultRepo, f.sessions, f.events, f.metrics, log)
	f.games.now = clock.Now
	// identity shuffle keeps question order predictable
	f.games.shuffle = func(int, func(i, j int)) {}
	f.analytics = NewAnalyticsService(resultRepo)
	f.analytics.now = clock.Now
	f.feedback = NewFeedbackService(feedbackRepo, f.events, f.metrics, log)
	f.feedback.now = clock.Now

	return f
}

func questionForm(prompt string, grade int, subject models.Subject) models.QuestionForm {
	return models.QuestionForm{
		Prompt:        prompt,
		Options:       []string{"A", "B", "C", "D"},
		CorrectAnswer: 1,
		Grade:         grade,
		Subject:       subject,
		Difficulty:    models.DifficultyEasy,
	}
}

// addQuestions creates n questions for grade and subject, one minute apart
func (f *fixture) addQuestions(t *testing.T, n, grade int, subject models.Subject) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		q, err := f.questions.Create(context.Background(), questionForm(fmt.Sprintf("%s question %d", subject, i+1), grade, subject), "teacher-1")
		require.NoError(t, err)
		ids = append(ids, q.ID)
		f.clock.Advance(time.Minute)
	}
	return ids
}

func (f *fixture) addLevel(t *testing.T, grade int, subject models.Subject, passScore int, questionIDs []string) *models.Level {
	t.Helper()
	level, err := f.levels.Create(context.Background(), models.LevelForm{
		Title:       fmt.Sprintf("Grade %d %s", grade, subject),
		Grade:       grade,
		Subject:     subject,
		Difficulty:  models.DifficultyEasy,
		PassScore:   passScore,
		QuestionIDs: questionIDs,
	}, "teacher-1")
	require.NoError(t, err)
	return level
}

// addResult stores a finished game directly, bypassing the session flow
func (f *fixture) addResult(t *testing.T, r models.GameResult) models.GameResult {
	t.Helper()
	if r.ID == "" {
		r.ID = security.NewID()
	}
	if r.SessionID == "" {
		r.SessionID = "session-" + r.ID
	}
	if r.LevelID == "" {
		r.LevelID = "level-1"
		r.LevelTitle = "Level 1"
	}
	if r.StudentName == "" {
		r.StudentName = anonymousStudentName
	}
	if r.TotalQuestions == 0 {
		r.TotalQuestions = 10
	}
	if r.Grade == 0 {
		r.Grade = 1
	}
	if r.Subject == "" {
		r.Subject = models.SubjectMath
	}
	if r.CompletedAt.IsZero() {
		r.CompletedAt = base
	}
	r.Stars = CalculateStars(r.Score, r.TotalQuestions)
	require.NoError(t, f.results.Create(context.Background(), &r))
	return r
}
