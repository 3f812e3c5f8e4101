package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"edugame/internal/events"
	"edugame/internal/gamestate"
	"edugame/internal/metrics"
	"edugame/internal/models"
	"edugame/internal/repository"
	"edugame/internal/security"
	"edugame/internal/validation"
)

const (
	anonymousStudentName = "Anonymous Student"
	recentGamesLimit     = 5
	topPerformersLimit   = 10
)

// GameService orchestrates game sessions and the play history
type GameService struct {
	levelRepo    *repository.LevelRepository
	questionRepo *repository.QuestionRepository
	resultRepo   *repository.ResultRepository
	sessions     gamestate.Store
	publisher    events.Publisher
	metrics      *metrics.Metrics
	log          logrus.FieldLogger

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

// NewGameService creates a new game service. metrics may be nil.
func NewGameService(
	levelRepo *repository.LevelRepository,
	questionRepo *repository.QuestionRepository,
	resultRepo *repository.ResultRepository,
	sessions gamestate.Store,
	publisher events.Publisher,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) *GameService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &GameService{
		levelRepo:    levelRepo,
		questionRepo: questionRepo,
		resultRepo:   resultRepo,
		sessions:     sessions,
		publisher:    publisher,
		metrics:      m,
		log:          log,
		now:          time.Now,
		shuffle:      rand.Shuffle,
	}
}

// CalculateStars maps a score to a 1-5 star rating.
// Thresholds are inclusive: 90% earns 5 stars, 80% 4, 70% 3, 60% 2.
func CalculateStars(score, totalQuestions int) int {
	if totalQuestions <= 0 {
		return 1
	}
	// integer comparison keeps exact boundaries exact
	scaled := score * 100
	switch {
	case scaled >= 90*totalQuestions:
		return 5
	case scaled >= 80*totalQuestions:
		return 4
	case scaled >= 70*totalQuestions:
		return 3
	case scaled >= 60*totalQuestions:
		return 2
	default:
		return 1
	}
}

// StartGameSession draws up to ten shuffled questions from a level and opens a session
func (s *GameService) StartGameSession(ctx context.Context, levelID string, player models.Player) (*models.GameSession, error) {
	level, err := s.levelRepo.GetByID(ctx, levelID)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, ErrLevelNotFound
	}

	candidates, err := s.questionRepo.ListForPlay(ctx, level.Grade, level.Subject)
	if err != nil {
		return nil, err
	}
	inLevel := make(map[string]bool, len(level.QuestionIDs))
	for _, id := range level.QuestionIDs {
		inLevel[id] = true
	}

	var pool []models.GameQuestion
	for _, q := range candidates {
		if !inLevel[q.ID] {
			continue
		}
		pool = append(pool, models.GameQuestion{
			ID:            q.ID,
			Prompt:        q.Prompt,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Difficulty:    q.Difficulty,
		})
	}
	if len(pool) == 0 {
		return nil, ErrLevelHasNoQuestions
	}

	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > models.MaxQuestionsPerSession {
		pool = pool[:models.MaxQuestionsPerSession]
	}

	session := &models.GameSession{
		ID:             security.NewID(),
		StudentID:      player.StudentID,
		StudentName:    playerName(player),
		LevelID:        level.ID,
		LevelTitle:     level.Title,
		Grade:          level.Grade,
		Subject:        level.Subject,
		Questions:      pool,
		Answers:        []models.GameAnswer{},
		TotalQuestions: len(pool),
		StartedAt:      s.now().UTC(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save game session: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": session.ID,
		"level_id":   level.ID,
		"questions":  len(pool),
	}).Debug("game session started")

	return session, nil
}

// SubmitAnswer grades one answer against the session's question and records it
func (s *GameService) SubmitAnswer(ctx context.Context, sessionID, questionID string, selectedAnswer, timeSpent int) (*models.AnswerResult, error) {
	if timeSpent < 0 {
		return nil, validation.Errors{"timeSpent": "must be at least 0"}
	}

	var result models.AnswerResult
	_, err := s.sessions.Update(ctx, sessionID, func(session *models.GameSession) error {
		if session.CompletedAt != nil {
			return ErrGameSessionNotFound
		}
		question, ok := session.Question(questionID)
		if !ok {
			return ErrQuestionNotInSession
		}
		if session.HasAnswered(questionID) {
			return ErrAlreadyAnswered
		}

		result = models.AnswerResult{
			IsCorrect:     selectedAnswer == question.CorrectAnswer,
			CorrectAnswer: question.CorrectAnswer,
		}
		session.Answers = append(session.Answers, models.GameAnswer{
			QuestionID:     questionID,
			SelectedAnswer: selectedAnswer,
			IsCorrect:      result.IsCorrect,
			TimeSpent:      timeSpent,
		})
		session.Score = session.CorrectCount()
		return nil
	})
	if errors.Is(err, gamestate.ErrNotFound) {
		return nil, ErrGameSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CompleteGameSession scores a session, stores its result and closes it
func (s *GameService) CompleteGameSession(ctx context.Context, sessionID string) (*models.GameResult, error) {
	now := s.now().UTC()

	session, err := s.sessions.Update(ctx, sessionID, func(session *models.GameSession) error {
		if session.CompletedAt != nil {
			return ErrGameSessionNotFound
		}
		session.CompletedAt = &now
		return nil
	})
	if errors.Is(err, gamestate.ErrNotFound) {
		return nil, ErrGameSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	score := session.CorrectCount()
	result := &models.GameResult{
		ID:             security.NewID(),
		SessionID:      session.ID,
		StudentID:      session.StudentID,
		StudentName:    session.StudentName,
		LevelID:        session.LevelID,
		LevelTitle:     session.LevelTitle,
		Grade:          session.Grade,
		Subject:        session.Subject,
		Score:          score,
		TotalQuestions: session.TotalQuestions,
		Stars:          CalculateStars(score, session.TotalQuestions),
		CompletedAt:    now,
		Duration:       elapsedSeconds(session.StartedAt, now),
	}

	if err := s.record(ctx, result); err != nil {
		// reopen the session so the player can retry
		if _, reopenErr := s.sessions.Update(ctx, session.ID, func(session *models.GameSession) error {
			session.CompletedAt = nil
			return nil
		}); reopenErr != nil {
			s.log.WithError(reopenErr).WithField("session_id", session.ID).Error("failed to reopen session after store failure")
		}
		return nil, err
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		s.log.WithError(err).WithField("session_id", session.ID).Warn("failed to remove completed session")
	}
	return result, nil
}

// CompleteOfflineSession stores the result of a session played without a
// connection. Answers are re-graded against the question bank; the client's
// isCorrect flags and score are ignored.
func (s *GameService) CompleteOfflineSession(ctx context.Context, session models.GameSession, player models.Player) (*models.GameResult, error) {
	errs := validation.Errors{}
	if session.LevelID == "" {
		errs.Add("levelId", "is required")
	}
	if len(session.Questions) == 0 {
		errs.Add("questions", "must contain at least 1 items")
	}
	if len(session.Questions) > models.MaxQuestionsPerSession {
		errs.Add("questions", fmt.Sprintf("must contain at most %d items", models.MaxQuestionsPerSession))
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	level, err := s.levelRepo.GetByID(ctx, session.LevelID)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, ErrLevelNotFound
	}

	ids := make([]string, 0, len(session.Questions))
	for _, q := range session.Questions {
		ids = append(ids, q.ID)
	}
	canonical, err := s.questionRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	asked := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := canonical[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownQuestions, id)
		}
		asked[id] = true
	}

	answered := map[string]bool{}
	score := 0
	for _, a := range session.Answers {
		if !asked[a.QuestionID] {
			return nil, ErrQuestionNotInSession
		}
		if answered[a.QuestionID] {
			return nil, ErrAlreadyAnswered
		}
		answered[a.QuestionID] = true
		if a.SelectedAnswer == canonical[a.QuestionID].CorrectAnswer {
			score++
		}
	}

	now := s.now().UTC()
	duration := session.Duration
	if !session.StartedAt.IsZero() && session.StartedAt.Before(now) {
		duration = elapsedSeconds(session.StartedAt, now)
	}
	if duration < 0 {
		duration = 0
	}

	sessionID := session.ID
	if sessionID == "" {
		sessionID = security.NewID()
	}
	// the student id only ever comes from the signed-in caller
	if player.StudentID == "" && player.StudentName == "" {
		player.StudentName = strings.TrimSpace(session.StudentName)
	}

	total := len(session.Questions)
	result := &models.GameResult{
		ID:             security.NewID(),
		SessionID:      sessionID,
		StudentID:      player.StudentID,
		StudentName:    playerName(player),
		LevelID:        level.ID,
		LevelTitle:     level.Title,
		Grade:          level.Grade,
		Subject:        level.Subject,
		Score:          score,
		TotalQuestions: total,
		Stars:          CalculateStars(score, total),
		CompletedAt:    now,
		Duration:       duration,
		IsOffline:      true,
	}
	if err := s.record(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// record appends a result and announces it
func (s *GameService) record(ctx context.Context, result *models.GameResult) error {
	if err := s.resultRepo.Create(ctx, result); err != nil {
		return fmt.Errorf("failed to store game result: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordGame(string(result.Subject), result.Stars)
	}
	if err := s.publisher.Publish(ctx, events.TopicGameCompleted, result); err != nil {
		s.log.WithError(err).WithField("result_id", result.ID).Warn("failed to publish game completion")
	}

	s.log.WithFields(logrus.Fields{
		"result_id": result.ID,
		"level_id":  result.LevelID,
		"score":     result.Score,
		"total":     result.TotalQuestions,
		"stars":     result.Stars,
		"offline":   result.IsOffline,
	}).Info("game completed")
	return nil
}

// GetStudentProgress aggregates a student's history, or everyone's when studentID is empty
func (s *GameService) GetStudentProgress(ctx context.Context, studentID string) (*models.StudentProgress, error) {
	results, err := s.resultRepo.List(ctx, models.ProgressFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}

	progress := &models.StudentProgress{
		StudentID:        studentID,
		TotalGamesPlayed: len(results),
		FavoriteSubject:  favoriteSubject(results),
		RecentGames:      results[:min(recentGamesLimit, len(results))],
		Achievements:     achievements(results),
	}
	scoreSum := 0
	for _, r := range results {
		progress.TotalStars += r.Stars
		scoreSum += r.Score
	}
	if len(results) > 0 {
		progress.AverageScore = round1(float64(scoreSum) / float64(len(results)))
	}
	return progress, nil
}

// GetResults lists results newest first
func (s *GameService) GetResults(ctx context.Context, filter models.ProgressFilter) ([]models.GameResult, error) {
	return s.resultRepo.List(ctx, filter)
}

// GetProgressStats summarizes all play for teachers
func (s *GameService) GetProgressStats(ctx context.Context) (*models.ProgressStats, error) {
	results, err := s.resultRepo.List(ctx, models.ProgressFilter{})
	if err != nil {
		return nil, err
	}

	stats := &models.ProgressStats{
		TotalGames:       len(results),
		SubjectBreakdown: map[models.Subject]int{},
		GradeBreakdown:   map[int]int{},
	}
	students := map[string]bool{}
	scoreSum := 0
	for _, r := range results {
		students[studentKey(r.StudentID)] = true
		scoreSum += r.Score
		stats.SubjectBreakdown[r.Subject]++
		stats.GradeBreakdown[r.Grade]++
	}
	stats.TotalStudents = len(students)
	if len(results) > 0 {
		stats.AverageScore = round1(float64(scoreSum) / float64(len(results)))
	}

	top := make([]models.GameResult, len(results))
	copy(top, results)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Score > top[j].Score })
	stats.TopPerformers = top[:min(topPerformersLimit, len(top))]

	return stats, nil
}

// favoriteSubject picks the most played subject. Subjects are compared in
// first-seen order and a later subject wins a tie. Math is the default.
func favoriteSubject(results []models.GameResult) models.Subject {
	counts := map[models.Subject]int{}
	var order []models.Subject
	for _, r := range results {
		if counts[r.Subject] == 0 {
			order = append(order, r.Subject)
		}
		counts[r.Subject]++
	}
	if len(order) == 0 {
		return models.SubjectMath
	}

	favorite := order[0]
	for _, subject := range order[1:] {
		if counts[subject] >= counts[favorite] {
			favorite = subject
		}
	}
	return favorite
}

// achievements replays results oldest first and stamps each badge with the
// completion time of the game that unlocked it
func achievements(results []models.GameResult) []models.Achievement {
	unlocked := []models.Achievement{}
	stars, games := 0, 0
	var starsAt, gamesAt *time.Time

	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		stars += r.Stars
		games++
		if stars >= 10 && starsAt == nil {
			at := r.CompletedAt
			starsAt = &at
		}
		if games >= 5 && gamesAt == nil {
			at := r.CompletedAt
			gamesAt = &at
		}
	}

	if starsAt != nil {
		unlocked = append(unlocked, models.Achievement{
			ID:          "star-collector",
			Title:       "Star Collector",
			Description: "Earned 10 stars",
			Icon:        "star",
			UnlockedAt:  starsAt,
			Category:    "score",
		})
	}
	if gamesAt != nil {
		unlocked = append(unlocked, models.Achievement{
			ID:          "dedicated-learner",
			Title:       "Dedicated Learner",
			Description: "Played 5 games",
			Icon:        "trophy",
			UnlockedAt:  gamesAt,
			Category:    "streak",
		})
	}
	return unlocked
}

func playerName(p models.Player) string {
	if p.StudentName != "" {
		return p.StudentName
	}
	return anonymousStudentName
}

func studentKey(studentID string) string {
	if studentID == "" {
		return "anonymous"
	}
	return studentID
}

func elapsedSeconds(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// round1 rounds to one decimal place
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
