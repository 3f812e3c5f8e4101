package service

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"edugame/internal/models"
	"edugame/internal/repository"
	"edugame/internal/security"
)

//go:embed seed/demo.yaml
var demoSeed []byte

type seedDocument struct {
	Users     []seedUser     `yaml:"users"`
	Questions []seedQuestion `yaml:"questions"`
	Levels    []seedLevel    `yaml:"levels"`
	Results   []seedResult   `yaml:"results"`
	Feedback  []seedFeedback `yaml:"feedback"`
}

type seedUser struct {
	Key      string      `yaml:"key"`
	Email    string      `yaml:"email"`
	Name     string      `yaml:"name"`
	Role     models.Role `yaml:"role"`
	Grade    *int        `yaml:"grade"`
	Password string      `yaml:"password"`
}

type seedQuestion struct {
	Key           string            `yaml:"key"`
	Prompt        string            `yaml:"prompt"`
	Options       []string          `yaml:"options"`
	CorrectAnswer int               `yaml:"correctAnswer"`
	Grade         int               `yaml:"grade"`
	Subject       models.Subject    `yaml:"subject"`
	Difficulty    models.Difficulty `yaml:"difficulty"`
}

type seedLevel struct {
	Key         string            `yaml:"key"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Grade       int               `yaml:"grade"`
	Subject     models.Subject    `yaml:"subject"`
	Difficulty  models.Difficulty `yaml:"difficulty"`
	PassScore   int               `yaml:"passScore"`
	Questions   []string          `yaml:"questions"`
}

type seedResult struct {
	Level    string `yaml:"level"`
	Student  string `yaml:"student"`
	Score    int    `yaml:"score"`
	DaysAgo  int    `yaml:"daysAgo"`
	Duration int    `yaml:"duration"`
}

type seedFeedback struct {
	User        string                  `yaml:"user"`
	Type        models.FeedbackType     `yaml:"type"`
	Category    models.FeedbackCategory `yaml:"category"`
	Title       string                  `yaml:"title"`
	Description string                  `yaml:"description"`
	Level       string                  `yaml:"level"`
	Priority    models.FeedbackPriority `yaml:"priority"`
}

// Seeder loads the embedded demo content
type Seeder struct {
	userRepo     *repository.UserRepository
	questionRepo *repository.QuestionRepository
	levelRepo    *repository.LevelRepository
	resultRepo   *repository.ResultRepository
	feedbackRepo *repository.FeedbackRepository
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewSeeder creates a seeder writing through the given repositories
func NewSeeder(
	userRepo *repository.UserRepository,
	questionRepo *repository.QuestionRepository,
	levelRepo *repository.LevelRepository,
	resultRepo *repository.ResultRepository,
	feedbackRepo *repository.FeedbackRepository,
	log logrus.FieldLogger,
) *Seeder {
	return &Seeder{
		userRepo:     userRepo,
		questionRepo: questionRepo,
		levelRepo:    levelRepo,
		resultRepo:   resultRepo,
		feedbackRepo: feedbackRepo,
		log:          log,
		now:          time.Now,
	}
}

// SeedDemoData loads the demo content unless the question bank already has
// questions. It reports whether anything was written.
func (s *Seeder) SeedDemoData(ctx context.Context) (bool, error) {
	count, err := s.questionRepo.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		s.log.Debug("question bank not empty, skipping demo data")
		return false, nil
	}

	var doc seedDocument
	if err := yaml.Unmarshal(demoSeed, &doc); err != nil {
		return false, fmt.Errorf("failed to parse demo data: %w", err)
	}

	now := s.now().UTC()
	users := map[string]*models.User{}
	for _, su := range doc.Users {
		user, err := s.seedUser(ctx, su, now)
		if err != nil {
			return false, err
		}
		users[su.Key] = user
	}

	author := ""
	if u, ok := users["teacher"]; ok {
		author = u.ID
	}

	questionIDs := map[string]string{}
	for i, sq := range doc.Questions {
		q := &models.Question{
			ID:            security.NewID(),
			Prompt:        sq.Prompt,
			Options:       sq.Options,
			CorrectAnswer: sq.CorrectAnswer,
			Grade:         sq.Grade,
			Subject:       sq.Subject,
			Difficulty:    sq.Difficulty,
			IsActive:      true,
			CreatedBy:     author,
			// Distinct timestamps keep the listing order of the document.
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
			UpdatedAt: now,
		}
		if err := s.questionRepo.Create(ctx, q); err != nil {
			return false, fmt.Errorf("failed to seed question %s: %w", sq.Key, err)
		}
		questionIDs[sq.Key] = q.ID
	}

	levels := map[string]*models.Level{}
	for i, sl := range doc.Levels {
		ids := make([]string, 0, len(sl.Questions))
		for _, key := range sl.Questions {
			id, ok := questionIDs[key]
			if !ok {
				return false, fmt.Errorf("level %s references unknown question %s", sl.Key, key)
			}
			ids = append(ids, id)
		}
		level := &models.Level{
			ID:             security.NewID(),
			Title:          sl.Title,
			Description:    sl.Description,
			Grade:          sl.Grade,
			Subject:        sl.Subject,
			Difficulty:     sl.Difficulty,
			PassScore:      sl.PassScore,
			QuestionIDs:    ids,
			TotalQuestions: len(ids),
			IsActive:       true,
			CreatedBy:      author,
			CreatedAt:      now.Add(time.Duration(i) * time.Millisecond),
			UpdatedAt:      now,
		}
		if err := s.levelRepo.Create(ctx, level); err != nil {
			return false, fmt.Errorf("failed to seed level %s: %w", sl.Key, err)
		}
		levels[sl.Key] = level
	}

	for _, sr := range doc.Results {
		level, ok := levels[sr.Level]
		if !ok {
			return false, fmt.Errorf("result references unknown level %s", sr.Level)
		}
		result := &models.GameResult{
			ID:             security.NewID(),
			SessionID:      security.NewID(),
			StudentName:    anonymousStudentName,
			LevelID:        level.ID,
			LevelTitle:     level.Title,
			Grade:          level.Grade,
			Subject:        level.Subject,
			Score:          sr.Score,
			TotalQuestions: level.TotalQuestions,
			Stars:          CalculateStars(sr.Score, level.TotalQuestions),
			CompletedAt:    now.AddDate(0, 0, -sr.DaysAgo),
			Duration:       sr.Duration,
		}
		if student, ok := users[sr.Student]; ok {
			result.StudentID = student.ID
			result.StudentName = student.Name
		}
		if err := s.resultRepo.Create(ctx, result); err != nil {
			return false, fmt.Errorf("failed to seed result: %w", err)
		}
	}

	for _, sf := range doc.Feedback {
		feedback := &models.Feedback{
			ID:          security.NewID(),
			Type:        sf.Type,
			Category:    sf.Category,
			Title:       sf.Title,
			Description: sf.Description,
			Priority:    sf.Priority,
			Status:      models.StatusOpen,
			SubmittedAt: now,
			UpdatedAt:   now,
		}
		if user, ok := users[sf.User]; ok {
			feedback.UserID = user.ID
			feedback.UserName = user.Name
		}
		if level, ok := levels[sf.Level]; ok {
			feedback.LevelID = level.ID
		}
		if err := s.feedbackRepo.Create(ctx, feedback); err != nil {
			return false, fmt.Errorf("failed to seed feedback: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"users":     len(doc.Users),
		"questions": len(doc.Questions),
		"levels":    len(doc.Levels),
		"results":   len(doc.Results),
		"feedback":  len(doc.Feedback),
	}).Info("seeded demo data")
	return true, nil
}

// seedUser creates a demo account, reusing an existing account with the same email
func (s *Seeder) seedUser(ctx context.Context, su seedUser, now time.Time) (*models.User, error) {
	existing, err := s.userRepo.GetUserByEmail(ctx, su.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	hash, err := security.HashPassword(su.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:            security.NewID(),
		Email:         su.Email,
		PasswordHash:  hash,
		Name:          su.Name,
		Role:          su.Role,
		Grade:         su.Grade,
		IsActive:      true,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to seed user %s: %w", su.Email, err)
	}
	return user, nil
}
