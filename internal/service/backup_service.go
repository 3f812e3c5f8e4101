package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"edugame/internal/database"
	"edugame/internal/models"
	"edugame/internal/repository"
)

// BackupVersion is written to every export and checked on import
const BackupVersion = "1.0"

// BackupData is the complete backup document
type BackupData struct {
	Version      string              `json:"version"`
	ExportedAt   time.Time           `json:"exported_at"`
	DatabaseType string              `json:"database_type"`
	Users        []UserBackup        `json:"users"`
	Questions    []models.Question   `json:"questions"`
	Levels       []models.Level      `json:"levels"`
	Results      []models.GameResult `json:"results"`
	Feedback     []models.Feedback   `json:"feedback"`
}

// UserBackup is a user record including the credentials the API never exposes
type UserBackup struct {
	models.User
	PasswordHash  string `json:"password_hash"`
	OAuthProvider string `json:"oauth_provider,omitempty"`
	OAuthSubject  string `json:"oauth_subject,omitempty"`
}

// ImportSummary counts the records written and skipped by an import
type ImportSummary struct {
	Imported map[string]int `json:"imported"`
	Skipped  map[string]int `json:"skipped"`
}

func (s *ImportSummary) count(kind string, err error) error {
	switch {
	case err == nil:
		s.Imported[kind]++
	case errors.Is(err, repository.ErrDuplicate):
		s.Skipped[kind]++
	default:
		return fmt.Errorf("failed to import %s: %w", kind, err)
	}
	return nil
}

// BackupService exports and restores the application data
type BackupService struct {
	db           *database.DB
	userRepo     *repository.UserRepository
	questionRepo *repository.QuestionRepository
	levelRepo    *repository.LevelRepository
	resultRepo   *repository.ResultRepository
	feedbackRepo *repository.FeedbackRepository
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, log logrus.FieldLogger) *BackupService {
	return &BackupService{
		db:           db,
		userRepo:     repository.NewUserRepository(db),
		questionRepo: repository.NewQuestionRepository(db),
		levelRepo:    repository.NewLevelRepository(db),
		resultRepo:   repository.NewResultRepository(db),
		feedbackRepo: repository.NewFeedbackRepository(db),
		log:          log,
		now:          time.Now,
	}
}

// Export writes a complete backup to w as indented JSON
func (s *BackupService) Export(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   s.now().UTC(),
		DatabaseType: s.db.Dialect.DriverName(),
	}

	users, err := s.userRepo.GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	backup.Users = make([]UserBackup, 0, len(users))
	for _, u := range users {
		backup.Users = append(backup.Users, UserBackup{
			User:          u,
			PasswordHash:  u.PasswordHash,
			OAuthProvider: u.OAuthProvider,
			OAuthSubject:  u.OAuthSubject,
		})
	}

	if backup.Questions, err = s.questionRepo.List(ctx, models.QuestionFilters{}); err != nil {
		return nil, fmt.Errorf("failed to export questions: %w", err)
	}
	if backup.Levels, err = s.levelRepo.List(ctx, models.LevelFilters{}); err != nil {
		return nil, fmt.Errorf("failed to export levels: %w", err)
	}
	if backup.Results, err = s.resultRepo.List(ctx, models.ProgressFilter{}); err != nil {
		return nil, fmt.Errorf("failed to export results: %w", err)
	}
	if backup.Feedback, err = s.feedbackRepo.List(ctx, models.FeedbackFilter{}); err != nil {
		return nil, fmt.Errorf("failed to export feedback: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"users":     len(backup.Users),
		"questions": len(backup.Questions),
		"levels":    len(backup.Levels),
		"results":   len(backup.Results),
		"feedback":  len(backup.Feedback),
	}).Info("backup exported")
	return backup, nil
}

// Import restores a backup read from r. Records whose id already exists are
// skipped, so importing the same backup twice is harmless.
func (s *BackupService) Import(ctx context.Context, r io.Reader) (*ImportSummary, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return nil, fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	summary := &ImportSummary{Imported: map[string]int{}, Skipped: map[string]int{}}

	for _, u := range backup.Users {
		user := u.User
		user.PasswordHash = u.PasswordHash
		user.OAuthProvider = u.OAuthProvider
		user.OAuthSubject = u.OAuthSubject
		if err := summary.count("users", s.userRepo.CreateUser(ctx, &user)); err != nil {
			return summary, err
		}
	}
	for i := range backup.Questions {
		if err := summary.count("questions", s.questionRepo.Create(ctx, &backup.Questions[i])); err != nil {
			return summary, err
		}
	}
	for i := range backup.Levels {
		if err := summary.count("levels", s.levelRepo.Create(ctx, &backup.Levels[i])); err != nil {
			return summary, err
		}
	}
	for i := range backup.Results {
		if err := summary.count("results", s.resultRepo.Create(ctx, &backup.Results[i])); err != nil {
			return summary, err
		}
	}
	for i := range backup.Feedback {
		if err := summary.count("feedback", s.feedbackRepo.Create(ctx, &backup.Feedback[i])); err != nil {
			return summary, err
		}
	}

	s.log.WithFields(logrus.Fields{"imported": summary.Imported, "skipped": summary.Skipped}).Info("backup imported")
	return summary, nil
}

// clearOrder lists the tables in an order that satisfies foreign keys
var clearOrder = []string{
	"game_results",
	"feedback",
	"level_questions",
	"levels",
	"questions",
	"refresh_tokens",
	"password_reset_tokens",
	"kv_entries",
	"users",
}

// Clear deletes all application data in one transaction
func (s *BackupService) Clear(ctx context.Context) error {
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		for _, table := range clearOrder {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Warn("cleared all data")
	return nil
}
