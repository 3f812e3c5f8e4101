package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"edugame/internal/models"
	"edugame/internal/repository"
	"edugame/internal/security"
	"edugame/internal/validation"
)

// LevelService handles level business logic
type LevelService struct {
	levelRepo    *repository.LevelRepository
	questionRepo *repository.QuestionRepository
	now          func() time.Time
}

// NewLevelService creates a new level service
func NewLevelService(levelRepo *repository.LevelRepository, questionRepo *repository.QuestionRepository) *LevelService {
	return &LevelService{
		levelRepo:    levelRepo,
		questionRepo: questionRepo,
		now:          time.Now,
	}
}

// GetAll returns the levels matching filters in creation order
func (s *LevelService) GetAll(ctx context.Context, filters models.LevelFilters) ([]models.Level, error) {
	filters.Search = strings.TrimSpace(filters.Search)
	return s.levelRepo.List(ctx, filters)
}

// GetByID returns a level, or nil when it does not exist
func (s *LevelService) GetByID(ctx context.Context, id string) (*models.Level, error) {
	return s.levelRepo.GetByID(ctx, id)
}

// Create validates form and stores a new level
func (s *LevelService) Create(ctx context.Context, form models.LevelForm, createdBy string) (*models.Level, error) {
	if err := s.validate(ctx, form); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	level := &models.Level{
		ID:             security.NewID(),
		Title:          strings.TrimSpace(form.Title),
		Description:    strings.TrimSpace(form.Description),
		Grade:          form.Grade,
		Subject:        form.Subject,
		Difficulty:     form.Difficulty,
		PassScore:      form.PassScore,
		TotalQuestions: len(form.QuestionIDs),
		QuestionIDs:    form.QuestionIDs,
		IsActive:       form.IsActive == nil || *form.IsActive,
		CreatedAt:      now,
		UpdatedAt:      now,
		CreatedBy:      createdBy,
	}

	if err := s.levelRepo.Create(ctx, level); err != nil {
		if errors.Is(err, repository.ErrReferenced) {
			return nil, ErrUnknownQuestions
		}
		return nil, err
	}
	return level, nil
}

// Update merges patch into the stored level. The question list, and with it
// totalQuestions, only changes when patch carries questionIds. The merged
// level must still satisfy every level invariant.
func (s *LevelService) Update(ctx context.Context, id string, patch models.LevelPatch) (*models.Level, error) {
	level, err := s.levelRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, ErrLevelNotFound
	}

	form := models.LevelForm{
		Title:       level.Title,
		Description: level.Description,
		Grade:       level.Grade,
		Subject:     level.Subject,
		Difficulty:  level.Difficulty,
		PassScore:   level.PassScore,
		QuestionIDs: level.QuestionIDs,
	}
	if patch.Title != nil {
		form.Title = *patch.Title
	}
	if patch.Description != nil {
		form.Description = *patch.Description
	}
	if patch.Grade != nil {
		form.Grade = *patch.Grade
	}
	if patch.Subject != nil {
		form.Subject = *patch.Subject
	}
	if patch.Difficulty != nil {
		form.Difficulty = *patch.Difficulty
	}
	if patch.PassScore != nil {
		form.PassScore = *patch.PassScore
	}
	replaceQuestions := patch.QuestionIDs != nil
	if replaceQuestions {
		form.QuestionIDs = patch.QuestionIDs
	}
	if err := s.validate(ctx, form); err != nil {
		return nil, err
	}

	level.Title = strings.TrimSpace(form.Title)
	level.Description = strings.TrimSpace(form.Description)
	level.Grade = form.Grade
	level.Subject = form.Subject
	level.Difficulty = form.Difficulty
	level.PassScore = form.PassScore
	level.QuestionIDs = form.QuestionIDs
	level.TotalQuestions = len(form.QuestionIDs)
	if patch.IsActive != nil {
		level.IsActive = *patch.IsActive
	}
	level.UpdatedAt = s.now().UTC()

	found, err := s.levelRepo.Update(ctx, level, replaceQuestions)
	if errors.Is(err, repository.ErrReferenced) {
		return nil, ErrUnknownQuestions
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrLevelNotFound
	}
	return level, nil
}

// Delete removes a level. Results that reference it are kept.
func (s *LevelService) Delete(ctx context.Context, id string) error {
	found, err := s.levelRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrLevelNotFound
	}
	return nil
}

// Stats summarizes the active levels
func (s *LevelService) Stats(ctx context.Context) (*models.LevelStats, error) {
	return s.levelRepo.Stats(ctx)
}

// AvailableQuestions lists the active questions a level of grade and subject may use
func (s *LevelService) AvailableQuestions(ctx context.Context, grade int, subject models.Subject) ([]models.Question, error) {
	if grade < models.MinGrade || grade > models.MaxGrade {
		return nil, validation.Errors{"grade": fmt.Sprintf("must be between %d and %d", models.MinGrade, models.MaxGrade)}
	}
	if !subject.Valid() {
		return nil, validation.Errors{"subject": "must be one of: Math, Spelling, General Knowledge"}
	}
	return s.questionRepo.ListForPlay(ctx, grade, subject)
}

// validate checks the form's tags, the pass score against the question
// count, and that every question exists with the level's grade and subject
func (s *LevelService) validate(ctx context.Context, form models.LevelForm) error {
	errs := validation.Errors{}
	if err := validation.Struct(form); err != nil {
		var verrs validation.Errors
		if !errors.As(err, &verrs) {
			return err
		}
		errs = verrs
	}

	if form.PassScore > len(form.QuestionIDs) {
		errs.Add("passScore", fmt.Sprintf("must not exceed the number of questions (%d)", len(form.QuestionIDs)))
	}
	if len(errs) > 0 {
		return errs
	}

	found, err := s.questionRepo.GetByIDs(ctx, form.QuestionIDs)
	if err != nil {
		return err
	}
	var missing []string
	for _, id := range form.QuestionIDs {
		q, ok := found[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if q.Grade != form.Grade || q.Subject != form.Subject {
			errs.Add("questionIds", fmt.Sprintf("question %s does not belong to grade %d %s", id, form.Grade, form.Subject))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownQuestions, strings.Join(missing, ", "))
	}
	return errs.OrNil()
}
