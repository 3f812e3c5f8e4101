package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"edugame/internal/models"
	"edugame/internal/repository"
	"edugame/internal/security"
	"edugame/internal/validation"
)

// QuestionService handles question bank business logic
type QuestionService struct {
	questionRepo *repository.QuestionRepository
	now          func() time.Time
}

// NewQuestionService creates a new question service
func NewQuestionService(questionRepo *repository.QuestionRepository) *QuestionService {
	return &QuestionService{
		questionRepo: questionRepo,
		now:          time.Now,
	}
}

// GetAll returns the questions matching filters in creation order
func (s *QuestionService) GetAll(ctx context.Context, filters models.QuestionFilters) ([]models.Question, error) {
	filters.Search = strings.TrimSpace(filters.Search)
	return s.questionRepo.List(ctx, filters)
}

// GetByID returns a question, or nil when it does not exist
func (s *QuestionService) GetByID(ctx context.Context, id string) (*models.Question, error) {
	return s.questionRepo.GetByID(ctx, id)
}

// Create validates form and adds a new question to the bank
func (s *QuestionService) Create(ctx context.Context, form models.QuestionForm, createdBy string) (*models.Question, error) {
	if err := validateQuestionForm(form); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	question := &models.Question{
		ID:            security.NewID(),
		Prompt:        strings.TrimSpace(form.Prompt),
		Options:       trimAll(form.Options),
		CorrectAnswer: form.CorrectAnswer,
		Grade:         form.Grade,
		Subject:       form.Subject,
		Difficulty:    form.Difficulty,
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     createdBy,
		IsActive:      form.IsActive == nil || *form.IsActive,
	}

	if err := s.questionRepo.Create(ctx, question); err != nil {
		return nil, err
	}
	return question, nil
}

// Update merges patch into the stored question and re-validates the result
func (s *QuestionService) Update(ctx context.Context, id string, patch models.QuestionPatch) (*models.Question, error) {
	question, err := s.questionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if question == nil {
		return nil, ErrQuestionNotFound
	}

	form := models.QuestionForm{
		Prompt:        question.Prompt,
		Options:       question.Options,
		CorrectAnswer: question.CorrectAnswer,
		Grade:         question.Grade,
		Subject:       question.Subject,
		Difficulty:    question.Difficulty,
	}
	if patch.Prompt != nil {
		form.Prompt = *patch.Prompt
	}
	if patch.Options != nil {
		form.Options = patch.Options
	}
	if patch.CorrectAnswer != nil {
		form.CorrectAnswer = *patch.CorrectAnswer
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
	if err := validateQuestionForm(form); err != nil {
		return nil, err
	}

	// levels only hold active questions of their own grade and subject
	deactivating := patch.IsActive != nil && !*patch.IsActive && question.IsActive
	if deactivating || form.Grade != question.Grade || form.Subject != question.Subject {
		levels, err := s.questionRepo.ReferencingLevels(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(levels) > 0 {
			return nil, fmt.Errorf("%w: referenced by %d level(s)", ErrQuestionInUse, len(levels))
		}
	}

	question.Prompt = strings.TrimSpace(form.Prompt)
	question.Options = trimAll(form.Options)
	question.CorrectAnswer = form.CorrectAnswer
	question.Grade = form.Grade
	question.Subject = form.Subject
	question.Difficulty = form.Difficulty
	if patch.IsActive != nil {
		question.IsActive = *patch.IsActive
	}
	question.UpdatedAt = s.now().UTC()

	found, err := s.questionRepo.Update(ctx, question)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrQuestionNotFound
	}
	return question, nil
}

// Delete removes a question that no level references
func (s *QuestionService) Delete(ctx context.Context, id string) error {
	levels, err := s.questionRepo.ReferencingLevels(ctx, id)
	if err != nil {
		return err
	}
	if len(levels) > 0 {
		return fmt.Errorf("%w: referenced by %d level(s)", ErrQuestionInUse, len(levels))
	}

	found, err := s.questionRepo.Delete(ctx, id)
	if errors.Is(err, repository.ErrReferenced) {
		return ErrQuestionInUse
	}
	if err != nil {
		return err
	}
	if !found {
		return ErrQuestionNotFound
	}
	return nil
}

// Stats summarizes the active question bank
func (s *QuestionService) Stats(ctx context.Context) (*models.QuestionStats, error) {
	return s.questionRepo.Stats(ctx)
}

// BulkImport creates every valid question in data and reports the invalid ones.
// Rows are numbered from 1 in document order.
func (s *QuestionService) BulkImport(ctx context.Context, data models.BulkImportData, createdBy string) (*models.BulkImportResult, error) {
	var forms []models.QuestionForm
	var rowErrors map[int]string

	switch data.Format {
	case models.ImportJSON, "":
		forms = data.Questions
	case models.ImportCSV:
		var err error
		forms, rowErrors, err = parseQuestionCSV(strings.NewReader(data.CSV))
		if err != nil {
			return nil, err
		}
	default:
		return nil, validation.Errors{"format": "must be one of: json, csv"}
	}

	result := &models.BulkImportResult{Errors: []string{}}
	for i, form := range forms {
		n := i + 1
		if msg, bad := rowErrors[n]; bad {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Question %d: %s", n, msg))
			continue
		}

		if _, err := s.Create(ctx, form, createdBy); err != nil {
			var verrs validation.Errors
			if !errors.As(err, &verrs) {
				return nil, err
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Question %d: %s", n, describe(verrs)))
			continue
		}
		result.Success++
	}
	return result, nil
}

var csvHeader = []string{"prompt", "options", "correctanswer", "grade", "subject", "difficulty"}

// parseQuestionCSV reads one form per record. Records that cannot be
// converted are returned as zero forms with an entry in rowErrors.
func parseQuestionCSV(r io.Reader) ([]models.QuestionForm, map[int]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, validation.Errors{"csv": "is required"}
	}
	if err != nil {
		return nil, nil, validation.Errors{"csv": "is not valid CSV: " + err.Error()}
	}
	for i, col := range csvHeader {
		if i >= len(header) || strings.ToLower(strings.TrimSpace(header[i])) != col {
			return nil, nil, validation.Errors{"csv": "header must be prompt,options,correctAnswer,grade,subject,difficulty"}
		}
	}

	var forms []models.QuestionForm
	rowErrors := map[int]string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		n := len(forms) + 1
		if err != nil {
			forms = append(forms, models.QuestionForm{})
			rowErrors[n] = "malformed row"
			continue
		}
		if len(record) < len(csvHeader) {
			forms = append(forms, models.QuestionForm{})
			rowErrors[n] = fmt.Sprintf("expected %d columns, got %d", len(csvHeader), len(record))
			continue
		}

		correct, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil {
			forms = append(forms, models.QuestionForm{})
			rowErrors[n] = "correctAnswer must be a number"
			continue
		}
		grade, err := strconv.Atoi(strings.TrimSpace(record[3]))
		if err != nil {
			forms = append(forms, models.QuestionForm{})
			rowErrors[n] = "grade must be a number"
			continue
		}

		forms = append(forms, models.QuestionForm{
			Prompt:        record[0],
			Options:       strings.Split(record[1], "|"),
			CorrectAnswer: correct,
			Grade:         grade,
			Subject:       models.Subject(strings.TrimSpace(record[4])),
			Difficulty:    models.Difficulty(strings.TrimSpace(record[5])),
		})
	}
	return forms, rowErrors, nil
}

// validateQuestionForm checks tags plus the correctAnswer range
func validateQuestionForm(form models.QuestionForm) error {
	errs := validation.Errors{}
	if err := validation.Struct(form); err != nil {
		var verrs validation.Errors
		if !errors.As(err, &verrs) {
			return err
		}
		errs = verrs
	}
	if form.CorrectAnswer < 0 || form.CorrectAnswer >= len(form.Options) {
		errs.Add("correctAnswer", "must reference one of the options")
	}
	return errs.OrNil()
}

// describe renders validation errors as a single sorted line
func describe(errs validation.Errors) string {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+" "+errs[field])
	}
	return strings.Join(parts, ", ")
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
