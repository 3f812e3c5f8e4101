package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edugame/internal/models"
	"edugame/internal/validation"
)

func TestLevelServiceCreateCountsQuestions(t *testing.T) {
	f := newFixture(t)
	ids := f.addQuestions(t, 10, 3, models.SubjectMath)

	level := f.addLevel(t, 3, models.SubjectMath, 7, ids)
	assert.Equal(t, 10, level.TotalQuestions)
	assert.Equal(t, ids, level.QuestionIDs)
	assert.True(t, level.IsActive)

	stored, err := f.levels.GetByID(context.Background(), level.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.TotalQuestions)
	assert.Equal(t, ids, stored.QuestionIDs)
}

func TestLevelServiceShrinkQuestions(t *testing.T) {
	t.Run("pass score still fits", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		ids := f.addQuestions(t, 10, 3, models.SubjectMath)
		level := f.addLevel(t, 3, models.SubjectMath, 4, ids)

		updated, err := f.levels.Update(ctx, level.ID, models.LevelPatch{QuestionIDs: ids[:5]})
		require.NoError(t, err)
		assert.Equal(t, 5, updated.TotalQuestions)
		assert.Equal(t, 4, updated.PassScore)

		stored, err := f.levels.GetByID(ctx, level.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, stored.TotalQuestions)
		assert.Equal(t, ids[:5], stored.QuestionIDs)
		assert.Equal(t, 4, stored.PassScore)
	})

	t.Run("pass score no longer fits", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		ids := f.addQuestions(t, 10, 3, models.SubjectMath)
		level := f.addLevel(t, 3, models.SubjectMath, 7, ids)

		_, err := f.levels.Update(ctx, level.ID, models.LevelPatch{QuestionIDs: ids[:5]})
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
		assert.Equal(t, "must not exceed the number of questions (5)", verrs["passScore"])

		stored, err := f.levels.GetByID(ctx, level.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, stored.TotalQuestions)
		assert.Equal(t, 7, stored.PassScore)
	})
}

func TestLevelServiceUpdateWithoutQuestionsKeepsList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.addQuestions(t, 3, 2, models.SubjectSpelling)
	level := f.addLevel(t, 2, models.SubjectSpelling, 2, ids)

	title := "Grade 2 Spelling Challenge"
	updated, err := f.levels.Update(ctx, level.ID, models.LevelPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, ids, updated.QuestionIDs)
	assert.Equal(t, 3, updated.TotalQuestions)
}

func TestLevelServiceValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	math := f.addQuestions(t, 3, 1, models.SubjectMath)
	spelling := f.addQuestions(t, 1, 1, models.SubjectSpelling)

	form := func() models.LevelForm {
		return models.LevelForm{
			Title:       "Grade 1 Addition Basics",
			Grade:       1,
			Subject:     models.SubjectMath,
			Difficulty:  models.DifficultyEasy,
			PassScore:   2,
			QuestionIDs: append([]string(nil), math...),
		}
	}

	t.Run("pass score above question count", func(t *testing.T) {
		lf := form()
		lf.PassScore = 4
		_, err := f.levels.Create(ctx, lf, "teacher-1")
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Contains(t, verrs, "passScore")
	})

	t.Run("zero pass score", func(t *testing.T) {
		lf := form()
		lf.PassScore = 0
		_, err := f.levels.Create(ctx, lf, "teacher-1")
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Contains(t, verrs, "passScore")
	})

	t.Run("duplicate question ids", func(t *testing.T) {
		lf := form()
		lf.QuestionIDs = []string{math[0], math[0]}
		_, err := f.levels.Create(ctx, lf, "teacher-1")
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Contains(t, verrs, "questionIds")
	})

	t.Run("unknown question", func(t *testing.T) {
		lf := form()
		lf.QuestionIDs = append(lf.QuestionIDs, "missing")
		_, err := f.levels.Create(ctx, lf, "teacher-1")
		assert.ErrorIs(t, err, ErrUnknownQuestions)
	})

	t.Run("question from another subject", func(t *testing.T) {
		lf := form()
		lf.QuestionIDs = append(lf.QuestionIDs, spelling[0])
		_, err := f.levels.Create(ctx, lf, "teacher-1")
		var verrs validation.Errors
		require.True(t, errors.As(err, &verrs))
		assert.Contains(t, verrs, "questionIds")
	})

	levels, err := f.levels.GetAll(ctx, models.LevelFilters{})
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestLevelServiceDeleteKeepsResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.addQuestions(t, 2, 1, models.SubjectMath)
	level := f.addLevel(t, 1, models.SubjectMath, 1, ids)
	f.addResult(t, models.GameResult{LevelID: level.ID, LevelTitle: level.Title, Score: 2, TotalQuestions: 2})

	require.NoError(t, f.levels.Delete(ctx, level.ID))
	assert.ErrorIs(t, f.levels.Delete(ctx, level.ID), ErrLevelNotFound)

	results, err := f.games.GetResults(ctx, models.ProgressFilter{})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// questions are free again once the level is gone
	require.NoError(t, f.questions.Delete(ctx, ids[0]))
}

func TestLevelServiceAvailableQuestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.addQuestions(t, 2, 4, models.SubjectGeneralKnowledge)
	f.addQuestions(t, 1, 4, models.SubjectMath)

	inactive := false
	_, err := f.questions.Update(ctx, ids[1], models.QuestionPatch{IsActive: &inactive})
	require.NoError(t, err)

	got, err := f.levels.AvailableQuestions(ctx, 4, models.SubjectGeneralKnowledge)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ids[0], got[0].ID)

	_, err = f.levels.AvailableQuestions(ctx, 9, models.SubjectMath)
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "grade")
}
