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

func feedbackForm(title string) models.FeedbackForm {
	return models.FeedbackForm{
		Type:        models.FeedbackBug,
		Title:       title,
		Description: "The correct answer for question 5 is marked as B but it should be C.",
	}
}

func TestFeedbackSubmitDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := &models.User{ID: "teacher-1", Name: "Teacher User", Email: "teacher@edugame.com"}

	fb, err := f.feedback.Submit(ctx, feedbackForm("  Wrong answer in Math question "), teacher)
	require.NoError(t, err)
	assert.Equal(t, "Wrong answer in Math question", fb.Title)
	assert.Equal(t, models.PriorityMedium, fb.Priority)
	assert.Equal(t, models.CategoryOther, fb.Category)
	assert.Equal(t, models.StatusOpen, fb.Status)
	assert.Equal(t, "teacher-1", fb.UserID)
	assert.Equal(t, "Teacher User", fb.UserName)
	assert.Equal(t, base, fb.SubmittedAt)

	anon, err := f.feedback.Submit(ctx, feedbackForm("Anonymous report"), nil)
	require.NoError(t, err)
	assert.Empty(t, anon.UserID)

	assert.Equal(t, []string{events.TopicFeedbackSubmitted, events.TopicFeedbackSubmitted}, f.events.Topics())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.FeedbackSubmitted.WithLabelValues("bug")))
}

func TestFeedbackSubmitValidates(t *testing.T) {
	f := newFixture(t)

	form := feedbackForm(" ")
	form.Type = "rant"
	_, err := f.feedback.Submit(context.Background(), form, nil)
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "title")
	assert.Contains(t, verrs, "type")
	assert.Empty(t, f.events.Topics())
}

func TestFeedbackStatusLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := &models.User{ID: "admin-1", Email: "admin@edugame.com", Role: models.RoleAdmin}

	fb, err := f.feedback.Submit(ctx, feedbackForm("Broken audio"), nil)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	comment := "Looking into it"
	updated, err := f.feedback.UpdateStatus(ctx, fb.ID, models.FeedbackStatusUpdate{Status: models.StatusInProgress, AdminComments: &comment}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Equal(t, comment, updated.AdminComments)
	assert.Nil(t, updated.ResolvedAt)

	f.clock.Advance(time.Hour)
	resolved, err := f.feedback.UpdateStatus(ctx, fb.ID, models.FeedbackStatusUpdate{Status: models.StatusResolved}, admin)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, resolved.ResolvedAt.Equal(base.Add(2*time.Hour)))
	assert.Equal(t, "admin@edugame.com", resolved.ResolvedBy)
	assert.Equal(t, comment, resolved.AdminComments)

	stored, err := f.feedback.GetByID(ctx, fb.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, stored.Status)
	assert.Equal(t, "admin@edugame.com", stored.ResolvedBy)

	reopened, err := f.feedback.UpdateStatus(ctx, fb.ID, models.FeedbackStatusUpdate{Status: models.StatusOpen}, admin)
	require.NoError(t, err)
	assert.Nil(t, reopened.ResolvedAt)
	assert.Empty(t, reopened.ResolvedBy)

	_, err = f.feedback.UpdateStatus(ctx, fb.ID, models.FeedbackStatusUpdate{Status: models.StatusClosed}, admin)
	require.NoError(t, err)
	_, err = f.feedback.UpdateStatus(ctx, fb.ID, models.FeedbackStatusUpdate{Status: models.StatusOpen}, admin)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = f.feedback.UpdateStatus(ctx, "missing", models.FeedbackStatusUpdate{Status: models.StatusOpen}, admin)
	assert.ErrorIs(t, err, ErrFeedbackNotFound)

	assert.Equal(t, []string{
		events.TopicFeedbackSubmitted,
		events.TopicFeedbackStatusChanged,
		events.TopicFeedbackStatusChanged,
		events.TopicFeedbackStatusChanged,
		events.TopicFeedbackStatusChanged,
	}, f.events.Topics())
}

func TestFeedbackListDeleteAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	critical := feedbackForm("Game crashes on start")
	critical.Priority = models.PriorityCritical
	critical.Category = models.CategoryTechnicalIssue
	a, err := f.feedback.Submit(ctx, critical, nil)
	require.NoError(t, err)

	suggestion := feedbackForm("Add more spelling questions")
	suggestion.Type = models.FeedbackSuggestion
	suggestion.Category = models.CategoryContentIssue
	b, err := f.feedback.Submit(ctx, suggestion, nil)
	require.NoError(t, err)

	_, err = f.feedback.UpdateStatus(ctx, b.ID, models.FeedbackStatusUpdate{Status: models.StatusResolved}, nil)
	require.NoError(t, err)

	found, err := f.feedback.List(ctx, models.FeedbackFilter{SearchText: "  SPELLING "})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.ID, found[0].ID)

	stats, err := f.feedback.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFeedback)
	assert.Equal(t, 1, stats.OpenIssues)
	assert.Equal(t, 1, stats.ResolvedIssues)
	assert.Equal(t, 1, stats.CriticalIssues)
	assert.Equal(t, 1, stats.TypeBreakdown[models.FeedbackSuggestion])
	assert.Equal(t, 1, stats.CategoryBreakdown[models.CategoryTechnicalIssue])

	require.NoError(t, f.feedback.Delete(ctx, a.ID))
	assert.ErrorIs(t, f.feedback.Delete(ctx, a.ID), ErrFeedbackNotFound)

	gone, err := f.feedback.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
