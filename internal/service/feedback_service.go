package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"edugame/internal/events"
	"edugame/internal/metrics"
	"edugame/internal/models"
	"edugame/internal/repository"
	"edugame/internal/security"
	"edugame/internal/validation"
)

// FeedbackService handles feedback submission and triage
type FeedbackService struct {
	feedbackRepo *repository.FeedbackRepository
	publisher    events.Publisher
	metrics      *metrics.Metrics
	log          logrus.FieldLogger
	now          func() time.Time
}

// NewFeedbackService creates a new feedback service. metrics may be nil.
func NewFeedbackService(feedbackRepo *repository.FeedbackRepository, publisher events.Publisher, m *metrics.Metrics, log logrus.FieldLogger) *FeedbackService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &FeedbackService{
		feedbackRepo: feedbackRepo,
		publisher:    publisher,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// Submit stores a new open ticket. submitter may be nil for anonymous feedback.
func (s *FeedbackService) Submit(ctx context.Context, form models.FeedbackForm, submitter *models.User) (*models.Feedback, error) {
	if form.Priority == "" {
		form.Priority = models.PriorityMedium
	}
	if form.Category == "" {
		form.Category = models.CategoryOther
	}
	if err := validation.Struct(form); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	feedback := &models.Feedback{
		ID:          security.NewID(),
		Type:        form.Type,
		Category:    form.Category,
		Title:       strings.TrimSpace(form.Title),
		Description: strings.TrimSpace(form.Description),
		GameID:      form.GameID,
		QuestionID:  form.QuestionID,
		LevelID:     form.LevelID,
		Priority:    form.Priority,
		Status:      models.StatusOpen,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if submitter != nil {
		feedback.UserID = submitter.ID
		feedback.UserName = submitter.Name
	}

	if err := s.feedbackRepo.Create(ctx, feedback); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordFeedback(string(feedback.Type))
	}
	if err := s.publisher.Publish(ctx, events.TopicFeedbackSubmitted, feedback); err != nil {
		s.log.WithError(err).WithField("feedback_id", feedback.ID).Warn("failed to publish feedback submission")
	}
	return feedback, nil
}

// List returns the tickets matching filter, newest first
func (s *FeedbackService) List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, error) {
	filter.SearchText = strings.TrimSpace(filter.SearchText)
	return s.feedbackRepo.List(ctx, filter)
}

// GetByID returns a ticket, or nil when it does not exist
func (s *FeedbackService) GetByID(ctx context.Context, id string) (*models.Feedback, error) {
	return s.feedbackRepo.GetByID(ctx, id)
}

// UpdateStatus moves a ticket through its lifecycle. Entering resolved stamps
// the resolver; leaving it clears the stamp.
func (s *FeedbackService) UpdateStatus(ctx context.Context, id string, update models.FeedbackStatusUpdate, resolver *models.User) (*models.Feedback, error) {
	if err := validation.Struct(update); err != nil {
		return nil, err
	}

	feedback, err := s.feedbackRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if feedback == nil {
		return nil, ErrFeedbackNotFound
	}

	previous := feedback.Status
	if !previous.CanTransitionTo(update.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, previous, update.Status)
	}

	now := s.now().UTC()
	feedback.Status = update.Status
	feedback.UpdatedAt = now
	if update.AdminComments != nil {
		feedback.AdminComments = strings.TrimSpace(*update.AdminComments)
	}
	switch {
	case update.Status == models.StatusResolved && previous != models.StatusResolved:
		feedback.ResolvedAt = &now
		feedback.ResolvedBy = ""
		if resolver != nil {
			feedback.ResolvedBy = resolver.Email
		}
	case update.Status != models.StatusResolved && update.Status != models.StatusClosed:
		feedback.ResolvedAt = nil
		feedback.ResolvedBy = ""
	}

	found, err := s.feedbackRepo.UpdateStatus(ctx, feedback)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrFeedbackNotFound
	}

	if previous != feedback.Status {
		payload := map[string]any{
			"id":     feedback.ID,
			"from":   previous,
			"to":     feedback.Status,
			"userId": feedback.UserID,
		}
		if err := s.publisher.Publish(ctx, events.TopicFeedbackStatusChanged, payload); err != nil {
			s.log.WithError(err).WithField("feedback_id", feedback.ID).Warn("failed to publish feedback status change")
		}
	}
	return feedback, nil
}

// Delete removes a ticket
func (s *FeedbackService) Delete(ctx context.Context, id string) error {
	found, err := s.feedbackRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrFeedbackNotFound
	}
	return nil
}

// Stats summarizes every ticket
func (s *FeedbackService) Stats(ctx context.Context) (*models.FeedbackStats, error) {
	tickets, err := s.feedbackRepo.List(ctx, models.FeedbackFilter{})
	if err != nil {
		return nil, err
	}

	stats := &models.FeedbackStats{
		TotalFeedback:     len(tickets),
		TypeBreakdown:     map[models.FeedbackType]int{},
		CategoryBreakdown: map[models.FeedbackCategory]int{},
		PriorityBreakdown: map[models.FeedbackPriority]int{},
	}
	for _, f := range tickets {
		switch f.Status {
		case models.StatusOpen:
			stats.OpenIssues++
		case models.StatusResolved:
			stats.ResolvedIssues++
		}
		if f.Priority == models.PriorityCritical {
			stats.CriticalIssues++
		}
		stats.TypeBreakdown[f.Type]++
		stats.CategoryBreakdown[f.Category]++
		stats.PriorityBreakdown[f.Priority]++
	}
	return stats, nil
}
