package handlers

import (
	"net/http"

	"edugame/internal/models"
	"edugame/internal/service"
)

// FeedbackHandler accepts feedback from anyone and lets admins triage it
type FeedbackHandler struct {
	feedbackService *service.FeedbackService
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(feedbackService *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// Submit stores a ticket; the caller is attached when signed in
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form models.FeedbackForm
	if err := decodeJSON(w, r, &form); err != nil {
		respondWithError(w, r, err)
		return
	}

	feedback, err := h.feedbackService.Submit(r.Context(), form, GetUserFromContext(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, feedback)
}

func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	filter := models.FeedbackFilter{
		Type:       models.FeedbackType(q.str("type")),
		Category:   models.FeedbackCategory(q.str("category")),
		Priority:   models.FeedbackPriority(q.str("priority")),
		Status:     models.FeedbackStatus(q.str("status")),
		DateFrom:   q.date("dateFrom", false),
		DateTo:     q.date("dateTo", true),
		SearchText: q.str("search"),
	}
	if err := q.err(); err != nil {
		respondWithError(w, r, err)
		return
	}

	tickets, err := h.feedbackService.List(r.Context(), filter)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *FeedbackHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.feedbackService.Stats(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *FeedbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	feedback, err := h.feedbackService.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if feedback == nil {
		respondWithError(w, r, service.ErrFeedbackNotFound)
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}

// UpdateStatus moves a ticket through open, in_progress, resolved and closed
func (h *FeedbackHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var update models.FeedbackStatusUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		respondWithError(w, r, err)
		return
	}

	feedback, err := h.feedbackService.UpdateStatus(r.Context(), r.PathValue("id"), update, GetUserFromContext(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feedback)
}

func (h *FeedbackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.feedbackService.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
