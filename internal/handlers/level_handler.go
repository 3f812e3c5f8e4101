package handlers

import (
	"net/http"

	"edugame/internal/models"
	"edugame/internal/service"
)

// LevelHandler serves levels. Reads are open to players; writes are staff only.
type LevelHandler struct {
	levelService *service.LevelService
}

// NewLevelHandler creates a new level handler
func NewLevelHandler(levelService *service.LevelService) *LevelHandler {
	return &LevelHandler{levelService: levelService}
}

func (h *LevelHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	filters := models.LevelFilters{
		Grade:      q.grade("grade"),
		Subject:    q.subject("subject"),
		Difficulty: q.difficulty("difficulty"),
		Search:     q.str("search"),
	}
	if err := q.err(); err != nil {
		respondWithError(w, r, err)
		return
	}

	levels, err := h.levelService.GetAll(r.Context(), filters)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

func (h *LevelHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.levelService.Stats(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// AvailableQuestions lists the active questions a level of grade and subject may use
func (h *LevelHandler) AvailableQuestions(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	grade := q.integer("grade")
	subject := models.Subject(q.str("subject"))
	if err := q.err(); err != nil {
		respondWithError(w, r, err)
		return
	}

	questions, err := h.levelService.AvailableQuestions(r.Context(), grade, subject)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *LevelHandler) Get(w http.ResponseWriter, r *http.Request) {
	level, err := h.levelService.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if level == nil {
		respondWithError(w, r, service.ErrLevelNotFound)
		return
	}
	writeJSON(w, http.StatusOK, level)
}

func (h *LevelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form models.LevelForm
	if err := decodeJSON(w, r, &form); err != nil {
		respondWithError(w, r, err)
		return
	}

	level, err := h.levelService.Create(r.Context(), form, GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, level)
}

// Update applies a partial update; a questionIds list replaces the level's questions
func (h *LevelHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.LevelPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondWithError(w, r, err)
		return
	}

	level, err := h.levelService.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, level)
}

func (h *LevelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.levelService.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
