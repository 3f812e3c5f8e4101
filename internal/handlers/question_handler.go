package handlers

import (
	"net/http"

	"edugame/internal/models"
	"edugame/internal/service"
)

// QuestionHandler serves the question bank to teachers and admins
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new question handler
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// List returns questions matching the grade, subject, difficulty and search filters
func (h *QuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	filters := models.QuestionFilters{
		Grade:      q.grade("grade"),
		Subject:    q.subject("subject"),
		Difficulty: q.difficulty("difficulty"),
		Search:     q.str("search"),
	}
	if err := q.err(); err != nil {
		respondWithError(w, r, err)
		return
	}

	questions, err := h.questionService.GetAll(r.Context(), filters)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *QuestionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.questionService.Stats(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *QuestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	question, err := h.questionService.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if question == nil {
		respondWithError(w, r, service.ErrQuestionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (h *QuestionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var form models.QuestionForm
	if err := decodeJSON(w, r, &form); err != nil {
		respondWithError(w, r, err)
		return
	}

	question, err := h.questionService.Create(r.Context(), form, GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, question)
}

func (h *QuestionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.QuestionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondWithError(w, r, err)
		return
	}

	question, err := h.questionService.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, question)
}

// Delete removes a question unless a level still uses it
func (h *QuestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.questionService.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import adds questions in bulk from JSON or CSV
func (h *QuestionHandler) Import(w http.ResponseWriter, r *http.Request) {
	var data models.BulkImportData
	if err := decodeJSON(w, r, &data); err != nil {
		respondWithError(w, r, err)
		return
	}

	result, err := h.questionService.BulkImport(r.Context(), data, GetUserFromContext(r.Context()).ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	LoggerFromContext(r.Context()).WithField("imported", result.Success).WithField("failed", result.Failed).Info("questions imported")
	writeJSON(w, http.StatusOK, result)
}
