package handlers

import (
	"net/http"
	"strings"
	"time"

	"edugame/internal/models"
	"edugame/internal/service"
	"edugame/internal/validation"
)

// GameHandler serves game sessions, results and progress
type GameHandler struct {
	gameService *service.GameService
}

// NewGameHandler creates a new game handler
func NewGameHandler(gameService *service.GameService) *GameHandler {
	return &GameHandler{gameService: gameService}
}

// playQuestion is a session question as shown to the player, without its answer
type playQuestion struct {
	ID         string            `json:"id"`
	Prompt     string            `json:"prompt"`
	Options    []string          `json:"options"`
	Difficulty models.Difficulty `json:"difficulty"`
}

type sessionView struct {
	ID             string         `json:"id"`
	StudentID      string         `json:"studentId,omitempty"`
	StudentName    string         `json:"studentName"`
	LevelID        string         `json:"levelId"`
	LevelTitle     string         `json:"levelTitle"`
	Grade          int            `json:"grade"`
	Subject        models.Subject `json:"subject"`
	Questions      []playQuestion `json:"questions"`
	TotalQuestions int            `json:"totalQuestions"`
	StartedAt      time.Time      `json:"startedAt"`
}

func newSessionView(s *models.GameSession) sessionView {
	view := sessionView{
		ID:             s.ID,
		StudentID:      s.StudentID,
		StudentName:    s.StudentName,
		LevelID:        s.LevelID,
		LevelTitle:     s.LevelTitle,
		Grade:          s.Grade,
		Subject:        s.Subject,
		Questions:      make([]playQuestion, 0, len(s.Questions)),
		TotalQuestions: s.TotalQuestions,
		StartedAt:      s.StartedAt,
	}
	for _, q := range s.Questions {
		view.Questions = append(view.Questions, playQuestion{
			ID:         q.ID,
			Prompt:     q.Prompt,
			Options:    q.Options,
			Difficulty: q.Difficulty,
		})
	}
	return view
}

type startGameRequest struct {
	LevelID     string `json:"levelId"`
	StudentName string `json:"studentName"`
}

type answerRequest struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer *int   `json:"selectedAnswer"`
	TimeSpent      int    `json:"timeSpent"`
}

// player identifies the caller; signed-in students play under their account
func player(r *http.Request, name string) models.Player {
	if user := GetUserFromContext(r.Context()); user != nil {
		return models.Player{StudentID: user.ID, StudentName: user.Name}
	}
	return models.Player{StudentName: strings.TrimSpace(name)}
}

// Start opens a session for a level
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startGameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.LevelID == "" {
		respondWithError(w, r, validation.Errors{"levelId": "is required"})
		return
	}

	session, err := h.gameService.StartGameSession(r.Context(), req.LevelID, player(r, req.StudentName))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(session))
}

// Answer grades one answer
func (h *GameHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	errs := validation.Errors{}
	if req.QuestionID == "" {
		errs.Add("questionId", "is required")
	}
	if req.SelectedAnswer == nil {
		errs.Add("selectedAnswer", "is required")
	}
	if err := errs.OrNil(); err != nil {
		respondWithError(w, r, err)
		return
	}

	result, err := h.gameService.SubmitAnswer(r.Context(), r.PathValue("sessionId"), req.QuestionID, *req.SelectedAnswer, req.TimeSpent)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Complete closes a session and returns its stored result
func (h *GameHandler) Complete(w http.ResponseWriter, r *http.Request) {
	result, err := h.gameService.CompleteGameSession(r.Context(), r.PathValue("sessionId"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CompleteOffline stores a session played without a connection
func (h *GameHandler) CompleteOffline(w http.ResponseWriter, r *http.Request) {
	var session models.GameSession
	if err := decodeJSON(w, r, &session); err != nil {
		respondWithError(w, r, err)
		return
	}

	result, err := h.gameService.CompleteOfflineSession(r.Context(), session, player(r, session.StudentName))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Progress returns a student's progress. Students always see their own;
// staff pass studentId, or see everyone's when it is omitted.
func (h *GameHandler) Progress(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	studentID := user.ID
	if user.Role.IsStaff() {
		studentID = strings.TrimSpace(r.URL.Query().Get("studentId"))
	}

	progress, err := h.gameService.GetStudentProgress(r.Context(), studentID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *GameHandler) Results(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProgressFilter(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	results, err := h.gameService.GetResults(r.Context(), filter)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *GameHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.gameService.GetProgressStats(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
