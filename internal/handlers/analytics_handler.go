package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"edugame/internal/models"
	"edugame/internal/realtime"
	"edugame/internal/service"
)

// AnalyticsHandler serves the teacher analytics screens
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
	hub              *realtime.Hub
	upgrader         websocket.Upgrader
}

// NewAnalyticsHandler creates a new analytics handler. hub may be nil, which
// disables the live leaderboard.
func NewAnalyticsHandler(analyticsService *service.AnalyticsService, hub *realtime.Hub) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		hub:              hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the mobile app connects from arbitrary origins with a bearer token
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAnalyticsFilter(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	data, err := h.analyticsService.GetAnalyticsData(r.Context(), filter)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *AnalyticsHandler) Performance(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAnalyticsFilter(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	metrics, err := h.analyticsService.GetPerformanceMetrics(r.Context(), filter)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (h *AnalyticsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	subject := q.subject("subject")
	grade := q.grade("grade")
	limit := q.integer("limit")
	if err := q.err(); err != nil {
		respondWithError(w, r, err)
		return
	}

	entries, err := h.analyticsService.GetLeaderboard(r.Context(), subject, grade, limit)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Charts returns one dataset of the requested type (score, completion or time)
func (h *AnalyticsHandler) Charts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAnalyticsFilter(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	chartType := models.ChartType(r.URL.Query().Get("type"))
	if chartType == "" {
		chartType = models.ChartScore
	}

	data, err := h.analyticsService.GetChartData(r.Context(), chartType, filter)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *AnalyticsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.analyticsService.GetInsights(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (h *AnalyticsHandler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAnalyticsFilter(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	q := newQueryParams(r)
	days := q.integer("days")
	if err := q.err(); err != nil {
		respondWithError(w, r, err)
		return
	}

	points, err := h.analyticsService.GetTimeSeries(r.Context(), days, filter)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *AnalyticsHandler) Subjects(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAnalyticsFilter(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	breakdown, err := h.analyticsService.GetSubjectBreakdown(r.Context(), filter)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (h *AnalyticsHandler) Grades(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAnalyticsFilter(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	breakdown, err := h.analyticsService.GetGradeBreakdown(r.Context(), filter)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

// LiveLeaderboard upgrades to a websocket that receives a leaderboard
// snapshot on connect and after every completed game
func (h *AnalyticsHandler) LiveLeaderboard(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "live leaderboard is disabled"})
		return
	}

	q := newQueryParams(r)
	subject := q.subject("subject")
	grade := q.grade("grade")
	if err := q.err(); err != nil {
		respondWithError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		LoggerFromContext(r.Context()).WithError(err).Warn("leaderboard websocket upgrade failed")
		return
	}

	client := realtime.NewClient(h.hub, conn, subject, grade)
	go client.WritePump()
	h.hub.Register(client)
	go client.ReadPump()
}
