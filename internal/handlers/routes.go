package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"edugame/internal/metrics"
)

// Router groups everything the HTTP API needs
type Router struct {
	Middleware *Middleware
	Metrics    *metrics.Metrics
	DB         Pinger
	Log        logrus.FieldLogger

	Auth      *AuthHandler
	OAuth     *OAuthFlow
	Questions *QuestionHandler
	Levels    *LevelHandler
	Games     *GameHandler
	Analytics *AnalyticsHandler
	Feedback  *FeedbackHandler
	Settings  *SettingsHandler
	Admin     *AdminHandler
}

// Handler registers every route and wraps the mux in metrics and request logging
func (rt *Router) Handler() http.Handler {
	mw := rt.Middleware
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", Health(rt.DB))
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics.Handler())
	}

	// Auth
	mux.HandleFunc("POST /api/auth/register", mw.RateLimit(rt.Auth.Register))
	mux.HandleFunc("POST /api/auth/login", mw.RateLimit(rt.Auth.Login))
	mux.HandleFunc("POST /api/auth/refresh", rt.Auth.Refresh)
	mux.HandleFunc("POST /api/auth/logout", rt.Auth.Logout)
	mux.HandleFunc("GET /api/auth/me", mw.RequireAuth(rt.Auth.Me))
	mux.HandleFunc("PUT /api/auth/profile", mw.RequireAuth(rt.Auth.UpdateProfile))
	mux.HandleFunc("POST /api/auth/password", mw.RequireAuth(rt.Auth.ChangePassword))
	mux.HandleFunc("POST /api/auth/password-reset/request", mw.RateLimit(rt.Auth.RequestPasswordReset))
	mux.HandleFunc("POST /api/auth/password-reset/confirm", mw.RateLimit(rt.Auth.ConfirmPasswordReset))
	if rt.OAuth != nil {
		mux.HandleFunc("GET /api/auth/oauth/{provider}/start", rt.OAuth.Start)
		mux.HandleFunc("GET /api/auth/oauth/{provider}/callback", mw.RateLimit(rt.OAuth.Callback))
	}

	// Question bank
	mux.HandleFunc("GET /api/questions", mw.RequireStaff(rt.Questions.List))
	mux.HandleFunc("GET /api/questions/stats", mw.RequireStaff(rt.Questions.Stats))
	mux.HandleFunc("GET /api/questions/{id}", mw.RequireStaff(rt.Questions.Get))
	mux.HandleFunc("POST /api/questions", mw.RequireStaff(rt.Questions.Create))
	mux.HandleFunc("PUT /api/questions/{id}", mw.RequireStaff(rt.Questions.Update))
	mux.HandleFunc("DELETE /api/questions/{id}", mw.RequireStaff(rt.Questions.Delete))
	mux.HandleFunc("POST /api/questions/import", mw.RequireStaff(rt.Questions.Import))

	// Levels
	mux.HandleFunc("GET /api/levels", mw.OptionalAuth(rt.Levels.List))
	mux.HandleFunc("GET /api/levels/stats", mw.RequireStaff(rt.Levels.Stats))
	mux.HandleFunc("GET /api/levels/available-questions", mw.RequireStaff(rt.Levels.AvailableQuestions))
	mux.HandleFunc("GET /api/levels/{id}", mw.OptionalAuth(rt.Levels.Get))
	mux.HandleFunc("POST /api/levels", mw.RequireStaff(rt.Levels.Create))
	mux.HandleFunc("PUT /api/levels/{id}", mw.RequireStaff(rt.Levels.Update))
	mux.HandleFunc("DELETE /api/levels/{id}", mw.RequireStaff(rt.Levels.Delete))

	// Games
	mux.HandleFunc("POST /api/games/start", mw.OptionalAuth(rt.Games.Start))
	mux.HandleFunc("POST /api/games/{sessionId}/answers", mw.OptionalAuth(rt.Games.Answer))
	mux.HandleFunc("POST /api/games/{sessionId}/complete", mw.OptionalAuth(rt.Games.Complete))
	mux.HandleFunc("POST /api/games/offline", mw.OptionalAuth(rt.Games.CompleteOffline))
	mux.HandleFunc("GET /api/games/progress", mw.RequireAuth(rt.Games.Progress))
	mux.HandleFunc("GET /api/games/results", mw.RequireStaff(rt.Games.Results))
	mux.HandleFunc("GET /api/games/stats", mw.RequireStaff(rt.Games.Stats))

	// Analytics
	mux.HandleFunc("GET /api/analytics", mw.RequireStaff(rt.Analytics.Overview))
	mux.HandleFunc("GET /api/analytics/performance", mw.RequireStaff(rt.Analytics.Performance))
	mux.HandleFunc("GET /api/analytics/leaderboard", mw.RequireStaff(rt.Analytics.Leaderboard))
	mux.HandleFunc("GET /api/analytics/leaderboard/live", mw.RequireStaffSocket(rt.Analytics.LiveLeaderboard))
	mux.HandleFunc("GET /api/analytics/charts", mw.RequireStaff(rt.Analytics.Charts))
	mux.HandleFunc("GET /api/analytics/insights", mw.RequireStaff(rt.Analytics.Insights))
	mux.HandleFunc("GET /api/analytics/timeseries", mw.RequireStaff(rt.Analytics.TimeSeries))
	mux.HandleFunc("GET /api/analytics/subjects", mw.RequireStaff(rt.Analytics.Subjects))
	mux.HandleFunc("GET /api/analytics/grades", mw.RequireStaff(rt.Analytics.Grades))

	// Feedback
	mux.HandleFunc("POST /api/feedback", mw.OptionalAuth(rt.Feedback.Submit))
	mux.HandleFunc("GET /api/feedback", mw.RequireAdmin(rt.Feedback.List))
	mux.HandleFunc("GET /api/feedback/stats", mw.RequireAdmin(rt.Feedback.Stats))
	mux.HandleFunc("GET /api/feedback/{id}", mw.RequireAdmin(rt.Feedback.Get))
	mux.HandleFunc("PUT /api/feedback/{id}/status", mw.RequireAdmin(rt.Feedback.UpdateStatus))
	mux.HandleFunc("DELETE /api/feedback/{id}", mw.RequireAdmin(rt.Feedback.Delete))

	// Settings
	mux.HandleFunc("GET /api/settings", mw.RequireAuth(rt.Settings.Get))
	mux.HandleFunc("PUT /api/settings", mw.RequireAuth(rt.Settings.Update))
	mux.HandleFunc("POST /api/settings/reset", mw.RequireAuth(rt.Settings.Reset))
	mux.HandleFunc("GET /api/settings/export", mw.RequireAuth(rt.Settings.Export))
	mux.HandleFunc("POST /api/settings/import", mw.RequireAuth(rt.Settings.Import))
	mux.HandleFunc("DELETE /api/settings/data", mw.RequireAuth(rt.Settings.ClearData))
	mux.HandleFunc("GET /api/settings/options", rt.Settings.Options)

	// Admin
	mux.HandleFunc("GET /api/admin/users", mw.RequireAdmin(rt.Admin.ListUsers))
	mux.HandleFunc("GET /api/admin/backup", mw.RequireAdmin(rt.Admin.ExportDatabase))
	mux.HandleFunc("POST /api/admin/backup/import", mw.RequireAdmin(rt.Admin.ImportDatabase))

	var handler http.Handler = mux
	if rt.Metrics != nil {
		handler = rt.Metrics.Middleware(mux.ServeHTTP)
	}
	return Logging(rt.Log)(handler)
}
