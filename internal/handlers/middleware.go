package handlers

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"edugame/internal/models"
	"edugame/internal/security"
	"edugame/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey   ContextKey = "user"
	LoggerContextKey ContextKey = "logger"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	auth    service.Authenticator
	limiter *security.RateLimiter
}

// NewMiddleware creates a new middleware instance. limiter may be nil to disable rate limiting.
func NewMiddleware(auth service.Authenticator, limiter *security.RateLimiter) *Middleware {
	return &Middleware{
		auth:    auth,
		limiter: limiter,
	}
}

// RequireAuth rejects requests without a valid bearer token
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return m.authenticate(next, true, false)
}

// OptionalAuth attaches the caller when a bearer token is present. An
// invalid token is still rejected.
func (m *Middleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return m.authenticate(next, false, false)
}

// RequireRole rejects callers whose role is not in roles
func (m *Middleware) RequireRole(next http.HandlerFunc, roles ...models.Role) http.HandlerFunc {
	return m.RequireAuth(checkRole(next, roles))
}

// RequireStaff is RequireRole for teachers and admins
func (m *Middleware) RequireStaff(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireRole(next, models.RoleTeacher, models.RoleAdmin)
}

// RequireAdmin is RequireRole for admins
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireRole(next, models.RoleAdmin)
}

// RequireStaffSocket authenticates websocket upgrades, which cannot carry
// headers from a browser, via the access_token query parameter as well
func (m *Middleware) RequireStaffSocket(next http.HandlerFunc) http.HandlerFunc {
	return m.authenticate(checkRole(next, []models.Role{models.RoleTeacher, models.RoleAdmin}), true, true)
}

func checkRole(next http.HandlerFunc, roles []models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil || !slices.Contains(roles, user.Role) {
			respondWithError(w, r, errForbidden)
			return
		}
		next(w, r)
	}
}

func (m *Middleware) authenticate(next http.HandlerFunc, required, allowQuery bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" && allowQuery {
			token = r.URL.Query().Get("access_token")
		}
		if token == "" {
			if required {
				respondWithError(w, r, errUnauthorized)
				return
			}
			next(w, r)
			return
		}

		user, err := m.auth.CurrentIdentity(r.Context(), token)
		if err != nil {
			respondWithError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		ctx = context.WithValue(ctx, LoggerContextKey, LoggerFromContext(ctx).WithField("user_id", user.ID))
		next(w, r.WithContext(ctx))
	}
}

// RateLimit limits requests per client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.limiter != nil && !m.limiter.Allow(security.GetClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondWithError(w, r, errRateLimited)
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets the websocket upgrader take over the connection
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

// Logging attaches a request logger to the context and logs every request
func Logging(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := log.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			})

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), LoggerContextKey, entry)))

			entry = entry.WithFields(logrus.Fields{
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_ip":   security.GetClientIP(r),
			})
			if rec.status >= http.StatusInternalServerError {
				entry.Warn("request completed")
			} else {
				entry.Info("request completed")
			}
		})
	}
}

// LoggerFromContext returns the request logger, or the standard logger outside a request
func LoggerFromContext(ctx context.Context) logrus.FieldLogger {
	if log, ok := ctx.Value(LoggerContextKey).(logrus.FieldLogger); ok {
		return log
	}
	return logrus.StandardLogger()
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
