package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edugame/internal/kvstore"
	"edugame/internal/logger"
	"edugame/internal/models"
)

// fakeAPI issues numbered tokens and accepts only the latest access token
type fakeAPI struct {
	mu            sync.Mutex
	seq           int
	access        string
	refresh       string
	refreshCalls  int
	logoutCalls   int
	rejectRefresh bool
}

func (f *fakeAPI) issue() models.AuthResponse {
	f.seq++
	f.access = fmt.Sprintf("access-%d", f.seq)
	f.refresh = fmt.Sprintf("refresh-%d", f.seq)
	return models.AuthResponse{
		User: &models.User{ID: "u1", Email: "emma@edugame.com", Name: "Emma Student", Role: models.RoleStudent},
		Tokens: models.AuthTokens{
			AccessToken:  f.access,
			RefreshToken: f.refresh,
			ExpiresAt:    time.Now().Add(15 * time.Minute).UnixMilli(),
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		if req["password"] != "password" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, f.issue())
	})
	mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": map[string]string{"email": "must be a valid email address"},
		})
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.refreshCalls++
		if f.rejectRefresh || req["refreshToken"] != f.refresh {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			return
		}
		writeJSON(w, http.StatusOK, f.issue())
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logoutCalls++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/games/progress", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+f.access {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
			return
		}
		writeJSON(w, http.StatusOK, models.StudentProgress{StudentID: "u1", TotalGamesPlayed: 3})
	})
	mux.HandleFunc("GET /api/levels", func(w http.ResponseWriter, r *http.Request) {
		levels := []models.Level{}
		if r.URL.Query().Get("grade") == "2" {
			levels = append(levels, models.Level{ID: "l1", Title: "Addition", Grade: 2})
		}
		writeJSON(w, http.StatusOK, levels)
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeAPI, *kvstore.MemoryStore) {
	t.Helper()

	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	store := kvstore.NewMemoryStore()
	return New(srv.URL+"/", store, logger.Discard()), api, store
}

func TestLoginPersistsSession(t *testing.T) {
	ctx := context.Background()
	client, _, store := newTestClient(t)
	assert.Equal(t, StateUnauthenticated, client.State())

	user, err := client.Login(ctx, "emma@edugame.com", "password")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, StateAuthenticated, client.State())
	assert.Equal(t, 4, store.Len())

	token, err := store.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
}

func TestLoginFailureReturnsToUnauthenticated(t *testing.T) {
	client, _, store := newTestClient(t)

	_, err := client.Login(context.Background(), "emma@edugame.com", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid email or password", apiErr.Message)
	assert.Equal(t, StateUnauthenticated, client.State())
	assert.Nil(t, client.User())
	assert.Equal(t, 0, store.Len())
}

func TestFailedLoginClearsEarlierSession(t *testing.T) {
	ctx := context.Background()
	client, _, store := newTestClient(t)

	_, err := client.Login(ctx, "emma@edugame.com", "password")
	require.NoError(t, err)
	require.Equal(t, 4, store.Len())

	_, err = client.Login(ctx, "emma@edugame.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, StateUnauthenticated, client.State())
	assert.Equal(t, 0, store.Len())

	restored := New(client.baseURL, store, logger.Discard())
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, StateUnauthenticated, restored.State())
	assert.Nil(t, restored.User())
}

func TestRegisterSurfacesFieldErrors(t *testing.T) {
	client, _, _ := newTestClient(t)

	_, err := client.Register(context.Background(), models.RegisterForm{Name: "Sam", Email: "nope", Password: "Secret123!"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "must be a valid email address", apiErr.Fields["email"])
	assert.Equal(t, StateUnauthenticated, client.State())
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	client, _, store := newTestClient(t)

	require.NoError(t, client.Restore(ctx))
	assert.Equal(t, StateUnauthenticated, client.State())

	_, err := client.Login(ctx, "emma@edugame.com", "password")
	require.NoError(t, err)

	restored := New(client.baseURL, store, logger.Discard())
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, StateAuthenticated, restored.State())
	assert.Equal(t, "Emma Student", restored.User().Name)
}

func TestRestoreDiscardsCorruptProfile(t *testing.T) {
	ctx := context.Background()
	client, _, store := newTestClient(t)
	require.NoError(t, store.Set(ctx, KeyAccessToken, "access-1"))
	require.NoError(t, store.Set(ctx, KeyUserProfile, "{not json"))

	require.NoError(t, client.Restore(ctx))
	assert.Equal(t, StateUnauthenticated, client.State())
	assert.Equal(t, 0, store.Len())
}

func TestAccessTokenRefreshesWhenExpired(t *testing.T) {
	ctx := context.Background()
	client, api, store := newTestClient(t)
	_, err := client.Login(ctx, "emma@edugame.com", "password")
	require.NoError(t, err)

	token, err := client.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	assert.Equal(t, 0, api.refreshCalls)

	client.now = func() time.Time { return time.Now().Add(time.Hour) }
	token, err = client.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)
	assert.Equal(t, 1, api.refreshCalls)

	stored, err := store.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", stored)
}

func TestRejectedRefreshSignsOut(t *testing.T) {
	ctx := context.Background()
	client, api, store := newTestClient(t)
	_, err := client.Login(ctx, "emma@edugame.com", "password")
	require.NoError(t, err)

	api.rejectRefresh = true
	client.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err = client.Progress(ctx)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, StateUnauthenticated, client.State())
	assert.Equal(t, 0, store.Len())

	_, err = client.AccessToken(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	client, api, store := newTestClient(t)
	_, err := client.Login(ctx, "emma@edugame.com", "password")
	require.NoError(t, err)

	require.NoError(t, client.Logout(ctx))
	assert.Equal(t, 1, api.logoutCalls)
	assert.Equal(t, StateUnauthenticated, client.State())
	assert.Equal(t, 0, store.Len())
}

func TestTypedCalls(t *testing.T) {
	ctx := context.Background()
	client, _, _ := newTestClient(t)

	_, err := client.Progress(ctx)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = client.Login(ctx, "emma@edugame.com", "password")
	require.NoError(t, err)

	progress, err := client.Progress(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, progress.TotalGamesPlayed)

	levels, err := client.Levels(ctx, models.LevelFilters{Grade: 2})
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, "Addition", levels[0].Title)
}
