package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"edugame/internal/kvstore"
	"edugame/internal/models"
)

// fakeProvider serves a token endpoint and a userinfo endpoint
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":    "google-123",
			"email": "Ada.Lovelace@example.com",
			"name":  "Ada Lovelace",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newOAuthMux(flow *OAuthFlow) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/oauth/{provider}/start", flow.Start)
	mux.HandleFunc("GET /api/auth/oauth/{provider}/callback", flow.Callback)
	return mux
}

func startOAuth(t *testing.T, mux http.Handler, provider string) string {
	t.Helper()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/oauth/"+provider+"/start", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "https://edugame.test/api/auth/oauth/"+provider+"/callback", location.Query().Get("redirect_uri"))
	return location.Query().Get("state")
}

func callback(mux http.Handler, provider, code, state string) *httptest.ResponseRecorder {
	query := url.Values{"code": {code}, "state": {state}}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/oauth/"+provider+"/callback?"+query.Encode(), nil))
	return rec
}

func TestOAuthFlow(t *testing.T) {
	api := newTestAPI(t)
	srv := fakeProvider(t)

	provider := OAuthProvider{
		Name: "google",
		Config: &oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			Endpoint: oauth2.Endpoint{
				AuthURL:   srv.URL + "/auth",
				TokenURL:  srv.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		UserInfoURL: srv.URL + "/userinfo",
	}
	flow := NewOAuthFlow(api.auth, kvstore.NewMemoryStore(), "https://edugame.test/", provider, FacebookProvider("", ""))
	mux := newOAuthMux(flow)

	t.Run("signs in and creates a student", func(t *testing.T) {
		state := startOAuth(t, mux, "google")
		require.NotEmpty(t, state)

		rec := callback(mux, "google", "good-code", state)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp models.AuthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ada.lovelace@example.com", resp.User.Email)
		assert.Equal(t, models.RoleStudent, resp.User.Role)
		assert.NotEmpty(t, resp.Tokens.AccessToken)

		// state is single use
		rec = callback(mux, "google", "good-code", state)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown state", func(t *testing.T) {
		rec := callback(mux, "google", "good-code", "forged")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects expired state", func(t *testing.T) {
		state := startOAuth(t, mux, "google")
		flow.now = func() time.Time { return time.Now().Add(oauthStateTTL + time.Minute) }
		defer func() { flow.now = time.Now }()

		rec := callback(mux, "google", "good-code", state)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a failed exchange", func(t *testing.T) {
		state := startOAuth(t, mux, "google")
		rec := callback(mux, "google", "bad-code", state)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unconfigured provider", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/oauth/facebook/start", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
