package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"edugame/internal/kvstore"
	"edugame/internal/models"
	"edugame/internal/security"
	"edugame/internal/validation"
)

const oauthStateTTL = 10 * time.Minute

// OAuthProvider defines provider configuration
type OAuthProvider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
}

func (p OAuthProvider) configured() bool {
	return p.Config != nil && p.Config.ClientID != "" && p.Config.ClientSecret != ""
}

// GoogleProvider returns the Google sign-in provider
func GoogleProvider(clientID, clientSecret string) OAuthProvider {
	return OAuthProvider{
		Name: "google",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
	}
}

// FacebookProvider returns the Facebook sign-in provider
func FacebookProvider(clientID, clientSecret string) OAuthProvider {
	return OAuthProvider{
		Name: "facebook",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     facebook.Endpoint,
			Scopes:       []string{"email", "public_profile"},
		},
		UserInfoURL: "https://graph.facebook.com/me?fields=id,name,email",
	}
}

// OAuthLoginer signs in the account linked to a provider identity
type OAuthLoginer interface {
	OAuthLogin(ctx context.Context, provider, subject, email, name string) (*models.AuthResponse, error)
}

type oauthState struct {
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type oauthUserInfo struct {
	Subject string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

var errInvalidOAuthState = validation.Errors{"state": "is invalid or expired"}

// OAuthFlow runs the authorization code flow for teacher sign-in. The state
// parameter is kept in the key-value store and can be used once.
type OAuthFlow struct {
	auth            OAuthLoginer
	providers       map[string]OAuthProvider
	states          kvstore.Store
	redirectBaseURL string
	now             func() time.Time
}

// NewOAuthFlow creates the flow. Providers without credentials are ignored.
func NewOAuthFlow(auth OAuthLoginer, states kvstore.Store, redirectBaseURL string, providers ...OAuthProvider) *OAuthFlow {
	enabled := make(map[string]OAuthProvider)
	for _, p := range providers {
		if p.configured() {
			enabled[p.Name] = p
		}
	}
	return &OAuthFlow{
		auth:            auth,
		providers:       enabled,
		states:          kvstore.Scoped(states, "oauth_state"),
		redirectBaseURL: redirectBaseURL,
		now:             time.Now,
	}
}

func (f *OAuthFlow) provider(r *http.Request) (OAuthProvider, bool) {
	p, ok := f.providers[r.PathValue("provider")]
	return p, ok
}

// Start redirects to the provider's consent page
func (f *OAuthFlow) Start(w http.ResponseWriter, r *http.Request) {
	provider, ok := f.provider(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "oauth provider not configured"})
		return
	}

	state, err := security.GenerateToken(24)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	payload, err := json.Marshal(oauthState{Provider: provider.Name, ExpiresAt: f.now().Add(oauthStateTTL)})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if err := f.states.Set(r.Context(), state, string(payload)); err != nil {
		respondWithError(w, r, err)
		return
	}

	authURL := f.config(r, provider).AuthCodeURL(state, oauth2.AccessTypeOnline)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback exchanges the code and returns the same body as a password login
func (f *OAuthFlow) Callback(w http.ResponseWriter, r *http.Request) {
	provider, ok := f.provider(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "oauth provider not configured"})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		respondWithError(w, r, validation.Errors{"code": "is required"})
		return
	}
	if err := f.consumeState(r.Context(), r.URL.Query().Get("state"), provider.Name); err != nil {
		respondWithError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	config := f.config(r, provider)
	token, err := config.Exchange(ctx, code)
	if err != nil {
		LoggerFromContext(ctx).WithError(err).WithField("provider", provider.Name).Warn("oauth code exchange failed")
		respondWithError(w, r, validation.Errors{"code": "could not be exchanged"})
		return
	}

	info, err := fetchUserInfo(ctx, config, provider, token)
	if err != nil {
		LoggerFromContext(ctx).WithError(err).WithField("provider", provider.Name).Warn("oauth user info failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "could not read the provider profile"})
		return
	}

	resp, err := f.auth.OAuthLogin(r.Context(), provider.Name, info.Subject, info.Email, info.Name)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *OAuthFlow) consumeState(ctx context.Context, state, provider string) error {
	if state == "" {
		return errInvalidOAuthState
	}
	raw, err := f.states.Get(ctx, state)
	if errors.Is(err, kvstore.ErrNotFound) {
		return errInvalidOAuthState
	}
	if err != nil {
		return err
	}
	if err := f.states.Delete(ctx, state); err != nil {
		return err
	}

	var stored oauthState
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return errInvalidOAuthState
	}
	if stored.Provider != provider || f.now().After(stored.ExpiresAt) {
		return errInvalidOAuthState
	}
	return nil
}

func (f *OAuthFlow) config(r *http.Request, provider OAuthProvider) *oauth2.Config {
	baseURL := strings.TrimSpace(f.redirectBaseURL)
	if baseURL == "" {
		scheme := "http"
		if security.IsSecureRequest(r) {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}

	config := *provider.Config
	config.RedirectURL = fmt.Sprintf("%s/api/auth/oauth/%s/callback", strings.TrimRight(baseURL, "/"), provider.Name)
	return &config
}

// fetchUserInfo reads the profile. Google and Facebook both answer with
// id, email and name.
func fetchUserInfo(ctx context.Context, config *oauth2.Config, provider OAuthProvider, token *oauth2.Token) (oauthUserInfo, error) {
	client := config.Client(ctx, token)
	resp, err := client.Get(provider.UserInfoURL)
	if err != nil {
		return oauthUserInfo{}, fmt.Errorf("fetch %s user info: %w", provider.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return oauthUserInfo{}, fmt.Errorf("fetch %s user info: status %d", provider.Name, resp.StatusCode)
	}

	var info oauthUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return oauthUserInfo{}, fmt.Errorf("parse %s user info: %w", provider.Name, err)
	}
	if info.Subject == "" {
		return oauthUserInfo{}, fmt.Errorf("%s user info has no id", provider.Name)
	}
	return info, nil
}
