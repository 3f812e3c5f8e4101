package security

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Teacher123@")
	require.NoError(t, err)

	assert.True(t, CheckPassword("Teacher123@", hash))
	assert.False(t, CheckPassword("wrong-password", hash))
	assert.False(t, CheckPassword("anything", ""))
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	require.NoError(t, err)
	assert.Len(t, token, 64)
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", 15*time.Minute, time.Hour)

	access, err := issuer.IssueAccess("user-1", "t1@gmail.com", "teacher")
	require.NoError(t, err)

	claims, err := issuer.ParseAccess(access.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "teacher", claims.Role)
	assert.Equal(t, access.ID, claims.ID)
}

func TestTokenIssuerRejectsWrongType(t *testing.T) {
	issuer := NewTokenIssuer("secret", 15*time.Minute, time.Hour)

	refresh, err := issuer.IssueRefresh("user-1", "a@b.com", "student")
	require.NoError(t, err)

	_, err = issuer.ParseAccess(refresh.Token)
	assert.True(t, errors.Is(err, ErrTokenInvalid))

	_, err = issuer.ParseRefresh(refresh.Token)
	assert.NoError(t, err)
}

func TestTokenIssuerExpiry(t *testing.T) {
	issuer := NewTokenIssuer("secret", 15*time.Minute, time.Hour)
	issued := time.Now()
	issuer.now = func() time.Time { return issued }

	access, err := issuer.IssueAccess("user-1", "a@b.com", "student")
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = issuer.ParseAccess(access.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenIssuerRejectsForeignSignature(t *testing.T) {
	ours := NewTokenIssuer("secret", time.Minute, time.Hour)
	theirs := NewTokenIssuer("other-secret", time.Minute, time.Hour)

	token, err := theirs.IssueAccess("user-1", "a@b.com", "admin")
	require.NoError(t, err)

	_, err = ours.ParseAccess(token.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, remote: "1.1.1.1:80", want: "10.0.0.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "10.0.0.3"}, remote: "1.1.1.1:80", want: "10.0.0.3"},
		{name: "remote addr", remote: "192.168.1.5:4312", want: "192.168.1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetClientIP(r))
		})
	}
}
