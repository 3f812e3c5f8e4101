package models

import "time"

// User is an account (student, teacher or admin)
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Name          string     `json:"name"`
	Role          Role       `json:"role"`
	Grade         *int       `json:"grade,omitempty"`
	IsActive      bool       `json:"isActive"`
	EmailVerified bool       `json:"isEmailVerified"`
	OAuthProvider string     `json:"-"`
	OAuthSubject  string     `json:"-"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// AuthTokens is the bearer token pair handed to clients.
// ExpiresAt is the access token expiry in epoch milliseconds.
type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// AuthResponse is returned by login, registration and refresh
type AuthResponse struct {
	User   *User      `json:"user"`
	Tokens AuthTokens `json:"tokens"`
}

// RefreshToken is the server-side record of an issued refresh token
type RefreshToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// IsExpired checks if the refresh token has expired
func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// PasswordResetToken represents a token for password reset
type PasswordResetToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
}

// IsExpired checks if the reset token has expired
func (t *PasswordResetToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// RegisterForm is the input for creating an account
type RegisterForm struct {
	Name     string `json:"name" validate:"required,notblank,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     Role   `json:"role" validate:"omitempty,oneof=student teacher"`
	Grade    *int   `json:"grade,omitempty" validate:"omitempty,min=1,max=5"`
}

// ProfileUpdate changes the caller's own profile
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,notblank,min=2,max=100"`
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Grade *int    `json:"grade,omitempty" validate:"omitempty,min=1,max=5"`
}
