package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"edugame/internal/jobs"
	"edugame/internal/models"
	"edugame/internal/repository"
	"edugame/internal/security"
	"edugame/internal/validation"
)

const passwordResetTTL = 1 * time.Hour

// Authenticator is the session capability shared by the HTTP layer and the client SDK
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	CurrentIdentity(ctx context.Context, accessToken string) (*models.User, error)
}

var _ Authenticator = (*AuthService)(nil)

// AuthService handles authentication business logic
type AuthService struct {
	userRepo *repository.UserRepository
	tokens   *security.TokenIssuer
	mailer   jobs.Mailer
	log      logrus.FieldLogger
	now      func() time.Time

	// email domains whose new OAuth accounts are teachers
	teacherDomains map[string]bool
}

// NewAuthService creates a new auth service. mailer may be nil, in which
// case reset tokens are created but not delivered.
func NewAuthService(userRepo *repository.UserRepository, tokens *security.TokenIssuer, mailer jobs.Mailer, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		mailer:   mailer,
		log:      log,
		now:      time.Now,
	}
}

// SetOAuthTeacherDomains sets the email domains whose new OAuth accounts get
// the teacher role. Everyone else signing up through a provider is a student.
func (s *AuthService) SetOAuthTeacherDomains(domains []string) {
	s.teacherDomains = make(map[string]bool, len(domains))
	for _, d := range domains {
		s.teacherDomains[strings.ToLower(strings.TrimSpace(d))] = true
	}
}

func (s *AuthService) oauthRole(email string) models.Role {
	if at := strings.LastIndex(email, "@"); at >= 0 && s.teacherDomains[email[at+1:]] {
		return models.RoleTeacher
	}
	return models.RoleStudent
}

// Register creates a student or teacher account and signs it in
func (s *AuthService) Register(ctx context.Context, form models.RegisterForm) (*models.AuthResponse, error) {
	form.Email = normalizeEmail(form.Email)
	form.Name = strings.TrimSpace(form.Name)
	if form.Role == "" {
		form.Role = models.RoleStudent
	}
	if err := validation.Struct(form); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetUserByEmail(ctx, form.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(form.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           security.NewID(),
		Email:        form.Email,
		PasswordHash: passwordHash,
		Name:         form.Name,
		Role:         form.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if form.Role == models.RoleStudent {
		user.Grade = form.Grade
	}

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")
	return s.signIn(ctx, user)
}

// Login verifies credentials and issues a token pair
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !security.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return s.signIn(ctx, user)
}

// signIn records the login and issues a fresh token pair
func (s *AuthService) signIn(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	now := s.now().UTC()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{User: user, Tokens: *tokens}, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*models.AuthTokens, error) {
	access, err := s.tokens.IssueAccess(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	record := &models.RefreshToken{
		ID:        refresh.ID,
		UserID:    user.ID,
		ExpiresAt: refresh.ExpiresAt.UTC(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.userRepo.CreateRefreshToken(ctx, record); err != nil {
		return nil, err
	}

	return &models.AuthTokens{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresAt:    access.ExpiresAt.UnixMilli(),
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new pair issued.
// Presenting a revoked token fails, so a replayed token cannot mint a second pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	record, err := s.userRepo.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Revoked || s.now().After(record.ExpiresAt) || record.UserID != claims.UserID {
		return nil, ErrInvalidToken
	}

	revoked, err := s.userRepo.RevokeRefreshToken(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if !revoked {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetUserByID(ctx, record.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{User: user, Tokens: *tokens}, nil
}

// Logout revokes a refresh token. Revoking an already revoked token succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if errors.Is(err, security.ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return ErrInvalidToken
	}
	if _, err := s.userRepo.RevokeRefreshToken(ctx, claims.ID); err != nil {
		return err
	}
	return nil
}

// CurrentIdentity verifies an access token and loads its user
func (s *AuthService) CurrentIdentity(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// RequestPasswordReset creates a reset token and mails it. Unknown emails and
// accounts without a password succeed silently so callers cannot discover which accounts exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsActive || user.PasswordHash == "" {
		return nil
	}

	token, err := security.GenerateToken(32)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now().UTC()
	record := &models.PasswordResetToken{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: now.Add(passwordResetTTL),
		CreatedAt: now,
	}
	if err := s.userRepo.CreatePasswordResetToken(ctx, record); err != nil {
		return err
	}

	if s.mailer == nil {
		s.log.WithField("user_id", user.ID).Warn("password reset requested but no mailer is configured")
		return nil
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.Name, token); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password using a reset token and signs the
// user out everywhere
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	record, err := s.userRepo.GetPasswordResetToken(ctx, token)
	if err != nil {
		return err
	}
	if record == nil || record.Used || s.now().After(record.ExpiresAt) {
		return ErrInvalidResetToken
	}

	claimed, err := s.userRepo.MarkPasswordResetTokenUsed(ctx, token)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrInvalidResetToken
	}

	return s.setPassword(ctx, record.UserID, newPassword)
}

// ChangePassword replaces the password of a signed-in user
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if !security.CheckPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}
	return s.setPassword(ctx, userID, newPassword)
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) error {
	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, passwordHash, s.now().UTC()); err != nil {
		return err
	}
	if err := s.userRepo.RevokeAllRefreshTokens(ctx, userID); err != nil {
		return err
	}
	s.log.WithField("user_id", userID).Info("password changed")
	return nil
}

// UpdateProfile changes the caller's name, email or grade
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error) {
	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		update.Email = &email
	}
	if err := validation.Struct(update); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if update.Name != nil {
		user.Name = strings.TrimSpace(*update.Name)
	}
	if update.Email != nil && *update.Email != user.Email {
		existing, err := s.userRepo.GetUserByEmail(ctx, *update.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrEmailTaken
		}
		user.Email = *update.Email
	}
	if update.Grade != nil {
		if user.Role != models.RoleStudent {
			return nil, validation.Errors{"grade": "can only be set for students"}
		}
		user.Grade = update.Grade
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// OAuthLogin signs in the account linked to a provider identity. An unlinked
// account with the same email is linked; otherwise a new account is created,
// as a teacher only when the email domain is on the teacher list.
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email, name string) (*models.AuthResponse, error) {
	if provider == "" || subject == "" {
		return nil, errors.New("missing oauth provider information")
	}
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetUserByOAuth(ctx, provider, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup oauth user: %w", err)
	}

	if user == nil {
		existing, err := s.userRepo.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing user: %w", err)
		}
		if existing != nil {
			if existing.OAuthProvider != "" && existing.OAuthProvider != provider {
				return nil, ErrEmailTaken
			}
			if err := s.userRepo.LinkOAuthProvider(ctx, existing.ID, provider, subject); err != nil {
				return nil, err
			}
			existing.OAuthProvider = provider
			existing.OAuthSubject = subject
			existing.EmailVerified = true
			user = existing
		} else {
			if name = strings.TrimSpace(name); name == "" {
				name = strings.Split(email, "@")[0]
			}
			now := s.now().UTC()
			user = &models.User{
				ID:            security.NewID(),
				Email:         email,
				Name:          name,
				Role:          s.oauthRole(email),
				IsActive:      true,
				EmailVerified: true,
				OAuthProvider: provider,
				OAuthSubject:  subject,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := s.userRepo.CreateUser(ctx, user); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return nil, ErrEmailTaken
				}
				return nil, err
			}
			s.log.WithFields(logrus.Fields{"user_id": user.ID, "provider": provider, "role": user.Role}).Info("oauth user created")
		}
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return s.signIn(ctx, user)
}

// CleanupExpired removes expired refresh and password reset tokens
func (s *AuthService) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	refreshed, err := s.userRepo.DeleteExpiredRefreshTokens(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup refresh tokens: %w", err)
	}
	resets, err := s.userRepo.DeleteExpiredPasswordResetTokens(ctx, now)
	if err != nil {
		return refreshed, fmt.Errorf("failed to cleanup reset tokens: %w", err)
	}
	return refreshed + resets, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
