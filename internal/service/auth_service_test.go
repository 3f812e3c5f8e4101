package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edugame/internal/logger"
	"edugame/internal/models"
	"edugame/internal/repository"
	"edugame/internal/security"
	"edugame/internal/testutil"
	"edugame/internal/validation"
)

type sentReset struct {
	email, name, token string
}

type fakeMailer struct {
	sent []sentReset
	err  error
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, toEmail, toName, token string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentReset{toEmail, toName, token})
	return nil
}

type authFixture struct {
	auth   *AuthService
	users  *repository.UserRepository
	mailer *fakeMailer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	mailer := &fakeMailer{}
	tokens := security.NewTokenIssuer("test-secret", 15*time.Minute, 7*24*time.Hour)
	return &authFixture{
		auth:   NewAuthService(users, tokens, mailer, logger.Discard()),
		users:  users,
		mailer: mailer,
	}
}

func (f *authFixture) register(t *testing.T, email string, role models.Role) *models.AuthResponse {
	t.Helper()
	grade := 2
	resp, err := f.auth.Register(context.Background(), models.RegisterForm{
		Name:     "Emma Johnson",
		Email:    email,
		Password: "password123",
		Role:     role,
		Grade:    &grade,
	})
	require.NoError(t, err)
	return resp
}

func TestAuthRegisterAndLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	resp := f.register(t, "  Emma@EduGame.com ", "")
	assert.Equal(t, "emma@edugame.com", resp.User.Email)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	require.NotNil(t, resp.User.Grade)
	assert.Equal(t, 2, *resp.User.Grade)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)
	assert.Greater(t, resp.Tokens.ExpiresAt, time.Now().UnixMilli())

	teacher := f.register(t, "teacher@edugame.com", models.RoleTeacher)
	assert.Nil(t, teacher.User.Grade)

	_, err := f.auth.Register(ctx, models.RegisterForm{Name: "Other", Email: "emma@edugame.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.auth.Register(ctx, models.RegisterForm{Name: "Admin", Email: "boss@edugame.com", Password: "password123", Role: models.RoleAdmin})
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "role")

	login, err := f.auth.Login(ctx, "EMMA@edugame.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
	assert.NotNil(t, login.User.LastLoginAt)

	_, err = f.auth.Login(ctx, "emma@edugame.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, "nobody@edugame.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	me, err := f.auth.CurrentIdentity(ctx, login.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "emma@edugame.com", me.Email)

	_, err = f.auth.CurrentIdentity(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthRefreshRotates(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	first := f.register(t, "emma@edugame.com", models.RoleStudent)

	second, err := f.auth.Refresh(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)

	// the presented token is spent
	_, err = f.auth.Refresh(ctx, first.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.auth.Refresh(ctx, second.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.auth.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	third, err := f.auth.Refresh(ctx, second.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, third.User.ID)
}

func TestAuthLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp := f.register(t, "emma@edugame.com", models.RoleStudent)

	require.NoError(t, f.auth.Logout(ctx, resp.Tokens.RefreshToken))
	require.NoError(t, f.auth.Logout(ctx, resp.Tokens.RefreshToken))

	_, err := f.auth.Refresh(ctx, resp.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.ErrorIs(t, f.auth.Logout(ctx, "not-a-token"), ErrInvalidToken)
}

func TestAuthPasswordReset(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp := f.register(t, "emma@edugame.com", models.RoleStudent)

	require.NoError(t, f.auth.RequestPasswordReset(ctx, "unknown@edugame.com"))
	assert.Empty(t, f.mailer.sent)

	require.NoError(t, f.auth.RequestPasswordReset(ctx, " Emma@edugame.com"))
	require.Len(t, f.mailer.sent, 1)
	reset := f.mailer.sent[0]
	assert.Equal(t, "emma@edugame.com", reset.email)
	assert.Equal(t, "Emma Johnson", reset.name)

	err := f.auth.ConfirmPasswordReset(ctx, reset.token, "short")
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))

	require.NoError(t, f.auth.ConfirmPasswordReset(ctx, reset.token, "new-password-1"))
	assert.ErrorIs(t, f.auth.ConfirmPasswordReset(ctx, reset.token, "new-password-2"), ErrInvalidResetToken)
	assert.ErrorIs(t, f.auth.ConfirmPasswordReset(ctx, "missing", "new-password-2"), ErrInvalidResetToken)

	// every session is revoked by the reset
	_, err = f.auth.Refresh(ctx, resp.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.auth.Login(ctx, "emma@edugame.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, "emma@edugame.com", "new-password-1")
	require.NoError(t, err)
}

func TestAuthPasswordResetExpires(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "emma@edugame.com", models.RoleStudent)

	require.NoError(t, f.auth.RequestPasswordReset(ctx, "emma@edugame.com"))
	require.Len(t, f.mailer.sent, 1)

	f.auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.ErrorIs(t, f.auth.ConfirmPasswordReset(ctx, f.mailer.sent[0].token, "new-password-1"), ErrInvalidResetToken)
}

func TestAuthChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	resp := f.register(t, "emma@edugame.com", models.RoleStudent)

	assert.ErrorIs(t, f.auth.ChangePassword(ctx, resp.User.ID, "wrong", "new-password-1"), ErrInvalidCredentials)
	assert.ErrorIs(t, f.auth.ChangePassword(ctx, "missing", "password123", "new-password-1"), ErrUserNotFound)
	require.NoError(t, f.auth.ChangePassword(ctx, resp.User.ID, "password123", "new-password-1"))

	_, err := f.auth.Login(ctx, "emma@edugame.com", "new-password-1")
	require.NoError(t, err)
}

func TestAuthUpdateProfile(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	student := f.register(t, "emma@edugame.com", models.RoleStudent)
	teacher := f.register(t, "teacher@edugame.com", models.RoleTeacher)

	name := "Emma J."
	email := " EMMA.J@edugame.com"
	grade := 3
	updated, err := f.auth.UpdateProfile(ctx, student.User.ID, models.ProfileUpdate{Name: &name, Email: &email, Grade: &grade})
	require.NoError(t, err)
	assert.Equal(t, "Emma J.", updated.Name)
	assert.Equal(t, "emma.j@edugame.com", updated.Email)
	assert.Equal(t, 3, *updated.Grade)

	stored, err := f.users.GetUserByID(ctx, student.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "emma.j@edugame.com", stored.Email)

	taken := "teacher@edugame.com"
	_, err = f.auth.UpdateProfile(ctx, student.User.ID, models.ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.auth.UpdateProfile(ctx, teacher.User.ID, models.ProfileUpdate{Grade: &grade})
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "grade")
}

func TestAuthOAuthLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.auth.SetOAuthTeacherDomains([]string{" Gmail.com "})

	created, err := f.auth.OAuthLogin(ctx, "google", "g-123", "New.Teacher@gmail.com", "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, created.User.Role)
	assert.Equal(t, "new.teacher", created.User.Name)
	assert.True(t, created.User.EmailVerified)

	again, err := f.auth.OAuthLogin(ctx, "google", "g-123", "new.teacher@gmail.com", "New Teacher")
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, again.User.ID)

	local := f.register(t, "emma@edugame.com", models.RoleStudent)
	linked, err := f.auth.OAuthLogin(ctx, "facebook", "fb-9", "emma@edugame.com", "Emma")
	require.NoError(t, err)
	assert.Equal(t, local.User.ID, linked.User.ID)

	_, err = f.auth.OAuthLogin(ctx, "google", "g-other", "emma@edugame.com", "Emma")
	assert.ErrorIs(t, err, ErrEmailTaken)

	// accounts without a password never receive reset mail
	require.NoError(t, f.auth.RequestPasswordReset(ctx, "new.teacher@gmail.com"))
	assert.Empty(t, f.mailer.sent)
}

func TestAuthOAuthSignUpDefaultsToStudent(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	anyone, err := f.auth.OAuthLogin(ctx, "google", "g-1", "kid@gmail.com", "Kid")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, anyone.User.Role)

	f.auth.SetOAuthTeacherDomains([]string{"school.edu"})

	staff, err := f.auth.OAuthLogin(ctx, "facebook", "fb-1", "ms.frizzle@school.edu", "Ms Frizzle")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, staff.User.Role)

	lookalike, err := f.auth.OAuthLogin(ctx, "google", "g-2", "someone@notschool.edu", "Someone")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, lookalike.User.Role)

	// the existing account keeps its role on later sign-ins
	again, err := f.auth.OAuthLogin(ctx, "google", "g-1", "kid@gmail.com", "Kid")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, again.User.Role)
}

func TestAuthCleanupExpired(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "emma@edugame.com", models.RoleStudent)
	require.NoError(t, f.auth.RequestPasswordReset(ctx, "emma@edugame.com"))

	removed, err := f.auth.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	f.auth.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	removed, err = f.auth.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}
