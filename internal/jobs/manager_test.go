package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edugame/internal/logger"
)

type fakeMailer struct {
	to, name, token string
	err             error
}

func (f *fakeMailer) SendPasswordResetEmail(_ context.Context, to, name, token string) error {
	f.to, f.name, f.token = to, name, token
	return f.err
}

func TestHandlePasswordResetEmail(t *testing.T) {
	task, err := NewPasswordResetTask("t1@gmail.com", "Teacher One", "abc123")
	require.NoError(t, err)
	assert.Equal(t, TypePasswordResetEmail, task.Type())

	mailer := &fakeMailer{}
	require.NoError(t, HandlePasswordResetEmail(mailer, logger.Discard())(context.Background(), task))

	assert.Equal(t, "t1@gmail.com", mailer.to)
	assert.Equal(t, "Teacher One", mailer.name)
	assert.Equal(t, "abc123", mailer.token)
}

func TestHandlePasswordResetEmailPropagatesFailure(t *testing.T) {
	task, err := NewPasswordResetTask("a@b.com", "A", "t")
	require.NoError(t, err)

	boom := errors.New("ses throttled")
	err = HandlePasswordResetEmail(&fakeMailer{err: boom}, logger.Discard())(context.Background(), task)
	assert.ErrorIs(t, err, boom)
}

func TestHandlePasswordResetEmailSkipsRetryOnBadPayload(t *testing.T) {
	task := asynq.NewTask(TypePasswordResetEmail, []byte("not json"))

	err := HandlePasswordResetEmail(&fakeMailer{}, logger.Discard())(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
