package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	TypePasswordResetEmail = "email:password_reset"
)

// Mailer sends password reset emails
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, toName, token string) error
}

// PasswordResetPayload is the task body of a password reset email
type PasswordResetPayload struct {
	To    string `json:"to"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Manager enqueues and processes background jobs on Redis via asynq
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	log    logrus.FieldLogger
}

// NewManager creates the queue client and worker for the Redis at addr
func NewManager(addr, password string, db int, log logrus.FieldLogger) *Manager {
	redisOpt := asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.WithError(err).WithField("type", task.Type()).Error("job failed")
		}),
		Logger: &AsynqLogger{log: log},
	})

	return &Manager{
		client: asynq.NewClient(redisOpt),
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

// RegisterHandlers wires task types to their processors
func (m *Manager) RegisterHandlers(mailer Mailer) {
	m.mux.HandleFunc(TypePasswordResetEmail, HandlePasswordResetEmail(mailer, m.log))
}

// Start runs the worker; it blocks until Stop
func (m *Manager) Start() error {
	m.log.Info("starting job queue worker")
	return m.server.Run(m.mux)
}

func (m *Manager) Stop() {
	m.log.Info("stopping job queue")
	m.server.Shutdown()
	m.client.Close()
}

// SendPasswordResetEmail enqueues the email instead of sending it inline,
// so Manager can stand in for the mailer of the auth service.
func (m *Manager) SendPasswordResetEmail(ctx context.Context, toEmail, toName, token string) error {
	task, err := NewPasswordResetTask(toEmail, toName, token)
	if err != nil {
		return err
	}

	info, err := m.client.EnqueueContext(ctx, task,
		asynq.Queue("critical"),
		asynq.MaxRetry(5),
		asynq.Timeout(120*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue password reset email: %w", err)
	}

	m.log.WithFields(logrus.Fields{"id": info.ID, "queue": info.Queue}).Info("queued password reset email")
	return nil
}

// NewPasswordResetTask builds the task for a password reset email
func NewPasswordResetTask(toEmail, toName, token string) (*asynq.Task, error) {
	payload, err := json.Marshal(PasswordResetPayload{To: toEmail, Name: toName, Token: token})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email payload: %w", err)
	}
	return asynq.NewTask(TypePasswordResetEmail, payload), nil
}

// HandlePasswordResetEmail processes a password reset task with mailer
func HandlePasswordResetEmail(mailer Mailer, log logrus.FieldLogger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload PasswordResetPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal email payload: %w: %w", err, asynq.SkipRetry)
		}

		if err := mailer.SendPasswordResetEmail(ctx, payload.To, payload.Name, payload.Token); err != nil {
			return fmt.Errorf("failed to send password reset email: %w", err)
		}

		log.WithField("type", task.Type()).Info("sent queued email")
		return nil
	}
}

// AsynqLogger routes asynq's logging through logrus
type AsynqLogger struct {
	log logrus.FieldLogger
}

func (l *AsynqLogger) Debug(args ...any) { l.log.Debug(args...) }
func (l *AsynqLogger) Info(args ...any)  { l.log.Info(args...) }
func (l *AsynqLogger) Warn(args ...any)  { l.log.Warn(args...) }
func (l *AsynqLogger) Error(args ...any) { l.log.Error(args...) }
func (l *AsynqLogger) Fatal(args ...any) { l.log.Fatal(args...) }
