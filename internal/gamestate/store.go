// Package gamestate holds in-flight game sessions between start and completion.
package gamestate

import (
	"context"
	"errors"

	"edugame/internal/models"
)

// ErrNotFound is returned when a session does not exist or has expired
var ErrNotFound = errors.New("game session not found")

// Store keeps active sessions until they complete or expire
type Store interface {
	Save(ctx context.Context, session *models.GameSession) error
	Get(ctx context.Context, id string) (*models.GameSession, error)
	Delete(ctx context.Context, id string) error
	// Update applies fn to the stored session atomically and saves the result.
	// An error from fn aborts the update and is returned unchanged.
	Update(ctx context.Context, id string, fn func(*models.GameSession) error) (*models.GameSession, error)
}
