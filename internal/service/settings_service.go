package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"edugame/internal/kvstore"
	"edugame/internal/models"
	"edugame/internal/validation"
)

// SettingsKey is the key holding the settings blob inside a user's scope
const SettingsKey = "app_settings"

// ClientDataKeys lists every key the app keeps per user. The first entries
// are the current layout; auth_token and user_data are the legacy session keys.
var ClientDataKeys = []string{
	"access_token",
	"refresh_token",
	"user_profile",
	"token_expiry",
	SettingsKey,
	"onboarding_completed",
	"feedback_data",
	"analytics_cache",
	"auth_token",
	"user_data",
}

// SettingsOptions lists the choices offered by the settings screen
type SettingsOptions struct {
	Languages []models.LanguageOption `json:"languages"`
	Themes    []models.ThemeOption    `json:"themes"`
}

// SettingsService stores per-user app settings in the key-value store
type SettingsService struct {
	store kvstore.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewSettingsService creates a new settings service
func NewSettingsService(store kvstore.Store, log logrus.FieldLogger) *SettingsService {
	return &SettingsService{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

func (s *SettingsService) scope(userID string) kvstore.Store {
	return kvstore.Scoped(s.store, "users/"+userID)
}

// Get returns the user's settings merged over the defaults. A missing or
// unreadable blob yields the defaults.
func (s *SettingsService) Get(ctx context.Context, userID string) (*models.AppSettings, error) {
	settings := models.DefaultSettings(s.now().UTC())

	raw, err := s.scope(userID).Get(ctx, SettingsKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return &settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("discarding unreadable settings")
		defaults := models.DefaultSettings(s.now().UTC())
		return &defaults, nil
	}
	return &settings, nil
}

// Update merges patch into the stored settings
func (s *SettingsService) Update(ctx context.Context, userID string, patch models.AppSettingsPatch) (*models.AppSettings, error) {
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	patch.Apply(settings)
	return s.save(ctx, userID, settings)
}

// Reset drops the stored settings and returns the defaults
func (s *SettingsService) Reset(ctx context.Context, userID string) (*models.AppSettings, error) {
	if err := s.scope(userID).Delete(ctx, SettingsKey); err != nil {
		return nil, fmt.Errorf("failed to reset settings: %w", err)
	}
	settings := models.DefaultSettings(s.now().UTC())
	return &settings, nil
}

// Export renders the user's settings as indented JSON
func (s *SettingsService) Export(ctx context.Context, userID string) ([]byte, error) {
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(settings, "", "  ")
}

// Import replaces the user's settings with data merged over the defaults
func (s *SettingsService) Import(ctx context.Context, userID string, data []byte) (*models.AppSettings, error) {
	settings := models.DefaultSettings(s.now().UTC())
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, validation.Errors{"settings": "must be a valid settings JSON document"}
	}
	return s.save(ctx, userID, &settings)
}

// ClearAllData deletes every key the app keeps for the user
func (s *SettingsService) ClearAllData(ctx context.Context, userID string) error {
	scope := s.scope(userID)
	for _, key := range ClientDataKeys {
		if err := scope.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	s.log.WithField("user_id", userID).Info("cleared user data")
	return nil
}

// Options returns the language and theme choices
func (s *SettingsService) Options() SettingsOptions {
	return SettingsOptions{
		Languages: models.LanguageOptions,
		Themes:    models.ThemeOptions,
	}
}

func (s *SettingsService) save(ctx context.Context, userID string, settings *models.AppSettings) (*models.AppSettings, error) {
	if err := validation.Struct(settings); err != nil {
		return nil, err
	}
	settings.LastUpdated = s.now().UTC()

	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.scope(userID).Set(ctx, SettingsKey, string(raw)); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	return settings, nil
}
