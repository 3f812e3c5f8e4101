package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_TYPE", "")
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("OAUTH_TEACHER_DOMAINS", "")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 2*time.Hour, cfg.GameSessionTTL)
	assert.False(t, cfg.RedisEnabled())
	assert.Empty(t, cfg.OAuthTeacherDomains)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SEED_DEMO_DATA", "true")
	t.Setenv("OAUTH_TEACHER_DOMAINS", " School.edu, ,district.org ")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.SeedDemoData)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, []string{"school.edu", "district.org"}, cfg.OAuthTeacherDomains)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("REDIS_DB", "three")
	t.Setenv("ACCESS_TOKEN_TTL", "soon")

	cfg := Load()

	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
}
