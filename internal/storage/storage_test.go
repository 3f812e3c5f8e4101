package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObjectStoreValidatesConfig(t *testing.T) {
	_, err := NewObjectStore(Config{Bucket: "b"})
	assert.Error(t, err)

	_, err = NewObjectStore(Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	store, err := NewObjectStore(Config{Endpoint: "localhost:9000", Bucket: "edugame-backups"})
	require.NoError(t, err)
	assert.Equal(t, "edugame-backups", store.Bucket())
}

func TestBackupObjectName(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 30, 5, 0, time.UTC)
	assert.Equal(t, "backups/edugame-backup-20240601-093005.json", BackupObjectName(at))
}
