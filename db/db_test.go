package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gfxd/gpu-mode-service/models"
)

func TestConnectDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "gfxd.db")

	database, err := ConnectDatabase(path)
	require.NoError(t, err)

	assert.True(t, database.Migrator().HasTable(&models.GfxConfig{}))
	assert.True(t, database.Migrator().HasTable(&models.Transition{}))
	assert.FileExists(t, path)
}
