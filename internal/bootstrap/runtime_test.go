package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"filetrack/internal/config"
	"filetrack/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `
departments:
  - code: rev
    name: Revenue
    divisions:
      - name: Inward
        users:
          - {name: Asha Rao, email: asha@rev.gov, role: INWARD_DESK}
`

func TestLoadDevFixture(t *testing.T) {
	db, err := database.OpenSQLite("file:bootstrap_fixture?mode=memory&cache=shared")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "directory.yml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))
	cfg := &config.Config{Env: "development"}

	require.NoError(t, loadDevFixture(cfg, db, path))
	var users int64
	require.NoError(t, db.Table("users").Count(&users).Error)
	assert.Equal(t, int64(1), users)

	// A populated directory is left alone.
	require.NoError(t, loadDevFixture(cfg, db, path))
	require.NoError(t, db.Table("users").Count(&users).Error)
	assert.Equal(t, int64(1), users)
}

func TestLoadDevFixture_SkippedInProduction(t *testing.T) {
	db, err := database.OpenSQLite("file:bootstrap_prod?mode=memory&cache=shared")
	require.NoError(t, err)

	require.NoError(t, loadDevFixture(&config.Config{Env: "production"}, db, "/does/not/exist.yml"))
	require.NoError(t, loadDevFixture(&config.Config{Env: "development"}, db, ""))
	assert.Error(t, loadDevFixture(&config.Config{Env: "development"}, db, "/does/not/exist.yml"))
}
