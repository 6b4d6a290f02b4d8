package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/luma-identity/internal/config"
	"github.com/prn-tf/luma-identity/internal/domain"
)

func sqliteTestConfig(t *testing.T) config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "luma.db"),
		AutoMigrate: true,
	}
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, sqliteTestConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, "sqlite", st.Driver)
	require.NoError(t, st.Database.Health(ctx))

	user := domain.NewUser("alice", "a@x.com", "digest", "")
	require.NoError(t, st.Repos.User.Create(ctx, user))
	assert.NotZero(t, user.UID)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = OpenMigrator(context.Background(), config.DatabaseConfig{Driver: "oracle"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestMigrator_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteTestConfig(t)

	m, err := OpenMigrator(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Up(ctx))
	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	require.NoError(t, m.Status(ctx))
	require.NoError(t, m.Down(ctx))

	version, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
}
