package service_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zenfocus/backend/internal/db"
	"zenfocus/backend/internal/repository"
	"zenfocus/backend/internal/service"
)

type testDeps struct {
	db       *sql.DB
	users    *repository.UserRepository
	settings *repository.SettingsRepository
	sessions *repository.SessionRepository
	auth     *service.AuthService
}

func newTestDeps(t *testing.T) testDeps {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, currentFile, _, ok := runtime.Caller(0)
	require.True(t, ok)
	_, err = db.RunMigrations(database, filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations"), nil)
	require.NoError(t, err)

	users := repository.NewUserRepository(database)
	return testDeps{
		db:       database,
		users:    users,
		settings: repository.NewSettingsRepository(database),
		sessions: repository.NewSessionRepository(database),
		auth:     service.NewAuthService(users, "test-secret", time.Hour, nil),
	}
}

func (d testDeps) register(t *testing.T, email string) string {
	t.Helper()
	result, apiErr := d.auth.Register(context.Background(), email, "123456")
	require.Nil(t, apiErr)
	return result.User.ID
}
