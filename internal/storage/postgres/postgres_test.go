package postgres

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"lockify/internal/config"
	"lockify/internal/models"
	"lockify/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepo connects to the database named by POSTGRES_TEST_* variables.
func newTestRepo(t *testing.T) *PostgresRepo {
	t.Helper()

	host := os.Getenv("POSTGRES_TEST_HOST")
	if host == "" {
		t.Skip("POSTGRES_TEST_HOST is not set")
	}

	port, _ := strconv.Atoi(os.Getenv("POSTGRES_TEST_PORT"))
	if port == 0 {
		port = 5432
	}

	ctx := context.Background()

	repo, err := New(ctx, config.Postgres{
		Host:     host,
		Port:     port,
		User:     os.Getenv("POSTGRES_TEST_USER"),
		Password: os.Getenv("POSTGRES_TEST_PASSWORD"),
		DBName:   os.Getenv("POSTGRES_TEST_DB"),
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(ctx))

	t.Cleanup(repo.Close)

	return repo
}

func TestPostgresRepo_DeleteUnverifiedUntil(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	emails := []string{"pg-edge@gmail.com", "pg-later@gmail.com"}

	t.Cleanup(func() {
		for _, e := range emails {
			_ = repo.DeleteUser(context.Background(), e)
		}
	})

	require.NoError(t, repo.SaveUser(ctx, models.User{Email: emails[0], FirstName: "E", PassHash: []byte("h"), Gender: "other", CreatedAt: base}))
	require.NoError(t, repo.SaveUser(ctx, models.User{Email: emails[1], FirstName: "L", PassHash: []byte("h"), Gender: "other", CreatedAt: base.Add(time.Second)}))

	_, err := repo.DeleteUnverifiedUntil(ctx, base)
	require.NoError(t, err)

	_, err = repo.User(ctx, emails[0])
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	_, err = repo.User(ctx, emails[1])
	assert.NoError(t, err)
}
