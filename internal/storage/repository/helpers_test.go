package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/storytime-billing/internal/migrations"
	"github.com/magabrotheeeer/storytime-billing/internal/models"
)

const migrationsPath = "../../../migrations"

// setupTestDatabase starts PostgreSQL in a container and applies the migrations.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(connStr)
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.Close()
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}
	return storage, cleanup
}

// newMockStorage returns a Storage backed by go-sqlmock.
func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Storage{DB: db}, mock
}

// TestDataFactory creates fixtures directly in the database.
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory returns a factory bound to storage.
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser inserts a user with its default free subscription.
func (f *TestDataFactory) CreateUser(t *testing.T, id, email string) {
	t.Helper()
	created, err := f.storage.EnsureUser(context.Background(),
		models.User{ID: id, Email: email}, models.NewFreeSubscription(id))
	require.NoError(t, err)
	require.True(t, created)
}

// CountUsageRows returns the number of usage rows of a user.
func (f *TestDataFactory) CountUsageRows(t *testing.T, userID string) int {
	t.Helper()
	var n int
	err := f.storage.DB.QueryRow(`SELECT count(*) FROM usage_tracking WHERE user_id = $1`, userID).Scan(&n)
	require.NoError(t, err)
	return n
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

