package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/realdiag-server/internal/feedback"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"postgres://u:p@localhost:5432/db?sslmode=disable", "pgx5://u:p@localhost:5432/db?sslmode=disable"},
		{"postgresql://u@db/realdiag", "pgx5://u@db/realdiag"},
		{"pgx5://already", "pgx5://already"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, MigrateURL(tt.in))
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_feedback.up.sql")
	assert.Contains(t, names, "000001_create_feedback.down.sql")
}

// TestFeedbackStoreAgainstPostgres starts a PostgreSQL container, applies the
// embedded migrations and exercises the feedback store through the pool.
// Set REALDIAG_TEST_CONTAINERS=1 to run it.
func TestFeedbackStoreAgainstPostgres(t *testing.T) {
	if os.Getenv("REALDIAG_TEST_CONTAINERS") == "" {
		t.Skip("REALDIAG_TEST_CONTAINERS not set, skipping container test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("realdiag"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	databaseURL, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	runner, err := NewMigrationRunner(databaseURL, logger)
	require.NoError(t, err)
	require.NoError(t, runner.Up(ctx))
	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	require.NoError(t, runner.Close())

	db, err := NewConnection(ctx, databaseURL, DefaultPoolOptions(), logger)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Health(ctx))

	store, err := feedback.NewPostgresStore(db.SQL())
	require.NoError(t, err)

	fb := &feedback.Feedback{
		RuleID:  "NEURO-STROKE",
		Family:  "neurology",
		Context: "weakness, slurred speech",
		Source:  feedback.SourceSymptomSearch,
		Verdict: feedback.VerdictAgree,
	}
	require.NoError(t, store.Save(ctx, fb))
	firstID := fb.ID

	fb.Verdict = feedback.VerdictDisagree
	fb.CorrectedDiagnosis = "Hypoglycaemia"
	require.NoError(t, store.Save(ctx, fb))
	assert.Equal(t, firstID, fb.ID)

	got, err := store.Get(ctx, "NEURO-STROKE", "weakness, slurred speech")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, feedback.VerdictDisagree, got.Verdict)
	assert.Equal(t, "Hypoglycaemia", got.CorrectedDiagnosis)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
