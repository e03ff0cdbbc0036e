package store

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/okieraised/power-alert-relay/internal/utilities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RELAY_TEST_POSTGRES_DSN points at a scratch database; its recipient tables
// are truncated between cases.
const testDSNEnv = "RELAY_TEST_POSTGRES_DSN"

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s is not set", testDSNEnv)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := NewPostgresStore(pool)
	require.NoError(t, s.Migrate(ctx))
	// Migrate is idempotent.
	require.NoError(t, s.Migrate(ctx))
	return s
}

func truncate(t *testing.T, s *PostgresStore) {
	t.Helper()
	_, err := s.pool.Exec(context.Background(), `TRUNCATE recipients, recipient_topic_rules`)
	require.NoError(t, err)
}

func TestPostgresStore(t *testing.T) {
	s := newTestPostgresStore(t)
	require.NoError(t, s.Ping(context.Background()))

	for _, tc := range storeContract {
		t.Run(tc.name, func(t *testing.T) {
			truncate(t, s)
			tc.run(t, s)
		})
	}
}

func TestPostgresStore_DeleteCascadesRules(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgresStore(t)
	truncate(t, s)

	_, err := s.UpsertOnRegister(ctx, models.Registration{
		Token:  "a",
		Topics: map[string]models.TopicSettings{topicT: {Enabled: utilities.Ptr(true)}},
	}, defaultBounds)
	require.NoError(t, err)
	require.NoError(t, s.DeleteByToken(ctx, "a"))

	var rules int
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT count(*) FROM recipient_topic_rules WHERE token = 'a'`).Scan(&rules))
	assert.Zero(t, rules)
}

func TestPostgresStore_UpdateOfMissingRecipient(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgresStore(t)
	truncate(t, s)

	err := s.Update(ctx, "missing", models.RecipientUpdate{
		TopicLatches: map[string]models.Latches{topicT: {Low: true}},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}
