package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
)

// openTestPostgres connects to PG_TEST_DSN and truncates the schema.
func openTestPostgres(t *testing.T) *PostgresRepo {
	t.Helper()
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	ctx := context.Background()
	repo, err := OpenPostgres(ctx, PostgresConfig{DSN: dsn}, zap.NewNop())
	require.NoError(t, err)
	_, err = repo.pool.Exec(ctx, `TRUNCATE notifications, events, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "bot", Database: "events", SSLMode: "disable"}
	require.Equal(t, "host=db port=5432 user=bot dbname=events sslmode=disable", cfg.dsn())

	cfg.Password = "secret"
	require.Equal(t, "host=db port=5432 user=bot password=secret dbname=events sslmode=disable", cfg.dsn())

	cfg.DSN = "postgres://x"
	require.Equal(t, "postgres://x", cfg.dsn())
}

func TestPostgres_LedgerAndUnseen(t *testing.T) {
	repo := openTestPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.AddUser(ctx, domain.User{ID: 1, Phone: "+1", FirstName: "A"}))
	require.NoError(t, repo.AddUser(ctx, domain.User{ID: 1, Phone: "+2", FirstName: "B"}))
	u, err := repo.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "+2", u.Phone)

	first, err := repo.CreateEvent(ctx, domain.NewEvent{Title: "first", At: now.Add(time.Hour), CreatedBy: 1})
	require.NoError(t, err)
	second, err := repo.CreateEvent(ctx, domain.NewEvent{Title: "second", At: now.Add(2 * time.Hour), CreatedBy: 1})
	require.NoError(t, err)

	require.NoError(t, repo.RecordNotification(ctx, first, 1, domain.KindInitial))
	require.NoError(t, repo.RecordNotification(ctx, first, 1, domain.KindInitial))

	ok, err := repo.HasNotification(ctx, first, 1, domain.KindInitial)
	require.NoError(t, err)
	require.True(t, ok)

	unseen, err := repo.EventsUnseenByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, unseen, 1)
	require.Equal(t, second, unseen[0].ID)
	require.True(t, unseen[0].At.Equal(now.Add(2*time.Hour)))

	upcoming, err := repo.UpcomingEvents(ctx, now, 90*time.Minute)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	require.Equal(t, first, upcoming[0].ID)
}
