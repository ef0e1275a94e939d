package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// AddUser inserts a user or, if the id exists, overwrites contact and name
// fields and refreshes registered_at.
func (r *SQLiteRepo) AddUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, phone_number, first_name, last_name, registered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			phone_number  = excluded.phone_number,
			first_name    = excluded.first_name,
			last_name     = excluded.last_name,
			registered_at = excluded.registered_at`,
		u.ID, u.Phone, u.FirstName, u.LastName, time.Now().UTC().Unix(),
	)
	if err != nil {
		return storageErr("add user", err)
	}
	return nil
}

// GetUser returns a user by id or domain.ErrNotFound.
func (r *SQLiteRepo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, phone_number, first_name, last_name, registered_at
		FROM users
		WHERE user_id = ?`,
		id,
	)

	var (
		u          domain.User
		registered int64
	)
	if err := row.Scan(&u.ID, &u.Phone, &u.FirstName, &u.LastName, &registered); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("get user", err)
	}
	u.RegisteredAt = fromUnix(registered)
	return &u, nil
}

// ListUserIDs returns the ids of all registered users.
func (r *SQLiteRepo) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("list users", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list users", err)
	}
	return ids, nil
}

// CreateEvent stores an event and returns its id.
func (r *SQLiteRepo) CreateEvent(ctx context.Context, e domain.NewEvent) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO events (title, description, photo_id, event_datetime, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Title, e.Description, e.MediaRef, toUnix(e.At), time.Now().UTC().Unix(), nullCreator(e.CreatedBy),
	)
	if err != nil {
		return 0, storageErr("create event", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageErr("create event", err)
	}
	return id, nil
}

const sqliteEventColumns = `e.event_id, e.title, e.description, e.photo_id, e.event_datetime, e.created_at, e.created_by`

// UpcomingEvents returns events in [now, now+horizon], or all future events
// when horizon is zero, ordered by start time.
func (r *SQLiteRepo) UpcomingEvents(ctx context.Context, now time.Time, horizon time.Duration) ([]domain.Event, error) {
	if horizon > 0 {
		return r.queryEvents(ctx, `
			SELECT `+sqliteEventColumns+`
			FROM events e
			WHERE e.event_datetime >= ? AND e.event_datetime <= ?
			ORDER BY e.event_datetime, e.event_id`,
			toUnix(now), toUnix(now.Add(horizon)),
		)
	}
	return r.queryEvents(ctx, `
		SELECT `+sqliteEventColumns+`
		FROM events e
		WHERE e.event_datetime >= ?
		ORDER BY e.event_datetime, e.event_id`,
		toUnix(now),
	)
}

// EventsUnseenByUser returns events the user has no initial announcement for.
func (r *SQLiteRepo) EventsUnseenByUser(ctx context.Context, userID int64) ([]domain.Event, error) {
	return r.queryEvents(ctx, `
		SELECT `+sqliteEventColumns+`
		FROM events e
		WHERE NOT EXISTS (
			SELECT 1 FROM notifications n
			WHERE n.event_id = e.event_id
			  AND n.user_id = ?
			  AND n.notification_type = ?
		)
		ORDER BY e.event_datetime, e.event_id`,
		userID, string(domain.KindInitial),
	)
}

func (r *SQLiteRepo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query events", err)
	}
	defer rows.Close()

	var res []domain.Event
	for rows.Next() {
		var (
			e         domain.Event
			at        int64
			createdAt int64
			createdBy sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.MediaRef, &at, &createdAt, &createdBy); err != nil {
			return nil, storageErr("scan event", err)
		}
		e.At = fromUnix(at)
		e.CreatedAt = fromUnix(createdAt)
		e.CreatedBy = createdBy.Int64
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query events", err)
	}
	return res, nil
}

// RecordNotification inserts a ledger row, ignoring an existing one.
func (r *SQLiteRepo) RecordNotification(ctx context.Context, eventID, userID int64, kind domain.Kind) error {
	if !kind.Valid() {
		return &domain.ValidationError{Field: "notification_type", Reason: "unknown kind " + string(kind)}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (event_id, user_id, notification_type, sent_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id, user_id, notification_type) DO NOTHING`,
		eventID, userID, string(kind), time.Now().UTC().Unix(),
	)
	if err != nil {
		return storageErr("record notification", err)
	}
	return nil
}

// HasNotification reports whether the ledger holds (eventID, userID, kind).
func (r *SQLiteRepo) HasNotification(ctx context.Context, eventID, userID int64, kind domain.Kind) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM notifications
		WHERE event_id = ? AND user_id = ? AND notification_type = ?`,
		eventID, userID, string(kind),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("has notification", err)
	}
	return true, nil
}

// nullCreator stores 0 as NULL so events without a known creator pass the
// foreign key check.
func nullCreator(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
