package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
)

// PostgresConfig holds PostgreSQL connection parameters. DSN wins when set.
type PostgresConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (c PostgresConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.Password != "" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
	}
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode)
}

// PostgresRepo implements Repo on a pgx connection pool.
type PostgresRepo struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// OpenPostgres connects, verifies the connection and applies migrations.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, log *zap.Logger) (*PostgresRepo, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "isco-bot"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	log.Info("postgres ready",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)
	return &PostgresRepo{pool: pool, log: log}, nil
}

func runPostgresMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	files, err := loadMigrations("postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			for _, stmt := range splitStatements(m.sql) {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("%s: %w", m.name, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes the pool.
func (r *PostgresRepo) Close() error {
	r.pool.Close()
	return nil
}

// Ping checks the database connection.
func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// AddUser upserts a user keyed by id.
func (r *PostgresRepo) AddUser(ctx context.Context, u domain.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (user_id, phone_number, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			phone_number  = EXCLUDED.phone_number,
			first_name    = EXCLUDED.first_name,
			last_name     = EXCLUDED.last_name,
			registered_at = (NOW() AT TIME ZONE 'UTC')`,
		u.ID, u.Phone, u.FirstName, u.LastName,
	)
	if err != nil {
		return storageErr("add user", err)
	}
	return nil
}

// GetUser returns a user by id or domain.ErrNotFound.
func (r *PostgresRepo) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var (
		u          domain.User
		registered time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, phone_number, first_name, last_name, registered_at
		FROM users WHERE user_id = $1`, id,
	).Scan(&u.ID, &u.Phone, &u.FirstName, &u.LastName, &registered)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get user", err)
	}
	u.RegisteredAt = fromNaive(registered)
	return &u, nil
}

// ListUserIDs returns the ids of all registered users.
func (r *PostgresRepo) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, storageErr("list users", err)
	}
	return ids, nil
}

// CreateEvent stores an event and returns its id.
func (r *PostgresRepo) CreateEvent(ctx context.Context, e domain.NewEvent) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	creator := pgtype.Int8{Int64: e.CreatedBy, Valid: e.CreatedBy != 0}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO events (title, description, photo_id, event_datetime, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING event_id`,
		e.Title, e.Description, e.MediaRef, naiveUTC(e.At), creator,
	).Scan(&id)
	if err != nil {
		return 0, storageErr("create event", err)
	}
	r.log.Info("event created", zap.Int64("event_id", id), zap.Time("at", e.At.UTC()))
	return id, nil
}

const pgEventColumns = `e.event_id, e.title, e.description, e.photo_id, e.event_datetime, e.created_at, e.created_by`

// UpcomingEvents returns events in [now, now+horizon], or all future events
// when horizon is zero, ordered by start time.
func (r *PostgresRepo) UpcomingEvents(ctx context.Context, now time.Time, horizon time.Duration) ([]domain.Event, error) {
	if horizon > 0 {
		return r.queryEvents(ctx, `
			SELECT `+pgEventColumns+`
			FROM events e
			WHERE e.event_datetime >= $1 AND e.event_datetime <= $2
			ORDER BY e.event_datetime, e.event_id`,
			naiveUTC(now), naiveUTC(now.Add(horizon)),
		)
	}
	return r.queryEvents(ctx, `
		SELECT `+pgEventColumns+`
		FROM events e
		WHERE e.event_datetime >= $1
		ORDER BY e.event_datetime, e.event_id`,
		naiveUTC(now),
	)
}

// EventsUnseenByUser returns events the user has no initial announcement for.
func (r *PostgresRepo) EventsUnseenByUser(ctx context.Context, userID int64) ([]domain.Event, error) {
	return r.queryEvents(ctx, `
		SELECT `+pgEventColumns+`
		FROM events e
		WHERE NOT EXISTS (
			SELECT 1 FROM notifications n
			WHERE n.event_id = e.event_id
			  AND n.user_id = $1
			  AND n.notification_type = $2
		)
		ORDER BY e.event_datetime, e.event_id`,
		userID, string(domain.KindInitial),
	)
}

func (r *PostgresRepo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query events", err)
	}
	defer rows.Close()

	var res []domain.Event
	for rows.Next() {
		var (
			e         domain.Event
			at        time.Time
			createdAt time.Time
			createdBy pgtype.Int8
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.MediaRef, &at, &createdAt, &createdBy); err != nil {
			return nil, storageErr("scan event", err)
		}
		e.At = fromNaive(at)
		e.CreatedAt = fromNaive(createdAt)
		e.CreatedBy = createdBy.Int64
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query events", err)
	}
	return res, nil
}

// RecordNotification inserts a ledger row, ignoring an existing one.
func (r *PostgresRepo) RecordNotification(ctx context.Context, eventID, userID int64, kind domain.Kind) error {
	if !kind.Valid() {
		return &domain.ValidationError{Field: "notification_type", Reason: "unknown kind " + string(kind)}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, user_id, notification_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, user_id, notification_type) DO NOTHING`,
		eventID, userID, string(kind),
	)
	if err != nil {
		r.log.Error("record notification failed",
			zap.Error(err),
			zap.Int64("event_id", eventID),
			zap.Int64("user_id", userID),
			zap.String("kind", string(kind)),
		)
		return storageErr("record notification", err)
	}
	return nil
}

// HasNotification reports whether the ledger holds (eventID, userID, kind).
func (r *PostgresRepo) HasNotification(ctx context.Context, eventID, userID int64, kind domain.Kind) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE event_id = $1 AND user_id = $2 AND notification_type = $3
		)`,
		eventID, userID, string(kind),
	).Scan(&exists)
	if err != nil {
		return false, storageErr("has notification", err)
	}
	return exists, nil
}
