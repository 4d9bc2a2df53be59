package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS subscribers (
	device_uid TEXT PRIMARY KEY,
	push_token TEXT NOT NULL,
	lat        REAL NOT NULL,
	lon        REAL NOT NULL,
	timezone   TEXT NOT NULL,
	hour       INTEGER NOT NULL,
	minute     INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS deliveries (
	id         TEXT PRIMARY KEY,
	device_uid TEXT NOT NULL,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	sent_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deliveries_sent_at ON deliveries (sent_at);
`

// SQLiteRepository stores subscribers in a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite allows a single writer and every :memory:
	// connection is its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Upsert(ctx context.Context, sub Subscriber) (Subscriber, error) {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO subscribers (device_uid, push_token, lat, lon, timezone, hour, minute, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (device_uid) DO UPDATE SET
	push_token = excluded.push_token,
	lat        = excluded.lat,
	lon        = excluded.lon,
	timezone   = excluded.timezone,
	hour       = excluded.hour,
	minute     = excluded.minute,
	updated_at = excluded.updated_at`,
		sub.DeviceUID, sub.PushToken, sub.Lat, sub.Lon, sub.Timezone, sub.Hour, sub.Minute,
		sub.CreatedAt.UTC(), sub.UpdatedAt.UTC(),
	)
	if err != nil {
		return Subscriber{}, fmt.Errorf("upsert subscriber: %w", err)
	}
	return r.Get(ctx, sub.DeviceUID)
}

func (r *SQLiteRepository) Delete(ctx context.Context, deviceUID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscribers WHERE device_uid = ?`, deviceUID)
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	if n == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

const subscriberColumns = `device_uid, push_token, lat, lon, timezone, hour, minute, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row scanner) (Subscriber, error) {
	var s Subscriber
	err := row.Scan(&s.DeviceUID, &s.PushToken, &s.Lat, &s.Lon, &s.Timezone, &s.Hour, &s.Minute, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *SQLiteRepository) Get(ctx context.Context, deviceUID string) (Subscriber, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE device_uid = ?`, deviceUID)
	s, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscriber{}, ErrSubscriberNotFound
	}
	if err != nil {
		return Subscriber{}, fmt.Errorf("get subscriber: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers ORDER BY device_uid`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) RecordDeliveries(ctx context.Context, deliveries []Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO deliveries (id, device_uid, title, body, status, error, sent_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, d := range deliveries {
		if _, err := stmt.ExecContext(ctx, d.ID, d.DeviceUID, d.Title, d.Body, d.Status, d.Error, d.SentAt.UTC()); err != nil {
			return fmt.Errorf("insert delivery %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// RecentDeliveries returns up to limit deliveries, newest first.
func (r *SQLiteRepository) RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, device_uid, title, body, status, error, sent_at
FROM deliveries ORDER BY sent_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.DeviceUID, &d.Title, &d.Body, &d.Status, &d.Error, &d.SentAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
