// Package db stores the history of detected accidents in sqlite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// TimestampLayout is how event times are stored and reported.
const TimestampLayout = "2006-01-02 15:04:05"

type DB struct {
	*sql.DB
}

// NewDB opens the database at path and brings its schema up to date.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer at a time
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Event is one detected accident.
type Event struct {
	ID        int64     `json:"-"`
	Timestamp time.Time `json:"-"`
	Email     string    `json:"email"`
	Severity  string    `json:"severity"`
	Impact    int       `json:"impact"`
	Vehicles  int       `json:"vehicles"`
	ClipPath  string    `json:"-"`
}

// FormattedTimestamp is the stored representation of the event time.
func (e Event) FormattedTimestamp() string {
	return e.Timestamp.Format(TimestampLayout)
}

// RecordEvent appends e and returns its row id.
func (db *DB) RecordEvent(ctx context.Context, e Event) (int64, error) {
	res, err := db.ExecContext(ctx,
		`INSERT INTO events (timestamp, email, severity, impact, vehicles, video_path)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.FormattedTimestamp(), e.Email, e.Severity, e.Impact, e.Vehicles, e.ClipPath,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record event: %w", err)
	}
	return res.LastInsertId()
}

// RecentEvents returns at most limit events, newest first.
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	return db.queryEvents(ctx,
		`SELECT id, timestamp, email, severity, impact, vehicles, video_path
		FROM events ORDER BY id DESC LIMIT ?`, limit)
}

// RecentEventsFor is RecentEvents restricted to alerts sent to email.
func (db *DB) RecentEventsFor(ctx context.Context, email string, limit int) ([]Event, error) {
	return db.queryEvents(ctx,
		`SELECT id, timestamp, email, severity, impact, vehicles, video_path
		FROM events WHERE email = ? ORDER BY id DESC LIMIT ?`, email, limit)
}

func (db *DB) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e  Event
			ts string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Email, &e.Severity, &e.Impact, &e.Vehicles, &e.ClipPath); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if e.Timestamp, err = time.ParseInLocation(TimestampLayout, ts, time.Local); err != nil {
			return nil, fmt.Errorf("event %d: bad timestamp %q: %w", e.ID, ts, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
