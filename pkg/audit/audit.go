// Package audit keeps a local log of liveness verdicts in SQLite.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/MrCodeEU/facegate/pkg/liveness"
)

// Entry is one recorded verdict.
type Entry struct {
	ID              string                 `json:"id"`
	SessionID       string                 `json:"session_id"`
	Subject         string                 `json:"subject"`
	Attempt         int                    `json:"attempt"`
	Challenge       liveness.ChallengeKind `json:"challenge"`
	Live            bool                   `json:"live"`
	Reason          liveness.Reason        `json:"reason"`
	FramesCollected int                    `json:"frames_collected"`
	MinEAR          float64                `json:"min_ear"`
	YawDelta        float64                `json:"yaw_delta"`
	MotionDelta     float64                `json:"motion_delta"`
	CreatedAt       time.Time              `json:"created_at"`
}

// Stats summarizes the audit log.
type Stats struct {
	Total    int                     `json:"total"`
	Live     int                     `json:"live"`
	ByReason map[liveness.Reason]int `json:"by_reason"`
}

// PassRate returns the share of live verdicts, or 0 for an empty log.
func (s Stats) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Live) / float64(s.Total)
}

// Store provides persistent storage for verdicts.
type Store struct {
	db *sql.DB
}

// Open opens or creates the audit database at dbPath.
func Open(dbPath string) (*Store, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS liveness_attempts (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		subject TEXT,
		attempt INTEGER NOT NULL DEFAULT 1,
		challenge TEXT NOT NULL,
		live BOOLEAN NOT NULL,
		reason TEXT NOT NULL,
		frames_collected INTEGER,
		min_ear REAL,
		yaw_delta REAL,
		motion_delta REAL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_liveness_attempts_subject ON liveness_attempts(subject);
	CREATE INDEX IF NOT EXISTS idx_liveness_attempts_created_at ON liveness_attempts(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a verdict for subject. attempt is the 1-based attempt number
// within the caller's retry loop.
func (s *Store) Record(subject string, attempt int, v liveness.Verdict) (Entry, error) {
	created := v.CompletedAt
	if created.IsZero() {
		created = time.Now()
	}

	e := Entry{
		ID:              uuid.NewString(),
		SessionID:       v.SessionID,
		Subject:         subject,
		Attempt:         attempt,
		Challenge:       v.Challenge,
		Live:            v.Live,
		Reason:          v.Reason,
		FramesCollected: v.Metrics.FramesCollected,
		MinEAR:          v.Metrics.MinEAR,
		YawDelta:        v.Metrics.YawDelta,
		MotionDelta:     v.Metrics.MotionDelta,
		CreatedAt:       created.UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO liveness_attempts (id, session_id, subject, attempt, challenge, live, reason,
		        frames_collected, min_ear, yaw_delta, motion_delta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Subject, e.Attempt, string(e.Challenge), e.Live, string(e.Reason),
		e.FramesCollected, e.MinEAR, e.YawDelta, e.MotionDelta, e.CreatedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record verdict: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. An empty subject matches
// every subject.
func (s *Store) Recent(subject string, limit int) ([]Entry, error) {
	query := `SELECT id, session_id, subject, attempt, challenge, live, reason,
	                 frames_collected, min_ear, yaw_delta, motion_delta, created_at
	          FROM liveness_attempts`
	args := []interface{}{}
	if subject != "" {
		query += ` WHERE subject = ?`
		args = append(args, subject)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var subj sql.NullString
		var challenge, reason string

		err := rows.Scan(
			&e.ID, &e.SessionID, &subj, &e.Attempt, &challenge, &e.Live, &reason,
			&e.FramesCollected, &e.MinEAR, &e.YawDelta, &e.MotionDelta, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		e.Subject = subj.String
		e.Challenge = liveness.ChallengeKind(challenge)
		e.Reason = liveness.Reason(reason)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Stats counts verdicts by outcome.
func (s *Store) Stats() (Stats, error) {
	rows, err := s.db.Query(`SELECT reason, live, COUNT(*) FROM liveness_attempts GROUP BY reason, live`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query audit stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := Stats{ByReason: make(map[liveness.Reason]int)}
	for rows.Next() {
		var reason string
		var live bool
		var count int
		if err := rows.Scan(&reason, &live, &count); err != nil {
			return Stats{}, fmt.Errorf("failed to scan audit stats: %w", err)
		}

		stats.Total += count
		if live {
			stats.Live += count
		}
		stats.ByReason[liveness.Reason(reason)] += count
	}

	return stats, rows.Err()
}
