package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session records one run of the drawing board.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
	Frames    int64
	Segments  int64
	Strokes   int64
	Clears    int64
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. StartedAt defaults to now.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, started_at, frames, segments, strokes, clears)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.StartedAt, sess.Frames, sess.Segments, sess.Strokes, sess.Clears,
	)
	return err
}

// Finish stores the final counters and the end time.
func (r *SessionRepository) Finish(sess *Session) error {
	now := time.Now()
	sess.EndedAt = &now

	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, frames = ?, segments = ?, strokes = ?, clears = ?
		 WHERE id = ?`,
		now, sess.Frames, sess.Segments, sess.Strokes, sess.Clears, sess.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, started_at, ended_at, frames, segments, strokes, clears
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.StartedAt, &ended, &sess.Frames, &sess.Segments, &sess.Strokes, &sess.Clears)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

// Recent returns the latest sessions, newest first.
func (r *SessionRepository) Recent(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(
		`SELECT id, started_at, ended_at, frames, segments, strokes, clears
		 FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		var ended sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &ended, &sess.Frames, &sess.Segments, &sess.Strokes, &sess.Clears); err != nil {
			return nil, err
		}
		if ended.Valid {
			t := ended.Time
			sess.EndedAt = &t
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}
