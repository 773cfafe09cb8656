package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrSessionNotFound is returned when a session ID has no row.
var ErrSessionNotFound = errors.New("session not found")

// Store manages the PostgreSQL connection holding session logs.
// A Store wraps a single connection and must be used from one goroutine at a time.
type Store struct {
	conn *pgx.Conn
}

// Session is one row of the session listing.
type Session struct {
	ID        int64
	Source    string
	Backend   string
	StartedAt time.Time
	EndedAt   *time.Time
	Events    int
	Dominant  string
}

// Event is a dominant emotion observed on one frame.
type Event struct {
	FrameIndex int
	Emotion    string
	Score      float64
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the session tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			id BIGSERIAL PRIMARY KEY,
			source TEXT NOT NULL,
			source_id TEXT NOT NULL DEFAULT '',
			backend TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			ended_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS emotion_events (
			id BIGSERIAL PRIMARY KEY,
			session_id BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			frame_index INT NOT NULL,
			emotion TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS emotion_events_session_id_idx ON emotion_events (session_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// StartSession opens a new session and returns its ID. sourceID identifies a
// video file across runs and is empty for live capture.
func (s *Store) StartSession(ctx context.Context, source, sourceID, backend string) (int64, error) {
	var id int64
	err := s.conn.QueryRow(ctx, `
		INSERT INTO sessions (source, source_id, backend)
		VALUES ($1, $2, $3)
		RETURNING id
	`, source, sourceID, backend).Scan(&id)
	return id, err
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(ctx context.Context, id int64) error {
	tag, err := s.conn.Exec(ctx, "UPDATE sessions SET ended_at = NOW() WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
	}
	return nil
}

// LogEmotion records a single event.
func (s *Store) LogEmotion(ctx context.Context, sessionID int64, ev Event) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO emotion_events (session_id, frame_index, emotion, score)
		VALUES ($1, $2, $3, $4)
	`, sessionID, ev.FrameIndex, ev.Emotion, ev.Score)
	return err
}

// LogEmotions records events in one round trip.
func (s *Store) LogEmotions(ctx context.Context, sessionID int64, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO emotion_events (session_id, frame_index, emotion, score)
			VALUES ($1, $2, $3, $4)
		`, sessionID, ev.FrameIndex, ev.Emotion, ev.Score)
	}
	return s.conn.SendBatch(ctx, batch).Close()
}

// ListSessions returns every session, newest first, with its event count and
// most frequent emotion.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT s.id, s.source, s.backend, s.started_at, s.ended_at,
			COUNT(e.id),
			COALESCE((
				SELECT emotion FROM emotion_events
				WHERE session_id = s.id
				GROUP BY emotion
				ORDER BY COUNT(*) DESC, emotion ASC
				LIMIT 1
			), '')
		FROM sessions s
		LEFT JOIN emotion_events e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC, s.id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Source, &sess.Backend, &sess.StartedAt, &sess.EndedAt, &sess.Events, &sess.Dominant); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SessionTally counts events per emotion for one session.
func (s *Store) SessionTally(ctx context.Context, id int64) (map[string]int, error) {
	var exists bool
	if err := s.conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)", id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
	}

	rows, err := s.conn.Query(ctx, "SELECT emotion, COUNT(*) FROM emotion_events WHERE session_id = $1 GROUP BY emotion", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tally := make(map[string]int)
	for rows.Next() {
		var emotion string
		var n int
		if err := rows.Scan(&emotion, &n); err != nil {
			return nil, err
		}
		tally[emotion] = n
	}
	return tally, rows.Err()
}

// Reset drops all application tables to clear the session log.
// The schema is recreated the next time a Store is opened.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS emotion_events CASCADE;
		DROP TABLE IF EXISTS sessions CASCADE;
	`)
	return err
}
