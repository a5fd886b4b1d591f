// Package sqlite is a durable core.SessionStore backed by SQLite through the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/roundtable/artifact"
	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/session"
)

// Fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Options configures a Store.
type Options struct {
	Logger logging.Logger
}

// Store persists sessions in two tables: discussion_sessions holds one row per
// session and session_artifacts holds appended analysis payloads.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

var _ core.SessionStore = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates the schema.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logging.OrNoOp(opts.Logger)}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Debug("Session database ready", "path", path)
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS discussion_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			topic TEXT NOT NULL,
			participants TEXT NOT NULL,
			messages TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			last_opened_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_discussion_sessions_topic ON discussion_sessions(topic);`,
		`CREATE TABLE IF NOT EXISTS session_artifacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_session_artifacts_session ON session_artifacts(session_id, kind);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

// Insert creates a row and returns its id.
func (s *Store) Insert(ctx context.Context, rec core.SessionRecord) (int64, error) {
	now := nowText()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO discussion_sessions (topic, participants, messages, model, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Topic, rawText(rec.Participants), rawText(rec.Transcript), rec.Model, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return res.LastInsertId()
}

// UpdateTranscript replaces the messages column.
func (s *Store) UpdateTranscript(ctx context.Context, id int64, transcript json.RawMessage) error {
	return s.exec(ctx, "update transcript",
		`UPDATE discussion_sessions SET messages = ?, updated_at = ? WHERE id = ?`,
		rawText(transcript), nowText(), id)
}

// UpdateParticipants replaces the participants column.
func (s *Store) UpdateParticipants(ctx context.Context, id int64, participants json.RawMessage) error {
	return s.exec(ctx, "update participants",
		`UPDATE discussion_sessions SET participants = ?, updated_at = ? WHERE id = ?`,
		rawText(participants), nowText(), id)
}

// TouchLastOpened stamps last_opened_at.
func (s *Store) TouchLastOpened(ctx context.Context, id int64) error {
	return s.exec(ctx, "touch session",
		`UPDATE discussion_sessions SET last_opened_at = ? WHERE id = ?`,
		nowText(), id)
}

// exec runs a single-row statement and maps "no row" to ErrSessionNotFound.
func (s *Store) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

const selectColumns = `SELECT id, topic, participants, messages, model, created_at, updated_at, last_opened_at FROM discussion_sessions`

// Get loads one row.
func (s *Store) Get(ctx context.Context, id int64) (*core.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}
	return rec, nil
}

// List returns every session, most recently updated first.
func (s *Store) List(ctx context.Context) ([]core.SessionRecord, error) {
	return s.query(ctx, selectColumns+` ORDER BY updated_at DESC, id DESC`)
}

// FindExisting returns the most recently updated session with the same topic
// and an equivalent participant payload.
func (s *Store) FindExisting(ctx context.Context, topic string, participants json.RawMessage) (*core.SessionRecord, error) {
	want, err := session.CanonicalParticipants(participants)
	if err != nil {
		return nil, err
	}
	recs, err := s.query(ctx, selectColumns+` WHERE topic = ? ORDER BY updated_at DESC, id DESC`, topic)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		got, err := session.CanonicalParticipants(recs[i].Participants)
		if err != nil {
			s.logger.Warn("Skipping session with malformed participants", "session_id", recs[i].ID, "error", err)
			continue
		}
		if string(got) == string(want) {
			return &recs[i], nil
		}
	}
	return nil, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]core.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := []core.SessionRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Delete removes a session and its artifacts.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_artifacts WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM discussion_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrSessionNotFound
	}
	return tx.Commit()
}

// AppendAnalysisArtifact stores payload for an existing session.
func (s *Store) AppendAnalysisArtifact(ctx context.Context, id int64, kind string, payload []byte) error {
	return s.exec(ctx, "append artifact",
		`INSERT INTO session_artifacts (session_id, kind, payload, created_at)
		 SELECT id, ?, ?, ? FROM discussion_sessions WHERE id = ?`,
		kind, string(payload), nowText(), id)
}

// Artifacts returns the session's artifacts of kind in append order.
func (s *Store) Artifacts(ctx context.Context, id int64, kind string) ([]artifact.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, kind, payload, created_at FROM session_artifacts
		 WHERE session_id = ? AND kind = ? ORDER BY id`, id, kind)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	out := []artifact.Artifact{}
	for rows.Next() {
		var (
			a       artifact.Artifact
			payload string
			created string
		)
		if err := rows.Scan(&a.Seq, &a.SessionID, &a.Kind, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.Data = []byte(payload)
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*core.SessionRecord, error) {
	var (
		rec                            core.SessionRecord
		participants, messages         string
		created, updated, lastOpenedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Topic, &participants, &messages, &rec.Model, &created, &updated, &lastOpenedAt); err != nil {
		return nil, err
	}
	rec.Participants = json.RawMessage(participants)
	rec.Transcript = json.RawMessage(messages)
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	rec.LastOpenedAt = parseTime(lastOpenedAt)
	return &rec, nil
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

func nowText() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
