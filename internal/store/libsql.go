package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/listwizard/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/drafts.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for the event log.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// SchemaVersion returns the highest applied migration.
func (s *LibSQLStore) SchemaVersion(ctx context.Context) (int, error) {
	return schemaVersion(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Drafts ---

// SaveDraft inserts or replaces a draft. Concurrent saves of one draft are
// last-write-wins.
func (s *LibSQLStore) SaveDraft(ctx context.Context, d *Draft) error {
	if d.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "draft id is required")
	}
	doc := d.Document
	if doc == nil {
		doc = schema.NewDraftRecord(d.ID)
	}
	doc.ID = d.ID
	if doc.Version == 0 {
		doc.Version = schema.DraftVersion
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal draft document: %w", err)
	}
	status := d.Status
	if status == "" {
		status = schema.DraftStatusInProgress
	}
	now := time.Now().UTC()
	d.CreatedAt = timeOrNow(d.CreatedAt)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, status, last_step, version, document, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status=excluded.status, last_step=excluded.last_step,
		   version=excluded.version, document=excluded.document, updated_at=excluded.updated_at`,
		d.ID, string(status), nullStr(d.LastStep), doc.Version, string(raw), d.CreatedAt, now,
	)
	if err != nil {
		return storeErr("save draft", err)
	}
	d.Status = status
	d.Document = doc
	d.UpdatedAt = now
	return nil
}

func (s *LibSQLStore) GetDraft(ctx context.Context, id string) (*Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, last_step, document, created_at, updated_at, submitted_at
		 FROM drafts WHERE id = ?`, id)
	d, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("draft", id)
	}
	return d, err
}

func (s *LibSQLStore) ListDrafts(ctx context.Context, filter DraftFilter) ([]*Draft, error) {
	var where []string
	var args []any

	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Since != nil {
		where = append(where, "updated_at >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, status, last_step, document, created_at, updated_at, submitted_at FROM drafts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list drafts", err)
	}
	defer rows.Close()

	var out []*Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SubmitDraft stores the final document and marks the draft submitted.
func (s *LibSQLStore) SubmitDraft(ctx context.Context, id string, doc *schema.DraftRecord) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "submitted document is required")
	}
	doc.ID = id
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal draft document: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, status, last_step, version, document, created_at, updated_at, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status=excluded.status, last_step=excluded.last_step,
		   version=excluded.version, document=excluded.document, updated_at=excluded.updated_at,
		   submitted_at=excluded.submitted_at`,
		id, string(schema.DraftStatusSubmitted), nullStr(doc.LastStep), doc.Version, string(raw), now, now, now,
	)
	if err != nil {
		return storeErr("submit draft", err)
	}
	return nil
}

func (s *LibSQLStore) DeleteDraft(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete draft", err)
	}
	return checkRowsAffected(res, "draft", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*Draft, error) {
	d := &Draft{}
	var (
		status    string
		lastStep  sql.NullString
		document  string
		submitted sql.NullTime
	)
	if err := row.Scan(&d.ID, &status, &lastStep, &document, &d.CreatedAt, &d.UpdatedAt, &submitted); err != nil {
		return nil, err
	}
	d.Status = schema.DraftStatus(status)
	d.LastStep = lastStep.String
	if submitted.Valid {
		d.SubmittedAt = &submitted.Time
	}
	d.Document = &schema.DraftRecord{}
	if err := json.Unmarshal([]byte(document), d.Document); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "draft %q has a corrupt document", d.ID).WithCause(err)
	}
	if d.Document.Sections == nil {
		d.Document.Sections = make(map[string]schema.Section)
	}
	return d, nil
}

// --- Sessions ---

func (s *LibSQLStore) UpsertSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, draft_id, status, current_step, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status=excluded.status, current_step=excluded.current_step,
		   ended_at=excluded.ended_at`,
		sess.ID, sess.DraftID, string(sess.Status), nullStr(sess.CurrentStep),
		timeOrNow(sess.StartedAt), nullTime(sess.EndedAt),
	)
	if err != nil {
		return storeErr("upsert session", err)
	}
	return nil
}

func (s *LibSQLStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, draft_id, status, current_step, started_at, ended_at FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("session", id)
	}
	return sess, err
}

func (s *LibSQLStore) ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error) {
	var where []string
	var args []any
	if filter.DraftID != "" {
		where = append(where, "draft_id = ?")
		args = append(args, filter.DraftID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}

	query := `SELECT id, draft_id, status, current_step, started_at, ended_at FROM sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(row rowScanner) (*Session, error) {
	sess := &Session{}
	var (
		status  string
		current sql.NullString
		ended   sql.NullTime
	)
	if err := row.Scan(&sess.ID, &sess.DraftID, &status, &current, &sess.StartedAt, &ended); err != nil {
		return nil, err
	}
	sess.Status = schema.SessionStatus(status)
	sess.CurrentStep = current.String
	if ended.Valid {
		sess.EndedAt = &ended.Time
	}
	return sess, nil
}

// --- Events ---

func (s *LibSQLStore) AppendEvent(ctx context.Context, event *schema.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// insertEvent assigns the next per-session sequence and inserts the event.
func insertEvent(ctx context.Context, tx *sql.Tx, event *schema.Event) error {
	var seq int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE session_id = ?`, event.SessionID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq
	event.Timestamp = timeOrNow(event.Timestamp)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (session_id, draft_id, step_id, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.SessionID, nullStr(event.DraftID), nullStr(event.StepID), event.Type,
		nullRaw(event.Payload), event.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		event.ID = id
	}
	return nil
}

func (s *LibSQLStore) GetEvents(ctx context.Context, sessionID string, since int64) ([]*schema.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, draft_id, step_id, event_type, payload, timestamp, sequence
		 FROM events WHERE session_id = ? AND sequence > ? ORDER BY sequence ASC`,
		sessionID, since,
	)
	if err != nil {
		return nil, storeErr("get events", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *LibSQLStore) GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*schema.Event, error) {
	where := []string{"event_type = ?"}
	args := []any{eventType}

	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.DraftID != "" {
		where = append(where, "draft_id = ?")
		args = append(args, filter.DraftID)
	}
	if filter.StepID != "" {
		where = append(where, "step_id = ?")
		args = append(args, filter.StepID)
	}
	if filter.Since != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, session_id, draft_id, step_id, event_type, payload, timestamp, sequence FROM events WHERE ` +
		strings.Join(where, " AND ") + " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("get events by type", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*schema.Event, error) {
	var events []*schema.Event
	for rows.Next() {
		e := &schema.Event{}
		var draftID, stepID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &draftID, &stepID, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.DraftID = draftID.String
		e.StepID = stepID.String
		e.Payload = rawOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- helpers ---

func storeNotFound(resource, id string) *schema.WizardError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id).
		WithDetails(map[string]any{"resource": resource, "id": id})
}

func storeErr(op string, err error) error {
	return schema.NewErrorf(schema.ErrCodeStore, "%s: %s", op, err.Error()).WithCause(err)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

var _ Store = (*LibSQLStore)(nil)
