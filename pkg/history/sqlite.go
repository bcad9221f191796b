package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
)

// SQLiteStore implements Store on a local SQLite database. It is the default
// backend and the one the tests run against (using ":memory:").
type SQLiteStore struct {
	db  *sql.DB
	log utils.ExtendedLogger
}

// NewSQLiteStore opens (or creates) the database at path and applies any
// pending migrations.
func NewSQLiteStore(path string, log utils.ExtendedLogger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create history directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// The foreign_keys pragma is connection scoped, and ":memory:" opens a
	// separate database per connection. A single connection keeps both sane.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	if err := runMigrations(db, log); err != nil {
		db.Close()
		return nil, err
	}

	log.Debugf("history: sqlite store ready at %s", path)
	return &SQLiteStore{db: db, log: log}, nil
}

func (s *SQLiteStore) CreateThread(ctx context.Context, req *CreateThreadRequest) (*Thread, error) {
	thread := &Thread{
		ID:        req.ID,
		Title:     req.Title,
		AgentName: req.AgentName,
		Variant:   req.Variant,
		CreatedAt: time.Now().UTC(),
	}
	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	thread.UpdatedAt = thread.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, title, agent_name, variant, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, thread.ID, thread.Title, thread.AgentName, thread.Variant, thread.CreatedAt, thread.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	s.log.Debugf("history: created thread %s (%s)", thread.ID, thread.Title)
	return thread, nil
}

const threadColumns = `
	t.id, t.title, t.agent_name, t.variant, t.created_at, t.updated_at,
	(SELECT COUNT(*) FROM messages m WHERE m.thread_id = t.id)
`

func (s *SQLiteStore) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+threadColumns+`
		FROM threads t WHERE t.id = ?
	`, threadID)
	return scanThread(row)
}

func (s *SQLiteStore) FindThreadByTitle(ctx context.Context, title string) (*Thread, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+threadColumns+`
		FROM threads t WHERE t.title = ?
		ORDER BY t.updated_at DESC LIMIT 1
	`, title)
	return scanThread(row)
}

func (s *SQLiteStore) ListThreads(ctx context.Context, limit, offset int) ([]*Thread, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+threadColumns+`
		FROM threads t
		ORDER BY t.updated_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	threads := []*Thread{}
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}

func (s *SQLiteStore) TouchThread(ctx context.Context, threadID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE threads SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), threadID)
	if err != nil {
		return fmt.Errorf("touch thread: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, req *AppendMessageRequest) (*Message, error) {
	if !ValidRole(req.Role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, req.Role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM threads WHERE id = ?`, req.ThreadID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check thread: %w", err)
	}

	msg := &Message{
		ID:        uuid.NewString(),
		ThreadID:  req.ThreadID,
		Role:      req.Role,
		Content:   req.Content,
		CreatedAt: time.Now().UTC(),
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE thread_id = ?`,
		req.ThreadID).Scan(&msg.Seq)
	if err != nil {
		return nil, fmt.Errorf("next message seq: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, seq, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ThreadID, msg.Seq, msg.Role, msg.Content, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET updated_at = ? WHERE id = ?`,
		msg.CreatedAt, req.ThreadID); err != nil {
		return nil, fmt.Errorf("touch thread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit message: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, threadID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, seq, role, content, created_at
		FROM messages WHERE thread_id = ?
		ORDER BY seq ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.Seq, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) StoreRunEvent(ctx context.Context, event *RunEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_events (id, thread_id, session_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.ID, event.ThreadID, event.SessionID, event.Type, event.Payload, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("store run event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRunEvents(ctx context.Context, threadID string, limit int) ([]*RunEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, session_id, event_type, payload, created_at
		FROM run_events WHERE thread_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list run events: %w", err)
	}
	defer rows.Close()

	events := []*RunEvent{}
	for rows.Next() {
		var ev RunEvent
		if err := rows.Scan(&ev.ID, &ev.ThreadID, &ev.SessionID, &ev.Type, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanThread(row scanner) (*Thread, error) {
	var t Thread
	err := row.Scan(&t.ID, &t.Title, &t.AgentName, &t.Variant, &t.CreatedAt, &t.UpdatedAt, &t.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan thread: %w", err)
	}
	return &t, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrThreadNotFound
	}
	return nil
}
