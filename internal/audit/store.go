// Package audit persists a record of every tool call the model makes.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/tools"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// MaxListLimit is the largest page List returns.
const MaxListLimit = 500

// Store is the SQLite-backed audit log.
type Store struct {
	db *sqlx.DB
}

// NewStore opens the audit database in dataDir. Pass an empty string for an
// in-memory store.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "audit.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// toolCallRow maps 1:1 to the tool_calls table columns.
type toolCallRow struct {
	ID         string    `db:"id"`
	RunID      string    `db:"run_id"`
	CallID     string    `db:"call_id"`
	Tool       string    `db:"tool"`
	Arguments  string    `db:"arguments"`
	Status     string    `db:"status"`
	Error      string    `db:"error"`
	Statement  string    `db:"statement"`
	RowCount   int       `db:"row_count"`
	DurationMs int64     `db:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r toolCallRow) toModel() model.ToolCallRecord {
	return model.ToolCallRecord{
		ID:         r.ID,
		RunID:      r.RunID,
		CallID:     r.CallID,
		Tool:       r.Tool,
		Arguments:  r.Arguments,
		Status:     r.Status,
		Error:      r.Error,
		Statement:  r.Statement,
		Rows:       r.RowCount,
		DurationMs: r.DurationMs,
		CreatedAt:  r.CreatedAt,
	}
}

// Record inserts rec. ID and CreatedAt are filled in when empty.
func (s *Store) Record(ctx context.Context, rec *model.ToolCallRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.Must(uuid.NewV7()).String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	row := toolCallRow{
		ID:         rec.ID,
		RunID:      rec.RunID,
		CallID:     rec.CallID,
		Tool:       rec.Tool,
		Arguments:  rec.Arguments,
		Status:     rec.Status,
		Error:      rec.Error,
		Statement:  rec.Statement,
		RowCount:   rec.Rows,
		DurationMs: rec.DurationMs,
		CreatedAt:  rec.CreatedAt,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO tool_calls (id, run_id, call_id, tool, arguments, status, error,
			statement, row_count, duration_ms, created_at)
		VALUES (:id, :run_id, :call_id, :tool, :arguments, :status, :error,
			:statement, :row_count, :duration_ms, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("record tool call: %w", err)
	}
	return nil
}

// RecordToolCall stores a dispatched call. It lets the store serve as the
// recorder of a conversation loop.
func (s *Store) RecordToolCall(ctx context.Context, runID string, out tools.Outcome) error {
	rec := &model.ToolCallRecord{
		RunID:      runID,
		CallID:     out.Call.ID,
		Tool:       out.Call.Function.Name,
		Arguments:  out.Call.Function.Arguments,
		Status:     out.Status,
		Statement:  out.Statement,
		Rows:       out.Rows,
		DurationMs: out.Duration.Milliseconds(),
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	return s.Record(ctx, rec)
}

// Get returns a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*model.ToolCallRecord, error) {
	var row toolCallRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM tool_calls WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get tool call: %w", err)
	}
	rec := row.toModel()
	return &rec, nil
}

// ListOptions filters List.
type ListOptions struct {
	Limit  int
	RunID  string
	Status string
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]model.ToolCallRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var (
		where []string
		args  []any
	)
	if opts.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, opts.RunID)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, opts.Status)
	}

	q := "SELECT * FROM tool_calls"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var rows []toolCallRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("list tool calls: %w", err)
	}

	records := make([]model.ToolCallRecord, len(rows))
	for i, r := range rows {
		records[i] = r.toModel()
	}
	return records, nil
}

// Ping checks that the audit database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
