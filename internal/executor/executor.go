// Package executor runs structured select requests against the store. Every
// request is checked against the live schema, built into a bounded SELECT
// and executed on a connection scoped to the call.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/tabletalk/tabletalk/internal/connector"
	"github.com/tabletalk/tabletalk/internal/query"
)

// Result is the outcome of a successful Run.
type Result struct {
	Statement string
	Rows      []query.Row
	Took      time.Duration
}

// Executor executes select requests. It is safe for concurrent use.
type Executor struct {
	store  connector.Connector
	logger *slog.Logger
}

// New returns an Executor bound to store.
func New(store connector.Connector, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, logger: logger}
}

// Execute runs req and returns at most query.MaxRows rows.
func (e *Executor) Execute(ctx context.Context, req query.Request) ([]query.Row, error) {
	res, err := e.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Run validates req against the live schema, builds the statement and runs
// it. Every supplied name and fragment passes the denylist before the schema
// is consulted. An unknown table yields *query.NotFoundError and unknown
// columns yield *query.ValidationError; in both cases no statement reaches
// the store.
func (e *Executor) Run(ctx context.Context, req query.Request) (*Result, error) {
	start := time.Now()

	inputs := append([]string{req.Table, req.Where, req.OrderBy}, req.Columns...)
	for _, in := range inputs {
		if err := query.CheckDenylist(in); err != nil {
			return nil, err
		}
	}

	conn, err := e.store.DB().Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	tables, err := e.store.TableNames(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	if !slices.Contains(tables, req.Table) {
		return nil, &query.NotFoundError{Table: req.Table, Available: tables}
	}

	cols, err := e.store.TableColumns(ctx, conn, req.Table)
	if err != nil {
		return nil, fmt.Errorf("describe table %q: %w", req.Table, err)
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	if err := query.CheckColumns(req.Columns, req.Table, names); err != nil {
		return nil, err
	}
	if err := query.ValidateClause(req.Where, req.Table, names); err != nil {
		return nil, err
	}
	if err := query.ValidateClause(req.OrderBy, req.Table, names); err != nil {
		return nil, err
	}

	stmt, err := query.Build(req, names, e.store.QuoteIdentifier)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryxContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]query.Row, 0, query.MaxRows)
	for rows.Next() && len(out) < query.MaxRows {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, query.Row{Columns: columns, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	took := time.Since(start)
	e.logger.Debug("select executed",
		"table", req.Table,
		"statement", stmt,
		"rows", len(out),
		"took", took,
	)
	return &Result{Statement: stmt, Rows: out, Took: took}, nil
}
