package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tabletalk/tabletalk/internal/model"
)

// columnRow holds the result of querying information_schema.columns.
type columnRow struct {
	ColumnName string  `db:"column_name"`
	DataType   string  `db:"data_type"`
	IsNullable string  `db:"is_nullable"`
	Default    *string `db:"column_default"`
	IsPK       bool    `db:"is_pk"`
}

// TableNames returns the base tables of the configured schema.
func (c *PostgresConnector) TableNames(ctx context.Context, q sqlx.QueryerContext) ([]string, error) {
	const query = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	var names []string
	if err := sqlx.SelectContext(ctx, q, &names, query, c.schemaName); err != nil {
		return nil, fmt.Errorf("get table names: %w", err)
	}
	return names, nil
}

// TableColumns returns the columns of a table in ordinal order.
func (c *PostgresConnector) TableColumns(ctx context.Context, q sqlx.QueryerContext, table string) ([]model.Column, error) {
	const query = `SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
					AND tc.table_schema = c.table_schema
					AND tc.table_name = c.table_name
					AND kcu.column_name = c.column_name
			) AS is_pk
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`

	var rows []columnRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, c.schemaName, table); err != nil {
		return nil, fmt.Errorf("columns for %q: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table %q not found", table)
	}

	cols := make([]model.Column, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, model.Column{
			Name:       r.ColumnName,
			Type:       r.DataType,
			Nullable:   r.IsNullable == "YES",
			Default:    r.Default,
			PrimaryKey: r.IsPK,
		})
	}
	return cols, nil
}
