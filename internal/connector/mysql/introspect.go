package mysql

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tabletalk/tabletalk/internal/model"
)

// columnRow holds the result of querying INFORMATION_SCHEMA.COLUMNS.
type columnRow struct {
	ColumnName string  `db:"COLUMN_NAME"`
	ColumnType string  `db:"COLUMN_TYPE"`
	IsNullable string  `db:"IS_NULLABLE"`
	Default    *string `db:"COLUMN_DEFAULT"`
	ColumnKey  string  `db:"COLUMN_KEY"`
}

// TableNames returns the base tables of the current database.
func (c *MySQLConnector) TableNames(ctx context.Context, q sqlx.QueryerContext) ([]string, error) {
	const query = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	var names []string
	if err := sqlx.SelectContext(ctx, q, &names, query, c.schemaName); err != nil {
		return nil, fmt.Errorf("get table names: %w", err)
	}
	return names, nil
}

// TableColumns returns the columns of a table in ordinal order.
func (c *MySQLConnector) TableColumns(ctx context.Context, q sqlx.QueryerContext, table string) ([]model.Column, error) {
	const query = `SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, COLUMN_KEY
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

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
			Type:       r.ColumnType,
			Nullable:   r.IsNullable == "YES",
			Default:    r.Default,
			PrimaryKey: r.ColumnKey == "PRI",
		})
	}
	return cols, nil
}
