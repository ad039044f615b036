package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tabletalk/tabletalk/internal/model"
)

// tableInfoRow holds a row from PRAGMA table_info().
type tableInfoRow struct {
	CID     int     `db:"cid"`
	Name    string  `db:"name"`
	Type    string  `db:"type"`
	NotNull int     `db:"notnull"`
	Default *string `db:"dflt_value"`
	PK      int     `db:"pk"`
}

// Ping verifies the database connection is alive.
func (c *SQLiteConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// TableNames returns the user tables of the database in name order.
func (c *SQLiteConnector) TableNames(ctx context.Context, q sqlx.QueryerContext) ([]string, error) {
	const query = `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	var names []string
	if err := sqlx.SelectContext(ctx, q, &names, query); err != nil {
		return nil, fmt.Errorf("get table names: %w", err)
	}
	return names, nil
}

// TableColumns returns the columns of a table in declaration order.
func (c *SQLiteConnector) TableColumns(ctx context.Context, q sqlx.QueryerContext, table string) ([]model.Column, error) {
	pragma := fmt.Sprintf("PRAGMA table_info(%s)", c.QuoteIdentifier(table))
	var rows []tableInfoRow
	if err := sqlx.SelectContext(ctx, q, &rows, pragma); err != nil {
		return nil, fmt.Errorf("table_info for %q: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table %q not found", table)
	}

	cols := make([]model.Column, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, model.Column{
			Name:       r.Name,
			Type:       r.Type,
			Nullable:   r.NotNull == 0,
			Default:    r.Default,
			PrimaryKey: r.PK == 1,
		})
	}
	return cols, nil
}
