package executor

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletalk/tabletalk/internal/connector"
	"github.com/tabletalk/tabletalk/internal/connector/sqlite"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/query"
)

// ---------------------------------------------------------------------------
// In-memory schema over a sqlmock pool
// ---------------------------------------------------------------------------

type mockStore struct {
	db     *sqlx.DB
	tables map[string][]model.Column
	listed int
}

func (m *mockStore) Connect(connector.ConnectionConfig) error { return nil }
func (m *mockStore) Disconnect() error                        { return m.db.Close() }
func (m *mockStore) Ping(context.Context) error               { return nil }
func (m *mockStore) DB() *sqlx.DB                             { return m.db }
func (m *mockStore) DriverName() string                       { return "sqlmock" }
func (m *mockStore) ParameterPlaceholder(int) string          { return "?" }
func (m *mockStore) QuoteIdentifier(name string) string       { return query.PostgresQuote(name) }

func (m *mockStore) TableNames(context.Context, sqlx.QueryerContext) ([]string, error) {
	m.listed++
	names := make([]string, 0, len(m.tables))
	for n := range m.tables {
		names = append(names, n)
	}
	return names, nil
}

func (m *mockStore) TableColumns(_ context.Context, _ sqlx.QueryerContext, table string) ([]model.Column, error) {
	return m.tables[table], nil
}

func newMockStore(t *testing.T) (*mockStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &mockStore{
		db: sqlx.NewDb(db, "sqlmock"),
		tables: map[string][]model.Column{
			"accounts": {
				{Name: "Account", Type: "TEXT"},
				{Name: "Transaction Value", Type: "REAL"},
				{Name: "Clearing Date", Type: "TEXT"},
			},
		},
	}, mock
}

func TestRunBuildsBoundedStatement(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT "Account", "Transaction Value" FROM "accounts" WHERE "Transaction Value" > 1000 ORDER BY "Clearing Date" DESC LIMIT 5`,
	)).WillReturnRows(sqlmock.NewRows([]string{"Account", "Transaction Value"}).
		AddRow("A-1", 1500.5).
		AddRow([]byte("A-2"), 2200.0))

	res, err := New(store, nil).Run(context.Background(), query.Request{
		Table:   "accounts",
		Columns: []string{"Account", "Transaction Value"},
		Where:   "Transaction Value > 1000",
		OrderBy: "Clearing Date DESC",
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	v, ok := res.Rows[1].Get("Account")
	require.True(t, ok)
	assert.Equal(t, "A-2", v, "byte slices are returned as strings")
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, store.db.Stats().InUse, "scoped connection released")
}

func TestRunUnknownTableNeverExecutes(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := New(store, nil).Run(context.Background(), query.Request{Table: "users"})
	var nf *query.NotFoundError
	require.True(t, errors.As(err, &nf), "expected *query.NotFoundError, got %v", err)
	assert.Equal(t, "Table 'users' does not exist in the database. Available tables: ['accounts']", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0, store.db.Stats().InUse)
}

func TestRunDenylistsNamesBeforeSchemaLookup(t *testing.T) {
	tests := []struct {
		name string
		req  query.Request
		want string
	}{
		{"table name", query.Request{Table: "users; DROP TABLE accounts"}, "Dangerous SQL detected: ;"},
		{"select column", query.Request{Table: "accounts", Columns: []string{"Account", "x--"}}, "Dangerous SQL detected: --"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			_, err := New(store, nil).Run(context.Background(), tt.req)
			var ve *query.ValidationError
			require.True(t, errors.As(err, &ve), "expected *query.ValidationError, got %v", err)
			assert.EqualError(t, err, tt.want)
			assert.Zero(t, store.listed, "schema must not be consulted")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRunRejectsUnknownColumns(t *testing.T) {
	tests := []struct {
		name string
		req  query.Request
		want string
	}{
		{
			"select list",
			query.Request{Table: "accounts", Columns: []string{"Balance"}},
			"Column 'Balance' not found in table 'accounts'",
		},
		{
			"where clause",
			query.Request{Table: "accounts", Where: "Transaction > 5"},
			"Did you mean one of these: ['Transaction Value']?",
		},
		{
			"order by",
			query.Request{Table: "accounts", OrderBy: "Date"},
			"Did you mean one of these: ['Clearing Date']?",
		},
		{
			"aggregate name as column",
			query.Request{Table: "accounts", Where: "Total > 1"},
			"Column 'Total' not found in table 'accounts'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			_, err := New(store, nil).Run(context.Background(), tt.req)
			var ve *query.ValidationError
			require.True(t, errors.As(err, &ve), "expected *query.ValidationError, got %v", err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRunDenylistBeforeExecution(t *testing.T) {
	store, mock := newMockStore(t)
	_, err := New(store, nil).Run(context.Background(), query.Request{
		Table: "accounts",
		Where: "Account = 'x'; DROP TABLE accounts",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Dangerous SQL detected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSurfacesDriverErrors(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("no such function: bogus"))

	_, err := New(store, nil).Run(context.Background(), query.Request{Table: "accounts"})
	assert.EqualError(t, err, "no such function: bogus")
	assert.Equal(t, 0, store.db.Stats().InUse)
}

// ---------------------------------------------------------------------------
// Against a real SQLite store
// ---------------------------------------------------------------------------

func TestExecuteAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	store := sqlite.New()
	require.NoError(t, store.Connect(connector.ConnectionConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "ledger.db"),
	}))
	t.Cleanup(func() { store.Disconnect() })

	_, err := store.DB().Exec(`CREATE TABLE accounts ("Account" TEXT, "Transaction Value" REAL)`)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		_, err := store.DB().Exec(`INSERT INTO accounts VALUES (?, ?)`, "A", 1000+i*100)
		require.NoError(t, err)
	}

	rows, err := New(store, nil).Execute(ctx, query.Request{
		Table: "accounts",
		Where: "Transaction Value > 1000",
	})
	require.NoError(t, err)
	assert.Len(t, rows, query.MaxRows)
	assert.Equal(t, []string{"Account", "Transaction Value"}, rows[0].Columns)

	rows, err = New(store, nil).Execute(ctx, query.Request{
		Table:   "accounts",
		Where:   "Transaction Value >= 1600",
		OrderBy: "Transaction Value DESC",
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	v, _ := rows[0].Get("Transaction Value")
	assert.EqualValues(t, 1700, v)
}
