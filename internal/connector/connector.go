package connector

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/tabletalk/tabletalk/internal/model"
)

// ConnectionConfig holds database connection parameters.
type ConnectionConfig struct {
	Driver          string
	DSN             string
	SchemaName      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// ConfigFromStore converts the store section of the configuration.
func ConfigFromStore(sc model.StoreConfig) ConnectionConfig {
	return ConnectionConfig{
		Driver:          sc.Driver,
		DSN:             SanitizeDSN(sc.Driver, sc.DSN),
		SchemaName:      sc.Schema,
		MaxOpenConns:    sc.Pool.MaxOpenConns,
		MaxIdleConns:    sc.Pool.MaxIdleConns,
		ConnMaxLifetime: sc.Pool.ConnMaxLifetime,
		ConnMaxIdleTime: sc.Pool.ConnMaxIdleTime,
	}
}

// Connector is the store handle every driver implements. Introspection
// methods take the queryer to run on, so callers can pin them to a scoped
// connection for the duration of a request.
type Connector interface {
	// Connection management
	Connect(cfg ConnectionConfig) error
	Disconnect() error
	Ping(ctx context.Context) error
	DB() *sqlx.DB

	// Schema introspection
	TableNames(ctx context.Context, q sqlx.QueryerContext) ([]string, error)
	TableColumns(ctx context.Context, q sqlx.QueryerContext, table string) ([]model.Column, error)

	// Metadata
	DriverName() string
	QuoteIdentifier(name string) string
	ParameterPlaceholder(index int) string
}

// IntrospectCatalog builds a catalog from the live store. describe supplies
// the human readable description of each table and may be nil.
func IntrospectCatalog(ctx context.Context, c Connector, describe func(table string) string) (*model.Catalog, error) {
	names, err := c.TableNames(ctx, c.DB())
	if err != nil {
		return nil, fmt.Errorf("introspect catalog: %w", err)
	}

	cat := model.NewCatalog()
	for _, name := range names {
		cols, err := c.TableColumns(ctx, c.DB(), name)
		if err != nil {
			return nil, fmt.Errorf("introspect table %q: %w", name, err)
		}
		desc := ""
		if describe != nil {
			desc = describe(name)
		}
		cat.Tables[name] = model.TableSchema{Description: desc, Columns: cols}
	}
	return cat, nil
}

// BuildCreateTable returns a CREATE TABLE statement for the given columns in
// the dialect of c.
func BuildCreateTable(c Connector, table string, cols []model.Column) string {
	defs := make([]string, len(cols))
	for i, col := range cols {
		def := c.QuoteIdentifier(col.Name) + " " + col.Type
		if !col.Nullable {
			def += " NOT NULL"
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", c.QuoteIdentifier(table), strings.Join(defs, ", "))
}

// BuildInsert returns a parameterized single-row INSERT statement.
func BuildInsert(c Connector, table string, columns []string) string {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, name := range columns {
		quoted[i] = c.QuoteIdentifier(name)
		placeholders[i] = c.ParameterPlaceholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}

// SanitizeDSN ensures that URL-style DSNs (postgres://) have their userinfo
// (especially the password) properly percent-encoded. Raw passwords
// containing @, #, %, or other URL-special characters cause the Go URL
// parser to mis-split the authority component.
//
// MySQL DSNs are normalized to use the tcp() wrapper required by go-sql-driver.
// SQLite DSNs are file paths and are returned unchanged.
func SanitizeDSN(driver, dsn string) string {
	switch driver {
	case "postgres":
		return sanitizeURLDSN(dsn)
	case "mysql":
		return sanitizeMySQLDSN(dsn)
	default:
		return dsn
	}
}

// mysqlBareHostPort matches "user:pass@host:port/db" (no tcp() wrapper, no ()
// wrapper). We look for the last "@" followed by what looks like host:port/db.
var mysqlBareHostPort = regexp.MustCompile(`^(.+)@([^(@]+:\d+)(/.*)?$`)

// sanitizeMySQLDSN normalizes a MySQL DSN so that go-sql-driver/mysql can
// parse it correctly. The driver requires the format:
//
//	user:pass@tcp(host:port)/dbname
//
// Common mistakes from users:
//
//	user:pass@host:port/db          → missing tcp() wrapper
//	user:pass@(host:port)/db        → missing "tcp" before parens
func sanitizeMySQLDSN(dsn string) string {
	if cfg, err := mysqldriver.ParseDSN(dsn); err == nil && (cfg.Net == "tcp" || cfg.Net == "unix") {
		return cfg.FormatDSN()
	}

	if idx := strings.LastIndex(dsn, "@("); idx >= 0 {
		fixed := dsn[:idx] + "@tcp" + dsn[idx+1:]
		if cfg, err := mysqldriver.ParseDSN(fixed); err == nil {
			return cfg.FormatDSN()
		}
	}

	if m := mysqlBareHostPort.FindStringSubmatch(dsn); m != nil {
		fixed := m[1] + "@tcp(" + m[2] + ")" + m[3]
		if cfg, err := mysqldriver.ParseDSN(fixed); err == nil {
			return cfg.FormatDSN()
		}
	}

	// Nothing worked; let the connect call give a clear error.
	return dsn
}

// sanitizeURLDSN parses a DSN that begins with a scheme (e.g.
// postgres://user:p@ss#word@host/db) and re-encodes the password so the
// URL library can parse it unambiguously.
func sanitizeURLDSN(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	if schemeEnd < 0 {
		return dsn
	}

	scheme := dsn[:schemeEnd]
	rest := dsn[schemeEnd+3:]

	query := ""
	if qi := strings.IndexByte(rest, '?'); qi >= 0 {
		query = rest[qi:]
		rest = rest[:qi]
	}

	// Everything before the LAST '@' is userinfo.
	atIdx := strings.LastIndex(rest, "@")
	if atIdx < 0 {
		return dsn
	}

	userinfo := rest[:atIdx]
	hostpath := rest[atIdx+1:]

	user := userinfo
	pass := ""
	if ci := strings.IndexByte(userinfo, ':'); ci >= 0 {
		user = userinfo[:ci]
		pass = userinfo[ci+1:]
	}

	return scheme + "://" + url.PathEscape(user) + ":" + url.PathEscape(pass) + "@" + hostpath + query
}
