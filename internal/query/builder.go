package query

import (
	"fmt"
	"strings"
)

// MaxRows caps every statement the builder emits. It is not configurable.
const MaxRows = 5

// Request is a structured select request as the model sends it in the
// arguments of a selectSQL call.
type Request struct {
	Table   string   `json:"TableName"`
	Columns []string `json:"Columns,omitempty"`
	Where   string   `json:"WhereClause,omitempty"`
	OrderBy string   `json:"OrderBy,omitempty"`
}

// Build assembles the bounded SELECT for req. columns are all live column
// names of the table and drive the qualification of the clauses; quote
// renders identifiers in the dialect of the store.
//
// The result has the form
//
//	SELECT <cols> FROM <table> [WHERE <where>] [ORDER BY <order>] LIMIT 5
//
// with exactly one LIMIT and no trailing semicolon.
func Build(req Request, columns []string, quote QuoteFunc) (string, error) {
	if quote == nil {
		quote = PostgresQuote
	}

	table, err := Sanitize(strings.TrimSpace(req.Table))
	if err != nil {
		return "", err
	}
	if table == "" {
		return "", validationErrorf("TableName is required")
	}

	cols, err := selectList(req.Columns, quote)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(quote(table))

	if where, err := qualifyClause(req.Where, columns, quote); err != nil {
		return "", fmt.Errorf("WhereClause: %w", err)
	} else if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	if order, err := qualifyClause(req.OrderBy, columns, quote); err != nil {
		return "", fmt.Errorf("OrderBy: %w", err)
	} else if order != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(order)
	}

	fmt.Fprintf(&sb, " LIMIT %d", MaxRows)
	return sb.String(), nil
}

// selectList sanitizes and quotes the requested columns. An empty list or a
// "*" entry selects every column.
func selectList(columns []string, quote QuoteFunc) (string, error) {
	quoted := make([]string, 0, len(columns))
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if c == "*" {
			quoted = append(quoted, "*")
			continue
		}
		s, err := Sanitize(c)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, quote(s))
	}
	if len(quoted) == 0 {
		return "*", nil
	}
	return strings.Join(quoted, ", "), nil
}

// qualifyClause runs the denylist over a clause fragment, quotes the known
// column names and checks the statement shape of the result. Fragments are
// not quote-doubled: their single quotes delimit literals.
func qualifyClause(fragment string, columns []string, quote QuoteFunc) (string, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return "", nil
	}
	if err := CheckDenylist(fragment); err != nil {
		return "", err
	}
	qualified := Qualify(fragment, columns, quote)
	if err := CheckShape(qualified); err != nil {
		return "", err
	}
	return qualified, nil
}

// PostgresQuote returns an ANSI double-quoted identifier. SQLite and
// PostgreSQL both use this form.
func PostgresQuote(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

// MySQLQuote returns a MySQL-style backtick-quoted identifier.
func MySQLQuote(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}
