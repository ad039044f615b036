package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tabletalk/tabletalk/internal/connector"
	"github.com/tabletalk/tabletalk/internal/model"
	"github.com/tabletalk/tabletalk/internal/query"
)

// ErrTableExists is returned when the import target already exists.
var ErrTableExists = errors.New("table already exists")

// Column affinities inferred from CSV data.
const (
	typeInteger = "INTEGER"
	typeReal    = "REAL"
	typeText    = "TEXT"
)

// CSVImporter loads a delimited file into a new table of the store. The
// header row names the columns; column types are inferred from the data.
type CSVImporter struct {
	store connector.Connector
	comma rune
}

// NewCSVImporter returns an importer writing to store. comma is the field
// delimiter; zero means ','.
func NewCSVImporter(store connector.Connector, comma rune) *CSVImporter {
	if comma == 0 {
		comma = ','
	}
	return &CSVImporter{store: store, comma: comma}
}

// Import creates table and inserts every record of r in one transaction. It
// returns the number of rows written.
func (im *CSVImporter) Import(ctx context.Context, r io.Reader, table string) (int, error) {
	if err := query.ValidateIdentifier(table); err != nil {
		return 0, fmt.Errorf("import target: %w", err)
	}

	existing, err := im.store.TableNames(ctx, im.store.DB())
	if err != nil {
		return 0, err
	}
	for _, name := range existing {
		if strings.EqualFold(name, table) {
			return 0, fmt.Errorf("%w: %s", ErrTableExists, table)
		}
	}

	cr := csv.NewReader(r)
	cr.Comma = im.comma
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("import: empty input")
		}
		return 0, fmt.Errorf("import: read header: %w", err)
	}
	names, err := headerNames(header)
	if err != nil {
		return 0, err
	}

	records, err := cr.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("import: read records: %w", err)
	}

	cols := inferColumns(names, records)
	values := make([][]any, len(records))
	for i, rec := range records {
		row, err := convertRecord(rec, cols)
		if err != nil {
			return 0, fmt.Errorf("import: record %d: %w", i+2, err)
		}
		values[i] = row
	}

	tx, err := im.store.DB().BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("import: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, connector.BuildCreateTable(im.store, table, cols)); err != nil {
		return 0, fmt.Errorf("import: create table: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, connector.BuildInsert(im.store, table, names))
	if err != nil {
		return 0, fmt.Errorf("import: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range values {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("import: insert record %d: %w", i+2, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import: commit: %w", err)
	}
	return len(values), nil
}

// headerNames cleans the header row: a UTF-8 byte order mark and surrounding
// blanks are removed, empty names are replaced and duplicates rejected.
func headerNames(header []string) ([]string, error) {
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(h)
		if seen[key] {
			return nil, fmt.Errorf("import: duplicate column %q", h)
		}
		seen[key] = true
		names[i] = h
	}
	return names, nil
}

// inferColumns picks the narrowest affinity that fits every non-empty value
// of a column. Imported columns are always nullable.
func inferColumns(names []string, records [][]string) []model.Column {
	cols := make([]model.Column, len(names))
	for i, name := range names {
		typ := typeInteger
		seen := false
		for _, rec := range records {
			if i >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[i])
			if v == "" {
				continue
			}
			seen = true
			typ = widen(typ, v)
			if typ == typeText {
				break
			}
		}
		if !seen {
			typ = typeText
		}
		cols[i] = model.Column{Name: name, Type: typ, Nullable: true}
	}
	return cols
}

func widen(current, v string) string {
	switch current {
	case typeInteger:
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			return typeInteger
		}
		fallthrough
	case typeReal:
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return typeReal
		}
	}
	return typeText
}

func convertRecord(rec []string, cols []model.Column) ([]any, error) {
	row := make([]any, len(cols))
	for i, col := range cols {
		if i >= len(rec) {
			continue
		}
		v := strings.TrimSpace(rec[i])
		if v == "" {
			continue
		}
		switch col.Type {
		case typeInteger:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, err
			}
			row[i] = n
		case typeReal:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, err
			}
			row[i] = f
		default:
			s, err := query.SanitizeStringValue(rec[i], 0)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			row[i] = s
		}
	}
	return row, nil
}
