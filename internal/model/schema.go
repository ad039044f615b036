package model

import (
	"encoding/json"
	"sort"
)

// DefaultCatalogDescription is the description carried by an empty catalog.
const DefaultCatalogDescription = "Database schema information"

// Catalog describes the tables the assistant may query. It is derived from
// the live store when the store is populated and persisted as a JSON side
// file; readers treat it as immutable.
//
// On disk a populated catalog is a flat object keyed by table name:
//
//	{"accounts": {"description": "...", "columns": [...]}}
//
// An empty catalog is written as {"description": "...", "tables": {}}.
type Catalog struct {
	Description string
	Tables      map[string]TableSchema
}

// TableSchema describes a single table.
type TableSchema struct {
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
}

// Column describes a single column within a table.
type Column struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default"`
	PrimaryKey bool    `json:"primary_key"`
}

// NewCatalog returns an empty catalog with the default description.
func NewCatalog() *Catalog {
	return &Catalog{
		Description: DefaultCatalogDescription,
		Tables:      map[string]TableSchema{},
	}
}

// Empty reports whether the catalog knows no tables.
func (c *Catalog) Empty() bool {
	return c == nil || len(c.Tables) == 0
}

// TableNames returns the table names in sorted order.
func (c *Catalog) TableNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns the schema of the named table.
func (c *Catalog) Table(name string) (TableSchema, bool) {
	if c == nil {
		return TableSchema{}, false
	}
	t, ok := c.Tables[name]
	return t, ok
}

// ColumnNames returns the column names of a table in declaration order.
func (t TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

type emptyCatalogJSON struct {
	Description string                 `json:"description"`
	Tables      map[string]TableSchema `json:"tables"`
}

// MarshalJSON writes the side-file representation of the catalog.
func (c Catalog) MarshalJSON() ([]byte, error) {
	if len(c.Tables) == 0 {
		desc := c.Description
		if desc == "" {
			desc = DefaultCatalogDescription
		}
		return json.Marshal(emptyCatalogJSON{Description: desc, Tables: map[string]TableSchema{}})
	}
	return json.Marshal(c.Tables)
}

// UnmarshalJSON accepts both the flat and the wrapped representation.
// Entries that are not table objects are ignored.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Description = DefaultCatalogDescription
	c.Tables = map[string]TableSchema{}

	if wrapped, ok := raw["tables"]; ok && isWrapped(raw) {
		var desc string
		if d, ok := raw["description"]; ok {
			if err := json.Unmarshal(d, &desc); err == nil && desc != "" {
				c.Description = desc
			}
		}
		var tables map[string]json.RawMessage
		if err := json.Unmarshal(wrapped, &tables); err != nil {
			return err
		}
		raw = tables
	}

	for name, msg := range raw {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(msg, &probe); err != nil {
			continue
		}
		if _, ok := probe["columns"]; !ok {
			continue
		}
		var t TableSchema
		if err := json.Unmarshal(msg, &t); err != nil {
			continue
		}
		c.Tables[name] = t
	}
	return nil
}

// isWrapped reports whether a decoded object uses the
// {"description", "tables"} envelope rather than the flat table map.
func isWrapped(raw map[string]json.RawMessage) bool {
	for key := range raw {
		if key != "description" && key != "tables" {
			return false
		}
	}
	return true
}
