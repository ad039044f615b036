package catalog

import (
	"strings"

	"github.com/tabletalk/tabletalk/internal/model"
)

// Describe renders the catalog as the schema section of the system prompt.
// Tables appear in name order, columns in declaration order.
func Describe(cat *model.Catalog) string {
	var sb strings.Builder
	sb.WriteString("DATABASE SCHEMA INFORMATION:\n\n")
	for _, name := range cat.TableNames() {
		ts, _ := cat.Table(name)
		desc := ts.Description
		if desc == "" {
			desc = "No description"
		}
		sb.WriteString("TABLE: " + name + "\n")
		sb.WriteString("Description: " + desc + "\n")
		sb.WriteString("COLUMNS:\n")
		for _, col := range ts.Columns {
			sb.WriteString("  - " + col.Name + " (" + col.Type + ")\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
