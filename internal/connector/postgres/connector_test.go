package postgres

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	c := &PostgresConnector{}
	tests := []struct {
		input string
		want  string
	}{
		{"accounts", `"accounts"`},
		{"Clearing Date", `"Clearing Date"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		if got := c.QuoteIdentifier(tt.input); got != tt.want {
			t.Errorf("QuoteIdentifier(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParameterPlaceholder(t *testing.T) {
	c := &PostgresConnector{}
	if got := c.ParameterPlaceholder(2); got != "$2" {
		t.Errorf("got %s, want $2", got)
	}
}

func TestDefaults(t *testing.T) {
	c := New().(*PostgresConnector)
	if c.schemaName != "public" {
		t.Errorf("schemaName = %q, want public", c.schemaName)
	}
	if c.DriverName() != "postgres" {
		t.Errorf("DriverName() = %q", c.DriverName())
	}
}
