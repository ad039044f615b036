// Package query turns a structured select request coming from the model into
// a single bounded SELECT statement. It owns the identifier sanitizer, the
// clause qualifier, the column existence validator and the statement builder.
//
// None of these is a complete SQL parser. The denylist is a pre-filter; the
// lexer-based shape check and the column validator are what keep a clause
// inside a single-table, read-only SELECT.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// dangerousPatterns are rejected anywhere in model supplied text, compared
// against the lowercased input. Order matters: the first hit is reported.
var dangerousPatterns = []string{
	";", "--", "/*", "*/", "xp_", "sp_",
	"exec", "execute", "drop", "delete", "update", "insert",
	"alter", "truncate", "merge", "grant", "revoke",
}

// CheckDenylist fails with a ValidationError when text contains one of the
// dangerous patterns. It is a plain substring check, so a column name such as
// "Last Update" is rejected too.
func CheckDenylist(text string) error {
	lower := strings.ToLower(text)
	for _, p := range dangerousPatterns {
		if strings.Contains(lower, p) {
			return validationErrorf("Dangerous SQL detected: %s", p)
		}
	}
	return nil
}

// Sanitize runs the denylist and then doubles every single quote. Nothing
// else in the input changes.
func Sanitize(text string) (string, error) {
	if err := CheckDenylist(text); err != nil {
		return "", err
	}
	return strings.ReplaceAll(text, "'", "''"), nil
}

// identifierRegex validates plain SQL identifiers used for tables we create.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// sqlReservedWords cannot be used as names for imported tables.
var sqlReservedWords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true,
	"EXEC": true, "EXECUTE": true, "UNION": true, "INTO": true,
	"FROM": true, "WHERE": true, "TABLE": true, "DATABASE": true,
	"GRANT": true, "REVOKE": true, "INDEX": true, "VIEW": true,
	"PROCEDURE": true, "FUNCTION": true, "TRIGGER": true, "SCHEMA": true,
}

// ValidateIdentifier ensures a table name chosen by an operator (for example
// the import target) is a plain identifier. Column names coming from data
// files may contain spaces and are not checked here.
func ValidateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 128 {
		return fmt.Errorf("identifier too long (max 128 chars): %q", name)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	if sqlReservedWords[strings.ToUpper(name)] {
		return fmt.Errorf("identifier %q is a SQL reserved word", name)
	}
	return nil
}

// SanitizeStringValue removes null bytes and validates string length.
func SanitizeStringValue(val string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = 65535
	}
	val = strings.ReplaceAll(val, "\x00", "")
	if len(val) > maxLen {
		return "", fmt.Errorf("string value too long (max %d chars)", maxLen)
	}
	return val, nil
}
