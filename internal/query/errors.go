package query

import (
	"fmt"
	"strings"
)

// ValidationError reports a request the model can fix on its own: a
// dangerous pattern, a malformed clause or an unknown column. The message is
// replayed to the model verbatim, so it must stay human readable.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a table that is absent from the live store.
type NotFoundError struct {
	Table     string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Table '%s' does not exist in the database. Available tables: %s",
		e.Table, FormatList(e.Available))
}

// FormatList renders names as ['a', 'b'], the form the model has been
// prompted with for column and table listings.
func FormatList(names []string) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, n := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('\'')
		sb.WriteString(n)
		sb.WriteByte('\'')
	}
	sb.WriteByte(']')
	return sb.String()
}
