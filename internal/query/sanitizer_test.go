package query

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{"plain name", "accounts", "accounts", ""},
		{"name with space", "Transaction Value", "Transaction Value", ""},
		{"single quote doubled", "O'Brien", "O''Brien", ""},
		{"two quotes doubled", "a'b'c", "a''b''c", ""},
		{"semicolon", "users; DROP TABLE accounts", "", "Dangerous SQL detected: ;"},
		{"line comment", "x -- y", "", "Dangerous SQL detected: --"},
		{"block comment", "x /* y", "", "Dangerous SQL detected: /*"},
		{"block comment close", "x */ y", "", "Dangerous SQL detected: */"},
		{"xp prefix", "xp_cmdshell", "", "Dangerous SQL detected: xp_"},
		{"sp prefix", "sp_who", "", "Dangerous SQL detected: sp_"},
		{"exec before execute", "EXECUTE thing", "", "Dangerous SQL detected: exec"},
		{"drop mixed case", "DrOp", "", "Dangerous SQL detected: drop"},
		{"delete", "delete", "", "Dangerous SQL detected: delete"},
		{"update substring", "Last Update", "", "Dangerous SQL detected: update"},
		{"insert", "insert", "", "Dangerous SQL detected: insert"},
		{"alter", "alter", "", "Dangerous SQL detected: alter"},
		{"truncate", "truncate", "", "Dangerous SQL detected: truncate"},
		{"merge", "merge", "", "Dangerous SQL detected: merge"},
		{"grant", "grant", "", "Dangerous SQL detected: grant"},
		{"revoke", "revoke", "", "Dangerous SQL detected: revoke"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.input)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tt.input, got)
				}
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected *ValidationError, got %T", err)
				}
				if err.Error() != tt.wantErr {
					t.Errorf("error = %q, want %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckDenylistLeavesInputAlone(t *testing.T) {
	if err := CheckDenylist("Description = 'it''s'"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{"valid simple", "accounts", false, ""},
		{"valid underscore prefix", "_id", false, ""},
		{"valid with numbers", "ledger2024", false, ""},
		{"empty", "", true, "cannot be empty"},
		{"starts with number", "1col", true, "must match"},
		{"contains space", "col name", true, "must match"},
		{"SQL injection attempt", "1; DROP TABLE--", true, "must match"},
		{"reserved word SELECT", "SELECT", true, "reserved word"},
		{"reserved word drop", "drop", true, "reserved word"},
		{"too long", strings.Repeat("a", 129), true, "too long"},
		{"max length ok", strings.Repeat("a", 128), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got nil", tt.input)
				} else if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error for %q: %v", tt.input, err)
			}
		})
	}
}

func TestSanitizeStringValue(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		maxLen  int
		want    string
		wantErr bool
	}{
		{"normal string", "hello", 0, "hello", false},
		{"with null bytes", "hel\x00lo", 0, "hello", false},
		{"too long", "hello", 3, "", true},
		{"max length ok", "hello", 5, "hello", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeStringValue(tt.input, tt.maxLen)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
