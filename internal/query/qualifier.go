package query

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// QuoteFunc renders a column or table name as a quoted identifier.
type QuoteFunc func(name string) string

// Qualify rewrites every occurrence of a known column name in fragment as a
// quoted identifier. Names are tried longest first, and the fragment is
// scanned once from left to right, so a shorter name never matches inside a
// longer one that has already been rewritten. String literals and already
// quoted identifiers are copied through untouched.
//
// Names containing a space match when no word character touches either end;
// other names need word boundaries on both ends. Matching ignores case and
// the catalog spelling is written out. A match followed by '(' is a function
// call and is left alone.
func Qualify(fragment string, columns []string, quote QuoteFunc) string {
	if fragment == "" || len(columns) == 0 {
		return fragment
	}

	names := make([]string, 0, len(columns))
	for _, c := range columns {
		if c != "" {
			names = append(names, c)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	var sb strings.Builder
	sb.Grow(len(fragment) + 16)

	i := 0
	n := len(fragment)
scan:
	for i < n {
		ch := fragment[i]

		if ch == '\'' {
			end := skipQuoted(fragment, i, '\'')
			sb.WriteString(fragment[i:end])
			i = end
			continue
		}
		if closer, ok := identifierCloser(ch); ok {
			end := skipQuoted(fragment, i, closer)
			sb.WriteString(fragment[i:end])
			i = end
			continue
		}

		for _, name := range names {
			end := i + len(name)
			if end > n || !strings.EqualFold(fragment[i:end], name) {
				continue
			}
			if !nameBoundaryOK(fragment, i, end, name) || nextByte(fragment, end) == '(' {
				continue
			}
			sb.WriteString(quote(name))
			i += len(name)
			continue scan
		}

		_, size := utf8.DecodeRuneInString(fragment[i:])
		sb.WriteString(fragment[i : i+size])
		i += size
	}
	return sb.String()
}

// skipQuoted returns the offset just past the quoted run that opens at start.
// An unterminated run extends to the end of s.
func skipQuoted(s string, start int, closer byte) int {
	i := start + 1
	for i < len(s) {
		if s[i] == closer {
			if i+1 < len(s) && s[i+1] == closer {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}

// nameBoundaryOK applies the match rule for a candidate occupying s[start:end].
func nameBoundaryOK(s string, start, end int, name string) bool {
	before, after := runeBefore(s, start), runeAfter(s, end)
	if strings.Contains(name, " ") {
		return !isWordRune(before) && !isWordRune(after)
	}
	first, _ := utf8.DecodeRuneInString(name)
	last, _ := utf8.DecodeLastRuneInString(name)
	return isWordRune(before) != isWordRune(first) && isWordRune(last) != isWordRune(after)
}

// runeBefore returns the rune ending at offset i, or -1 at the start.
func runeBefore(s string, i int) rune {
	if i <= 0 {
		return -1
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return r
}

// runeAfter returns the rune starting at offset i, or -1 at the end.
func runeAfter(s string, i int) rune {
	if i >= len(s) {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return r
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
