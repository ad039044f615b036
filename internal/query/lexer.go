package query

import (
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

type tokenType int

const (
	tokIdentifier tokenType = iota
	tokQuotedIdentifier
	tokNumber
	tokString
	tokOperator // =, !=, <>, >, >=, <, <=, ||, + - * / %
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	typ   tokenType
	value string // Literal and quoted identifier values are unescaped.
	pos   int    // Byte offset in the input for error messages.
}

// ---------------------------------------------------------------------------
// Tokenizer
// ---------------------------------------------------------------------------

// tokenize splits a WHERE or ORDER BY fragment into tokens. It understands
// single-quoted literals with '' escapes and identifiers quoted with "",
// backticks or brackets, which is enough to tell literal text apart from
// structure.
func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	n := len(input)

	for i < n {
		if unicode.IsSpace(rune(input[i])) {
			i++
			continue
		}

		ch := input[i]

		switch ch {
		case '(':
			tokens = append(tokens, token{typ: tokLParen, value: "(", pos: i})
			i++
			continue
		case ')':
			tokens = append(tokens, token{typ: tokRParen, value: ")", pos: i})
			i++
			continue
		case ',':
			tokens = append(tokens, token{typ: tokComma, value: ",", pos: i})
			i++
			continue
		}

		if i+1 < n {
			two := input[i : i+2]
			switch two {
			case "!=", "<>", ">=", "<=", "||", "==":
				tokens = append(tokens, token{typ: tokOperator, value: two, pos: i})
				i += 2
				continue
			}
		}

		switch ch {
		case '=', '>', '<', '+', '-', '*', '/', '%':
			tokens = append(tokens, token{typ: tokOperator, value: string(ch), pos: i})
			i++
			continue
		}

		if ch == '\'' {
			value, next, err := scanQuoted(input, i, '\'')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokString, value: value, pos: i})
			i = next
			continue
		}

		if closer, ok := identifierCloser(ch); ok {
			value, next, err := scanQuoted(input, i, closer)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokQuotedIdentifier, value: value, pos: i})
			i = next
			continue
		}

		// Integers, decimals and exponents. A leading minus is lexed as an
		// operator.
		if isDigit(ch) || (ch == '.' && i+1 < n && isDigit(input[i+1])) {
			start := i
			for i < n && isDigit(input[i]) {
				i++
			}
			if i < n && input[i] == '.' {
				i++
				for i < n && isDigit(input[i]) {
					i++
				}
			}
			if i < n && (input[i] == 'e' || input[i] == 'E') {
				j := i + 1
				if j < n && (input[j] == '+' || input[j] == '-') {
					j++
				}
				if j < n && isDigit(input[j]) {
					i = j
					for i < n && isDigit(input[i]) {
						i++
					}
				}
			}
			tokens = append(tokens, token{typ: tokNumber, value: input[start:i], pos: start})
			continue
		}

		if isIdentStart(ch) {
			start := i
			for i < n && (isIdentStart(input[i]) || isDigit(input[i]) || input[i] == '.') {
				i++
			}
			tokens = append(tokens, token{typ: tokIdentifier, value: input[start:i], pos: start})
			continue
		}

		return nil, validationErrorf("unexpected character %q at position %d", string(ch), i)
	}

	return tokens, nil
}

// scanQuoted reads a quoted run starting at input[start] and returns its
// unescaped content and the offset just past the closing quote. A doubled
// closing quote is an escape.
func scanQuoted(input string, start int, closer byte) (string, int, error) {
	var sb strings.Builder
	n := len(input)
	i := start + 1
	for i < n {
		if input[i] == closer {
			if i+1 < n && input[i+1] == closer {
				sb.WriteByte(closer)
				i += 2
				continue
			}
			return sb.String(), i + 1, nil
		}
		sb.WriteByte(input[i])
		i++
	}
	if closer == '\'' {
		return "", 0, validationErrorf("unterminated string literal starting at position %d", start)
	}
	return "", 0, validationErrorf("unterminated quoted identifier starting at position %d", start)
}

// identifierCloser returns the closing delimiter for a quoted identifier
// opener.
func identifierCloser(ch byte) (byte, bool) {
	switch ch {
	case '"':
		return '"', true
	case '`':
		return '`', true
	case '[':
		return ']', true
	}
	return 0, false
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

// isIdentStart accepts ASCII letters, underscore and any non-ASCII byte so
// that UTF-8 names lex as a single identifier.
func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}
