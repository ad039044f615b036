package query

import "strings"

// clauseForbiddenWords would let a fragment escape the single-table SELECT it
// is spliced into. They are rejected wherever they appear unquoted.
var clauseForbiddenWords = map[string]bool{
	"SELECT": true, "UNION": true, "INTERSECT": true, "EXCEPT": true,
	"FROM": true, "JOIN": true, "LIMIT": true, "OFFSET": true,
	"PRAGMA": true, "ATTACH": true, "DETACH": true, "INTO": true,
	"CREATE": true, "VACUUM": true, "REINDEX": true, "ANALYZE": true,
	"RETURNING": true, "WITH": true, "VALUES": true,
}

// CheckShape verifies that a WHERE or ORDER BY fragment lexes cleanly, has
// balanced parentheses and contains no statement-level keywords. Quoted
// identifiers and string literals are opaque to the check, so it should run
// after Qualify has quoted the known column names.
func CheckShape(fragment string) error {
	tokens, err := tokenize(fragment)
	if err != nil {
		return err
	}

	depth := 0
	for _, t := range tokens {
		switch t.typ {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth < 0 {
				return validationErrorf("unbalanced ')' at position %d", t.pos)
			}
		case tokIdentifier:
			for _, part := range strings.Split(t.value, ".") {
				if clauseForbiddenWords[strings.ToUpper(part)] {
					return validationErrorf("%s is not allowed in a clause", strings.ToUpper(part))
				}
			}
		}
	}
	if depth != 0 {
		return validationErrorf("unbalanced parentheses in clause")
	}
	return nil
}
