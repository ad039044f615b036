package query

import (
	"regexp"
	"sort"
	"strings"
)

// clauseKeywords are SQL keywords and sort modifiers. They never name a
// column wherever they appear.
var clauseKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "order": true, "by": true,
	"group": true, "having": true, "distinct": true, "limit": true,
	"and": true, "or": true, "not": true, "in": true, "like": true,
	"between": true, "is": true, "null": true, "true": true, "false": true,
	"as": true, "on": true, "inner": true, "outer": true, "left": true,
	"right": true, "join": true, "union": true, "intersect": true, "except": true,
	"asc": true, "desc": true, "nulls": true, "first": true, "last": true,
	"collate": true, "nocase": true, "glob": true, "escape": true,
	"case": true, "when": true, "then": true, "else": true, "end": true, "cast": true,
}

// clauseFunctions are scalar and aggregate functions. A name from this set is
// only a function when a '(' follows it; otherwise it must be a column.
var clauseFunctions = map[string]bool{
	"avg": true, "count": true, "max": true, "min": true, "sum": true, "total": true,
	"abs": true, "round": true, "length": true, "upper": true, "lower": true,
	"trim": true, "ltrim": true, "rtrim": true, "substr": true, "instr": true,
	"replace": true, "coalesce": true, "ifnull": true, "nullif": true,
	"datetime": true, "date": true, "time": true, "strftime": true, "julianday": true,
}

// clauseTypes are type names, accepted only as the target of "AS" in a CAST.
var clauseTypes = map[string]bool{
	"timestamp": true, "integer": true, "text": true, "real": true, "numeric": true,
	"varchar": true, "int": true, "bool": true, "float": true, "double": true, "char": true,
	"date": true, "time": true, "datetime": true,
}

// candidateRegex finds identifier-shaped words. Words starting with a digit
// are matched so their tails are not mistaken for names, then discarded.
var candidateRegex = regexp.MustCompile(`[\p{L}_][\p{L}\p{N}_.]*|\p{N}[\p{L}\p{N}_.]*`)

// ValidateClause checks that every column referenced by a WHERE or ORDER BY
// fragment exists in the table. Literal text is ignored, multi-word column
// names are recognized as a whole, and a leading alias ("a.col") is dropped.
// Function names pass only when called and type names only after AS, so a
// bare "Date" or "Total" is checked like any other column.
// The first unknown name produces a ValidationError naming the valid columns.
func ValidateClause(fragment, table string, columns []string) error {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}

	masked, quoted, err := maskQuoted(fragment)
	if err != nil {
		return err
	}
	masked = maskMultiWordColumns(masked, columns)

	valid := make(map[string]bool, len(columns))
	for _, c := range columns {
		valid[strings.ToLower(c)] = true
	}

	for _, name := range quoted {
		if !valid[strings.ToLower(name)] {
			return unknownColumnError(name, table, columns)
		}
	}

	prevWord := ""
	for _, loc := range candidateRegex.FindAllStringIndex(masked, -1) {
		word := masked[loc[0]:loc[1]]
		before := prevWord
		prevWord = strings.ToLower(word)
		if isDigit(word[0]) {
			continue
		}
		name := word
		if _, rest, ok := strings.Cut(word, "."); ok {
			name = rest
		}
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if valid[key] {
			continue
		}
		if clauseKeywords[key] {
			continue
		}
		if clauseFunctions[key] && nextByte(masked, loc[1]) == '(' {
			continue
		}
		if clauseTypes[key] && before == "as" {
			continue
		}
		return unknownColumnError(name, table, columns)
	}
	return nil
}

// CheckColumns verifies that each requested select column exists in the
// table. "*" and blank entries are skipped.
func CheckColumns(requested []string, table string, columns []string) error {
	for _, r := range requested {
		r = strings.TrimSpace(r)
		if r == "" || r == "*" {
			continue
		}
		found := false
		for _, c := range columns {
			if strings.EqualFold(c, r) {
				found = true
				break
			}
		}
		if !found {
			return unknownColumnError(r, table, columns)
		}
	}
	return nil
}

// nextByte returns the first non-space byte of s at or after i, or 0.
func nextByte(s string, i int) byte {
	for ; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' && s[i] != '\n' && s[i] != '\r' {
			return s[i]
		}
	}
	return 0
}

func unknownColumnError(name, table string, columns []string) *ValidationError {
	lower := strings.ToLower(name)
	var similar []string
	for _, c := range columns {
		if strings.Contains(strings.ToLower(c), lower) {
			similar = append(similar, c)
		}
	}
	if len(similar) > 0 {
		return validationErrorf("Column '%s' not found in table '%s'. Did you mean one of these: %s? Valid columns are: %s",
			name, table, FormatList(similar), FormatList(columns))
	}
	return validationErrorf("Column '%s' not found in table '%s'. Valid columns are: %s",
		name, table, FormatList(columns))
}

// maskQuoted blanks out string literals and quoted identifiers. The contents
// of quoted identifiers are returned for validation, except for those used as
// a qualifier ("t"."col").
func maskQuoted(s string) (string, []string, error) {
	var sb strings.Builder
	var quoted []string
	i := 0
	for i < len(s) {
		ch := s[i]
		closer, isIdent := identifierCloser(ch)
		if ch != '\'' && !isIdent {
			sb.WriteByte(ch)
			i++
			continue
		}
		if !isIdent {
			closer = '\''
		}
		value, next, err := scanQuoted(s, i, closer)
		if err != nil {
			return "", nil, err
		}
		if isIdent && !(next < len(s) && s[next] == '.') {
			quoted = append(quoted, value)
		}
		sb.WriteByte(' ')
		i = next
	}
	return sb.String(), quoted, nil
}

// maskMultiWordColumns blanks out case-insensitive occurrences of column
// names that contain a space, longest first, so their words are not checked
// one by one.
func maskMultiWordColumns(s string, columns []string) string {
	var multi []string
	for _, c := range columns {
		if strings.Contains(c, " ") {
			multi = append(multi, c)
		}
	}
	if len(multi) == 0 {
		return s
	}
	sort.Slice(multi, func(i, j int) bool { return len(multi[i]) > len(multi[j]) })

	for _, name := range multi {
		var sb strings.Builder
		i := 0
		for i < len(s) {
			end := i + len(name)
			if end <= len(s) && strings.EqualFold(s[i:end], name) &&
				!isWordRune(runeBefore(s, i)) && !isWordRune(runeAfter(s, end)) {
				sb.WriteByte(' ')
				i = end
				continue
			}
			sb.WriteByte(s[i])
			i++
		}
		s = sb.String()
	}
	return s
}
