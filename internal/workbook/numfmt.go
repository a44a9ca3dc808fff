package workbook

import "strings"

// isDateFormat reports whether a number format renders its value as a date or
// time. Built-in ids follow ECMA-376 18.8.30 plus the CJK date ids; custom
// codes are scanned for date tokens outside literals and brackets.
func isDateFormat(id int, code string) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	if code == "" {
		return false
	}
	// Only the first section matters for positive values.
	if i := strings.IndexByte(code, ';'); i >= 0 {
		code = code[:i]
	}
	inQuote := false
	inBracket := false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '\\' || c == '_' || c == '*':
			i++
		case c == '[':
			inBracket = true
		case c == ']':
			inBracket = false
		case inBracket:
		default:
			switch c {
			case 'd', 'D', 'm', 'M', 'y', 'Y', 'h', 'H', 's', 'S':
				return true
			}
		}
	}
	return false
}
