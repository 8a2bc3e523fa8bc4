package analysis

import "unicode"

// literalToJSON rewrites a Python literal (as produced by repr) into JSON:
// single-quoted strings become double-quoted, True/False/None map to their
// JSON spellings, tuples become arrays and trailing commas are dropped.
func literalToJSON(s string) (string, bool) {
	in := []rune(s)
	out := make([]rune, 0, len(in)+8)

	for i := 0; i < len(in); i++ {
		c := in[i]
		switch {
		case c == '\'' || c == '"':
			end, quoted, ok := quote(in, i)
			if !ok {
				return "", false
			}
			out = append(out, quoted...)
			i = end
		case c == '(':
			out = append(out, '[')
		case c == ')' || c == ']' || c == '}':
			out = trimTrailingComma(out)
			if c == ')' {
				c = ']'
			}
			out = append(out, c)
		case unicode.IsLetter(c):
			j := i
			for j < len(in) && (unicode.IsLetter(in[j]) || unicode.IsDigit(in[j]) || in[j] == '_') {
				j++
			}
			switch string(in[i:j]) {
			case "True":
				out = append(out, []rune("true")...)
			case "False":
				out = append(out, []rune("false")...)
			case "None":
				out = append(out, []rune("null")...)
			default:
				return "", false
			}
			i = j - 1
		default:
			out = append(out, c)
		}
	}

	return string(out), true
}

// quote consumes the string literal starting at in[start] and returns the
// index of its closing quote with the JSON-encoded literal.
func quote(in []rune, start int) (int, []rune, bool) {
	q := in[start]
	out := []rune{'"'}
	for k := start + 1; k < len(in); k++ {
		r := in[k]
		switch {
		case r == '\\' && k+1 < len(in):
			next := in[k+1]
			if next == '\'' {
				out = append(out, '\'')
			} else {
				out = append(out, '\\', next)
			}
			k++
		case r == q:
			return k, append(out, '"'), true
		case r == '"':
			out = append(out, '\\', '"')
		case r == '\n':
			out = append(out, '\\', 'n')
		case r == '\t':
			out = append(out, '\\', 't')
		default:
			out = append(out, r)
		}
	}
	return 0, nil, false
}

func trimTrailingComma(out []rune) []rune {
	end := len(out)
	for end > 0 && unicode.IsSpace(out[end-1]) {
		end--
	}
	if end > 0 && out[end-1] == ',' {
		return out[:end-1]
	}
	return out
}
