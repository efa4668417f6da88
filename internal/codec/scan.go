package codec

import (
	"bytes"
)

// MaxSafeInteger is the largest integer a float64 represents exactly (2^53-1).
const MaxSafeInteger = 1<<53 - 1

const maxSafeDigits = "9007199254740991"

// RiskFunc reports whether a bare JSON integer literal would lose precision
// if decoded as a float64. The literal may carry a leading '-'.
type RiskFunc func(literal []byte) bool

// ExceedsSafeInteger compares the literal's magnitude against MaxSafeInteger
// exactly.
func ExceedsSafeInteger(literal []byte) bool {
	digits := bytes.TrimPrefix(literal, []byte("-"))
	digits = bytes.TrimLeft(digits, "0")
	switch {
	case len(digits) > len(maxSafeDigits):
		return true
	case len(digits) < len(maxSafeDigits):
		return false
	default:
		return string(digits) > maxSafeDigits
	}
}

// LengthHeuristic flags any literal of 15 or more digits. It mirrors the
// rule older console builds used and over-protects values between 10^14 and
// 2^53-1.
func LengthHeuristic(literal []byte) bool {
	return len(bytes.TrimPrefix(literal, []byte("-"))) >= 15
}

// Protect quotes every bare integer literal outside string literals for
// which atRisk returns true. Numbers with a fraction or exponent are left
// alone. The input is not modified.
func Protect(data []byte, atRisk RiskFunc) []byte {
	if atRisk == nil {
		atRisk = ExceedsSafeInteger
	}

	var out bytes.Buffer
	out.Grow(len(data) + 16)

	for i := 0; i < len(data); {
		b := data[i]

		if b == '"' {
			end := stringEnd(data, i)
			if end < 0 {
				out.Write(data[i:])
				break
			}
			out.Write(data[i : end+1])
			i = end + 1
			continue
		}

		if b == '-' || isDigit(b) {
			end, integer := numberEnd(data, i)
			lit := data[i:end]
			if integer && atRisk(lit) {
				out.WriteByte('"')
				out.Write(lit)
				out.WriteByte('"')
			} else {
				out.Write(lit)
			}
			i = end
			continue
		}

		out.WriteByte(b)
		i++
	}

	return out.Bytes()
}

// UnquoteIDs rewrites "key":"123" into "key":123 for keys in fields. Only
// object values are touched; a matching sequence inside a string literal is
// not. Strings with a leading zero stay quoted since the bare form would not
// be valid JSON.
func UnquoteIDs(data []byte, fields []string) []byte {
	if len(fields) == 0 {
		return data
	}
	allow := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		allow[f] = struct{}{}
	}

	var out bytes.Buffer
	out.Grow(len(data))

	key := ""
	afterColon := false

	for i := 0; i < len(data); {
		b := data[i]

		if b != '"' {
			switch {
			case b == ':':
				afterColon = true
			case !isSpace(b):
				afterColon = false
				key = ""
			}
			out.WriteByte(b)
			i++
			continue
		}

		end := stringEnd(data, i)
		if end < 0 {
			out.Write(data[i:])
			break
		}
		lit := data[i : end+1]
		body := lit[1 : len(lit)-1]

		if afterColon {
			if _, ok := allow[key]; ok && isPlainInteger(body) {
				out.Write(body)
			} else {
				out.Write(lit)
			}
			afterColon = false
			key = ""
		} else {
			key = ""
			if j := skipSpace(data, end+1); j < len(data) && data[j] == ':' {
				key = string(body)
			}
			out.Write(lit)
		}
		i = end + 1
	}

	return out.Bytes()
}

// stringEnd returns the index of the quote closing the string that opens at
// start, or -1 if the string is unterminated.
func stringEnd(data []byte, start int) int {
	escaped := false
	for i := start + 1; i < len(data); i++ {
		if escaped {
			escaped = false
			continue
		}
		switch data[i] {
		case '\\':
			escaped = true
		case '"':
			return i
		}
	}
	return -1
}

// numberEnd scans a number token starting at start and returns the index just
// past it, and whether it had neither a fraction nor an exponent.
func numberEnd(data []byte, start int) (int, bool) {
	i := start
	if i < len(data) && data[i] == '-' {
		i++
	}
	for i < len(data) && isDigit(data[i]) {
		i++
	}
	integer := true
	for i < len(data) {
		b := data[i]
		if isDigit(b) || b == '.' || b == 'e' || b == 'E' || b == '+' || b == '-' {
			integer = false
			i++
			continue
		}
		break
	}
	return i, integer
}

func skipSpace(data []byte, i int) int {
	for i < len(data) && isSpace(data[i]) {
		i++
	}
	return i
}

func isPlainInteger(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	if len(b) > 1 && b[0] == '0' {
		return false
	}
	for _, c := range b {
		if !isDigit(c) {
			return false
		}
	}
	return true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
