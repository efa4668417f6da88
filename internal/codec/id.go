package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque numeric identifier kept as its exact decimal text.
//
// It marshals as a bare JSON integer when it holds one and unmarshals from
// a bare integer, a quoted string or null. It never goes through float64.
type ID string

// ParseID validates s as a non-negative decimal integer.
func ParseID(s string) (ID, error) {
	if !isPlainInteger([]byte(s)) {
		return "", fmt.Errorf("invalid identifier %q: want a decimal integer", s)
	}
	return ID(s), nil
}

// IDFromUint64 formats n as an ID.
func IDFromUint64(n uint64) ID {
	return ID(strconv.FormatUint(n, 10))
}

func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool { return id == "" }

// Valid reports whether the identifier is a well-formed decimal integer.
func (id ID) Valid() bool { return isPlainInteger([]byte(id)) }

// MarshalJSON emits a bare integer for valid identifiers and a quoted
// string otherwise.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.Valid() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts 653421142357639201, "653421142357639201" or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid identifier: %w", err)
		}
		*id = ID(s)
		return nil
	}
	if !isPlainInteger(data) {
		return fmt.Errorf("invalid identifier %s: want an integer", data)
	}
	*id = ID(data)
	return nil
}
