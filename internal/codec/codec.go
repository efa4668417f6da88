package codec

import (
	"encoding/json"
	"fmt"
)

// DefaultIDFields are the keys whose quoted integer values are sent back to
// the backend as native JSON integers.
var DefaultIDFields = []string{"dev_id", "uid", "alert_id", "log_id", "data_id"}

// Codec pairs a precision rule for decoding with an allow-list for encoding.
type Codec struct {
	// IDFields lists the keys Encode unquotes.
	IDFields []string

	// AtRisk decides which integer literals Decode protects.
	// Nil means ExceedsSafeInteger.
	AtRisk RiskFunc
}

// Default is the codec used by the package-level functions.
var Default = &Codec{IDFields: DefaultIDFields, AtRisk: ExceedsSafeInteger}

// Decode parses JSON text ([]byte, json.RawMessage or string) with
// at-risk integers turned into strings. Anything else is returned as is.
// Text that does not parse is also returned as is, with no error.
func (c *Codec) Decode(input any) any {
	switch v := input.(type) {
	case []byte:
		if out, ok := c.decodeText(v); ok {
			return out
		}
		return v
	case json.RawMessage:
		if out, ok := c.decodeText(v); ok {
			return out
		}
		return v
	case string:
		if out, ok := c.decodeText([]byte(v)); ok {
			return out
		}
		return v
	default:
		return input
	}
}

func (c *Codec) decodeText(data []byte) (any, bool) {
	var out any
	if err := json.Unmarshal(Protect(data, c.AtRisk), &out); err != nil {
		return nil, false
	}
	return out, true
}

// Unmarshal protects at-risk integers and unmarshals the result into v.
// Identifier fields in v should be of type ID (or string).
func (c *Codec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(Protect(data, c.AtRisk), v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// Encode marshals v and rewrites quoted all-digit values of IDFields into
// bare integers. A []byte or json.RawMessage is taken as already-marshalled
// JSON and only rewritten.
func (c *Codec) Encode(v any) ([]byte, error) {
	var data []byte
	switch raw := v.(type) {
	case json.RawMessage:
		data = raw
	case []byte:
		data = raw
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
	}
	return UnquoteIDs(data, c.IDFields), nil
}

// Decode runs Default.Decode.
func Decode(input any) any {
	return Default.Decode(input)
}

// Unmarshal runs Default.Unmarshal.
func Unmarshal(data []byte, v any) error {
	return Default.Unmarshal(data, v)
}

// Encode marshals v and unquotes the given id fields. Pass nil to use
// DefaultIDFields.
func Encode(v any, idFields []string) ([]byte, error) {
	if idFields == nil {
		return Default.Encode(v)
	}
	c := &Codec{IDFields: idFields, AtRisk: Default.AtRisk}
	return c.Encode(v)
}
