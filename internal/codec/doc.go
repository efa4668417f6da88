// Package codec reads and writes the fleet API's JSON without losing
// precision on large numeric identifiers.
//
// The fleet backend issues 64-bit identifiers (dev_id, uid, alert_id,
// log_id, data_id) that routinely exceed 2^53-1, the largest integer a
// float64 holds exactly. Decoding them through a generic JSON parser
// silently rounds them, so the next update targets the wrong record.
//
// # Decoding
//
// Decode rewrites every bare integer literal that is outside a string and
// larger in magnitude than MaxSafeInteger into a quoted string, then parses
// the result:
//
//	{"dev_id":653421142357639201,"dev_power":87}
//	-> map[dev_id:"653421142357639201" dev_power:87]
//
// If the text does not parse, Decode returns its input unchanged. Values that
// are already decoded pass straight through, so decoding twice is harmless.
//
// # Encoding
//
// Encode marshals a value and then turns quoted all-digit strings back into
// bare integers, but only under allow-listed keys:
//
//	{"dev_id":"653421142357639201","dev_name":"123"}
//	-> {"dev_id":653421142357639201,"dev_name":"123"}
//
// # Typed structs
//
// Struct fields of type ID accept either form on input and emit a bare
// integer on output, which is usually simpler than going through Decode:
//
//	type Device struct {
//	    ID   codec.ID `json:"dev_id"`
//	    Name string   `json:"dev_name"`
//	}
//	err := codec.Unmarshal(body, &dev)
package codec
