package codec

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestExceedsSafeInteger(t *testing.T) {
	tests := []struct {
		literal string
		want    bool
	}{
		{"0", false},
		{"87", false},
		{"123456789012345", false},
		{"9007199254740991", false},
		{"9007199254740992", true},
		{"-9007199254740991", false},
		{"-9007199254740993", true},
		{"653421142357639201", true},
		{"00009007199254740991", false},
	}

	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			if got := ExceedsSafeInteger([]byte(tt.literal)); got != tt.want {
				t.Errorf("ExceedsSafeInteger(%s) = %v, want %v", tt.literal, got, tt.want)
			}
		})
	}
}

func TestLengthHeuristic(t *testing.T) {
	if !LengthHeuristic([]byte("123456789012345")) {
		t.Error("15 digits should be flagged")
	}
	if LengthHeuristic([]byte("12345678901234")) {
		t.Error("14 digits should not be flagged")
	}
}

func TestProtect(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "large id quoted",
			input: `{"dev_id":653421142357639201,"dev_power":87}`,
			want:  `{"dev_id":"653421142357639201","dev_power":87}`,
		},
		{
			name:  "boundary left alone",
			input: `{"a":9007199254740991,"b":9007199254740992}`,
			want:  `{"a":9007199254740991,"b":"9007199254740992"}`,
		},
		{
			name:  "array elements",
			input: `[653421142357639201, 1, -653421142357639201]`,
			want:  `["653421142357639201", 1, "-653421142357639201"]`,
		},
		{
			name:  "digits inside strings untouched",
			input: `{"note":"id 653421142357639201 \" 653421142357639202"}`,
			want:  `{"note":"id 653421142357639201 \" 653421142357639202"}`,
		},
		{
			name:  "decimals and exponents untouched",
			input: `{"x":65342114235763920.5,"y":6534211423576392e3}`,
			want:  `{"x":65342114235763920.5,"y":6534211423576392e3}`,
		},
		{
			name:  "whitespace after colon",
			input: "{\"uid\":\n  653421142357639201}",
			want:  "{\"uid\":\n  \"653421142357639201\"}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(Protect([]byte(tt.input), ExceedsSafeInteger))
			if got != tt.want {
				t.Errorf("Protect() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodeLargeIdentifier(t *testing.T) {
	got := Decode([]byte(`{"dev_id":653421142357639201,"dev_power":87}`))

	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("Decode() returned %T, want map", got)
	}
	if m["dev_id"] != "653421142357639201" {
		t.Errorf("dev_id = %#v, want \"653421142357639201\"", m["dev_id"])
	}
	if m["dev_power"] != float64(87) {
		t.Errorf("dev_power = %#v, want 87", m["dev_power"])
	}
}

func TestDecodeInvalidReturnsInput(t *testing.T) {
	raw := []byte(`<html>502 Bad Gateway</html>`)
	got := Decode(raw)
	b, ok := got.([]byte)
	if !ok || string(b) != string(raw) {
		t.Errorf("Decode() = %#v, want original bytes", got)
	}

	s := Decode(`{"unterminated":`)
	if s != `{"unterminated":` {
		t.Errorf("Decode(string) = %#v, want original string", s)
	}
}

func TestDecodeIdempotent(t *testing.T) {
	once := Decode(`{"items":[{"dev_id":653421142357639201}]}`)
	twice := Decode(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Decode(Decode(x)) = %#v, want %#v", twice, once)
	}
}

func TestEncodeAllowList(t *testing.T) {
	in := map[string]any{
		"dev_id":   "653421142357639201",
		"dev_name": "123",
		"model":    "007",
		"uid":      "42",
		"log_id":   "0042",
	}
	out, err := Encode(in, nil)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	// json.Marshal sorts map keys
	want := `{"dev_id":653421142357639201,"dev_name":"123","log_id":"0042","model":"007","uid":42}`
	if string(out) != want {
		t.Errorf("Encode() = %s, want %s", out, want)
	}
}

func TestEncodeIgnoresKeysInsideStrings(t *testing.T) {
	in := map[string]any{"dev_name": `"dev_id":"5"`}
	out, err := Encode(in, nil)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := `{"dev_name":"\"dev_id\":\"5\""}`
	if string(out) != want {
		t.Errorf("Encode() = %s, want %s", out, want)
	}
}

func TestEncodeCustomFields(t *testing.T) {
	out, err := Encode(map[string]any{"dev_id": "1", "order": "2"}, []string{"order"})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(out) != `{"dev_id":"1","order":2}` {
		t.Errorf("Encode() = %s", out)
	}
}

func TestRoundTripPreservesIdentifier(t *testing.T) {
	wire := []byte(`{"dev_id":653421142357639201,"dev_status":1}`)

	decoded := Decode(wire)
	out, err := Encode(decoded, nil)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if string(out) != string(wire) {
		t.Errorf("round trip = %s, want %s", out, wire)
	}
}

func TestIDJSON(t *testing.T) {
	type record struct {
		ID   ID     `json:"dev_id"`
		Name string `json:"dev_name"`
	}

	for _, input := range []string{
		`{"dev_id":653421142357639201,"dev_name":"pump"}`,
		`{"dev_id":"653421142357639201","dev_name":"pump"}`,
	} {
		var r record
		if err := Unmarshal([]byte(input), &r); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", input, err)
		}
		if r.ID != "653421142357639201" {
			t.Errorf("ID = %q, want 653421142357639201", r.ID)
		}

		out, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if string(out) != `{"dev_id":653421142357639201,"dev_name":"pump"}` {
			t.Errorf("Marshal() = %s", out)
		}
	}

	var bad record
	if err := json.Unmarshal([]byte(`{"dev_id":1.5}`), &bad); err == nil {
		t.Error("expected error for fractional identifier")
	}
}

func TestParseID(t *testing.T) {
	if _, err := ParseID("653421142357639201"); err != nil {
		t.Errorf("ParseID() error = %v", err)
	}
	for _, s := range []string{"", "abc", "-1", "01"} {
		if _, err := ParseID(s); err == nil {
			t.Errorf("ParseID(%q) expected error", s)
		}
	}
	if IDFromUint64(18446744073709551615) != "18446744073709551615" {
		t.Error("IDFromUint64 lost precision")
	}
}
