package labware

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// WellLocation identifies a physical well on a rack. It is a comparable value.
type WellLocation struct {
	RackID     string `json:"rack_id"`
	WellNumber int    `json:"well_number"`
}

func (w WellLocation) String() string {
	return fmt.Sprintf("%s:%d", w.RackID, w.WellNumber)
}

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindWell
	// KindRaw holds any other JSON value (booleans, arrays, nested objects)
	// verbatim so that it survives a round trip unchanged.
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindWell:
		return "well"
	case KindRaw:
		return "raw"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is the tagged variant stored in a method field. Only the payload
// matching Kind is meaningful.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Loc  WellLocation
	Raw  json.RawMessage
}

// NullValue returns an explicit JSON null.
func NullValue() Value { return Value{Kind: KindNull} }

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }

func WellValue(loc WellLocation) Value { return Value{Kind: KindWell, Loc: loc} }

func RawValue(raw json.RawMessage) Value {
	return Value{Kind: KindRaw, Raw: bytes.Clone(raw)}
}

// AsWell returns the well location held by v.
func (v Value) AsWell() (WellLocation, bool) {
	return v.Loc, v.Kind == KindWell
}

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) {
	return v.Str, v.Kind == KindString
}

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, bool) {
	return v.Num, v.Kind == KindNumber
}

// Equal compares the active payloads of two values.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return v.Str == other.Str
	case KindNumber:
		return v.Num == other.Num
	case KindWell:
		return v.Loc == other.Loc
	default:
		return bytes.Equal(bytes.TrimSpace(v.Raw), bytes.TrimSpace(other.Raw))
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindWell:
		return json.Marshal(v.Loc)
	case KindRaw:
		if len(v.Raw) == 0 {
			return []byte("null"), nil
		}
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("cannot encode value of %s", v.Kind)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = NullValue()
		return nil
	}

	switch c := trimmed[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case c == '-' || (c >= '0' && c <= '9'):
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*v = NumberValue(n)
	case c == '{':
		if loc, ok := decodeWell(trimmed); ok {
			*v = WellValue(loc)
			return nil
		}
		*v = RawValue(trimmed)
	default:
		*v = RawValue(trimmed)
	}
	return nil
}

// decodeWell recognizes objects carrying both rack_id and well_number. A
// backend-side "id" key is tolerated and dropped.
func decodeWell(data []byte) (WellLocation, bool) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return WellLocation{}, false
	}
	if _, ok := keys["rack_id"]; !ok {
		return WellLocation{}, false
	}
	if _, ok := keys["well_number"]; !ok {
		return WellLocation{}, false
	}
	for key := range keys {
		if key != "rack_id" && key != "well_number" && key != "id" {
			return WellLocation{}, false
		}
	}

	var loc WellLocation
	if err := json.Unmarshal(data, &loc); err != nil {
		return WellLocation{}, false
	}
	return loc, true
}
