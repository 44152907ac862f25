package labware

import (
	"bytes"

	"github.com/goccy/go-json"
)

// MethodDef describes a method type as published by the backend: its
// display name, the ordered list of editable fields and the JSON schema of
// the method document.
type MethodDef struct {
	DisplayName string   `json:"display_name"`
	Fields      []string `json:"fields"`
	Schema      Schema   `json:"schema"`
}

// Schema is a JSON-schema document for a method. Properties, Definitions
// and Defs are decoded for inspection; Raw keeps the document as received
// so keywords outside that subset survive into validation.
type Schema struct {
	Properties  map[string]Property        `json:"properties,omitempty"`
	Definitions map[string]json.RawMessage `json:"definitions,omitempty"`
	Defs        map[string]json.RawMessage `json:"$defs,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// Empty reports whether the schema declares nothing to validate against.
func (s Schema) Empty() bool {
	return len(s.Raw) == 0 && len(s.Properties) == 0
}

func (s Schema) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	type plain Schema
	return json.Marshal(plain(s))
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	type plain Schema
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = Schema(decoded)
	if trimmed := bytes.TrimSpace(data); !bytes.Equal(trimmed, []byte("null")) {
		s.Raw = append(json.RawMessage(nil), trimmed...)
	}
	return nil
}

// Property is a JSON-schema property. Only the keywords that decide the
// accepted value kind are decoded.
type Property struct {
	Type  string     `json:"type,omitempty"`
	Ref   string     `json:"$ref,omitempty"`
	AllOf []Property `json:"allOf,omitempty"`
	AnyOf []Property `json:"anyOf,omitempty"`
	OneOf []Property `json:"oneOf,omitempty"`
	Enum  []any      `json:"enum,omitempty"`
	Title string     `json:"title,omitempty"`
}
