package labware

import (
	"fmt"
	"maps"
	"slices"

	"github.com/goccy/go-json"
	"github.com/tiendc/go-deepcopy"
)

// Reserved method keys. Every other key of a method document is a field.
const (
	KeyID          = "id"
	KeyMethodName  = "method_name"
	KeyDisplayName = "display_name"
	KeyTasks       = "tasks"
	KeyStatus      = "status"
)

// Well-typed field names bound by the well picker.
const (
	FieldSource = "Source"
	FieldTarget = "Target"
)

// IsReserved reports whether key is one of the structural method keys.
func IsReserved(key string) bool {
	switch key {
	case KeyID, KeyMethodName, KeyDisplayName, KeyTasks, KeyStatus:
		return true
	}
	return false
}

// Method is one configured liquid-handling operation. ID is nil until the
// backend has accepted the method. Tasks is nil when the document carried no
// task list.
type Method struct {
	ID          *string
	MethodName  string
	DisplayName string
	Fields      map[string]Value
	Tasks       []TaskContainer
	Status      Status
}

// NewMethod creates a method carrying only its name, as appended by the
// editor before the backend fills in defaults.
func NewMethod(name string) Method {
	return Method{MethodName: name}
}

// HasField reports whether the method document contains the named field.
func (m Method) HasField(name string) bool {
	_, ok := m.Fields[name]
	return ok
}

// Field returns the named field.
func (m Method) Field(name string) (Value, bool) {
	v, ok := m.Fields[name]
	return v, ok
}

// SetField writes a field, allocating the field map when needed.
func (m *Method) SetField(name string, value Value) {
	if m.Fields == nil {
		m.Fields = make(map[string]Value)
	}
	m.Fields[name] = value
}

// Clone returns a deep copy of the method, ID included.
func (m Method) Clone() (Method, error) {
	var out Method
	if err := deepcopy.Copy(&out, &m); err != nil {
		return Method{}, fmt.Errorf("clone method %s: %w", m.MethodName, err)
	}
	return out, nil
}

// FieldNames returns the field names in sorted order.
func (m Method) FieldNames() []string {
	return slices.Sorted(maps.Keys(m.Fields))
}

// EqualIgnoringID compares two methods field by field, skipping ID.
func (m Method) EqualIgnoringID(other Method) bool {
	if m.MethodName != other.MethodName || m.DisplayName != other.DisplayName || m.Status != other.Status {
		return false
	}
	if len(m.Tasks) != len(other.Tasks) || len(m.Fields) != len(other.Fields) {
		return false
	}
	for i := range m.Tasks {
		if m.Tasks[i].ID != other.Tasks[i].ID || m.Tasks[i].Status != other.Tasks[i].Status {
			return false
		}
	}
	for name, v := range m.Fields {
		ov, ok := other.Fields[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (m Method) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(m.Fields)+5)
	for name, v := range m.Fields {
		doc[name] = v
	}

	if m.ID != nil {
		doc[KeyID] = *m.ID
	} else {
		doc[KeyID] = nil
	}
	doc[KeyMethodName] = m.MethodName
	if m.DisplayName != "" {
		doc[KeyDisplayName] = m.DisplayName
	}
	if m.Tasks != nil {
		doc[KeyTasks] = m.Tasks
	}
	if m.Status != "" {
		doc[KeyStatus] = m.Status
	}

	return json.Marshal(doc)
}

func (m *Method) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	decoded := Method{}
	for key, raw := range doc {
		var err error
		switch key {
		case KeyID:
			err = json.Unmarshal(raw, &decoded.ID)
		case KeyMethodName:
			err = json.Unmarshal(raw, &decoded.MethodName)
		case KeyDisplayName:
			err = json.Unmarshal(raw, &decoded.DisplayName)
		case KeyTasks:
			decoded.Tasks = []TaskContainer{}
			err = json.Unmarshal(raw, &decoded.Tasks)
		case KeyStatus:
			err = json.Unmarshal(raw, &decoded.Status)
		default:
			var v Value
			err = json.Unmarshal(raw, &v)
			decoded.SetField(key, v)
		}
		if err != nil {
			return fmt.Errorf("method field %q: %w", key, err)
		}
	}

	*m = decoded
	return nil
}

// MethodList is one stage of a sample. Methods is the editable pipeline in
// execution order; Active mirrors methods already submitted to the backend
// and is never edited locally.
type MethodList struct {
	CreatedDate *string  `json:"createdDate"`
	Methods     []Method `json:"methods"`
	Active      []Method `json:"active"`
	Status      Status   `json:"status,omitempty"`
}
