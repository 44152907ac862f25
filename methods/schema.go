package methods

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/lh-manager/workbench/core/labware"
)

// compile builds the validator for one method's schema. The top-level
// required list is dropped so a single field can be checked on its own.
// A schema with nothing declared yields a nil validator.
func compile(method string, schema labware.Schema) (*jsonschema.Schema, error) {
	if schema.Empty() {
		return nil, nil
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, method, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, method, err)
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s: schema is not an object", ErrInvalidSchema, method)
	}
	delete(root, "required")
	delete(root, "$id")

	loc := "mem://methods/" + url.PathEscape(method) + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(loc, root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, method, err)
	}
	sch, err := c.Compile(loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, method, err)
	}
	return sch, nil
}

// validateField checks value as the only property of a method document.
func validateField(sch *jsonschema.Schema, field string, value labware.Value) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return sch.Validate(map[string]any{field: inst})
}
