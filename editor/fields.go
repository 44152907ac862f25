package editor

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"github.com/goccy/go-json"

	"github.com/lh-manager/workbench/core/labware"
	"github.com/lh-manager/workbench/methods"
	"github.com/lh-manager/workbench/selection"
)

// UpdateMethod writes one field of the method at index. The field must
// already exist in the method document; display_name is always writable and
// the other structural keys are read-only. When method definitions are
// loaded the value must match the field's schema.
func (e *Editor) UpdateMethod(ctx context.Context, sampleID string, stage labware.StageName, index int, field string, value labware.Value) (*Submission, error) {
	return e.edit(ctx, "update_method", sampleID, stage, index, func(_ *labware.Sample, ml *labware.MethodList) (int, error) {
		if err := checkIndex(index, len(ml.Methods)); err != nil {
			return 0, err
		}
		method := &ml.Methods[index]

		if field == labware.KeyDisplayName {
			s, ok := value.AsString()
			if !ok {
				return 0, fmt.Errorf("%w: display_name must be a string", methods.ErrInvalidValue)
			}
			method.DisplayName = s
			return noSelectionChange, nil
		}
		if labware.IsReserved(field) {
			return 0, fmt.Errorf("%w: %s", ErrReadOnlyField, field)
		}
		if !method.HasField(field) {
			return 0, fmt.Errorf("%w: %s has no field %s", ErrPathNotFound, method.MethodName, field)
		}
		if err := e.store.Methods().Validate(method.MethodName, field, value); err != nil {
			return 0, err
		}
		method.SetField(field, value)
		return noSelectionChange, nil
	})
}

// SetLocation writes a well location into the Source or Target field of the
// method at index. The field is created when the method lacks it.
func (e *Editor) SetLocation(ctx context.Context, sampleID string, stage labware.StageName, index int, field string, loc labware.WellLocation) (*Submission, error) {
	return e.edit(ctx, "set_location", sampleID, stage, index, func(_ *labware.Sample, ml *labware.MethodList) (int, error) {
		if field != labware.FieldSource && field != labware.FieldTarget {
			return 0, fmt.Errorf("%w: %s", ErrNotWellField, field)
		}
		if err := checkIndex(index, len(ml.Methods)); err != nil {
			return 0, err
		}
		method := &ml.Methods[index]
		value := labware.WellValue(loc)
		if err := e.store.Methods().Validate(method.MethodName, field, value); err != nil {
			return 0, err
		}
		method.SetField(field, value)
		return noSelectionChange, nil
	})
}

// UpdateAtPointer writes value at an RFC 6901 pointer into the sample
// document, for example "/stages/prep/methods/0/Volume". The pointer must
// resolve to an existing location; nothing is created. The sample id, the
// backend-owned active lists and the identity of every method (id, name,
// tasks and status) cannot be written, so stages and method lists are never
// replaced whole. A whole method may be replaced when its identity is kept.
func (e *Editor) UpdateAtPointer(ctx context.Context, sampleID, pointer string, value any) (*Submission, error) {
	const op = "update_at_pointer"
	fail := func(err error) (*Submission, error) {
		return nil, e.invalid(ctx, &EditError{Op: op, SampleID: sampleID, Index: selection.NoMethod, Err: err})
	}

	sample, ok := e.store.Find(sampleID)
	if !ok {
		return fail(ErrNotFound)
	}

	ptr, err := jsonpointer.New(pointer)
	if err != nil {
		return fail(fmt.Errorf("%w: %s: %v", ErrPathNotFound, pointer, err))
	}
	tokens := ptr.DecodedTokens()
	if err := checkPointer(sample, tokens); err != nil {
		return fail(err)
	}

	data, err := json.Marshal(sample)
	if err != nil {
		return fail(err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fail(err)
	}

	// A nil value would delete a map key instead of writing null.
	if value == nil {
		value = json.RawMessage("null")
	}
	if _, _, err := ptr.Get(doc); err != nil {
		return fail(fmt.Errorf("%w: %s", ErrPathNotFound, pointer))
	}
	if doc, err = ptr.Set(doc, value); err != nil {
		return fail(fmt.Errorf("%w: %s: %v", ErrPathNotFound, pointer, err))
	}

	if data, err = json.Marshal(doc); err != nil {
		return fail(err)
	}
	var updated labware.Sample
	if err := json.Unmarshal(data, &updated); err != nil {
		return fail(fmt.Errorf("%w: value does not fit %s: %v", ErrPathNotFound, pointer, err))
	}
	if err := e.checkUpdate(sample, updated, tokens); err != nil {
		return fail(err)
	}

	return e.submitSample(ctx, op, updated), nil
}

// checkPointer refuses pointers at read-only locations and pointers into
// methods that do not exist.
func checkPointer(sample labware.Sample, tokens []string) error {
	switch {
	case len(tokens) == 0:
		return fmt.Errorf("%w: the document root cannot be replaced", ErrPathNotFound)
	case len(tokens) == 1 && tokens[0] == "id":
		return fmt.Errorf("%w: id", ErrReadOnlyField)
	case tokens[0] != "stages":
		return nil
	case len(tokens) < 3:
		return fmt.Errorf("%w: %s cannot be replaced whole", ErrReadOnlyField, strings.Join(tokens, "/"))
	case tokens[2] == "active":
		return fmt.Errorf("%w: stages/%s/active", ErrReadOnlyField, tokens[1])
	case tokens[2] != "methods":
		return nil
	case len(tokens) == 3:
		return fmt.Errorf("%w: stages/%s/methods cannot be replaced whole", ErrReadOnlyField, tokens[1])
	}

	ml, err := sample.Stage(labware.StageName(tokens[1]))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPathNotFound, err)
	}
	index, err := strconv.Atoi(tokens[3])
	if err != nil || index < 0 || index >= len(ml.Methods) {
		return fmt.Errorf("%w: method %s", ErrPathNotFound, tokens[3])
	}
	if len(tokens) >= 5 && labware.IsReserved(tokens[4]) && tokens[4] != labware.KeyDisplayName {
		return fmt.Errorf("%w: %s", ErrReadOnlyField, tokens[4])
	}
	return nil
}

// methodIdentity is the part of a method owned by the backend.
type methodIdentity struct {
	ID         *string                 `json:"id"`
	MethodName string                  `json:"method_name"`
	Tasks      []labware.TaskContainer `json:"tasks"`
	Status     labware.Status          `json:"status"`
}

func identityOf(m labware.Method) methodIdentity {
	return methodIdentity{ID: m.ID, MethodName: m.MethodName, Tasks: m.Tasks, Status: m.Status}
}

// checkUpdate compares the rewritten sample with the stored one. Active
// lists, method counts and method identities must be unchanged, and the
// written method fields must satisfy the method definitions.
func (e *Editor) checkUpdate(before, after labware.Sample, tokens []string) error {
	for _, name := range labware.Stages() {
		was, err := before.Stage(name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPathNotFound, err)
		}
		now, err := after.Stage(name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPathNotFound, err)
		}
		if !sameJSON(was.Active, now.Active) {
			return fmt.Errorf("%w: stages/%s/active", ErrReadOnlyField, name)
		}
		if len(was.Methods) != len(now.Methods) {
			return fmt.Errorf("%w: stages/%s/methods length", ErrReadOnlyField, name)
		}
		for i := range was.Methods {
			if !sameJSON(identityOf(was.Methods[i]), identityOf(now.Methods[i])) {
				return fmt.Errorf("%w: identity of stages/%s/methods/%d", ErrReadOnlyField, name, i)
			}
		}
	}

	if len(tokens) < 4 || tokens[0] != "stages" || tokens[2] != "methods" {
		return nil
	}
	ml, err := after.Stage(labware.StageName(tokens[1]))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPathNotFound, err)
	}
	index, _ := strconv.Atoi(tokens[3])
	method := ml.Methods[index]

	fields := method.FieldNames()
	if len(tokens) >= 5 {
		fields = []string{tokens[4]}
	}
	for _, field := range fields {
		v, ok := method.Field(field)
		if !ok {
			continue
		}
		if err := e.store.Methods().Validate(method.MethodName, field, v); err != nil {
			return err
		}
	}
	return nil
}

// sameJSON compares two values by their decoded JSON form, so key order and
// spacing inside raw task documents do not matter.
func sameJSON(a, b any) bool {
	decode := func(v any) (any, bool) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var out any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, false
		}
		return out, true
	}
	da, ok := decode(a)
	if !ok {
		return false
	}
	db, ok := decode(b)
	if !ok {
		return false
	}
	return reflect.DeepEqual(da, db)
}
