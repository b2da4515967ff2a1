package tool

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Typed adapts a function over a typed argument struct to the Tool interface.
// The argument schema is reflected from T's json and jsonschema tags.
type Typed[T any] struct {
	name        string
	description string
	groups      []string
	params      map[string]any
	fn          func(ctx context.Context, tctx *Context, args T) (*Result, error)
}

// New creates a Typed tool.
func New[T any](name, description string, fn func(ctx context.Context, tctx *Context, args T) (*Result, error)) *Typed[T] {
	return &Typed[T]{
		name:        name,
		description: description,
		params:      SchemaFor[T](),
		fn:          fn,
	}
}

// WithAccessGroups sets the groups allowed to call the tool.
func (t *Typed[T]) WithAccessGroups(groups ...string) *Typed[T] {
	t.groups = groups
	return t
}

func (t *Typed[T]) Name() string               { return t.name }
func (t *Typed[T]) Description() string        { return t.description }
func (t *Typed[T]) Parameters() map[string]any { return t.params }
func (t *Typed[T]) AccessGroups() []string     { return t.groups }

// Invoke decodes args into T, validates it, and runs the function.
func (t *Typed[T]) Invoke(ctx context.Context, tctx *Context, args map[string]any) (*Result, error) {
	parsed, err := DecodeArgs[T](args)
	if err != nil {
		return nil, &ArgumentError{Tool: t.name, Cause: err}
	}
	return t.fn(ctx, tctx, parsed)
}

// DecodeArgs converts a JSON-shaped argument map into T and validates it.
func DecodeArgs[T any](args map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
		Squash:           true,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(args); err != nil {
		return out, err
	}
	if reflect.TypeOf(out).Kind() == reflect.Struct {
		if err := validate.Struct(out); err != nil {
			return out, describeValidation(err)
		}
	}
	return out, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+": failed '"+fe.Tag()+"' validation")
	}
	return errors.New(strings.Join(msgs, "; "))
}

// SchemaFor reflects a JSON schema object for T.
func SchemaFor[T any]() map[string]any {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero T
	s := r.Reflect(&zero)

	raw, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// Validate decodes and validates args without running the tool.
func (t *Typed[T]) Validate(args map[string]any) error {
	if _, err := DecodeArgs[T](args); err != nil {
		return &ArgumentError{Tool: t.name, Cause: err}
	}
	return nil
}
