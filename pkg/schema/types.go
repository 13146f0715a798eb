package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Type is the contract of a typed context slot.
type Type interface {
	// Name is the type as written in a story ("string", "[int]", ...).
	Name() string
	Validate(value any) error
}

// Kind discriminates the built-in types.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindCustom
)

var kindNames = map[string]Kind{
	"":       KindAny,
	"any":    KindAny,
	"string": KindString,
	"int":    KindInt,
	"float":  KindFloat,
	"bool":   KindBool,
}

// slot is the single implementation behind every built-in type. elem is set
// for KindList, name and check for KindCustom.
type slot struct {
	kind  Kind
	elem  Type
	name  string
	check func(any) error
}

func (t *slot) Kind() Kind { return t.kind }

func (t *slot) Name() string {
	switch t.kind {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "[" + t.elem.Name() + "]"
	case KindCustom:
		return t.name
	}
	return "any"
}

func (t *slot) Validate(value any) error {
	switch t.kind {
	case KindCustom:
		return t.check(value)
	case KindList:
		return t.validateList(value)
	case KindAny:
		if value == nil {
			return fmt.Errorf("expected a value, got nil")
		}
		return nil
	}
	if !t.accepts(value) {
		return fmt.Errorf("expected %s, got %T", t.Name(), value)
	}
	return nil
}

func (t *slot) accepts(value any) bool {
	switch v := value.(type) {
	case string:
		return t.kind == KindString
	case bool:
		return t.kind == KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return t.kind == KindInt || t.kind == KindFloat
	case float32:
		return t.kind == KindFloat
	case float64:
		// JSON and YAML decoders hand whole numbers over as floats
		return t.kind == KindFloat || (t.kind == KindInt && v == float64(int64(v)))
	}
	return false
}

func (t *slot) validateList(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected %s, got %T", t.Name(), value)
	}
	for i := range rv.Len() {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func String() Type { return &slot{kind: KindString} }
func Int() Type    { return &slot{kind: KindInt} }
func Float() Type  { return &slot{kind: KindFloat} }
func Bool() Type   { return &slot{kind: KindBool} }

// Any accepts every non-nil value. It is the type of untyped contexts.
func Any() Type { return &slot{kind: KindAny} }

// Slice types a list whose elements all have the given type.
func Slice(elem Type) Type { return &slot{kind: KindList, elem: elem} }

// Custom wraps a caller supplied check under a type name.
func Custom(name string, check func(any) error) Type {
	return &slot{kind: KindCustom, name: name, check: check}
}

// ParseType reads a type name. The empty name is "any"; "[T]" is a list of T.
func ParseType(name string) (Type, error) {
	name = strings.TrimSpace(name)
	if inner, ok := strings.CutPrefix(name, "["); ok && len(inner) > 1 {
		if inner, ok = strings.CutSuffix(inner, "]"); ok {
			elem, err := ParseType(inner)
			if err != nil {
				return nil, err
			}
			return Slice(elem), nil
		}
	}
	kind, ok := kindNames[name]
	if !ok {
		return nil, fmt.Errorf("unsupported type: %s", name)
	}
	return &slot{kind: kind}, nil
}

// ParseTypeMap parses a context name to type name map into a Schema.
func ParseTypeMap(types map[string]string) (Schema, error) {
	out := make(Schema, len(types))
	for _, key := range sortedKeys(types) {
		t, err := ParseType(types[key])
		if err != nil {
			return nil, fmt.Errorf("context %s: %w", key, err)
		}
		out[key] = t
	}
	return out, nil
}
