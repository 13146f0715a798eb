package schema

import (
	"sort"

	"github.com/aretw0/tick/pkg/domain"
)

// Schema maps slot names to their expected types.
type Schema map[string]Type

// FromContexts builds the schema of a story's declared contexts.
func FromContexts(defs []domain.ContextDef) (Schema, error) {
	typeMap := make(map[string]string, len(defs))
	for _, def := range defs {
		typeMap[def.Name] = def.Type
	}
	return ParseTypeMap(typeMap)
}

// Validate checks that every slot of the schema is present in data and typed.
// Errors are reported in key order.
func Validate(schema Schema, data map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	var errs Errors
	for _, key := range sortedKeys(schema) {
		value, exists := data[key]
		if !exists {
			errs = append(errs, &SlotError{Context: key, Reason: "required"})
			continue
		}
		if err := schema[key].Validate(value); err != nil {
			errs = append(errs, &SlotError{Context: key, Reason: err.Error(), Value: value})
		}
	}
	return errs.orNil()
}

// ValidatePresent checks only the keys present in data. A key the schema
// does not define is an error, so the schema doubles as an allow-list.
func ValidatePresent(schema Schema, data map[string]any) error {
	var errs Errors
	for _, key := range sortedKeys(data) {
		typ, defined := schema[key]
		if !defined {
			errs = append(errs, &SlotError{Context: key, Reason: "not declared", Value: data[key]})
			continue
		}
		if err := typ.Validate(data[key]); err != nil {
			errs = append(errs, &SlotError{Context: key, Reason: err.Error(), Value: data[key]})
		}
	}
	return errs.orNil()
}

// Project returns the sub-schema restricted to the given keys. Keys the
// schema does not define are typed as "any".
func (s Schema) Project(keys ...string) Schema {
	out := make(Schema, len(keys))
	for _, key := range keys {
		if typ, ok := s[key]; ok {
			out[key] = typ
		} else {
			out[key] = Any()
		}
	}
	return out
}

// orNil keeps a typed nil slice from becoming a non-nil error.
func (e Errors) orNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
