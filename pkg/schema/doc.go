// Package schema provides the type system of context slots.
//
// A story may declare a type for each context ("string", "int", "float",
// "bool", "any" or a slice such as "[string]"). The engine checks entity
// bindings and handler outputs against those types before they reach the
// session.
//
// Schemas can be created programmatically or parsed from type strings:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "DESTINATION": "string",
//	    "PASSENGERS":  "int",
//	    "EXTRAS":      "[string]",
//	})
//
// Custom validators can be registered for domain-specific slots:
//
//	iata := schema.Custom("iata", func(v any) error {
//	    s, ok := v.(string)
//	    if !ok || len(s) != 3 {
//	        return fmt.Errorf("expected a 3-letter airport code")
//	    }
//	    return nil
//	})
package schema
