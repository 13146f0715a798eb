package schema

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarTypes(t *testing.T) {
	tests := []struct {
		typ     Type
		value   any
		wantErr string
	}{
		{typ: String(), value: "Paris"},
		{typ: String(), value: ""},
		{typ: String(), value: 42, wantErr: "expected string, got int"},
		{typ: String(), value: nil, wantErr: "expected string, got <nil>"},

		{typ: Int(), value: 2},
		{typ: Int(), value: int64(2)},
		{typ: Int(), value: uint8(7)},
		{typ: Int(), value: float64(2)},
		{typ: Int(), value: 2.5, wantErr: "expected int, got float64"},
		{typ: Int(), value: "2", wantErr: "expected int"},

		{typ: Float(), value: 3.14},
		{typ: Float(), value: float32(1.5)},
		{typ: Float(), value: 3},
		{typ: Float(), value: "3.14", wantErr: "expected float"},

		{typ: Bool(), value: true},
		{typ: Bool(), value: 1, wantErr: "expected bool"},

		{typ: Any(), value: struct{}{}},
		{typ: Any(), value: "x"},
		{typ: Any(), value: nil, wantErr: "got nil"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%v", tt.typ.Name(), tt.value), func(t *testing.T) {
			err := tt.typ.Validate(tt.value)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSliceType(t *testing.T) {
	strings := Slice(String())
	nested := Slice(Slice(String()))

	assert.Equal(t, "[string]", strings.Name())
	assert.Equal(t, "[[string]]", nested.Name())

	assert.NoError(t, strings.Validate([]string{"a", "b"}))
	assert.NoError(t, strings.Validate([]string{}))
	assert.NoError(t, strings.Validate([]any{"a", "b"}))
	assert.NoError(t, nested.Validate([][]string{{"a"}, {"b", "c"}}))

	assert.EqualError(t, strings.Validate([]any{"a", 2}), "element 1: expected string, got int")
	assert.EqualError(t, strings.Validate("a"), "expected [string], got string")
}

func TestCustomType(t *testing.T) {
	iata := Custom("iata", func(v any) error {
		s, ok := v.(string)
		if !ok || len(s) != 3 {
			return fmt.Errorf("expected a 3-letter airport code")
		}
		return nil
	})

	assert.Equal(t, "iata", iata.Name())
	assert.NoError(t, iata.Validate("CDG"))
	assert.Error(t, iata.Validate("Paris"))
	assert.Equal(t, KindCustom, iata.(*slot).Kind())
}

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		wantName string
		wantKind Kind
		wantErr  bool
	}{
		{input: "string", wantName: "string", wantKind: KindString},
		{input: " int ", wantName: "int", wantKind: KindInt},
		{input: "float", wantName: "float", wantKind: KindFloat},
		{input: "bool", wantName: "bool", wantKind: KindBool},
		{input: "", wantName: "any", wantKind: KindAny},
		{input: "any", wantName: "any", wantKind: KindAny},
		{input: "[string]", wantName: "[string]", wantKind: KindList},
		{input: "[[string]]", wantName: "[[string]]", wantKind: KindList},
		{input: "[]", wantErr: true},
		{input: "date", wantErr: true},
		{input: "[date]", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			typ, err := ParseType(tt.input)
			if tt.wantErr {
				assert.ErrorContains(t, err, "unsupported type")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, typ.Name())
			assert.Equal(t, tt.wantKind, typ.(*slot).Kind())
		})
	}
}

func TestParseTypeMap(t *testing.T) {
	s, err := ParseTypeMap(map[string]string{"DESTINATION": "string", "EXTRAS": "[string]"})
	require.NoError(t, err)
	assert.Equal(t, "[string]", s["EXTRAS"].Name())

	_, err = ParseTypeMap(map[string]string{"B": "int", "A": "date", "C": "time"})
	assert.EqualError(t, err, "context A: unsupported type: date")
}
