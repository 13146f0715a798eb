package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tick/pkg/domain"
)

func TestFromContexts(t *testing.T) {
	s, err := FromContexts([]domain.ContextDef{
		{Name: "DESTINATION", Type: "string"},
		{Name: "PASSENGERS", Type: "int"},
		{Name: "GREETED"},
	})
	require.NoError(t, err)

	assert.Equal(t, "string", s["DESTINATION"].Name())
	assert.Equal(t, "int", s["PASSENGERS"].Name())
	assert.Equal(t, "any", s["GREETED"].Name())

	_, err = FromContexts([]domain.ContextDef{{Name: "X", Type: "date"}})
	assert.ErrorContains(t, err, "context X")
}

func TestValidate(t *testing.T) {
	s := Schema{"a": String(), "b": Int(), "c": Bool()}

	assert.NoError(t, Validate(s, map[string]any{"a": "x", "b": 1, "c": true}))
	assert.NoError(t, Validate(nil, map[string]any{"a": 1}))

	err := Validate(s, map[string]any{"b": "nope", "c": true})
	require.Error(t, err)
	errs := SlotErrors(err)
	require.Len(t, errs, 2)

	// key order
	assert.Equal(t, "a", errs[0].Context)
	assert.Equal(t, "required", errs[0].Reason)
	assert.Equal(t, "b", errs[1].Context)
}

func TestValidatePresent(t *testing.T) {
	s := Schema{"DESTINATION": String(), "PASSENGERS": Int()}

	t.Run("Subset is accepted", func(t *testing.T) {
		assert.NoError(t, ValidatePresent(s, map[string]any{"PASSENGERS": 2}))
		assert.NoError(t, ValidatePresent(s, nil))
	})

	t.Run("Undeclared key is rejected", func(t *testing.T) {
		err := ValidatePresent(s, map[string]any{"SECRET": "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `context "SECRET": not declared`)
	})

	t.Run("Wrong type is rejected", func(t *testing.T) {
		err := ValidatePresent(s, map[string]any{"PASSENGERS": "two"})
		require.Error(t, err)
		assert.Len(t, SlotErrors(err), 1)
	})
}

func TestSchema_Project(t *testing.T) {
	s := Schema{"a": String(), "b": Int()}
	p := s.Project("a", "z")

	assert.Len(t, p, 2)
	assert.Equal(t, "string", p["a"].Name())
	assert.Equal(t, "any", p["z"].Name())
}

func TestErrors_Message(t *testing.T) {
	err := Errors{
		{Context: "a", Reason: "required"},
		{Context: "b", Reason: "expected int, got string", Value: "x"},
	}
	assert.Equal(t, "2 invalid contexts:\n  - context \"a\": required\n  - context \"b\": expected int, got string (got string)", err.Error())
	assert.Equal(t, `context "a": required`, err[:1].Error())
	assert.Nil(t, SlotErrors(assert.AnError))
}
