package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tick/pkg/domain"
)

func validStory() *domain.Configuration {
	return &domain.Configuration{
		Name: "travel",
		StateMachine: &domain.MachineState{
			ID:      "Global",
			Initial: "greet",
			On:      map[string]string{"restart": "#greet"},
			States: map[string]*domain.MachineState{
				"greet":           {ID: "greet"},
				"ask_destination": {ID: "ask_destination"},
				"book":            {ID: "book"},
				"bye":             {ID: "bye"},
			},
		},
		Contexts: []domain.ContextDef{
			{Name: "GREETED"},
			{Name: "DESTINATION", Type: "string", EntityRole: "destination"},
		},
		Actions: []domain.Action{
			{Name: "greet", OutputContexts: []string{"GREETED"}},
			{Name: "ask_destination", Wait: true, OutputContexts: []string{"DESTINATION"}},
			{Name: "book", Handler: "flights.book", InputContexts: []string{"DESTINATION"}},
			{Name: "bye", InputContexts: []string{"GREETED"}, Final: true},
		},
		IntentContexts: []domain.IntentContexts{
			{Intent: "hello", Associations: []domain.Association{{Action: "greet"}}},
			{Intent: "book", Associations: []domain.Association{{Action: "book"}}},
			{Intent: "goodbye", Associations: []domain.Association{{Action: "bye"}}},
		},
		UnknownAnswerConfigs: []domain.UnknownAnswerConfig{
			{Action: "ask_destination", AnswerID: "destination_again", ExitAction: "bye"},
		},
	}
}

type handlerSet map[string]bool

func (h handlerSet) Has(name string) bool { return h[name] }

func TestValidate_ValidStory(t *testing.T) {
	errs := Validate(validStory(), WithHandlers(handlerSet{"flights.book": true}))
	assert.Empty(t, errs)
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *domain.Configuration)
		code   string
		path   string
	}{
		{
			name:   "Duplicate action",
			mutate: func(c *domain.Configuration) { c.Actions = append(c.Actions, domain.Action{Name: "greet"}) },
			code:   domain.CodeDuplicate,
			path:   "actions[4]",
		},
		{
			name:   "Duplicate context",
			mutate: func(c *domain.Configuration) { c.Contexts = append(c.Contexts, domain.ContextDef{Name: "GREETED"}) },
			code:   domain.CodeDuplicate,
			path:   "contexts[2]",
		},
		{
			name: "Duplicate state",
			mutate: func(c *domain.Configuration) {
				c.StateMachine.States["book"] = &domain.MachineState{
					ID: "book", Initial: "greet",
					States: map[string]*domain.MachineState{"greet": {ID: "greet"}},
				}
			},
			code: domain.CodeDuplicate,
			path: "stateMachine.states.greet",
		},
		{
			name:   "Undeclared input context",
			mutate: func(c *domain.Configuration) { c.Actions[2].InputContexts = append(c.Actions[2].InputContexts, "DATE") },
			code:   domain.CodeUndeclared,
			path:   "actions[2].inputContexts[1]",
		},
		{
			name:   "Invalid context type",
			mutate: func(c *domain.Configuration) { c.Contexts[1].Type = "date" },
			code:   domain.CodeInvalidType,
			path:   "contexts[1].type",
		},
		{
			name:   "Unknown transition target",
			mutate: func(c *domain.Configuration) { c.StateMachine.States["greet"].On = map[string]string{"next": "#nowhere"} },
			code:   domain.CodeUnknownState,
			path:   "states.greet.on.next",
		},
		{
			name:   "Self loop",
			mutate: func(c *domain.Configuration) { c.StateMachine.States["greet"].On = map[string]string{"again": "greet"} },
			code:   domain.CodeSelfLoop,
			path:   "states.greet.on.again",
		},
		{
			name:   "Leaf state without action",
			mutate: func(c *domain.Configuration) { c.StateMachine.States["orphan"] = &domain.MachineState{ID: "orphan"} },
			code:   domain.CodeStateWithoutAct,
			path:   "states.orphan",
		},
		{
			name:   "Action without state",
			mutate: func(c *domain.Configuration) { c.Actions = append(c.Actions, domain.Action{Name: "ghost"}) },
			code:   domain.CodeActionNoState,
			path:   "actions[4]",
		},
		{
			name: "Compound state without initial",
			mutate: func(c *domain.Configuration) {
				c.StateMachine.States["book"] = &domain.MachineState{
					ID:     "book",
					States: map[string]*domain.MachineState{"confirm": {ID: "confirm"}},
				}
			},
			code: domain.CodeMissingInitial,
			path: "stateMachine.states.book",
		},
		{
			name: "Association to unknown action",
			mutate: func(c *domain.Configuration) {
				c.IntentContexts[0].Associations = append(c.IntentContexts[0].Associations, domain.Association{Action: "wave"})
			},
			code: domain.CodeUnknownAction,
			path: "intentContexts[0].associations[1]",
		},
		{
			name: "Association with undeclared context",
			mutate: func(c *domain.Configuration) {
				c.IntentContexts[2].Associations[0].Contexts = []string{"POLITE"}
			},
			code: domain.CodeUndeclared,
			path: "intentContexts[2].associations[0].contexts",
		},
		{
			name:   "Unknown exit action",
			mutate: func(c *domain.Configuration) { c.UnknownAnswerConfigs[0].ExitAction = "handoff" },
			code:   domain.CodeUnknownAction,
			path:   "unknownAnswerConfigs[0].exitAction",
		},
		{
			name:   "Unknown policy intent",
			mutate: func(c *domain.Configuration) { c.UnknownAnswerConfigs[0].Intent = "weather" },
			code:   domain.CodeUnknownIntent,
			path:   "unknownAnswerConfigs[0].intent",
		},
		{
			name:   "Unknown trigger",
			mutate: func(c *domain.Configuration) { c.Actions[0].Trigger = "teleport" },
			code:   domain.CodeUnknownIntent,
			path:   "actions[0].trigger",
		},
		{
			name:   "Context and action share a name",
			mutate: func(c *domain.Configuration) { c.Contexts = append(c.Contexts, domain.ContextDef{Name: "book"}) },
			code:   domain.CodeNameConflict,
			path:   "actions[2]",
		},
		{
			name: "Unsatisfiable association",
			mutate: func(c *domain.Configuration) {
				c.Contexts = append(c.Contexts, domain.ContextDef{Name: "PAID"})
				c.Actions[3].InputContexts = []string{"PAID"}
			},
			code: domain.CodeUnsatisfiable,
			path: "intentContexts[2].associations[0]",
		},
		{
			name: "Unreachable exit action",
			mutate: func(c *domain.Configuration) {
				c.Contexts = append(c.Contexts, domain.ContextDef{Name: "NEVER"})
				c.Actions = append(c.Actions, domain.Action{Name: "fallback", InputContexts: []string{"NEVER"}})
				c.StateMachine.States["fallback"] = &domain.MachineState{ID: "fallback"}
				c.UnknownAnswerConfigs[0].ExitAction = "fallback"
			},
			code: domain.CodeUnsatisfiable,
			path: "unknownAnswerConfigs[0].exitAction",
		},
		{
			name: "Unreachable redirect action",
			mutate: func(c *domain.Configuration) {
				c.Contexts = append(c.Contexts, domain.ContextDef{Name: "NEVER"})
				c.Actions = append(c.Actions, domain.Action{Name: "fallback", InputContexts: []string{"NEVER"}})
				c.StateMachine.States["fallback"] = &domain.MachineState{ID: "fallback"}
				c.Settings.RedirectAction = "fallback"
			},
			code: domain.CodeUnsatisfiable,
			path: "storySettings.redirectAction",
		},
		{
			name:   "Negative retries",
			mutate: func(c *domain.Configuration) { c.Settings.MaxRetries = -1 },
			code:   domain.CodeInvalidSettings,
			path:   "storySettings.maxRetries",
		},
		{
			name:   "Unknown redirect action",
			mutate: func(c *domain.Configuration) { c.Settings.RedirectAction = "escalate" },
			code:   domain.CodeUnknownAction,
			path:   "storySettings.redirectAction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validStory()
			tt.mutate(cfg)
			errs := Validate(cfg)
			require.NotEmpty(t, errs)
			assert.Contains(t, errs, findError(errs, tt.code, tt.path), "errors: %v", errs)
		})
	}
}

func TestValidate_Handlers(t *testing.T) {
	errs := Validate(validStory(), WithHandlers(handlerSet{}))
	require.Len(t, errs, 1)
	assert.Equal(t, domain.CodeUnknownHandler, errs[0].Code)
	assert.Equal(t, "actions[2].handler", errs[0].Path)
}

func TestValidate_MissingMachine(t *testing.T) {
	cfg := validStory()
	cfg.StateMachine = nil
	errs := Validate(cfg)
	assert.Equal(t, domain.CodeMissingInitial, errs[0].Code)

	assert.NotEmpty(t, Validate(nil))
}

// findError returns the matching error, or a sentinel that makes Contains fail.
func findError(errs []domain.StructuralError, code, path string) domain.StructuralError {
	for _, e := range errs {
		if e.Code == code && e.Path == path {
			return e
		}
	}
	return domain.StructuralError{Code: "missing " + code, Path: path}
}
