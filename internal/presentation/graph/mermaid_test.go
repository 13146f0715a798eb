package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/tick/internal/presentation/graph"
	"github.com/aretw0/tick/pkg/domain"
)

func flat() *domain.Configuration {
	return &domain.Configuration{
		Name: "travel",
		StateMachine: &domain.MachineState{
			ID:      "Global",
			Initial: "greet",
			On:      map[string]string{"restart": "#greet"},
			States: map[string]*domain.MachineState{
				"greet":           {ID: "greet"},
				"ask-destination": {ID: "ask-destination", On: map[string]string{"cancel": "help"}},
				"book":            {ID: "book"},
				"help":            {ID: "help"},
				"bye":             {ID: "bye"},
			},
		},
		Actions: []domain.Action{
			{Name: "greet"},
			{Name: "ask-destination", Wait: true},
			{Name: "book", Handler: "flights.book"},
			{Name: "help"},
			{Name: "bye", Final: true},
		},
	}
}

func checkout() *domain.Configuration {
	return &domain.Configuration{
		StateMachine: &domain.MachineState{
			ID:      "Global",
			Initial: "welcome",
			States: map[string]*domain.MachineState{
				"welcome": {ID: "welcome"},
				"checkout": {
					ID:   "checkout",
					Kind: domain.KindParallel,
					States: map[string]*domain.MachineState{
						"payment": {ID: "payment", Initial: "choose_payment", States: map[string]*domain.MachineState{
							"choose_payment": {ID: "choose_payment"},
						}},
						"shipping": {ID: "shipping", Initial: "choose_shipping", States: map[string]*domain.MachineState{
							"choose_shipping": {ID: "choose_shipping"},
						}},
					},
				},
			},
		},
	}
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *domain.Configuration
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name: "Flat Story",
			cfg:  flat(),
			contains: []string{
				"stateDiagram-v2\n",
				"    [*] --> Global\n",
				"    state Global {\n",
				"        [*] --> greet\n",
				"        book\n",
			},
		},
		{
			name: "ID Sanitization",
			cfg:  flat(),
			contains: []string{
				`state "ask-destination" as ask_destination`,
				"    ask_destination --> help : cancel\n",
			},
		},
		{
			name: "Root Transitions",
			cfg:  flat(),
			contains: []string{"    Global --> greet : restart\n"},
		},
		{
			name: "Action Classes",
			cfg:  flat(),
			contains: []string{
				"    class ask_destination wait\n",
				"    class book handler\n",
				"    class bye final\n",
			},
			excludes: []string{"class greet", "Overlay Styles"},
		},
		{
			name: "Parallel Regions",
			cfg:  checkout(),
			contains: []string{
				"        state checkout {\n",
				"            state payment {\n",
				"            --\n",
				"                [*] --> choose_shipping\n",
			},
		},
		{
			name: "Overlay",
			cfg:  flat(),
			overlay: graph.OverlayOf(&domain.Session{
				CurrentState: "ask-destination",
				LastAction:   "greet",
			}),
			contains: []string{
				"classDef current",
				"    class greet visited\n",
				"    class ask_destination current\n",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.cfg, tt.overlay)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, got, unwanted)
			}
		})
	}
}

func TestGenerateMermaid_Deterministic(t *testing.T) {
	first := graph.GenerateMermaid(checkout(), nil)
	for range 10 {
		assert.Equal(t, first, graph.GenerateMermaid(checkout(), nil))
	}
	assert.Less(t, strings.Index(first, "state payment"), strings.Index(first, "state shipping"))
}

func TestOverlayOf_Regions(t *testing.T) {
	o := graph.OverlayOf(&domain.Session{
		CurrentState: "choose_shipping",
		Regions:      map[string]string{"shipping": "choose_shipping", "payment": "choose_payment"},
	})
	assert.Equal(t, []string{"choose_shipping", "choose_payment"}, o.CurrentStates)
	assert.Nil(t, graph.OverlayOf(nil))
	assert.Equal(t, "stateDiagram-v2\n", graph.GenerateMermaid(nil, nil))
}
