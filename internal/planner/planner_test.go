package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tick/internal/statemachine"
	"github.com/aretw0/tick/pkg/domain"
)

func flat(initial string, actions ...domain.Action) *domain.MachineState {
	root := &domain.MachineState{ID: "Global", Initial: initial, States: map[string]*domain.MachineState{}}
	for _, a := range actions {
		root.States[a.Name] = &domain.MachineState{ID: a.Name}
	}
	return root
}

func build(t *testing.T, cfg *domain.Configuration) *Planner {
	t.Helper()
	m, err := statemachine.New(cfg.StateMachine)
	require.NoError(t, err)
	return New(cfg, m)
}

func greetBye() *domain.Configuration {
	actions := []domain.Action{
		{Name: "greet", OutputContexts: []string{"GREETED"}},
		{Name: "bye", InputContexts: []string{"GREETED"}, Final: true},
	}
	return &domain.Configuration{
		StateMachine: flat("greet", actions...),
		Contexts:     []domain.ContextDef{{Name: "GREETED"}},
		Actions:      actions,
		IntentContexts: []domain.IntentContexts{
			{Intent: "hello", Associations: []domain.Association{{Action: "greet"}}},
			{Intent: "goodbye", Associations: []domain.Association{{Action: "bye"}}},
			{Intent: "quick_bye", Associations: []domain.Association{{Action: "bye", Contexts: []string{"GREETED"}}}},
		},
	}
}

func never(string) bool { return false }

func TestResolve_GreetBye(t *testing.T) {
	p := build(t, greetBye())
	pos := statemachine.Position{Current: "greet"}

	t.Run("Goodbye before greeting is unsatisfiable at runtime", func(t *testing.T) {
		_, err := p.Resolve(pos, "goodbye", nil, p.RuntimeExclusion(never))
		var unsat *UnsatisfiableError
		require.ErrorAs(t, err, &unsat)
		assert.Equal(t, []string{"GREETED"}, unsat.Missing["bye"])
		assert.Contains(t, err.Error(), `bye needs [GREETED]`)
	})

	t.Run("Goodbye after greeting", func(t *testing.T) {
		plan, err := p.Resolve(pos, "goodbye", map[string]bool{"GREETED": true}, p.RuntimeExclusion(never))
		require.NoError(t, err)
		assert.Equal(t, []string{"bye"}, plan.Chain)
		assert.Equal(t, "bye", plan.Objective)
	})

	t.Run("Association contexts are asserted", func(t *testing.T) {
		plan, err := p.Resolve(pos, "quick_bye", nil, p.RuntimeExclusion(never))
		require.NoError(t, err)
		assert.Equal(t, []string{"bye"}, plan.Chain)
		assert.Equal(t, []string{"GREETED"}, plan.Contexts)
	})

	t.Run("Static chain may use every action", func(t *testing.T) {
		chain, missing := p.Chain("bye", nil, nil)
		assert.Empty(t, missing)
		assert.Equal(t, []string{"greet", "bye"}, chain)
	})
}

func TestChain_Helpers(t *testing.T) {
	actions := []domain.Action{
		{Name: "ask_destination", Wait: true, OutputContexts: []string{"DESTINATION"}},
		{Name: "ask_date", Wait: true, OutputContexts: []string{"DATE"}},
		{Name: "lookup_fare", InputContexts: []string{"ROUTE"}, OutputContexts: []string{"FARE"}},
		{Name: "dead_end", InputContexts: []string{"NEVER"}, OutputContexts: []string{"ROUTE"}},
		{Name: "route", InputContexts: []string{"DESTINATION"}, OutputContexts: []string{"ROUTE"}},
		{Name: "book", InputContexts: []string{"DESTINATION", "DATE", "FARE"}},
	}
	p := build(t, &domain.Configuration{StateMachine: flat("book", actions...), Actions: actions})

	chain, missing := p.Chain("book", nil, nil)
	require.Empty(t, missing)
	assert.Equal(t, []string{"ask_destination", "ask_date", "route", "lookup_fare", "book"}, chain)

	chain, _ = p.Chain("book", map[string]bool{"DESTINATION": true, "DATE": true}, nil)
	assert.Equal(t, []string{"route", "lookup_fare", "book"}, chain, "dead_end is abandoned without leftovers")

	ran := map[string]bool{"route": true}
	_, missing = p.Chain("book", map[string]bool{"DESTINATION": true, "DATE": true}, func(a *domain.Action) bool { return ran[a.Name] })
	assert.Equal(t, []string{"FARE"}, missing)
}

func TestChain_CyclicProducersTerminate(t *testing.T) {
	actions := []domain.Action{
		{Name: "a", InputContexts: []string{"Y"}, OutputContexts: []string{"X"}},
		{Name: "b", InputContexts: []string{"X"}, OutputContexts: []string{"Y"}},
		{Name: "goal", InputContexts: []string{"X"}},
	}
	p := build(t, &domain.Configuration{StateMachine: flat("goal", actions...), Actions: actions})

	chain, missing := p.Chain("goal", nil, nil)
	assert.Nil(t, chain)
	assert.Equal(t, []string{"X"}, missing)

	_, missing = p.Chain("nope", nil, nil)
	assert.Equal(t, []string{"action nope"}, missing)
}

func shop() *domain.Configuration {
	actions := []domain.Action{
		{Name: "home"},
		{Name: "faq"},
		{Name: "cart"},
		{Name: "pay"},
	}
	return &domain.Configuration{
		StateMachine: &domain.MachineState{
			ID:      "Global",
			Initial: "home",
			States: map[string]*domain.MachineState{
				"home": {ID: "home"},
				"faq":  {ID: "faq"},
				"shop": {
					ID:      "shop",
					Initial: "cart",
					States: map[string]*domain.MachineState{
						"cart": {ID: "cart", On: map[string]string{"checkout": "#pay"}},
						"pay":  {ID: "pay"},
					},
				},
			},
		},
		Actions: actions,
		IntentContexts: []domain.IntentContexts{
			{Intent: "help", Associations: []domain.Association{{Action: "faq"}, {Action: "pay"}}},
			{Intent: "browse", Associations: []domain.Association{{Action: "cart"}, {Action: "home"}}},
			{Intent: "buy", Associations: []domain.Association{{Action: "pay"}, {Action: "cart"}}},
		},
	}
}

func TestCandidates_Ordering(t *testing.T) {
	p := build(t, shop())

	t.Run("Closest first", func(t *testing.T) {
		got := p.Candidates(statemachine.Position{Current: "cart"}, "help")
		require.Len(t, got, 2)
		assert.Equal(t, "pay", got[0].Goal)
		assert.Equal(t, "faq", got[1].Goal)

		got = p.Candidates(statemachine.Position{Current: "home"}, "help")
		assert.Equal(t, "faq", got[0].Goal)
	})

	t.Run("Declaration order breaks ties", func(t *testing.T) {
		got := p.Candidates(statemachine.Position{Current: "faq"}, "help")
		assert.Equal(t, "faq", got[0].Goal)

		// pay and cart are both 3 edges away; cart is declared first
		got = p.Candidates(statemachine.Position{Current: "faq"}, "buy")
		assert.Equal(t, []string{"cart", "pay"}, []string{got[0].Goal, got[1].Goal})

		got = p.Candidates(statemachine.Position{Current: "faq"}, "browse")
		assert.Equal(t, []string{"home", "cart"}, []string{got[0].Goal, got[1].Goal})
	})

	t.Run("Transition target", func(t *testing.T) {
		pos := statemachine.Position{Current: "cart"}
		assert.True(t, p.Known(pos, "checkout"))
		assert.False(t, p.Known(statemachine.Position{Current: "home"}, "checkout"))

		got := p.Candidates(pos, "checkout")
		require.Len(t, got, 1)
		assert.Equal(t, Candidate{Objective: "pay", Goal: "pay"}, got[0])
	})
}

func TestGoalOf(t *testing.T) {
	p := build(t, shop())
	pos := statemachine.Position{Current: "home"}

	assert.Equal(t, "cart", p.GoalOf(pos, "shop"), "compound objective descends")
	assert.Equal(t, "faq", p.GoalOf(pos, "#faq"))
}

func TestResolve_ParallelWithoutTargets(t *testing.T) {
	cfg := &domain.Configuration{
		StateMachine: &domain.MachineState{
			ID:      "Global",
			Initial: "home",
			On:      map[string]string{"go": "#par"},
			States: map[string]*domain.MachineState{
				"home": {ID: "home"},
				"par": {
					ID:   "par",
					Kind: domain.KindParallel,
					States: map[string]*domain.MachineState{
						"r1": {ID: "r1", Initial: "a", States: map[string]*domain.MachineState{"a": {ID: "a"}}},
						"r2": {ID: "r2", Initial: "b", States: map[string]*domain.MachineState{"b": {ID: "b"}}},
					},
				},
			},
		},
		Actions: []domain.Action{{Name: "home"}, {Name: "a"}, {Name: "b"}},
	}
	p := build(t, cfg)

	plan, err := p.Resolve(statemachine.Position{Current: "home"}, "go", nil, p.RuntimeExclusion(never))
	require.NoError(t, err)
	assert.Equal(t, "par", plan.Objective)
	assert.Empty(t, plan.Goal)
	assert.Empty(t, plan.Chain)
}
