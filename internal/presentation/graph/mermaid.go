package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/tick/pkg/domain"
)

// GraphOverlay contains session data to visualize on the graph.
type GraphOverlay struct {
	VisitedStates []string
	// CurrentStates are highlighted; a session inside a parallel state has
	// one per active region.
	CurrentStates []string
}

// OverlayOf builds the overlay of a session.
func OverlayOf(s *domain.Session) *GraphOverlay {
	if s == nil {
		return nil
	}
	o := &GraphOverlay{}
	if s.CurrentState != "" {
		o.CurrentStates = append(o.CurrentStates, s.CurrentState)
	}
	for _, leaf := range sortedValues(s.Regions) {
		if leaf != s.CurrentState {
			o.CurrentStates = append(o.CurrentStates, leaf)
		}
	}
	if s.LastAction != "" {
		o.VisitedStates = append(o.VisitedStates, s.LastAction)
	}
	return o
}

// GenerateMermaid renders the story state machine as a Mermaid
// stateDiagram-v2. Composite states nest, parallel regions are separated by
// "--" and every "on" entry becomes a labelled edge. Leaves are classed by
// the action they run:
// - wait: asks the user something
// - final: ends the story
// - handler: calls a registered handler
func GenerateMermaid(cfg *domain.Configuration, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	if cfg == nil || cfg.StateMachine == nil {
		return sb.String()
	}

	root := cfg.StateMachine
	rootID := root.ID
	if rootID == "" {
		rootID = "Global"
	}

	w := &writer{sb: &sb, cfg: cfg}
	fmt.Fprintf(&sb, "    [*] --> %s\n", sanitizeMermaidID(rootID))
	w.state(rootID, root, 1)
	w.edges(rootID, root)

	sb.WriteString("\n    %% Action Styles\n")
	sb.WriteString("    classDef wait fill:#fff3e0,stroke:#e65100,color:#000;\n")
	sb.WriteString("    classDef final fill:#eceff1,stroke:#263238,stroke-width:3px,color:#000;\n")
	sb.WriteString("    classDef handler fill:#f3e5f5,stroke:#4a148c,color:#000;\n")
	for _, a := range cfg.Actions {
		if class := actionClass(a); class != "" {
			fmt.Fprintf(&sb, "    class %s %s\n", sanitizeMermaidID(a.Name), class)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited\n", safeID)
			}
		}
		for _, id := range overlay.CurrentStates {
			if safeID := sanitizeMermaidID(id); safeID != "" {
				fmt.Fprintf(&sb, "    class %s current\n", safeID)
			}
		}
	}

	return sb.String()
}

type writer struct {
	sb  *strings.Builder
	cfg *domain.Configuration
}

func (w *writer) state(id string, node *domain.MachineState, depth int) {
	indent := strings.Repeat("    ", depth)
	safeID := sanitizeMermaidID(id)

	if node.IsLeaf() {
		if safeID != id {
			fmt.Fprintf(w.sb, "%sstate \"%s\" as %s\n", indent, id, safeID)
		} else {
			fmt.Fprintf(w.sb, "%s%s\n", indent, safeID)
		}
		return
	}

	fmt.Fprintf(w.sb, "%sstate %s {\n", indent, safeID)
	if node.IsParallel() {
		for i, childID := range node.ChildIDs() {
			if i > 0 {
				fmt.Fprintf(w.sb, "%s    --\n", indent)
			}
			w.state(stateID(childID, node.States[childID]), node.States[childID], depth+1)
		}
	} else {
		if node.Initial != "" {
			fmt.Fprintf(w.sb, "%s    [*] --> %s\n", indent, sanitizeMermaidID(domain.TargetID(node.Initial)))
		}
		for _, childID := range node.ChildIDs() {
			w.state(stateID(childID, node.States[childID]), node.States[childID], depth+1)
		}
	}
	fmt.Fprintf(w.sb, "%s}\n", indent)
}

// edges writes transitions after all states are declared, depth first in
// sorted order.
func (w *writer) edges(id string, node *domain.MachineState) {
	for _, ev := range node.Events() {
		to := domain.TargetID(node.On[ev])
		label := strings.ReplaceAll(ev, ":", "_")
		fmt.Fprintf(w.sb, "    %s --> %s : %s\n", sanitizeMermaidID(id), sanitizeMermaidID(to), label)
	}
	for _, childID := range node.ChildIDs() {
		child := node.States[childID]
		w.edges(stateID(childID, child), child)
	}
}

func stateID(key string, node *domain.MachineState) string {
	if node != nil && node.ID != "" {
		return node.ID
	}
	return key
}

func actionClass(a domain.Action) string {
	switch {
	case a.Final:
		return "final"
	case a.Wait:
		return "wait"
	case a.Handler != "":
		return "handler"
	}
	return ""
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[k])
	}
	return out
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
