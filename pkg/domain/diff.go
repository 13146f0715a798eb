package domain

import (
	"reflect"
	"slices"
)

// SessionDiff represents the changes a turn made to a session.
// It is designed to be serialized to JSON for hosts and transcripts.
type SessionDiff struct {
	CurrentState *string `json:"current_state,omitempty"`

	// Contexts contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Contexts map[string]any `json:"contexts,omitempty"`

	// Objectives is the whole stack, present only when it changed.
	Objectives []string `json:"objectives,omitempty"`
}

// Diff calculates the difference between prev and next.
// If prev is nil, it returns a diff representing the entire next session.
// It returns nil when nothing changed.
func Diff(prev, next *Session) *SessionDiff {
	if next == nil {
		return nil
	}

	diff := &SessionDiff{}
	if prev == nil || prev.CurrentState != next.CurrentState {
		diff.CurrentState = &next.CurrentState
	}
	diff.Contexts = diffContexts(prev, next)
	if prev == nil || !slices.Equal(prev.ObjectivesStack, next.ObjectivesStack) {
		if len(next.ObjectivesStack) > 0 {
			diff.Objectives = append([]string(nil), next.ObjectivesStack...)
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffContexts(prev, next *Session) map[string]any {
	delta := make(map[string]any)

	if prev == nil {
		for k, v := range next.Contexts {
			delta[k] = v
		}
	} else {
		for k, nextVal := range next.Contexts {
			prevVal, exists := prev.Contexts[k]
			if !exists || !reflect.DeepEqual(prevVal, nextVal) {
				delta[k] = nextVal
			}
		}
		for k := range prev.Contexts {
			if _, exists := next.Contexts[k]; !exists {
				delta[k] = nil
			}
		}
	}

	// nil lets omitempty drop the key
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.CurrentState == nil &&
		len(d.Contexts) == 0 &&
		len(d.Objectives) == 0
}
