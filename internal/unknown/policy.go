// Package unknown implements the bounded retry policy for intents the story
// cannot serve.
//
// Entries are matched by the last executed action and the intent, most
// specific first, before falling back to entries without an action scope and
// finally to the story's global unknown answer. Every occurrence bumps a
// retry counter; past the entry's bound the counter resets and control is
// forced to the entry's exit action.
package unknown

import (
	"github.com/aretw0/tick/pkg/domain"
)

const wildcard = "*"

// Decision is what the policy asks the processor to do.
type Decision struct {
	// Key identifies the retry counter that was bumped.
	Key   string
	Count int
	// AnswerID is re-served when the conversation stays in place.
	AnswerID string
	// ExitAction is set when the retry bound was exceeded.
	ExitAction string
}

// Exit reports whether the decision forces the exit action.
func (d Decision) Exit() bool {
	return d.ExitAction != ""
}

// Policy is built once per story.
type Policy struct {
	entries  []domain.UnknownAnswerConfig
	settings domain.StorySettings
}

// New creates the policy of a story.
func New(cfg *domain.Configuration) *Policy {
	return &Policy{entries: cfg.UnknownAnswerConfigs, settings: cfg.Settings}
}

// Claims reports whether an entry names the intent explicitly. Such intents
// go to the policy even when the story could otherwise serve them.
func (p *Policy) Claims(intent string) bool {
	if intent == domain.UnknownIntent {
		return true
	}
	for _, e := range p.entries {
		if e.Intent == intent {
			return true
		}
	}
	return false
}

// Match returns the entry that covers the intent after lastAction.
func (p *Policy) Match(lastAction, intent string) (domain.UnknownAnswerConfig, bool) {
	passes := []struct{ action, intent string }{
		{lastAction, intent},
		{lastAction, ""},
		{"", intent},
		{"", ""},
	}
	for _, pass := range passes {
		for _, e := range p.entries {
			if e.Action == pass.action && e.Intent == pass.intent {
				return e, true
			}
		}
	}
	if p.settings.UnknownAnswerID != "" {
		return domain.UnknownAnswerConfig{AnswerID: p.settings.UnknownAnswerID}, true
	}
	return domain.UnknownAnswerConfig{}, false
}

// Handle applies the policy, updating counters in place. It returns false
// when nothing covers the intent.
func (p *Policy) Handle(counters map[string]int, lastAction, intent string) (Decision, bool) {
	entry, ok := p.Match(lastAction, intent)
	if !ok {
		return Decision{}, false
	}

	key := counterKey(entry)
	counters[key]++
	d := Decision{Key: key, Count: counters[key], AnswerID: entry.AnswerID}

	limit := p.settings.MaxRetries
	if entry.RetryNb != nil {
		limit = *entry.RetryNb
	}
	if d.Count > limit {
		delete(counters, key)
		if entry.ExitAction != "" {
			d.AnswerID = ""
			d.ExitAction = entry.ExitAction
		}
	}
	return d, true
}

func counterKey(e domain.UnknownAnswerConfig) string {
	scope, intent := e.Action, e.Intent
	if scope == "" {
		scope = wildcard
	}
	if intent == "" {
		intent = wildcard
	}
	return scope + "|" + intent
}
