package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gowebpki/jcs"

	"github.com/aretw0/tick/internal/logging"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/ports"
)

// Processor is the engine a dataset is replayed against.
type Processor interface {
	ports.TurnProcessor
	Configuration() *domain.Configuration
}

// Outcome values of a successful step. Failed steps carry the failure kind.
const (
	OutcomeSuccess = "success"
	OutcomeFinal   = "final"
)

// Step records one turn and the session it left behind.
type Step struct {
	Intent     string           `json:"intent"`
	Entities   map[string]any   `json:"entities,omitempty"`
	Outcome    string           `json:"outcome"`
	Detail     string           `json:"detail,omitempty"`
	Messages   []domain.Message `json:"messages"`
	State      string           `json:"state"`
	Contexts   map[string]any   `json:"contexts"`
	Objectives []string         `json:"objectives"`
}

// Exchange is the replay of one conversation.
type Exchange struct {
	ID    string `json:"id"`
	Turns []Step `json:"turns"`
}

// Transcript is the replay of a whole dataset.
type Transcript struct {
	Story         string     `json:"story"`
	Conversations []Exchange `json:"conversations"`
}

// Canonical renders the transcript as RFC 8785 JSON.
func (t *Transcript) Canonical() ([]byte, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize transcript: %w", err)
	}
	return out, nil
}

// Replayer drives datasets through a Processor.
type Replayer struct {
	processor Processor
	logger    *slog.Logger
}

// Option configures the Replayer.
type Option func(*Replayer)

// WithLogger sets the logger used by the replayer.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Replayer) {
		r.logger = logger
	}
}

// New creates a Replayer.
func New(p Processor, opts ...Option) *Replayer {
	r := &Replayer{
		processor: p,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run replays every conversation of the dataset. A failed turn is recorded
// and the conversation goes on with the session it had before that turn.
func (r *Replayer) Run(ctx context.Context, ds *Dataset) (*Transcript, error) {
	t := &Transcript{
		Story:         r.processor.Configuration().Name,
		Conversations: make([]Exchange, 0, len(ds.Conversations)),
	}
	for _, c := range ds.Conversations {
		ex, err := r.conversation(ctx, c)
		if err != nil {
			return nil, err
		}
		t.Conversations = append(t.Conversations, ex)
	}
	return t, nil
}

func (r *Replayer) conversation(ctx context.Context, c Conversation) (Exchange, error) {
	ex := Exchange{ID: c.ID, Turns: make([]Step, 0, len(c.Turns))}
	s := r.processor.NewSession()
	for _, action := range c.Turns {
		if err := ctx.Err(); err != nil {
			return Exchange{}, fmt.Errorf("replay of %q interrupted: %w", c.ID, err)
		}
		step := Step{Intent: action.Intent, Entities: action.Entities}

		switch res := r.processor.Process(ctx, s, action).(type) {
		case *domain.Success:
			step.Outcome = OutcomeSuccess
			if res.Final {
				step.Outcome = OutcomeFinal
			}
			step.Messages = res.Messages
			s = res.Session
		case *domain.Failure:
			step.Outcome = string(res.Kind)
			step.Detail = res.Detail
		}
		record(&step, s)

		r.logger.DebugContext(ctx, "turn replayed", "conversation", c.ID, "intent", action.Intent, "outcome", step.Outcome)
		ex.Turns = append(ex.Turns, step)
	}
	return ex, nil
}

func record(step *Step, s *domain.Session) {
	if step.Messages == nil {
		step.Messages = []domain.Message{}
	}
	step.State = s.CurrentState
	step.Contexts = s.Contexts
	if step.Contexts == nil {
		step.Contexts = map[string]any{}
	}
	step.Objectives = append([]string{}, s.ObjectivesStack...)
}

// Run replays a dataset with a default Replayer.
func Run(ctx context.Context, p Processor, ds *Dataset) (*Transcript, error) {
	return New(p).Run(ctx, ds)
}
