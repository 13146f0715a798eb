package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/tick/pkg/domain"
)

// Event types written by the JSONHandler.
const (
	EventResult  = "result"
	EventFailure = "failure"
	EventSession = "session"
	EventSystem  = "system"
)

// Event is one line written by the JSONHandler.
type Event struct {
	Type     string           `json:"type"`
	Final    bool             `json:"final,omitempty"`
	Messages []domain.Message `json:"messages,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	Detail   string           `json:"detail,omitempty"`
	Session  *domain.Session  `json:"session,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// request is one line read by the JSONHandler. A line carries either a
// command or a user action.
type request struct {
	Command  Command        `json:"command,omitempty"`
	Intent   string         `json:"intent"`
	Entities map[string]any `json:"entities,omitempty"`
}

// JSONHandler implements the IOHandler interface for JSON-Lines communication.
type JSONHandler struct {
	in      *lines
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{in: newLines(r), Encoder: json.NewEncoder(w)}
}

func (h *JSONHandler) Input(ctx context.Context) (Input, error) {
	line, err := h.in.next(ctx)
	if err != nil {
		return Input{}, err
	}

	var req request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return Input{}, &InputError{Err: fmt.Errorf("invalid request: %w", err)}
	}
	if req.Command != CommandNone {
		return Input{Command: req.Command}, nil
	}
	if req.Intent == "" {
		return Input{}, &InputError{Err: fmt.Errorf("request has no intent")}
	}
	return Input{Action: domain.UserAction{Intent: req.Intent, Entities: req.Entities}}, nil
}

func (h *JSONHandler) Output(_ context.Context, res domain.Result) error {
	switch r := res.(type) {
	case *domain.Success:
		return h.Encoder.Encode(Event{Type: EventResult, Final: r.Final, Messages: r.Messages})
	case *domain.Failure:
		return h.Encoder.Encode(Event{Type: EventFailure, Kind: string(r.Kind), Detail: r.Detail})
	}
	return fmt.Errorf("unsupported result %T", res)
}

func (h *JSONHandler) Session(_ context.Context, s *domain.Session) error {
	return h.Encoder.Encode(Event{Type: EventSession, Session: s})
}

func (h *JSONHandler) SystemOutput(_ context.Context, msg string) error {
	return h.Encoder.Encode(Event{Type: EventSystem, Message: msg})
}
