package runner

import (
	"context"

	"github.com/aretw0/tick/pkg/domain"
)

// Command is a control instruction read alongside user actions.
type Command string

const (
	// CommandNone marks an input that carries a user action.
	CommandNone Command = ""
	// CommandQuit stops the runner.
	CommandQuit Command = "quit"
	// CommandReset deletes the stored session of the conversation.
	CommandReset Command = "reset"
	// CommandSession prints the stored session.
	CommandSession Command = "session"
)

// Input is one unit read from the user: either a command or an action.
type Input struct {
	Command Command
	Action  domain.UserAction
}

// IOHandler defines the strategy for talking to the user.
// This allows switching between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Input blocks until the next input is available. io.EOF ends the run.
	// A *InputError reports a malformed input the runner should skip.
	Input(ctx context.Context) (Input, error)

	// Output presents the result of one turn.
	Output(ctx context.Context, res domain.Result) error

	// Session presents the stored session; nil means the conversation has none.
	Session(ctx context.Context, s *domain.Session) error

	// SystemOutput presents a meta-message (banner, notices, input errors).
	SystemOutput(ctx context.Context, msg string) error
}

// InputError wraps a malformed input. The runner reports it and keeps going.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }

func (e *InputError) Unwrap() error { return e.Err }
