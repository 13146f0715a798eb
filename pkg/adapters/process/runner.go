package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/tick/internal/logging"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/registry"
	"github.com/aretw0/tick/pkg/sender"
)

// EnvPrefix prefixes the environment variable carrying each input context.
const EnvPrefix = "TICK_CTX_"

// Runner exposes allow-listed commands as action handlers. It is a
// registry.Provider: mount it to make its commands callable from a story.
//
// A command receives its action's input contexts twice: as one JSON object
// on stdin and as TICK_CTX_<NAME> environment variables. It answers on
// stdout either with a JSON reply
//
//	{"contexts": {"BOOKED": true}, "messages": [{"text": "booked!"}]}
//
// or with plain text, each non-empty line becoming a message. A non-zero
// exit fails the action.
type Runner struct {
	namespace string
	registry  map[string]RegisteredProcess
	baseDir   string
	timeout   time.Duration
	logger    *slog.Logger
}

// RegisteredProcess defines an allowed command execution.
type RegisteredProcess struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Reply is the JSON a command may print on stdout.
type Reply struct {
	Contexts map[string]any   `json:"contexts"`
	Messages []domain.Message `json:"messages"`
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(cfg *ConfigFile) RunnerOption {
	return func(r *Runner) {
		if cfg == nil {
			return
		}
		if cfg.Namespace != "" {
			r.namespace = cfg.Namespace
		}
		for _, h := range cfg.Handlers {
			r.registry[h.Name] = RegisteredProcess{Command: h.Command, Args: h.Args, Env: h.Env}
		}
	}
}

// WithNamespace sets the namespace handlers are mounted under.
func WithNamespace(ns string) RunnerOption {
	return func(r *Runner) {
		r.namespace = ns
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithTimeout bounds each execution. Zero leaves only the turn context.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLogger sets the logger used by the runner.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]RegisteredProcess),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = RegisteredProcess{
		Command: command,
		Args:    args,
	}
}

// Namespace implements registry.Provider.
func (r *Runner) Namespace() string {
	return r.namespace
}

// Handlers implements registry.Provider.
func (r *Runner) Handlers() map[string]registry.HandlerFunc {
	out := make(map[string]registry.HandlerFunc, len(r.registry))
	for name := range r.registry {
		out[name] = func(ctx context.Context, in map[string]any, s sender.Sender) (map[string]any, error) {
			return r.Execute(ctx, name, in, s)
		}
	}
	return out
}

// Execute runs the command registered under name.
func (r *Runner) Execute(ctx context.Context, name string, in map[string]any, s sender.Sender) (map[string]any, error) {
	proc, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("process handler not registered: %s", name)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	stdin, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inputs: %w", err)
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = append(cmd.Environ(), environment(proc.Env, in)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	r.logger.DebugContext(ctx, "process handler finished", "handler", name, "command", proc.Command, "duration", time.Since(start), "err", err)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	return decodeReply(stdout.String(), s)
}

// environment serializes inputs: primitives with %v, anything else as JSON.
func environment(static map[string]string, in map[string]any) []string {
	env := make([]string, 0, len(static)+len(in))
	for _, k := range sortedKeys(static) {
		env = append(env, k+"="+static[k])
	}
	for _, k := range sortedKeys(in) {
		var val string
		switch v := in[k].(type) {
		case string, int, int64, float64, bool:
			val = fmt.Sprintf("%v", v)
		case nil:
			val = ""
		default:
			if data, err := json.Marshal(v); err == nil {
				val = string(data)
			} else {
				val = fmt.Sprintf("%v", v)
			}
		}
		env = append(env, EnvPrefix+strings.ToUpper(k)+"="+val)
	}
	return env
}

func decodeReply(output string, s sender.Sender) (map[string]any, error) {
	trimmed := strings.TrimSpace(output)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		var reply Reply
		if err := json.Unmarshal([]byte(trimmed), &reply); err != nil {
			return nil, fmt.Errorf("invalid reply: %w", err)
		}
		for _, m := range reply.Messages {
			s.Send(m)
		}
		return reply.Contexts, nil
	}

	for _, line := range strings.Split(trimmed, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			s.Send(sender.Text(line))
		}
	}
	return nil, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
