package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/tick/pkg/domain"
)

// lines reads a stream line by line on its own goroutine so callers can
// give up on a read when their context ends.
type lines struct {
	reader *bufio.Reader
	ch     chan lineResult
	once   sync.Once
}

type lineResult struct {
	text string
	err  error
}

func newLines(r io.Reader) *lines {
	return &lines{reader: bufio.NewReader(r)}
}

func (l *lines) pump() {
	for {
		text, err := l.reader.ReadString('\n')
		if text != "" {
			l.ch <- lineResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				l.ch <- lineResult{err: err}
			}
			close(l.ch)
			return
		}
	}
}

// next returns the next non-blank line, sanitized.
func (l *lines) next(ctx context.Context) (string, error) {
	l.once.Do(func() {
		l.ch = make(chan lineResult)
		go l.pump()
	})
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-l.ch:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			text := strings.TrimSpace(res.text)
			if text == "" {
				continue
			}
			clean, err := SanitizeInput(text)
			if err != nil {
				return "", &InputError{Err: err}
			}
			return clean, nil
		}
	}
}

// TextHandler implements the line based terminal interface.
type TextHandler struct {
	in     *lines
	Writer io.Writer
	// Prompt is printed before every read. Empty disables it.
	Prompt string
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &TextHandler{in: newLines(r), Writer: w, Prompt: "> "}
}

func (h *TextHandler) Input(ctx context.Context) (Input, error) {
	if h.Prompt != "" {
		fmt.Fprint(h.Writer, h.Prompt)
	}
	line, err := h.in.next(ctx)
	if err != nil {
		if err == io.EOF && h.Prompt != "" {
			fmt.Fprintln(h.Writer)
		}
		return Input{}, err
	}
	switch line {
	case "/quit", "/exit":
		return Input{Command: CommandQuit}, nil
	case "/reset":
		return Input{Command: CommandReset}, nil
	case "/session":
		return Input{Command: CommandSession}, nil
	}
	action, err := ParseLine(line)
	if err != nil {
		return Input{}, &InputError{Err: err}
	}
	return Input{Action: action}, nil
}

func (h *TextHandler) Output(_ context.Context, res domain.Result) error {
	Render(h.Writer, res)
	return nil
}

func (h *TextHandler) Session(_ context.Context, s *domain.Session) error {
	if s == nil {
		_, err := fmt.Fprintln(h.Writer, "No session stored.")
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(h.Writer, string(data))
	return err
}

func (h *TextHandler) SystemOutput(_ context.Context, msg string) error {
	_, err := fmt.Fprintln(h.Writer, msg)
	return err
}

// ParseLine reads "intent key=value ...". Values are YAML scalars, so
// numbers and booleans keep their type.
func ParseLine(line string) (domain.UserAction, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return domain.UserAction{}, fmt.Errorf("empty line")
	}
	action := domain.UserAction{Intent: fields[0]}
	if strings.Contains(action.Intent, "=") {
		return domain.UserAction{}, fmt.Errorf("missing intent before %q", action.Intent)
	}
	for _, f := range fields[1:] {
		key, raw, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return domain.UserAction{}, fmt.Errorf("entity %q is not key=value", f)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		if action.Entities == nil {
			action.Entities = make(map[string]any)
		}
		action.Entities[key] = value
	}
	return action, nil
}

// Render prints a turn result: answer ids in brackets, texts as they are
// and failures prefixed with "!".
func Render(out io.Writer, res domain.Result) {
	switch r := res.(type) {
	case *domain.Success:
		for _, m := range r.Messages {
			if m.AnswerID != "" {
				fmt.Fprintf(out, "[%s]\n", m.AnswerID)
			}
			if m.Text != "" {
				fmt.Fprintln(out, m.Text)
			}
		}
		if r.Final {
			fmt.Fprintln(out, "(the story ended; the next line starts over)")
		}
	case *domain.Failure:
		fmt.Fprintf(out, "! %s: %s\n", r.Kind, r.Detail)
	}
}
