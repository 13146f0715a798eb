package runner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/runner"
)

// echo answers every intent with an answer id of the same name, fails on
// "boom" and ends the story on "bye".
type echo struct {
	sessions map[string]*domain.Session
	seen     []domain.UserAction
	storeErr error
}

func newEcho() *echo {
	return &echo{sessions: make(map[string]*domain.Session)}
}

func (e *echo) Handle(_ context.Context, id string, action domain.UserAction) (domain.Result, error) {
	if e.storeErr != nil {
		return nil, e.storeErr
	}
	e.seen = append(e.seen, action)
	switch action.Intent {
	case "boom":
		return domain.Fail(domain.HandlerExecutionError, "action %q failed", "boom"), nil
	case "bye":
		delete(e.sessions, id)
		return &domain.Success{Session: domain.NewSession("greet"), Final: true}, nil
	}
	s := domain.NewSession("greet")
	s.LastAction = action.Intent
	e.sessions[id] = s
	return &domain.Success{Session: s, Messages: []domain.Message{{AnswerID: action.Intent}}}, nil
}

func (e *echo) Session(_ context.Context, id string) (*domain.Session, error) {
	s, ok := e.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

func (e *echo) End(_ context.Context, id string) error {
	delete(e.sessions, id)
	return nil
}

func TestRunner_Text(t *testing.T) {
	conv := newEcho()
	in := strings.NewReader("hello\n\n/session\nbook destination=Paris\nboom\nbye\n/reset\n/session\n/quit\nnever\n")
	var out bytes.Buffer

	h := runner.NewTextHandler(in, &out)
	h.Prompt = ""
	r := runner.New(conv, "c1", runner.WithHandler(h), runner.WithBanner("--- travel ---"))
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []domain.UserAction{
		{Intent: "hello"},
		{Intent: "book", Entities: map[string]any{"destination": "Paris"}},
		{Intent: "boom"},
		{Intent: "bye"},
	}, conv.seen)

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "--- travel ---\n[hello]\n"))
	assert.Contains(t, got, `"last_action": "hello"`)
	assert.Contains(t, got, "[book]\n")
	assert.Contains(t, got, "! HandlerExecutionError: action \"boom\" failed\n")
	assert.Contains(t, got, "(the story ended; the next line starts over)\n")
	assert.Contains(t, got, "Conversation reset.\nNo session stored.\n")
	assert.True(t, strings.HasSuffix(got, "Bye!\n"))
}

func TestRunner_TextBadLine(t *testing.T) {
	conv := newEcho()
	var out bytes.Buffer
	h := runner.NewTextHandler(strings.NewReader("destination=Paris\nhello\n"), &out)
	h.Prompt = ""
	require.NoError(t, runner.New(conv, "c1", runner.WithHandler(h)).Run(context.Background()))

	assert.Equal(t, "! missing intent before \"destination=Paris\"\n[hello]\n", out.String())
	assert.Len(t, conv.seen, 1)
}

func TestRunner_JSON(t *testing.T) {
	conv := newEcho()
	in := strings.NewReader(strings.Join([]string{
		`{"intent":"hello"}`,
		`{"intent":"book","entities":{"destination":"Paris","passengers":2}}`,
		`not json`,
		`{"entities":{"x":1}}`,
		`{"intent":"boom"}`,
		`{"command":"session"}`,
		`{"intent":"bye"}`,
		`{"command":"quit"}`,
	}, "\n"))
	var out bytes.Buffer
	require.NoError(t, runner.New(conv, "c1", runner.WithHandler(runner.NewJSONHandler(in, &out))).Run(context.Background()))

	assert.Equal(t, map[string]any{"destination": "Paris", "passengers": float64(2)}, conv.seen[1].Entities)

	var events []runner.Event
	dec := json.NewDecoder(&out)
	for dec.More() {
		var ev runner.Event
		require.NoError(t, dec.Decode(&ev))
		events = append(events, ev)
	}
	require.Len(t, events, 8)

	assert.Equal(t, runner.EventResult, events[0].Type)
	assert.Equal(t, []domain.Message{{AnswerID: "hello"}}, events[0].Messages)
	assert.Equal(t, runner.EventSystem, events[2].Type)
	assert.Contains(t, events[2].Message, "invalid request")
	assert.Equal(t, "! request has no intent", events[3].Message)
	assert.Equal(t, runner.Event{Type: runner.EventFailure, Kind: "HandlerExecutionError", Detail: `action "boom" failed`}, events[4])
	assert.Equal(t, runner.EventSession, events[5].Type)
	require.NotNil(t, events[5].Session)
	assert.Equal(t, "book", events[5].Session.LastAction)
	assert.True(t, events[6].Final)
	assert.Equal(t, runner.Event{Type: runner.EventSystem, Message: "Bye!"}, events[7])
}

func TestRunner_StoreError(t *testing.T) {
	conv := newEcho()
	conv.storeErr = errors.New("redis down")
	h := runner.NewTextHandler(strings.NewReader("hello\n"), &bytes.Buffer{})
	err := runner.New(conv, "c1", runner.WithHandler(h)).Run(context.Background())
	assert.EqualError(t, err, "redis down")
}

func TestRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the pipe never delivers a line, so only the context can end the read
	pr, pw := io.Pipe()
	defer pw.Close()
	h := runner.NewTextHandler(pr, &bytes.Buffer{})
	assert.NoError(t, runner.New(newEcho(), "c1", runner.WithHandler(h)).Run(ctx))
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    domain.UserAction
		wantErr string
	}{
		{line: "hello", want: domain.UserAction{Intent: "hello"}},
		{
			line: "book destination=Paris passengers=2 window=true",
			want: domain.UserAction{Intent: "book", Entities: map[string]any{
				"destination": "Paris",
				"passengers":  2,
				"window":      true,
			}},
		},
		{line: "destination=Paris", wantErr: "missing intent"},
		{line: "book Paris", wantErr: "not key=value"},
		{line: "   ", wantErr: "empty line"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := runner.ParseLine(tt.line)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender(t *testing.T) {
	var out bytes.Buffer
	runner.Render(&out, &domain.Success{Messages: []domain.Message{{AnswerID: "booked"}, {Text: "flight to Paris booked"}}})
	runner.Render(&out, domain.Fail(domain.UnresolvedIntent, "no answer covers intent %q", "weather"))
	assert.Equal(t, "[booked]\nflight to Paris booked\n! UnresolvedIntent: no answer covers intent \"weather\"\n", out.String())
}
