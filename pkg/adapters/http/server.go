// Package http exposes a Tick engine over HTTP: story validation, turns of
// conversations, session inspection and per-conversation change streams.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/tick"
	"github.com/aretw0/tick/internal/logging"
	"github.com/aretw0/tick/pkg/adapters/file"
	"github.com/aretw0/tick/pkg/domain"
)

// MaxBodySize caps request bodies (story documents included).
const MaxBodySize = 1 << 20

// Engine is the part of the tick facade the server drives.
type Engine interface {
	Configuration() *domain.Configuration
	Handle(ctx context.Context, conversationID string, action domain.UserAction) (domain.Result, error)
	Session(ctx context.Context, conversationID string) (*domain.Session, error)
	End(ctx context.Context, conversationID string) error
}

// Server serves one engine.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	metrics http.Handler
	logger  *slog.Logger
	newID   func() string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts a metrics handler on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithIDGenerator overrides conversation id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		s.newID = fn
	}
}

// NewHandler creates the HTTP handler of an engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger

	r := chi.NewRouter()
	r.Use(enableCORS)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Post("/validate", s.Validate)
	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", s.CreateConversation)
		r.Get("/{id}", s.GetConversation)
		r.Delete("/{id}", s.DeleteConversation)
		r.Post("/{id}/turns", s.PostTurn)
		r.Get("/{id}/events", s.SubscribeEvents)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ValidateResponse is the body of POST /validate.
type ValidateResponse struct {
	Valid  bool                     `json:"valid"`
	Errors []domain.StructuralError `json:"errors,omitempty"`
}

// TurnRequest is the body of POST /conversations/{id}/turns.
type TurnRequest struct {
	Intent   string         `mapstructure:"intent" validate:"required,max=128,printascii"`
	Entities map[string]any `mapstructure:"entities" validate:"max=64,dive,keys,required,max=128,endkeys"`
}

// TurnResponse is the body answered for a turn.
type TurnResponse struct {
	Success  bool             `json:"success"`
	Final    bool             `json:"final,omitempty"`
	Messages []domain.Message `json:"messages,omitempty"`
	Session  *domain.Session  `json:"session,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	Detail   string           `json:"detail,omitempty"`
}

var validate = validator.New()

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "tick-http",
		"version": strings.TrimSpace(tick.Version),
		"story":   s.Engine.Configuration().Name,
	})
}

// Validate handles POST /validate. The body is a YAML or JSON story.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := file.DecodeStory(data)
	if err != nil {
		s.writeJSON(w, http.StatusOK, ValidateResponse{Errors: []domain.StructuralError{{
			Code:    domain.CodeInvalidStructure,
			Message: err.Error(),
		}}})
		return
	}
	errs := tick.Validate(cfg, nil)
	s.writeJSON(w, http.StatusOK, ValidateResponse{Valid: len(errs) == 0, Errors: errs})
}

// CreateConversation handles POST /conversations.
func (s *Server) CreateConversation(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": s.newID()})
}

// GetConversation handles GET /conversations/{id}.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.Engine.Session(r.Context(), id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, "load conversation", err)
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

// DeleteConversation handles DELETE /conversations/{id}.
func (s *Server) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.End(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.internalError(w, "delete conversation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostTurn handles POST /conversations/{id}/turns.
func (s *Server) PostTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action, err := decodeTurn(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid turn: %v", err), http.StatusBadRequest)
		s.logger.Warn("turn rejected", "conversation_id", id, "err", err)
		return
	}

	prev, err := s.Engine.Session(r.Context(), id)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		s.internalError(w, "load conversation", err)
		return
	}

	res, err := s.Engine.Handle(r.Context(), id, action)
	if err != nil {
		s.internalError(w, "handle turn", err)
		return
	}

	switch out := res.(type) {
	case *domain.Success:
		if diff := domain.Diff(prev, out.Session); diff != nil {
			if raw, err := json.Marshal(diff); err == nil {
				s.Streams.Broadcast(id, string(raw))
			}
		}
		s.writeJSON(w, http.StatusOK, TurnResponse{
			Success:  true,
			Final:    out.Final,
			Messages: out.Messages,
			Session:  out.Session,
		})
	case *domain.Failure:
		s.writeJSON(w, http.StatusUnprocessableEntity, TurnResponse{
			Kind:   string(out.Kind),
			Detail: out.Detail,
		})
	}
}

// decodeTurn reads a loosely typed JSON body into a user action.
func decodeTurn(body io.Reader) (domain.UserAction, error) {
	var raw map[string]any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return domain.UserAction{}, err
	}

	var req TurnRequest
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &req,
		ErrorUnused: true,
	})
	if err != nil {
		return domain.UserAction{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return domain.UserAction{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.UserAction{}, err
	}
	return domain.UserAction{Intent: req.Intent, Entities: req.Entities}, nil
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	http.Error(w, fmt.Sprintf("Failed to %s", op), http.StatusInternalServerError)
	s.logger.Error("request failed", "op", op, "err", err)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
