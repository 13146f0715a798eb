// Package config holds the host configuration of the tick CLI and server.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Host configures where sessions live and how the server listens.
type Host struct {
	// Addr is the HTTP listen address.
	Addr     string `yaml:"addr" default:":8080" validate:"listen_addr"`
	LogLevel  string `yaml:"log_level" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" default:"text" validate:"oneof=text json"`

	Store string `yaml:"store" default:"memory" validate:"oneof=memory file redis postgres sqlite"`
	// DSN locates the store: a directory for file, host:port for redis, a
	// connection string for postgres and a path for sqlite.
	DSN string `yaml:"dsn" validate:"required_unless=Store memory"`

	LockTTL time.Duration `yaml:"lock_ttl" default:"30s" validate:"gt=0"`
	// SessionTTL expires idle memory and redis sessions. Zero keeps them forever.
	SessionTTL time.Duration `yaml:"session_ttl" validate:"gte=0"`

	// EncryptionKey is a base64 AES-256 key sealing stored sessions.
	EncryptionKey string `yaml:"encryption_key" validate:"omitempty,base64"`
	// PIIPatterns mask matching context keys before sessions are stored.
	PIIPatterns []string `yaml:"pii_patterns"`

	Metrics bool `yaml:"metrics" default:"true"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// the host part may be empty to listen on every interface
	_ = v.RegisterValidation("listen_addr", func(fl validator.FieldLevel) bool {
		_, port, err := net.SplitHostPort(fl.Field().String())
		if err != nil || port == "" {
			return false
		}
		_, err = net.LookupPort("tcp", port)
		return err == nil
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		h := sl.Current().Interface().(Host)
		if h.Store == StorePostgres && h.DSN != "" && !strings.Contains(h.DSN, "://") && !strings.Contains(h.DSN, "=") {
			sl.ReportError(h.DSN, "DSN", "DSN", "dsn", "")
		}
	}, Host{})
	return v
}

// Default returns a Host with every default applied.
func Default() *Host {
	h := &Host{}
	_ = defaults.Set(h)
	return h
}

// Prepare applies defaults to unset fields and validates the result. A
// false bool counts as unset, so hosts built from a file or flags should
// start from Default and call Validate instead.
func Prepare(h *Host) error {
	if h == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := defaults.Set(h); err != nil {
		return fmt.Errorf("failed to apply default values: %w", err)
	}
	return h.Validate()
}

// Validate reports every invalid field.
func (h *Host) Validate() error {
	err := validate.Struct(h)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed validation (rule: %s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("config validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// LoadFile reads a YAML host file. Fields the file leaves out keep their
// defaults; unknown fields are rejected.
func LoadFile(path string) (*Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	h := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(h); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Level maps LogLevel to a slog level.
func (h *Host) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(h.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
