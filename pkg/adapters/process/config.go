package process

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// HandlerSpec describes a handler backed by an external command.
type HandlerSpec struct {
	Name        string            `yaml:"name" json:"name" validate:"required,excludesall=."`
	Command     string            `yaml:"command" json:"command" validate:"required"`
	Args        []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
}

// ConfigFile is the handlers file: a namespace and its handlers.
type ConfigFile struct {
	// Namespace prefixes every handler name, e.g. "flights" turns "book"
	// into "flights.book".
	Namespace string        `yaml:"namespace" json:"namespace" validate:"omitempty,excludesall=."`
	Handlers  []HandlerSpec `yaml:"handlers" json:"handlers" validate:"unique=Name,dive"`
}

var validate = validator.New()

// Validate reports the first invalid field.
func (c *ConfigFile) Validate() error {
	err := validate.Struct(c)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fe := fieldErrs[0]
		return fmt.Errorf("invalid handlers config: field '%s' failed validation (rule: %s)", fe.Namespace(), fe.Tag())
	}
	return err
}

// LoadHandlers reads a handlers file, JSON when the extension says so and
// YAML otherwise. A missing file is an empty configuration; unknown fields
// and invalid entries are errors.
func LoadHandlers(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ConfigFile{}, nil
		}
		return nil, fmt.Errorf("failed to read handlers config: %w", err)
	}

	var cfg ConfigFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}
