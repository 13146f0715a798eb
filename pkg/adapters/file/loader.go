package file

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/tick/pkg/domain"
)

//go:embed story.schema.json
var storySchema string

const storySchemaURL = "https://tick.schemas.local/story.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(storySchemaURL, strings.NewReader(storySchema)); err != nil {
			compileErr = fmt.Errorf("story schema load failed: %w", err)
			return
		}
		compiled, compileErr = c.Compile(storySchemaURL)
	})
	return compiled, compileErr
}

// Loader implements ports.StoryLoader for a YAML or JSON story file.
type Loader struct {
	Path string
}

// NewLoader creates a loader for the story at path.
func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// Load reads, checks and decodes the story. A story without a name is named
// after its file.
func (l *Loader) Load(ctx context.Context) (*domain.Configuration, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read story: %w", err)
	}
	cfg, err := DecodeStory(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Path, err)
	}
	if cfg.Name == "" {
		base := filepath.Base(l.Path)
		cfg.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return cfg, nil
}

// DecodeStory parses a YAML or JSON document into a story. The document is
// checked against the story schema first, then decoded over the settings
// defaults.
func DecodeStory(data []byte) (*domain.Configuration, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid story document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("invalid story document: empty")
	}

	if err := checkSchema(doc); err != nil {
		return nil, err
	}

	cfg := &domain.Configuration{}
	if err := defaults.Set(&cfg.Settings); err != nil {
		return nil, fmt.Errorf("failed to apply settings defaults: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("failed to decode story: %w", err)
	}

	cfg.StateMachine.Normalize()
	return cfg, nil
}

// checkSchema validates the document in its JSON form, the only form the
// schema validator understands.
func checkSchema(doc map[string]any) error {
	s, err := schema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("story is not representable as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("story is not representable as JSON: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("story does not match schema: %w", err)
	}
	return nil
}
