package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/tick/pkg/domain"
)

// Conversation is one recorded dialog.
type Conversation struct {
	ID    string              `yaml:"id" validate:"required"`
	Turns []domain.UserAction `yaml:"turns" validate:"required,min=1"`
}

// Dataset is an ordered list of conversations.
type Dataset struct {
	Conversations []Conversation `validate:"required,min=1,unique=ID,dive"`
}

// LoadDataset reads a dataset file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return DecodeDataset(data)
}

// DecodeDataset parses a YAML dataset. Unknown fields are rejected.
func DecodeDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ds.Conversations); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// Validate checks that conversations are named uniquely and every turn
// carries an intent.
func (d *Dataset) Validate() error {
	if err := validator.New().Struct(d); err != nil {
		return fmt.Errorf("invalid dataset: %w", err)
	}
	for _, c := range d.Conversations {
		for i, turn := range c.Turns {
			if turn.Intent == "" {
				return fmt.Errorf("invalid dataset: conversation %q turn %d has no intent", c.ID, i+1)
			}
		}
	}
	return nil
}
