// Package sender provides the message capability handed to handlers.
package sender

import (
	"sync"

	"github.com/aretw0/tick/pkg/domain"
)

// Sender enqueues rendered messages. It is the only side effect a handler
// may make visible to the engine besides its returned outputs.
type Sender interface {
	Send(msg domain.Message)
}

// Buffer is an ordered, concurrency-safe Sender that keeps its history.
type Buffer struct {
	mu       sync.Mutex
	messages []domain.Message
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Send appends a message.
func (b *Buffer) Send(msg domain.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

// History returns a copy of the messages sent so far, in order.
func (b *Buffer) History() []domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Message(nil), b.messages...)
}

// Len returns the number of messages sent so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

// Reset drops the history.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
}

// Answer builds a message referencing an authored answer.
func Answer(id string) domain.Message {
	return domain.Message{AnswerID: id}
}

// Text builds a plain text message.
func Text(text string) domain.Message {
	return domain.Message{Text: text}
}
