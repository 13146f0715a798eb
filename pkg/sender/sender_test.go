package sender

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/tick/pkg/domain"
)

func TestBuffer(t *testing.T) {
	b := NewBuffer()
	b.Send(Answer("welcome"))
	b.Send(Text("hi"))

	history := b.History()
	assert.Equal(t, []domain.Message{
		{AnswerID: "welcome"},
		{Text: "hi"},
	}, history)

	history[0].AnswerID = "mutated"
	assert.Equal(t, "welcome", b.History()[0].AnswerID)

	b.Reset()
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_Concurrent(t *testing.T) {
	b := NewBuffer()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Send(Text("x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, b.Len())
}
