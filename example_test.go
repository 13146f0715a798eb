package tick_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/tick"
	"github.com/aretw0/tick/pkg/domain"
	"github.com/aretw0/tick/pkg/dsl"
)

// ExampleEngine_Handle runs a short conversation kept in the default
// in-memory store.
func ExampleEngine_Handle() {
	b := dsl.New("greeting")
	b.Action("greet").Answer("welcome").Outputs("GREETED")
	b.Action("bye").Answer("goodbye").Inputs("GREETED").Final()
	b.Intent("hello").Goal("greet")
	b.Intent("goodbye").Goal("bye")
	cfg, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}

	eng, err := tick.New(cfg, nil)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	for _, intent := range []string{"hello", "goodbye"} {
		res, err := eng.Handle(ctx, "conversation-1", domain.UserAction{Intent: intent})
		if err != nil {
			log.Fatal(err)
		}
		ok := res.(*domain.Success)
		fmt.Println(intent, "->", ok.Messages[0].AnswerID, "final:", ok.Final)
	}
	// Output:
	// hello -> welcome final: false
	// goodbye -> goodbye final: true
}
