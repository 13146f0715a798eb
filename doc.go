/*
Package tick is a deterministic, multi-turn dialog engine.

A story declares typed contexts, actions that consume and produce them, a
hierarchical state machine and the intents that drive it. For every
recognized user intent the engine plans which actions must run, invokes their
handlers, advances the state machine and returns the rendered messages
together with the next session. Turns are transactional: a failed turn never
leaves partial state behind.

# Concept

The engine is a pure function of (story, session, user action). Recognition,
message delivery and persistence belong to the host; the engine meets them at
small ports:

  - handlers are registered by name in a registry.Registry,
  - messages are produced through a sender.Sender,
  - sessions are persisted through a ports.SessionStore.

# Usage

	reg := registry.NewRegistry()
	reg.MustRegister("flights.book", bookFlight)

	eng, err := tick.LoadFile(ctx, "travel.yaml", reg, tick.WithStore(redisStore))
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Handle(ctx, conversationID, domain.UserAction{Intent: "book"})
	if err != nil {
		log.Fatal(err) // store or lock failure
	}
	switch r := res.(type) {
	case *domain.Success:
		deliver(r.Messages)
	case *domain.Failure:
		apologize(r)
	}

Process runs a turn on a session the caller owns; Handle loads, locks and
saves the session of a conversation for the caller.
*/
package tick
