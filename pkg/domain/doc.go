/*
Package domain contains the core domain models of the Tick dialog engine.

It defines the story configuration, the per-conversation session and the
result of a turn. This package is kept pure and free of external dependencies
like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Configuration: A story. Contexts, actions, the state machine, intent
    associations and the unknown-intent policy.
  - MachineState: A node of the hierarchical state machine (atomic or parallel).
  - Session: The serializable snapshot of one conversation (position,
    objectives, contexts, retry counters).
  - Result: The outcome of one turn, either *Success or *Failure.
*/
package domain
