/*
Package ports defines the driven ports (interfaces) of the Tick engine.

These interfaces decouple the dialog core from external implementations, allowing
the engine to work with various session backends and story sources.

# Key Interfaces

  - StoryLoader: Loads a story definition (e.g., from a YAML file or memory).
  - SessionStore: Persists and loads conversation sessions.
  - DistributedLocker: Serializes turns of one conversation across replicas.
  - TurnProcessor: The stateless turn function hosts drive.
*/
package ports
