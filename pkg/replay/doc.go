// Package replay runs recorded conversations against a story and renders
// what happened as a canonical JSON transcript.
//
// A dataset is a YAML list of conversations, each a list of user actions:
//
//	- id: book-with-slot-filling
//	  turns:
//	    - intent: book
//	    - intent: inform
//	      entities:
//	        destination: Paris
//
// Every conversation starts from a fresh session. Replaying the same dataset
// against the same story always yields byte-identical transcripts, which
// makes them usable as regression fixtures.
package replay
