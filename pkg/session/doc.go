/*
Package session orchestrates session persistence for conversations.

Turns of one conversation must run one at a time. The Manager serializes them
with a reference-counted mutex per conversation id and, when a
DistributedLocker is configured, with a lock shared across replicas.
*/
package session
