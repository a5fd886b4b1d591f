// Package session houses implementations of core.SessionStore.
//
// InMemoryStore keeps records in a process local map and is the default for
// tests and throwaway runs. Durable backends live in sub-packages (see
// session/sqlite); only the wiring layer decides which one to instantiate.
package session
