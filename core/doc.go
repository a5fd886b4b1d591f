// Package core provides the foundational domain types and collaborator
// interfaces used by roundtable. It defines:
//
//   - Messages and the participant roster (bots plus an optional human)
//   - Turn cursors, summary state and analysis state
//   - Session records and the snapshots handed to persistence
//   - Collaborator contracts: Generator (text generation) and SessionStore
//   - The error taxonomy and the reported Event stream
//
// The package intentionally keeps scheduling and persistence logic out of
// scope, exposing small interfaces so stores and model backends can be swapped.
package core
