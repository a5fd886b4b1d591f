// Package artifact stores derived per-session payloads such as accepted
// analyses.
//
// Artifacts are append-only: each entry carries a kind, a monotonically
// increasing sequence number and raw bytes. Session stores embed an artifact
// store to implement core.SessionStore.AppendAnalysisArtifact; durable stores
// (see session/sqlite) keep artifacts in their own table instead.
package artifact
