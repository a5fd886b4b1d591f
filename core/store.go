package core

import (
	"context"
	"encoding/json"
)

// SessionStore persists session records keyed by integer id. Insert is the
// only id-generating call. Implementations must be safe for concurrent use.
type SessionStore interface {
	Insert(ctx context.Context, rec SessionRecord) (int64, error)
	UpdateTranscript(ctx context.Context, id int64, transcript json.RawMessage) error
	UpdateParticipants(ctx context.Context, id int64, participants json.RawMessage) error
	Get(ctx context.Context, id int64) (*SessionRecord, error)
	TouchLastOpened(ctx context.Context, id int64) error
	AppendAnalysisArtifact(ctx context.Context, id int64, kind string, payload []byte) error
	List(ctx context.Context) ([]SessionRecord, error)
	Delete(ctx context.Context, id int64) error
	// FindExisting returns the most recently updated session with the same
	// topic and participant payload, or nil.
	FindExisting(ctx context.Context, topic string, participants json.RawMessage) (*SessionRecord, error)
}

// ArtifactKindAnalysis tags analysis payloads appended to a session.
const ArtifactKindAnalysis = "analysis"
