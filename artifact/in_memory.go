package artifact

import (
	"sync"
	"time"
)

// Artifact is one stored payload.
type Artifact struct {
	Seq       int64
	SessionID int64
	Kind      string
	Data      []byte
	CreatedAt time.Time
}

// InMemoryStore is a trivial in-process artifact store useful for tests and
// single-process runs. Data is copied on append and retrieval to avoid
// accidental external mutation of internal buffers.
//
// Layout: sessionID -> ordered artifacts
type InMemoryStore struct {
	mu        sync.RWMutex
	seq       int64
	artifacts map[int64][]Artifact
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[int64][]Artifact)}
}

// Append stores a copy of data under the session and kind.
func (a *InMemoryStore) Append(sessionID int64, kind string, data []byte) (Artifact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	art := Artifact{
		Seq:       a.seq,
		SessionID: sessionID,
		Kind:      kind,
		Data:      clone(data),
		CreatedAt: time.Now().UTC(),
	}
	a.artifacts[sessionID] = append(a.artifacts[sessionID], art)
	art.Data = clone(art.Data)
	return art, nil
}

// List returns the session's artifacts of kind in append order. An empty kind
// matches every artifact.
func (a *InMemoryStore) List(sessionID int64, kind string) ([]Artifact, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := []Artifact{}
	for _, art := range a.artifacts[sessionID] {
		if kind != "" && art.Kind != kind {
			continue
		}
		art.Data = clone(art.Data)
		out = append(out, art)
	}
	return out, nil
}

// Latest returns the most recent artifact of kind or ErrNotFound.
func (a *InMemoryStore) Latest(sessionID int64, kind string) (Artifact, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	arts := a.artifacts[sessionID]
	for i := len(arts) - 1; i >= 0; i-- {
		if arts[i].Kind == kind {
			art := arts[i]
			art.Data = clone(art.Data)
			return art, nil
		}
	}
	return Artifact{}, ErrNotFound
}

// DeleteSession drops every artifact of the session.
func (a *InMemoryStore) DeleteSession(sessionID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.artifacts, sessionID)
}

func clone(b []byte) []byte {
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
