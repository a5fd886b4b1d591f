package session

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/roundtable/artifact"
	"github.com/hupe1980/roundtable/core"
)

// InMemoryStore is a volatile SessionStore storing records in a process local
// map. It is safe for concurrent access. Records are copied on the way in and
// out to prevent external mutation of internal state.
type InMemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	sessions  map[int64]*core.SessionRecord
	artifacts *artifact.InMemoryStore
	now       func() time.Time
}

var _ core.SessionStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:  make(map[int64]*core.SessionRecord),
		artifacts: artifact.NewInMemoryStore(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Insert stores a new record and assigns its id.
func (s *InMemoryStore) Insert(_ context.Context, rec core.SessionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := s.now()
	cp := cloneRecord(&rec)
	cp.ID = s.nextID
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.sessions[cp.ID] = cp
	return cp.ID, nil
}

// UpdateTranscript replaces the stored transcript payload.
func (s *InMemoryStore) UpdateTranscript(_ context.Context, id int64, transcript json.RawMessage) error {
	return s.update(id, func(rec *core.SessionRecord) {
		rec.Transcript = cloneRaw(transcript)
	})
}

// UpdateParticipants replaces the stored participant payload.
func (s *InMemoryStore) UpdateParticipants(_ context.Context, id int64, participants json.RawMessage) error {
	return s.update(id, func(rec *core.SessionRecord) {
		rec.Participants = cloneRaw(participants)
	})
}

// TouchLastOpened records that the session was opened now.
func (s *InMemoryStore) TouchLastOpened(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return core.ErrSessionNotFound
	}
	rec.LastOpenedAt = s.now()
	return nil
}

func (s *InMemoryStore) update(id int64, fn func(rec *core.SessionRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return core.ErrSessionNotFound
	}
	fn(rec)
	rec.UpdatedAt = s.now()
	return nil
}

// Get returns a copy of the record or core.ErrSessionNotFound.
func (s *InMemoryStore) Get(_ context.Context, id int64) (*core.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return cloneRecord(rec), nil
}

// AppendAnalysisArtifact stores payload alongside the session.
func (s *InMemoryStore) AppendAnalysisArtifact(_ context.Context, id int64, kind string, payload []byte) error {
	s.mu.RLock()
	_, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return core.ErrSessionNotFound
	}
	_, err := s.artifacts.Append(id, kind, payload)
	return err
}

// Artifacts returns the session's artifacts of kind in append order.
func (s *InMemoryStore) Artifacts(id int64, kind string) ([]artifact.Artifact, error) {
	return s.artifacts.List(id, kind)
}

// List returns every record, most recently updated first.
func (s *InMemoryStore) List(context.Context) ([]core.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		out = append(out, *cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes the record and its artifacts.
func (s *InMemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return core.ErrSessionNotFound
	}
	delete(s.sessions, id)
	s.artifacts.DeleteSession(id)
	return nil
}

// FindExisting returns the most recently updated record with the same topic
// and participant payload, or nil.
func (s *InMemoryStore) FindExisting(ctx context.Context, topic string, participants json.RawMessage) (*core.SessionRecord, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	want, err := CanonicalParticipants(participants)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Topic != topic {
			continue
		}
		got, err := CanonicalParticipants(all[i].Participants)
		if err != nil {
			continue
		}
		if bytes.Equal(got, want) {
			return &all[i], nil
		}
	}
	return nil, nil
}

// CanonicalParticipants re-encodes a participant payload so key order and
// whitespace do not affect comparison.
func CanonicalParticipants(raw json.RawMessage) ([]byte, error) {
	set, err := core.DecodeParticipants(raw)
	if err != nil {
		return nil, err
	}
	return core.EncodeParticipants(set)
}

func cloneRecord(rec *core.SessionRecord) *core.SessionRecord {
	cp := *rec
	cp.Participants = cloneRaw(rec.Participants)
	cp.Transcript = cloneRaw(rec.Transcript)
	return &cp
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return cp
}
