// Package jsonfile is a core.SessionStore that keeps every session in a
// single JSON document on disk. It needs no database and suits small,
// single-process installations; use session/sqlite for anything larger.
//
// The whole document is rewritten on every change through a temporary file
// and a rename, so a crash leaves either the old or the new document.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/roundtable/artifact"
	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/session"
)

// ErrCorrupt is returned by Open when the document cannot be parsed.
var ErrCorrupt = errors.New("session file is corrupt")

// Options configures a Store.
type Options struct {
	Logger logging.Logger
}

// document is the on-disk layout.
type document struct {
	Sessions  []core.SessionRecord `json:"sessions"`
	NextID    int64                `json:"next_id"`
	NextSeq   int64                `json:"next_seq,omitempty"`
	Artifacts []artifact.Artifact  `json:"artifacts,omitempty"`
}

// Store is safe for concurrent use within one process. It does not lock the
// file against other processes.
type Store struct {
	path   string
	logger logging.Logger
	now    func() time.Time

	mu  sync.Mutex
	doc document
}

var _ core.SessionStore = (*Store)(nil)

// Open loads the document at path. A missing file starts an empty store; the
// file and its directory are created on the first write. A file that exists
// but does not parse is reported as ErrCorrupt rather than overwritten.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Store{
		path:   path,
		logger: logging.OrNoOp(opts.Logger),
		now:    func() time.Time { return time.Now().UTC() },
		doc:    document{NextID: 1, NextSeq: 1},
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.logger.Debug("Session file not found, starting empty", "path", path)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &s.doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
		}
	}
	if s.doc.NextID < 1 {
		s.doc.NextID = 1
	}
	for _, rec := range s.doc.Sessions {
		if rec.ID >= s.doc.NextID {
			s.doc.NextID = rec.ID + 1
		}
	}
	if s.doc.NextSeq < 1 {
		s.doc.NextSeq = 1
	}
	s.logger.Debug("Session file loaded", "path", path, "sessions", len(s.doc.Sessions))
	return s, nil
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Insert appends a record under the next id.
func (s *Store) Insert(_ context.Context, rec core.SessionRecord) (int64, error) {
	var id int64
	err := s.mutate(func(d *document) error {
		now := s.now()
		id = d.NextID
		d.NextID++
		cp := cloneRecord(rec)
		cp.ID = id
		cp.CreatedAt = now
		cp.UpdatedAt = now
		d.Sessions = append(d.Sessions, cp)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateTranscript replaces the stored transcript payload.
func (s *Store) UpdateTranscript(_ context.Context, id int64, transcript json.RawMessage) error {
	return s.update(id, func(rec *core.SessionRecord) {
		rec.Transcript = cloneRaw(transcript)
		rec.UpdatedAt = s.now()
	})
}

// UpdateParticipants replaces the stored participant payload.
func (s *Store) UpdateParticipants(_ context.Context, id int64, participants json.RawMessage) error {
	return s.update(id, func(rec *core.SessionRecord) {
		rec.Participants = cloneRaw(participants)
		rec.UpdatedAt = s.now()
	})
}

// TouchLastOpened records that the session was opened now.
func (s *Store) TouchLastOpened(_ context.Context, id int64) error {
	return s.update(id, func(rec *core.SessionRecord) {
		rec.LastOpenedAt = s.now()
	})
}

func (s *Store) update(id int64, fn func(rec *core.SessionRecord)) error {
	return s.mutate(func(d *document) error {
		i := d.index(id)
		if i < 0 {
			return core.ErrSessionNotFound
		}
		fn(&d.Sessions[i])
		return nil
	})
}

// Get returns a copy of the record or core.ErrSessionNotFound.
func (s *Store) Get(_ context.Context, id int64) (*core.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.doc.index(id)
	if i < 0 {
		return nil, core.ErrSessionNotFound
	}
	rec := cloneRecord(s.doc.Sessions[i])
	return &rec, nil
}

// List returns every record, most recently updated first.
func (s *Store) List(context.Context) ([]core.SessionRecord, error) {
	s.mu.Lock()
	out := make([]core.SessionRecord, len(s.doc.Sessions))
	for i, rec := range s.doc.Sessions {
		out[i] = cloneRecord(rec)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// FindExisting returns the most recently updated record with the same topic
// and participant payload, or nil.
func (s *Store) FindExisting(ctx context.Context, topic string, participants json.RawMessage) (*core.SessionRecord, error) {
	want, err := session.CanonicalParticipants(participants)
	if err != nil {
		return nil, err
	}
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Topic != topic {
			continue
		}
		got, err := session.CanonicalParticipants(all[i].Participants)
		if err != nil {
			continue
		}
		if bytes.Equal(got, want) {
			return &all[i], nil
		}
	}
	return nil, nil
}

// Delete removes the record and its artifacts.
func (s *Store) Delete(_ context.Context, id int64) error {
	return s.mutate(func(d *document) error {
		i := d.index(id)
		if i < 0 {
			return core.ErrSessionNotFound
		}
		d.Sessions = append(d.Sessions[:i], d.Sessions[i+1:]...)
		kept := d.Artifacts[:0]
		for _, a := range d.Artifacts {
			if a.SessionID != id {
				kept = append(kept, a)
			}
		}
		d.Artifacts = kept
		return nil
	})
}

// AppendAnalysisArtifact stores payload alongside the session.
func (s *Store) AppendAnalysisArtifact(_ context.Context, id int64, kind string, payload []byte) error {
	return s.mutate(func(d *document) error {
		if d.index(id) < 0 {
			return core.ErrSessionNotFound
		}
		d.Artifacts = append(d.Artifacts, artifact.Artifact{
			Seq:       d.NextSeq,
			SessionID: id,
			Kind:      kind,
			Data:      bytes.Clone(payload),
			CreatedAt: s.now(),
		})
		d.NextSeq++
		return nil
	})
}

// Artifacts returns the session's artifacts of kind in append order.
func (s *Store) Artifacts(id int64, kind string) ([]artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []artifact.Artifact
	for _, a := range s.doc.Artifacts {
		if a.SessionID == id && a.Kind == kind {
			a.Data = bytes.Clone(a.Data)
			out = append(out, a)
		}
	}
	return out, nil
}

// mutate applies fn to a copy of the document and commits it once the copy
// is on disk. A failed write leaves the in-memory state unchanged.
func (s *Store) mutate(fn func(d *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.clone()
	if err := fn(&next); err != nil {
		return err
	}
	start := time.Now()
	err := s.save(&next)
	if sl, ok := s.logger.(*logging.StructuredLogger); ok {
		sl.LogWrite("save", 0, time.Since(start), err)
	}
	if err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *Store) save(d *document) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sessions-*.json")
	if err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (d *document) index(id int64) int {
	for i := range d.Sessions {
		if d.Sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// clone copies the slices so a failed mutation cannot leak into the original.
// Payload bytes are shared; every mutation replaces them rather than editing.
func (d document) clone() document {
	cp := d
	cp.Sessions = append([]core.SessionRecord(nil), d.Sessions...)
	cp.Artifacts = append([]artifact.Artifact(nil), d.Artifacts...)
	return cp
}

func cloneRecord(rec core.SessionRecord) core.SessionRecord {
	rec.Participants = cloneRaw(rec.Participants)
	rec.Transcript = cloneRaw(rec.Transcript)
	return rec
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return bytes.Clone(raw)
}
