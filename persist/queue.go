// Package persist serializes session writes through a single-slot,
// coalescing mailbox.
//
// At most one write is in flight. A snapshot enqueued while a write runs
// replaces any snapshot already waiting, so after a burst exactly one more
// write is issued and it carries the latest state. Failed writes are logged
// and reported but not retried; the next enqueue carries the state forward.
package persist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
)

// ErrDrainTimeout is returned by Drain when writes are still outstanding.
var ErrDrainTimeout = errors.New("persistence queue did not drain before timeout")

// WriteResult describes a finished write.
type WriteResult struct {
	SessionID int64
	Created   bool
	Err       error
}

// Options configures a Queue.
type Options struct {
	// ID is the session id when resuming an existing record; 0 means insert on first write.
	ID int64
	// Context is passed to store calls. Defaults to context.Background().
	Context context.Context
	// OnWrite is invoked after every write, from the writer goroutine.
	OnWrite func(WriteResult)
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Queue owns the session record identity and all writes to it.
type Queue struct {
	store   core.SessionStore
	ctx     context.Context
	onWrite func(WriteResult)
	logger  logging.Logger

	mu       sync.Mutex
	id       int64
	inFlight bool
	pending  *core.Snapshot
	idle     chan struct{}
	writes   int
}

// New creates a queue writing to store.
func New(store core.SessionStore, optFns ...func(o *Options)) *Queue {
	opts := Options{Context: context.Background(), Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		store:   store,
		ctx:     opts.Context,
		onWrite: opts.OnWrite,
		logger:  logging.OrNoOp(opts.Logger),
		id:      opts.ID,
		idle:    idle,
	}
}

// Enqueue schedules snap for writing. It never blocks on I/O.
func (q *Queue) Enqueue(snap core.Snapshot) {
	q.mu.Lock()
	if q.inFlight {
		if q.pending != nil {
			q.logger.Debug("Coalescing pending snapshot", "messages", len(snap.Transcript))
		}
		q.pending = &snap
		q.mu.Unlock()
		return
	}
	q.inFlight = true
	q.idle = make(chan struct{})
	q.mu.Unlock()

	go q.run(snap)
}

func (q *Queue) run(snap core.Snapshot) {
	for {
		res := q.write(snap)
		if q.onWrite != nil {
			q.onWrite(res)
		}

		q.mu.Lock()
		if q.pending != nil {
			snap = *q.pending
			q.pending = nil
			q.mu.Unlock()
			continue
		}
		q.inFlight = false
		close(q.idle)
		q.mu.Unlock()
		return
	}
}

func (q *Queue) write(snap core.Snapshot) WriteResult {
	q.mu.Lock()
	id := q.id
	q.writes++
	q.mu.Unlock()

	start := time.Now()
	rec, err := snap.Record()
	if err != nil {
		return q.finish("encode", start, WriteResult{SessionID: id, Err: &core.PersistenceError{Op: "encode", SessionID: id, Err: err}})
	}

	if id == 0 {
		newID, err := q.store.Insert(q.ctx, rec)
		if err != nil {
			return q.finish("insert", start, WriteResult{Err: &core.PersistenceError{Op: "insert", Err: err}})
		}
		q.mu.Lock()
		q.id = newID
		q.mu.Unlock()
		q.logger.Info("Session created", "session_id", newID, "messages", len(snap.Transcript))
		return q.finish("insert", start, WriteResult{SessionID: newID, Created: true})
	}

	if err := q.store.UpdateTranscript(q.ctx, id, rec.Transcript); err != nil {
		return q.finish("update transcript", start, WriteResult{SessionID: id, Err: &core.PersistenceError{Op: "update transcript", SessionID: id, Err: err}})
	}
	if err := q.store.UpdateParticipants(q.ctx, id, rec.Participants); err != nil {
		return q.finish("update participants", start, WriteResult{SessionID: id, Err: &core.PersistenceError{Op: "update participants", SessionID: id, Err: err}})
	}
	return q.finish("update", start, WriteResult{SessionID: id})
}

func (q *Queue) finish(op string, start time.Time, res WriteResult) WriteResult {
	dur := time.Since(start)
	if sl, ok := q.logger.(*logging.StructuredLogger); ok {
		sl.LogWrite(op, res.SessionID, dur, res.Err)
		return res
	}
	if res.Err != nil {
		q.logger.Error("Session write failed", "operation", op, "session_id", res.SessionID, "error", res.Err)
		return res
	}
	q.logger.Debug("Session write completed", "operation", op, "session_id", res.SessionID, "duration", dur)
	return res
}

// ID returns the session id, or 0 before the first successful insert.
func (q *Queue) ID() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.id
}

// SetID adopts an existing record id. It is used when a queue is attached to
// a resumed session before any write has been issued.
func (q *Queue) SetID(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.id = id
}

// Busy reports whether a write is in flight or pending.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Writes returns the number of writes issued so far.
func (q *Queue) Writes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.writes
}

// Drain waits until nothing is in flight or pending, or until timeout elapses.
// It is a best-effort flush used when leaving a session.
func (q *Queue) Drain(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return q.DrainContext(ctx)
}

// DrainContext is Drain bounded by ctx instead of a timeout.
func (q *Queue) DrainContext(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ErrDrainTimeout
	}
}
