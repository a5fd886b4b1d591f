package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hupe1980/roundtable/analysis"
	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
	"github.com/hupe1980/roundtable/persist"
	"github.com/hupe1980/roundtable/resume"
	"github.com/hupe1980/roundtable/session"
	"github.com/hupe1980/roundtable/summary"
	"github.com/hupe1980/roundtable/transcript"
	"github.com/hupe1980/roundtable/turn"
)

var (
	// ErrClosed is returned by commands once Run has returned.
	ErrClosed = errors.New("controller is not running")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("controller is already running")
)

// Config defines tuning parameters for the Controller.
//
// Example:
//
//	cfg := engine.DefaultConfig
//	cfg.MaxChainedTurns = 4
//	cfg.Debounce = 0
type Config struct {
	// AutoChain keeps generating bot turns until the human's slot comes up,
	// Stop is requested or MaxChainedTurns is reached.
	AutoChain bool `mapstructure:"auto_chain"`

	// MaxChainedTurns bounds consecutive bot turns started without an
	// explicit trigger. 0 means unlimited.
	MaxChainedTurns int `mapstructure:"max_chained_turns"`

	// Debounce delays summary and analysis trigger evaluation after a
	// transcript change. 0 evaluates synchronously.
	Debounce time.Duration `mapstructure:"debounce"`

	// EventBufferSize sets the capacity of the Events channel. Events are
	// dropped, with a warning, when the buffer is full.
	EventBufferSize int `mapstructure:"event_buffer_size"`

	Summary  summary.Config  `mapstructure:"summary"`
	Analysis analysis.Config `mapstructure:"analysis"`
}

// DefaultConfig provides the default tuning values.
var DefaultConfig = Config{
	AutoChain:       true,
	MaxChainedTurns: 12,
	Debounce:        200 * time.Millisecond,
	EventBufferSize: 100,
	Summary:         summary.DefaultConfig(),
	Analysis:        analysis.DefaultConfig(),
}

// Options configures a Controller using the functional options pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// SessionStore persists sessions. Defaults to an in-memory store.
	SessionStore core.SessionStore

	// Model is recorded with every persisted session.
	Model string

	// Callbacks are lifecycle hooks. May be nil.
	Callbacks *CallbackManager

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Controller drives a single discussion session.
//
// All mutable state is owned by the goroutine executing Run. Commands are
// posted to that loop as closures and wait for their result; generator and
// store calls run on their own goroutines and post their completions back.
// Completions from a session that has since been replaced (Start, Resume or
// LeaveSession) are discarded using an epoch counter.
type Controller struct {
	gen       core.Generator
	store     core.SessionStore
	model     string
	config    Config
	callbacks *CallbackManager
	logger    logging.Logger

	inbox   chan func()
	events  chan core.Event
	closed  chan struct{}
	running atomic.Bool

	// Owned by the loop.
	ctx          context.Context
	epoch        uint64
	active       bool
	topic        string
	set          core.ParticipantSet
	transcript   *transcript.Store
	cursor       core.Cursor
	summaries    *summary.Scheduler
	analyses     *analysis.Scheduler
	queue        *persist.Queue
	retired      []*persist.Queue
	limiter      *core.TurnLimiter
	debounce     *time.Timer
	generating   bool
	stopping     bool
	needContinue bool
}

// New creates a controller backed by gen.
func New(gen core.Generator, optFns ...func(o *Options)) *Controller {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = DefaultConfig.EventBufferSize
	}
	sc := summary.DefaultConfig()
	sc.Merge(&cfg.Summary)
	cfg.Summary = sc
	ac := analysis.DefaultConfig()
	ac.Merge(&cfg.Analysis)
	cfg.Analysis = ac

	return &Controller{
		gen:        gen,
		store:      opts.SessionStore,
		model:      opts.Model,
		config:     cfg,
		callbacks:  opts.Callbacks,
		logger:     logging.OrNoOp(opts.Logger),
		inbox:      make(chan func()),
		events:     make(chan core.Event, cfg.EventBufferSize),
		closed:     make(chan struct{}),
		ctx:        context.Background(),
		transcript: transcript.New(),
		summaries:  summary.NewScheduler(cfg.Summary),
		analyses:   analysis.NewScheduler(cfg.Analysis),
		limiter:    core.NewTurnLimiter(cfg.MaxChainedTurns),
	}
}

// Run executes the controller loop until ctx is done. Generator and store
// calls started by the loop inherit ctx.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.closed)

	c.ctx = ctx
	c.logger.Debug("Controller loop started")

	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-ctx.Done():
			if c.debounce != nil {
				c.debounce.Stop()
			}
			c.logger.Debug("Controller loop stopped", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} { return c.closed }

// Closed reports whether Run has returned. After that, observers return
// zero values.
func (c *Controller) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Events streams reported events. The channel is never closed; select on Done
// to detect shutdown.
func (c *Controller) Events() <-chan core.Event { return c.events }

// call runs fn on the loop and waits for its result.
func (c *Controller) call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	select {
	case c.inbox <- func() { done <- fn() }:
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-c.closed:
		return ErrClosed
	}
}

// post schedules fn on the loop without waiting. It is a no-op after Run returned.
func (c *Controller) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.closed:
	}
}

// query evaluates fn on the loop. It yields the zero value of T once Run has
// returned; callers that need to tell that apart use Closed.
func query[T any](c *Controller, fn func() T) T {
	var v T
	_ = c.call(context.Background(), func() error {
		v = fn()
		return nil
	})
	return v
}

// Start opens a new, empty session. Nothing is persisted until the first
// message is appended.
func (c *Controller) Start(ctx context.Context, topic string, set core.ParticipantSet) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return fmt.Errorf("topic: %w", core.ErrEmptyMessage)
	}
	if err := set.Validate(); err != nil {
		return err
	}
	return c.call(ctx, func() error {
		c.install(0, topic, set, nil)
		c.cursor = turn.Initial(set)
		c.logger.Info("Session started", "topic", topic, "bots", set.BotCount(), "user_participates", set.UserParticipates)
		c.emitTurn()
		c.runCallbacks(CallbackOnSessionChange, &CallbackContext{})
		return nil
	})
}

// Resume loads a persisted session and installs it. A malformed record is
// returned as a *core.FormatError and leaves the current session untouched.
// If a bot is due to speak, nothing is generated until ContinueAfterResume.
//
// Writes still outstanding for id are drained before the record is read.
// Resuming the live session detaches it first, so the reload sees its last
// snapshot and only one queue ever writes the record.
func (c *Controller) Resume(ctx context.Context, id int64) error {
	var writers []*persist.Queue
	err := c.call(ctx, func() error {
		if c.active && c.queue != nil && c.queue.ID() == id {
			c.logger.Debug("Detaching live session before reload", "session_id", id)
			c.detach()
		}
		writers = c.writers(id)
		return nil
	})
	if err != nil {
		return err
	}
	for _, q := range writers {
		if err := q.DrainContext(ctx); err != nil {
			return fmt.Errorf("resume session %d: %w", id, err)
		}
	}

	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("resume session %d: %w", id, err)
	}
	res, err := resume.Reconstruct(rec)
	if err != nil {
		c.logger.Error("Session record is malformed", "session_id", id, "error", err)
		return err
	}

	err = c.call(ctx, func() error {
		c.install(res.ID, res.Topic, res.Participants, res.Transcript)
		c.cursor = res.Cursor
		c.needContinue = res.NeedsExplicitContinue
		if res.Model != "" && c.model != "" && res.Model != c.model {
			c.logger.Warn("Resumed session was created with another model", "session_id", res.ID, "recorded", res.Model, "current", c.model)
		}
		c.logger.Info("Session resumed", "session_id", res.ID, "messages", len(res.Transcript), "cursor", int(res.Cursor))
		c.emitTurn()
		c.runCallbacks(CallbackOnSessionChange, &CallbackContext{})
		return nil
	})
	if err != nil {
		return err
	}

	if err := c.store.TouchLastOpened(ctx, id); err != nil {
		c.logger.Warn("Failed to touch session", "session_id", id, "error", err)
	}
	return nil
}

// install replaces all session state. Must run on the loop.
func (c *Controller) install(id int64, topic string, set core.ParticipantSet, msgs []core.Message) {
	c.epoch++
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.active = true
	c.topic = topic
	c.set = set.Clone()
	c.transcript.Replace(msgs)
	c.summaries.Reset(core.SummaryState{})
	c.analyses.Reset(core.AnalysisState{})
	c.limiter.Reset()
	c.generating = false
	c.stopping = false
	c.needContinue = false

	c.retire(c.queue)
	epoch := c.epoch
	c.queue = persist.New(c.store, func(o *persist.Options) {
		o.ID = id
		o.Context = c.ctx
		o.Logger = c.logger
		o.OnWrite = func(r persist.WriteResult) { c.onWrite(epoch, r) }
	})
}

// detach ends the current session without replacing it. Must run on the loop.
func (c *Controller) detach() {
	c.epoch++
	c.active = false
	c.generating = false
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	c.retire(c.queue)
}

// retire keeps q reachable while it still has writes outstanding, so a later
// Resume of the same record can wait for them. Idle queues are dropped.
func (c *Controller) retire(q *persist.Queue) {
	live := c.retired[:0]
	for _, r := range c.retired {
		if r != q && r.Busy() {
			live = append(live, r)
		}
	}
	c.retired = live
	if q != nil && q.Busy() {
		c.retired = append(c.retired, q)
	}
}

// writers returns the retired queues with writes outstanding for id.
func (c *Controller) writers(id int64) []*persist.Queue {
	c.retire(nil)
	var out []*persist.Queue
	for _, q := range c.retired {
		if q.ID() == id {
			out = append(out, q)
		}
	}
	return out
}

// SubmitUserMessage appends the human's message. It is only accepted on the
// human's turn. With AutoChain the following bot turns start immediately.
func (c *Controller) SubmitUserMessage(text string) error {
	text, err := core.ValidateUserText(text)
	if err != nil {
		return err
	}
	return c.call(context.Background(), func() error {
		if !c.active {
			return core.ErrNoSession
		}
		if c.generating {
			return core.ErrGenerationInFlight
		}
		if !c.set.UserParticipates || !c.cursor.IsHuman() {
			return core.ErrNotUserTurn
		}

		c.append(core.NewUserMessage(text))
		c.stopping = false
		c.limiter.Reset()

		if c.config.AutoChain && !c.cursor.IsHuman() {
			c.generate()
		}
		return nil
	})
}

// RequestNextAITurn generates the turn of the bot under the cursor.
func (c *Controller) RequestNextAITurn() error {
	return c.call(context.Background(), c.requestTurn)
}

// ContinueAfterResume releases a resumed session whose next speaker is a bot.
func (c *Controller) ContinueAfterResume() error {
	return c.call(context.Background(), c.requestTurn)
}

func (c *Controller) requestTurn() error {
	if !c.active {
		return core.ErrNoSession
	}
	if c.generating {
		return core.ErrGenerationInFlight
	}
	if turn.Terminal(c.set) {
		return core.ErrNoParticipants
	}
	if c.cursor.IsHuman() {
		return core.ErrNotBotTurn
	}
	c.needContinue = false
	c.stopping = false
	c.limiter.Reset()
	c.generate()
	return nil
}

// EditParticipants replaces the roster mid-session. The cursor is recomputed
// from the last speaker; when that bot was removed the rotation restarts.
func (c *Controller) EditParticipants(set core.ParticipantSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return c.call(context.Background(), func() error {
		if !c.active {
			return core.ErrNoSession
		}
		c.set = set.Clone()

		prev := c.cursor
		if c.generating {
			// The in-flight turn recomputes the cursor when it lands.
			c.cursor = turn.Clamp(c.cursor, c.set)
		} else {
			last, ok := c.transcript.Last()
			if ok {
				c.cursor = turn.After(&last, c.set)
			} else {
				c.cursor = turn.Initial(c.set)
			}
			c.needContinue = c.needContinue && !c.cursor.IsHuman()
		}

		c.logger.Info("Participants edited", "bots", c.set.BotCount(), "user_participates", c.set.UserParticipates, "cursor", int(c.cursor))
		if c.cursor != prev {
			c.emitTurn()
		}
		if c.transcript.Len() > 0 || c.queue.ID() != 0 {
			c.queue.Enqueue(c.snapshot())
		}
		return nil
	})
}

// RefreshAnalysis runs analysis now regardless of the interval gate.
func (c *Controller) RefreshAnalysis() error {
	return c.call(context.Background(), func() error {
		if !c.active {
			return core.ErrNoSession
		}
		attempt, err := c.analyses.Refresh(c.transcript.Len())
		if err != nil {
			return err
		}
		c.analyze(attempt)
		return nil
	})
}

// Stop prevents further chained turns once the current generation resolves.
// An in-flight call is not cancelled.
func (c *Controller) Stop() error {
	return c.call(context.Background(), func() error {
		if c.generating {
			c.stopping = true
		}
		return nil
	})
}

// LeaveSession detaches the current session and waits up to timeout for
// pending writes. Late generator results for the session are discarded.
func (c *Controller) LeaveSession(timeout time.Duration) error {
	var q *persist.Queue
	err := c.call(context.Background(), func() error {
		if !c.active {
			return core.ErrNoSession
		}
		q = c.queue
		c.detach()
		return nil
	})
	if err != nil {
		return err
	}
	if err := q.Drain(timeout); err != nil {
		c.logger.Warn("Session left with unsaved changes", "session_id", q.ID(), "error", err)
		return err
	}
	c.logger.Info("Session left", "session_id", q.ID())
	return nil
}

// Transcript returns a copy of the current transcript.
func (c *Controller) Transcript() []core.Message {
	return query(c, c.transcript.Messages)
}

// Cursor returns whose turn it is.
func (c *Controller) Cursor() core.Cursor {
	return query(c, func() core.Cursor { return c.cursor })
}

// Participants returns a copy of the roster.
func (c *Controller) Participants() core.ParticipantSet {
	return query(c, func() core.ParticipantSet { return c.set.Clone() })
}

// Topic returns the discussion topic.
func (c *Controller) Topic() string {
	return query(c, func() string { return c.topic })
}

// HasSummary reports whether a cumulative summary exists.
func (c *Controller) HasSummary() bool {
	return query(c, func() bool { return c.summaries.State().Cumulative != "" })
}

// Summary returns the summary state.
func (c *Controller) Summary() core.SummaryState {
	return query(c, c.summaries.State)
}

// Analysis returns the analysis state.
func (c *Controller) Analysis() core.AnalysisState {
	return query(c, c.analyses.State)
}

// SessionID returns the persisted id, or 0 before the first write.
func (c *Controller) SessionID() int64 {
	return query(c, c.sessionID)
}

// Busy reports whether a generation request is in flight.
func (c *Controller) Busy() bool {
	return query(c, func() bool { return c.generating })
}

// NeedsContinue reports whether a resumed session waits for ContinueAfterResume.
func (c *Controller) NeedsContinue() bool {
	return query(c, func() bool { return c.needContinue })
}

func (c *Controller) sessionID() int64 {
	if c.queue == nil {
		return 0
	}
	return c.queue.ID()
}

func (c *Controller) snapshot() core.Snapshot {
	return core.Snapshot{
		Topic:        c.topic,
		Participants: c.set.Clone(),
		Transcript:   c.transcript.Messages(),
		Model:        c.model,
	}
}

// append adds m, advances the cursor and fans the change out. Must run on the loop.
func (c *Controller) append(m core.Message) {
	c.transcript.Append(m)
	c.cursor = turn.After(&m, c.set)

	msg := m
	ev := c.event(core.EventMessageAppended)
	ev.Message = &msg
	c.emit(ev)
	c.emitTurn()

	c.queue.Enqueue(c.snapshot())
	c.scheduleTriggers()
}

func (c *Controller) generate() {
	bot := c.set.Bots[c.cursor.BotIndex()]
	cbCtx := &CallbackContext{Bot: &bot}
	if err := c.runCallbacks(CallbackBeforeGenerate, cbCtx); err != nil {
		c.fail(core.EventGenerationFailed, &core.GenerationError{Op: "generate", Err: err})
		c.emit(c.event(core.EventChainStopped))
		return
	}

	c.generating = true
	epoch := c.epoch
	ctx := c.ctx
	topic := c.topic
	history := c.summaries.Context(c.transcript.Messages())

	c.logger.Debug("Generating turn", "speaker", bot.Name, "recent", len(history.Recent), "summarized", history.Summary != "")
	go func() {
		start := time.Now()
		text, err := c.gen.Generate(ctx, bot, history, topic)
		c.logger.Debug("Generator returned", "speaker", bot.Name, "duration", time.Since(start), "error", err)
		c.post(func() { c.onGenerated(epoch, bot, text, err) })
	}()
}

func (c *Controller) onGenerated(epoch uint64, bot core.Bot, text string, err error) {
	if epoch != c.epoch {
		c.logger.Debug("Discarding generation for replaced session", "speaker", bot.Name)
		return
	}
	c.generating = false

	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = core.ErrEmptyMessage
	}
	if err != nil {
		c.stopping = false
		c.fail(core.EventGenerationFailed, &core.GenerationError{Op: "generate", Err: err})
		return
	}

	m := core.NewBotMessage(bot.Name, text)
	c.append(m)
	c.runCallbacks(CallbackAfterGenerate, &CallbackContext{Bot: &bot, Message: &m})

	if !c.config.AutoChain || c.cursor.IsHuman() || turn.Terminal(c.set) {
		return
	}
	if c.stopping {
		c.stopping = false
		c.logger.Info("Chain stopped on request")
		c.emit(c.event(core.EventChainStopped))
		return
	}
	if err := c.limiter.Increment(); err != nil {
		c.logger.Info("Chain limit reached", "limit", c.config.MaxChainedTurns)
		c.emit(c.event(core.EventChainStopped))
		return
	}
	c.generate()
}

func (c *Controller) scheduleTriggers() {
	if c.config.Debounce <= 0 {
		c.evaluateTriggers()
		return
	}
	if c.debounce != nil {
		c.debounce.Stop()
	}
	epoch := c.epoch
	c.debounce = time.AfterFunc(c.config.Debounce, func() {
		c.post(func() {
			if epoch == c.epoch {
				c.debounce = nil
				c.evaluateTriggers()
			}
		})
	})
}

// evaluateTriggers starts any summary or analysis job that is due. The
// decisions are idempotent so repeated evaluation is harmless. It runs after
// each append (possibly debounced) and again when a job finishes, since
// single-flight refuses jobs that fall due while one is running.
func (c *Controller) evaluateTriggers() {
	msgs := c.transcript.Messages()

	if job := c.summaries.Maybe(msgs); job != nil {
		c.summarize(job)
	}
	if attempt, ok := c.analyses.Maybe(len(msgs)); ok {
		c.analyze(attempt)
	}
}

func (c *Controller) summarize(job *summary.Job) {
	epoch, ctx, topic, names := c.epoch, c.ctx, c.topic, c.set.Names()
	c.logger.Debug("Summarizing", "kind", job.Kind.String(), "through", job.Through, "messages", len(job.Messages))
	go func() {
		text, err := summary.Run(ctx, c.gen, topic, names, job)
		c.post(func() {
			if epoch != c.epoch {
				return
			}
			if err := c.summaries.Complete(job, text, err); err != nil {
				c.fail(core.EventGenerationFailed, err)
				return
			}
			c.logger.Info("Summary updated", "kind", job.Kind.String(), "through", job.Through)
			c.emit(c.event(core.EventSummaryUpdated))
			// Messages that landed while the job ran may already be due.
			c.evaluateTriggers()
		})
	}()
}

func (c *Controller) analyze(attempt int) {
	epoch, ctx, topic, names := c.epoch, c.ctx, c.topic, c.set.Names()
	history := c.transcript.Messages()[:attempt]
	c.logger.Debug("Analyzing", "messages", attempt)
	go func() {
		raw, err := analysis.Run(ctx, c.gen, topic, names, history)
		c.post(func() {
			if epoch != c.epoch {
				return
			}
			result, err := c.analyses.Complete(attempt, raw, err)
			defer c.evaluateTriggers()
			if err != nil {
				if core.IsFormatError(err) {
					c.fail(core.EventFormatFailed, err)
				} else {
					c.fail(core.EventGenerationFailed, err)
				}
				return
			}
			c.logger.Info("Analysis updated", "messages", attempt, "main_points", len(result.MainPoints))
			c.emit(c.event(core.EventAnalysisUpdated))
			c.storeAnalysis(result)
		})
	}()
}

// storeAnalysis appends the accepted analysis to the session's artifacts.
func (c *Controller) storeAnalysis(result *core.Analysis) {
	id := c.sessionID()
	if id == 0 {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("Failed to encode analysis", "error", err)
		return
	}
	epoch, ctx := c.epoch, c.ctx
	go func() {
		if err := c.store.AppendAnalysisArtifact(ctx, id, core.ArtifactKindAnalysis, payload); err != nil {
			perr := &core.PersistenceError{Op: "append analysis", SessionID: id, Err: err}
			c.post(func() {
				if epoch == c.epoch {
					c.fail(core.EventPersistenceFailed, perr)
				}
			})
		}
	}()
}

// onWrite runs on the persistence goroutine.
func (c *Controller) onWrite(epoch uint64, r persist.WriteResult) {
	c.post(func() {
		if epoch != c.epoch {
			return
		}
		if r.Err != nil {
			c.fail(core.EventPersistenceFailed, r.Err)
			return
		}
		ev := c.event(core.EventSessionSaved)
		ev.SessionID = r.SessionID
		c.emit(ev)
	})
}

func (c *Controller) event(t core.EventType) core.Event {
	ev := core.NewEvent(t)
	ev.SessionID = c.sessionID()
	ev.Cursor = c.cursor
	return ev
}

func (c *Controller) emitTurn() {
	c.emit(c.event(core.EventTurnChanged))
}

func (c *Controller) fail(t core.EventType, err error) {
	c.logger.Warn("Recoverable failure", "type", string(t), "error", err)
	ev := c.event(t)
	ev.Err = err
	c.emit(ev)
	c.runCallbacks(CallbackOnFailure, &CallbackContext{Err: err})
}

// emit never blocks the loop.
func (c *Controller) emit(ev core.Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("Event buffer full, dropping event", "type", string(ev.Type))
	}
}

func (c *Controller) runCallbacks(t CallbackType, cbCtx *CallbackContext) error {
	cbCtx.SessionID = c.sessionID()
	cbCtx.Topic = c.topic
	err := c.callbacks.ExecuteCallbacks(c.ctx, t, cbCtx)
	if err != nil && t != CallbackBeforeGenerate {
		c.logger.Warn("Callback failed", "type", string(t), "error", err)
	}
	return err
}
