package anchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jask/cloudanchors/internal/shortcode"
)

const defaultMaxAllocationAttempts = 3

// Lifecycle coordinates a single cloud anchor through hosting or resolving.
//
// It is not safe for concurrent use. Every method must run on the goroutine
// that drives Poll; storage work leaves that goroutine as a Task and comes
// back through Complete.
type Lifecycle struct {
	store        shortcode.Store
	notifier     Notifier
	logger       *slog.Logger
	maxAttempts  int
	storeTimeout time.Duration

	state  State
	handle Handle
	// gen identifies the owned handle. Completions from an older gen are stale.
	gen      uint64
	awaiting bool
	failures int
	code     shortcode.Code
}

type Option func(*Lifecycle)

func WithNotifier(n Notifier) Option {
	return func(l *Lifecycle) { l.notifier = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Lifecycle) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMaxAllocationAttempts bounds how many consecutive short-code failures a
// hosted anchor survives before the lifecycle gives up and resets.
func WithMaxAllocationAttempts(n int) Option {
	return func(l *Lifecycle) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithStoreTimeout caps each allocate+put task.
func WithStoreTimeout(d time.Duration) Option {
	return func(l *Lifecycle) { l.storeTimeout = d }
}

func New(store shortcode.Store, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:       store,
		logger:      slog.New(slog.DiscardHandler),
		maxAttempts: defaultMaxAllocationAttempts,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lifecycle) State() State { return l.state }

// Handle returns the owned handle. After a provider error it is still
// attached so callers can inspect it.
func (l *Lifecycle) Handle() Handle { return l.handle }

// HostedCode returns the short code once hosting has completed.
func (l *Lifecycle) HostedCode() (shortcode.Code, bool) {
	return l.code, l.state == StateHosted
}

// BeginHosting takes ownership of a freshly hosted handle.
func (l *Lifecycle) BeginHosting(h Handle) error {
	return l.begin(h, StateHosting, HostingStarted)
}

// BeginResolving takes ownership of a handle created from a cloud id.
func (l *Lifecycle) BeginResolving(h Handle) error {
	return l.begin(h, StateResolving, ResolvingStarted)
}

func (l *Lifecycle) begin(h Handle, next State, kind EventKind) error {
	if h == nil {
		return ErrNilHandle
	}
	if l.state != StateNone {
		l.logger.Error("anchor: begin refused", "state", l.state.String(), "requested", next.String())
		return fmt.Errorf("%w: state is %s", ErrAlreadyInProgress, l.state)
	}
	l.replace(h)
	l.state = next
	l.logger.Info("anchor: started", "state", next.String(), "gen", l.gen)
	l.notify(Event{Kind: kind, AnchorID: h.CloudID()})
	return nil
}

// Clear detaches the owned handle and returns to StateNone. Calling it again
// does nothing.
func (l *Lifecycle) Clear() {
	if l.handle == nil && l.state == StateNone {
		return
	}
	l.replace(nil)
	l.state = StateNone
	l.logger.Info("anchor: cleared", "gen", l.gen)
	l.notify(Event{Kind: Cleared})
}

func (l *Lifecycle) replace(h Handle) {
	if l.handle != nil {
		l.handle.Detach()
	}
	l.handle = h
	l.gen++
	l.awaiting = false
	l.failures = 0
	l.code = 0
}

// Poll reads the owned handle's status and advances the state machine. It
// returns a Task when a hosted anchor needs a short code; the caller runs it
// off this goroutine and passes the result to Complete. Poll does nothing
// while such a task is outstanding.
func (l *Lifecycle) Poll() Task {
	if !l.state.InFlight() || l.awaiting || l.handle == nil {
		return nil
	}
	status := l.handle.Status()
	switch {
	case status.IsError():
		l.fail(&StatusError{Status: status})
	case status == StatusSuccess && l.state == StateHosting:
		id := l.handle.CloudID()
		if id == "" {
			l.fail(&StatusError{Status: ErrorInternal})
			return nil
		}
		l.awaiting = true
		l.logger.Debug("anchor: hosted, allocating short code", "anchor_id", id, "gen", l.gen)
		return l.allocationTask(l.gen, id)
	case status == StatusSuccess && l.state == StateResolving:
		l.state = StateResolved
		l.logger.Info("anchor: resolved", "anchor_id", l.handle.CloudID())
		l.notify(Event{Kind: ResolvingSucceeded, AnchorID: l.handle.CloudID()})
	}
	return nil
}

// fail handles a provider error. The handle stays attached; the next Begin
// or Clear detaches it.
func (l *Lifecycle) fail(err error) {
	kind := HostingFailed
	if l.state == StateResolving {
		kind = ResolvingFailed
	}
	l.logger.Warn("anchor: provider error", "state", l.state.String(), "err", err)
	l.state = StateNone
	l.notify(Event{Kind: kind, Err: err})
}

// Complete applies the result of a Task. Results for a handle that is no
// longer owned are dropped.
//
// A failed allocation leaves the state at StateHosting so the next Poll tries
// again, until the attempt budget is spent or the store reports exhaustion;
// then the lifecycle reports ErrAllocationExhausted and resets to StateNone.
func (l *Lifecycle) Complete(c Completion) {
	if c.gen != l.gen || l.state != StateHosting || !l.awaiting {
		l.logger.Debug("anchor: dropping stale completion", "completion_gen", c.gen, "gen", l.gen, "code", int64(c.Code))
		return
	}
	l.awaiting = false

	if c.Err != nil {
		l.failures++
		if l.failures < l.maxAttempts && !errors.Is(c.Err, shortcode.ErrExhausted) {
			l.logger.Warn("anchor: short code allocation failed, will retry", "attempt", l.failures, "err", c.Err)
			l.notify(Event{Kind: HostingFailed, AnchorID: c.AnchorID, Err: c.Err})
			return
		}
		err := fmt.Errorf("%w after %d attempts: %w", ErrAllocationExhausted, l.failures, c.Err)
		l.logger.Error("anchor: giving up on short code", "anchor_id", c.AnchorID, "err", err)
		l.state = StateNone
		l.failures = 0
		l.notify(Event{Kind: HostingFailed, AnchorID: c.AnchorID, Err: err})
		return
	}

	l.failures = 0
	l.code = c.Code
	l.state = StateHosted
	l.logger.Info("anchor: hosted", "code", int64(c.Code), "anchor_id", c.AnchorID)
	l.notify(Event{Kind: HostingSucceeded, Code: c.Code, AnchorID: c.AnchorID})
}

func (l *Lifecycle) notify(e Event) {
	if l.notifier != nil {
		l.notifier.Notify(e)
	}
}

// Task is deferred short-code work. It touches only the store, never the
// lifecycle, so it may run on any goroutine.
type Task func(ctx context.Context) Completion

// Completion is the outcome of a Task.
type Completion struct {
	gen      uint64
	Code     shortcode.Code
	AnchorID string
	Err      error
}

func (l *Lifecycle) allocationTask(gen uint64, anchorID string) Task {
	store, timeout := l.store, l.storeTimeout
	return func(ctx context.Context) Completion {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		c := Completion{gen: gen, AnchorID: anchorID}
		code, err := store.Allocate(ctx)
		if err != nil {
			// no usable code: reported as invalid, keeping the store cause
			c.Err = fmt.Errorf("allocate short code: %w: %w", shortcode.ErrInvalidCode, err)
			return c
		}
		if !code.Valid() {
			c.Err = fmt.Errorf("allocate short code: %w", shortcode.ErrInvalidCode)
			return c
		}
		if err := store.Put(ctx, code, anchorID); err != nil {
			c.Err = fmt.Errorf("store short code %d: %w", code, err)
			return c
		}
		c.Code = code
		return c
	}
}
