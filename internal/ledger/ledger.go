// Package ledger implements the authorization-gated case and message state
// machine: the agent registry and its coordinator, the case lifecycle and
// the per-case append-only message log.
//
// Every operation, reads included, runs inside one exclusive critical section
// over the whole state, so operations are totally ordered and never observe
// each other half-applied. A mutating operation validates everything first,
// collects its writes into a Change, hands the Change to the Journal and only
// then applies it to memory. Any failure leaves the state untouched.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Journal durably records committed changes. Append is called inside the
// ledger's critical section; returning an error aborts the operation.
type Journal interface {
	Append(ctx context.Context, ch Change) error
}

// Notifier receives an event for every committed change, in commit order.
// PublishEvent is called outside the ledger's critical section and never by
// two goroutines at once. Delivery is best-effort.
type Notifier interface {
	PublishEvent(ev Event) error
}

// Recorder observes operation outcomes (metrics).
type Recorder interface {
	ObserveOperation(op string, err error)
	ObserveMessage(role Role)
}

// Operation names, used for metrics and logs.
const (
	OpRegisterAgent  = "register_agent"
	OpSetAgentActive = "set_agent_active"
	OpOpenCase       = "open_case"
	OpAssignCase     = "assign_case"
	OpCloseCase      = "close_case"
	OpCitizenMessage = "send_citizen_message"
	OpPoliceMessage  = "send_police_message"
)

type state struct {
	coordinator Identity
	agents      map[Identity]Agent
	cases       map[uint64]Case
	// messages[id] holds the log of case id; its length is the case's
	// message count and entry i has Index i.
	messages   map[uint64][]Message
	nextCaseID uint64
}

func newState() state {
	return state{
		agents:     make(map[Identity]Agent),
		cases:      make(map[uint64]Case),
		messages:   make(map[uint64][]Message),
		nextCaseID: 1,
	}
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	state state

	journal  Journal
	notifier Notifier
	// pending holds committed events not yet handed to the notifier. It is
	// appended under mu and drained by one goroutine at a time.
	pubMu    sync.Mutex
	pending  []Event
	draining bool

	recorder Recorder
	blocks   BlockSource
	logger   *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithJournal(j Journal) Option { return func(l *Ledger) { l.journal = j } }

func WithNotifier(n Notifier) Option { return func(l *Ledger) { l.notifier = n } }

func WithRecorder(r Recorder) Option { return func(l *Ledger) { l.recorder = r } }

func WithBlockSource(b BlockSource) Option { return func(l *Ledger) { l.blocks = b } }

// New returns an empty ledger: no coordinator, no agents, next case id 1.
func New(logger *zap.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		state:  newState(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.blocks == nil {
		l.blocks = NewUnixBlockClock()
	}
	return l
}

// commit journals ch, applies it and queues ev for publishPending. Callers
// hold l.mu.
func (l *Ledger) commit(ctx context.Context, op string, ch Change, ev Event) error {
	if l.journal != nil {
		if err := l.journal.Append(ctx, ch); err != nil {
			l.logger.Error("journal append failed", zap.String("op", op), zap.Error(err))
			return l.fail(op, fmt.Errorf("%w: %v", ErrPersist, err))
		}
	}

	l.state.apply(ch)
	l.observe(op, nil)
	if ch.Coordinator != "" {
		l.logger.Warn("coordinator designated by first gated call", zap.String("op", op))
	}

	if l.notifier != nil {
		l.pubMu.Lock()
		l.pending = append(l.pending, ev)
		l.pubMu.Unlock()
	}
	return nil
}

// publishPending hands queued events to the notifier. Mutating operations
// defer it ahead of taking mu, so it runs once mu is released. If another
// goroutine is already draining, that goroutine publishes our events too.
func (l *Ledger) publishPending() {
	if l.notifier == nil {
		return
	}
	l.pubMu.Lock()
	if l.draining {
		l.pubMu.Unlock()
		return
	}
	l.draining = true
	for {
		batch := l.pending
		l.pending = nil
		if len(batch) == 0 {
			l.draining = false
			l.pubMu.Unlock()
			return
		}
		l.pubMu.Unlock()

		for _, ev := range batch {
			if err := l.notifier.PublishEvent(ev); err != nil {
				l.logger.Warn("event publish failed",
					zap.String("event", string(ev.Kind)),
					zap.Uint64("case_id", ev.CaseID),
					zap.Error(err))
			}
		}
		l.pubMu.Lock()
	}
}

// fail records a rejected operation and returns err unchanged.
func (l *Ledger) fail(op string, err error) error {
	l.observe(op, err)
	l.logger.Debug("operation rejected", zap.String("op", op), zap.Error(err))
	return err
}

func (l *Ledger) observe(op string, err error) {
	if l.recorder != nil {
		l.recorder.ObserveOperation(op, err)
	}
}
