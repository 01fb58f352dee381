// Package casehub fans committed case events out to live subscribers
// (websocket clients and Telegram chats). Events arrive over Redis pub/sub
// from the process that owns the ledger. There is a single ledger writer;
// the channel decouples delivery from it, not writers from each other.
package casehub

import (
	"context"
	"encoding/json"
	"fmt"

	"safecase/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventSource opens the pattern subscription over all case channels.
type EventSource interface {
	SubscribeToAllCases() *redis.PubSub
}

// Manager owns the subscriber set. All mutation happens on the Run goroutine.
type Manager struct {
	// Clients maps case id to subscriber id to client.
	Clients map[uint64]map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	EventCh      chan models.CaseEvent

	source EventSource
	logger *zap.Logger
	done   chan struct{}
}

// NewManager creates a hub. source may be nil, in which case events are only
// those pushed to EventCh directly.
func NewManager(source EventSource, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		Clients:      make(map[uint64]map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		EventCh:      make(chan models.CaseEvent, 256),
		source:       source,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Register adds c to its case's subscriber set. It returns false once the
// Manager has stopped.
func (m *Manager) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes c. Safe to call after the Manager stopped.
func (m *Manager) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Run processes registrations and events until ctx is cancelled, then closes
// every remaining client.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)

	if m.source != nil {
		m.startPubSubListener(ctx)
	}
	m.logger.Info("case hub started")

	for {
		select {
		case c := <-m.RegisterCh:
			subs, ok := m.Clients[c.GetCaseID()]
			if !ok {
				subs = make(map[string]Client)
				m.Clients[c.GetCaseID()] = subs
			}
			subs[c.GetSubscriberID()] = c
			m.logger.Debug("subscriber registered",
				zap.Uint64("case_id", c.GetCaseID()),
				zap.String("subscriber", c.GetSubscriberID()))

		case c := <-m.UnregisterCh:
			m.remove(c)

		case ev := <-m.EventCh:
			m.deliver(ev)

		case <-ctx.Done():
			for _, subs := range m.Clients {
				for _, c := range subs {
					c.Close()
				}
			}
			m.Clients = make(map[uint64]map[string]Client)
			m.logger.Info("case hub stopped")
			return
		}
	}
}

// deliver sends ev to every subscriber of its case. A subscriber whose buffer
// is full is dropped.
func (m *Manager) deliver(ev models.CaseEvent) {
	for _, c := range m.Clients[ev.CaseID] {
		select {
		case c.GetSendChannel() <- ev:
		default:
			m.logger.Warn("dropping slow subscriber",
				zap.Uint64("case_id", ev.CaseID),
				zap.String("subscriber", c.GetSubscriberID()))
			m.remove(c)
		}
	}
}

func (m *Manager) remove(c Client) {
	subs, ok := m.Clients[c.GetCaseID()]
	if !ok {
		return
	}
	if _, ok := subs[c.GetSubscriberID()]; !ok {
		return
	}
	delete(subs, c.GetSubscriberID())
	if len(subs) == 0 {
		delete(m.Clients, c.GetCaseID())
	}
	c.Close()
}

// DecodeEvent parses a pub/sub payload.
func DecodeEvent(payload string) (models.CaseEvent, error) {
	var ev models.CaseEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return models.CaseEvent{}, fmt.Errorf("decode case event: %w", err)
	}
	if ev.CaseID == 0 {
		return models.CaseEvent{}, fmt.Errorf("case event %q has no case id", ev.Type)
	}
	return ev, nil
}
