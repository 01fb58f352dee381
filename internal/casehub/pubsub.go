package casehub

import (
	"context"

	"go.uber.org/zap"
)

// startPubSubListener forwards every event published on a case channel to
// EventCh until ctx is cancelled.
func (m *Manager) startPubSubListener(ctx context.Context) {
	pubsub := m.source.SubscribeToAllCases()

	go func() {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ev, err := DecodeEvent(msg.Payload)
				if err != nil {
					m.logger.Warn("skipping malformed case event",
						zap.String("channel", msg.Channel),
						zap.Error(err))
					continue
				}
				select {
				case m.EventCh <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}
