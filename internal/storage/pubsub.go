package storage

import (
	"encoding/json"
	"fmt"

	"safecase/backend/internal/ledger"
	"safecase/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EncodeEvent turns a committed ledger event into its wire form.
func EncodeEvent(ev ledger.Event) (models.CaseEvent, error) {
	var record interface{}
	switch {
	case ev.Message != nil:
		record = ev.Message
	case ev.Case != nil:
		record = ev.Case
	case ev.Agent != nil:
		record = ev.Agent
	default:
		return models.CaseEvent{}, fmt.Errorf("event %q carries no record", ev.Kind)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return models.CaseEvent{}, fmt.Errorf("encode %s payload: %w", ev.Kind, err)
	}
	return models.CaseEvent{
		Type:    string(ev.Kind),
		CaseID:  ev.CaseID,
		Payload: payload,
	}, nil
}

// PublishEvent broadcasts a committed case change on the case's channel.
// Agent registry events have no subscribers and are not published. Without
// a Redis client it is a no-op.
func (s *Service) PublishEvent(ev ledger.Event) error {
	if s.Redis == nil || ev.CaseID == 0 {
		return nil
	}

	msg, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	channel := CaseChannel(ev.CaseID)
	if err := s.Redis.Publish(s.Ctx, channel, data).Err(); err != nil {
		s.logger.Error("failed to publish ledger event",
			zap.String("channel", channel),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
		return err
	}
	return nil
}

// SubscribeToAllCases subscribes to the events of every case.
func (s *Service) SubscribeToAllCases() *redis.PubSub {
	return s.Redis.PSubscribe(s.Ctx, CaseChannelPattern)
}
