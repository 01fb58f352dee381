package casehub_test

import (
	"safecase/backend/internal/models"
)

type MockClient struct {
	subscriberID string
	caseID       uint64
	RecvChannel  chan models.CaseEvent
	closed       chan struct{}
}

func newMockClient(subscriberID string, caseID uint64, buffer int) *MockClient {
	return &MockClient{
		subscriberID: subscriberID,
		caseID:       caseID,
		RecvChannel:  make(chan models.CaseEvent, buffer),
		closed:       make(chan struct{}),
	}
}

func (c *MockClient) GetSubscriberID() string { return c.subscriberID }

func (c *MockClient) GetCaseID() uint64 { return c.caseID }

func (c *MockClient) GetSendChannel() chan<- models.CaseEvent { return c.RecvChannel }

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	close(c.closed)
}
