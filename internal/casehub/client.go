package casehub

import "safecase/backend/internal/models"

// Client is one live subscriber to a case's event stream.
type Client interface {
	// GetSubscriberID returns an id unique to this connection.
	GetSubscriberID() string
	// GetCaseID returns the case the client watches.
	GetCaseID() uint64

	// GetSendChannel returns the channel the Manager delivers events on.
	GetSendChannel() chan<- models.CaseEvent

	// Run starts the client's pumps.
	Run()
	// Close shuts the send side down. The Manager calls it exactly once.
	Close()
}
