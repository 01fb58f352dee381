package models

import "encoding/json"

// CaseEvent is what travels over Redis pub/sub and the case websocket.
type CaseEvent struct {
	// Type is the ledger event kind, e.g. "message_appended".
	Type   string `json:"type"`
	CaseID uint64 `json:"case_id,omitempty"`
	// Payload is the JSON of the record the event is about (case, agent or
	// message), exactly as the query API returns it.
	Payload json.RawMessage `json:"payload"`
}
