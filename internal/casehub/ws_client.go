package casehub

import (
	"encoding/json"
	"time"

	"safecase/backend/internal/ledger"
	"safecase/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// WebSocketClient streams one case's events to a websocket. The stream is
// read-only; anything the peer sends is discarded.
type WebSocketClient struct {
	SubscriberID string
	CaseID       uint64
	Conn         *websocket.Conn
	Hub          *Manager
	Send         chan models.CaseEvent

	backlog []ledger.Message
	logger  *zap.Logger
}

func NewWebSocketClient(hub *Manager, conn *websocket.Conn, caseID uint64, logger *zap.Logger) *WebSocketClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketClient{
		SubscriberID: uuid.NewString(),
		CaseID:       caseID,
		Conn:         conn,
		Hub:          hub,
		Send:         make(chan models.CaseEvent, sendBuffer),
		logger:       logger,
	}
}

func (c *WebSocketClient) GetSubscriberID() string                 { return c.SubscriberID }
func (c *WebSocketClient) GetCaseID() uint64                       { return c.CaseID }
func (c *WebSocketClient) GetSendChannel() chan<- models.CaseEvent { return c.Send }

// SetBacklog sets the history written before any live event. Live message
// events already covered by the backlog are skipped. Call before Run.
func (c *WebSocketClient) SetBacklog(msgs []ledger.Message) {
	c.backlog = msgs
}

func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *WebSocketClient) Close() {
	close(c.Send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read failed", zap.Uint64("case_id", c.CaseID), zap.Error(err))
			}
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for _, msg := range c.backlog {
		ev, err := BacklogEvent(msg)
		if err != nil {
			c.logger.Error("failed to encode backlog message", zap.Error(err))
			return
		}
		if err := c.write(ev); err != nil {
			return
		}
	}
	seen := uint64(len(c.backlog))

	for {
		select {
		case ev, ok := <-c.Send:
			if !ok {
				c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if CoveredByBacklog(ev, seen) {
				continue
			}
			if err := c.write(ev); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) write(ev models.CaseEvent) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.Conn.WriteJSON(ev); err != nil {
		c.logger.Debug("websocket write failed", zap.Uint64("case_id", c.CaseID), zap.Error(err))
		return err
	}
	return nil
}

// BacklogEvent wraps a stored message as the event its append produced.
func BacklogEvent(msg ledger.Message) (models.CaseEvent, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return models.CaseEvent{}, err
	}
	return models.CaseEvent{
		Type:    string(ledger.EventMessageAppended),
		CaseID:  msg.CaseID,
		Payload: payload,
	}, nil
}

// CoveredByBacklog reports whether ev is a message event whose index is below
// seen, i.e. one the backlog already delivered.
func CoveredByBacklog(ev models.CaseEvent, seen uint64) bool {
	if ev.Type != string(ledger.EventMessageAppended) {
		return false
	}
	var msg struct {
		Index uint64 `json:"index"`
	}
	if err := json.Unmarshal(ev.Payload, &msg); err != nil {
		return false
	}
	return msg.Index < seen
}
