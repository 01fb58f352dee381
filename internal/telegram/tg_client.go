package telegram

import (
	"encoding/json"

	"safecase/backend/internal/ledger"
	"safecase/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client implements casehub.Client for a reporter's Telegram chat. It
// forwards police messages and status changes of one case to the chat.
type Client struct {
	SubscriberID string
	CaseID       uint64
	ChatID       int64
	Send         chan models.CaseEvent

	sender Sender
	render func(ev models.CaseEvent) (string, bool)
	onDone func()
	logger *zap.Logger
}

func newClient(chatID int64, caseID uint64, sender Sender, render func(models.CaseEvent) (string, bool), onDone func(), logger *zap.Logger) *Client {
	return &Client{
		SubscriberID: uuid.NewString(),
		CaseID:       caseID,
		ChatID:       chatID,
		Send:         make(chan models.CaseEvent, 32),
		sender:       sender,
		render:       render,
		onDone:       onDone,
		logger:       logger,
	}
}

func (c *Client) GetSubscriberID() string                 { return c.SubscriberID }
func (c *Client) GetCaseID() uint64                       { return c.CaseID }
func (c *Client) GetSendChannel() chan<- models.CaseEvent { return c.Send }

// Run starts the write pump. Incoming Telegram updates are handled
// centrally by BotService.
func (c *Client) Run() {
	go c.writePump()
}

func (c *Client) Close() {
	close(c.Send)
}

func (c *Client) writePump() {
	defer func() {
		if c.onDone != nil {
			c.onDone()
		}
	}()

	for ev := range c.Send {
		text, ok := c.render(ev)
		if !ok {
			continue
		}
		if _, err := c.sender.Send(tgbotapi.NewMessage(c.ChatID, text)); err != nil {
			c.logger.Warn("failed to forward case event",
				zap.Uint64("case_id", c.CaseID),
				zap.String("event", ev.Type),
				zap.Error(err))
		}
	}
}

// eventMessage is the subset of a message payload the bot renders.
type eventMessage struct {
	Index    uint64 `json:"index"`
	FromRole string `json:"from_role"`
	Content  string `json:"content"`
}

// renderEvent turns a case event into chat text in lang. Citizen messages
// are not echoed back.
func (s *BotService) renderEvent(lang string, ev models.CaseEvent) (string, bool) {
	switch ledger.EventKind(ev.Type) {
	case ledger.EventMessageAppended:
		var msg eventMessage
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			s.logger.Warn("undecodable message event", zap.Uint64("case_id", ev.CaseID), zap.Error(err))
			return "", false
		}
		if msg.FromRole != ledger.RolePolice.String() {
			return "", false
		}
		return s.Localizer.Format(lang, "police_message", ev.CaseID, msg.Content), true
	case ledger.EventCaseAssigned:
		return s.Localizer.Format(lang, "case_assigned_notice", ev.CaseID), true
	case ledger.EventCaseClosed:
		return s.Localizer.Format(lang, "case_closed_notice", ev.CaseID), true
	default:
		return "", false
	}
}
