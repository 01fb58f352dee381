package telegram_test

import (
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/mock"
)

// MockBotAPI records outgoing messages on a channel; the rest goes through
// testify expectations.
type MockBotAPI struct {
	mock.Mock
	sent chan tgbotapi.MessageConfig
}

func newMockBotAPI() *MockBotAPI {
	return &MockBotAPI{sent: make(chan tgbotapi.MessageConfig, 64)}
}

func (m *MockBotAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.sent <- msg
	}
	return tgbotapi.Message{}, nil
}

func (m *MockBotAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func (m *MockBotAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	args := m.Called(config)
	return args.Get(0).(tgbotapi.UpdatesChannel)
}

func (m *MockBotAPI) StopReceivingUpdates() {
	m.Called()
}

// next returns the next outgoing message text.
func (m *MockBotAPI) next(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	select {
	case msg := <-m.sent:
		return msg
	case <-time.After(time.Second):
		t.Fatal("bot sent nothing")
		return tgbotapi.MessageConfig{}
	}
}

func (m *MockBotAPI) assertNothingSent(t *testing.T) {
	t.Helper()
	select {
	case msg := <-m.sent:
		t.Fatalf("unexpected message: %q", msg.Text)
	case <-time.After(50 * time.Millisecond):
	}
}

func command(chatID int64, text string) tgbotapi.Update {
	cmd := strings.SplitN(text, " ", 2)[0]
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: text,
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: len(cmd)},
			},
			From: &tgbotapi.User{ID: chatID, LanguageCode: "en"},
			Chat: tgbotapi.Chat{ID: chatID},
		},
	}
}

const (
	waitFor = time.Second
	tick    = 10 * time.Millisecond
)
