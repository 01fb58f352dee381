package telegram

import (
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const languageCallbackPrefix = "set_lang_"

// PreferenceStore keeps each chat's reply language.
type PreferenceStore interface {
	Language(chatID int64) (string, bool)
	SetLanguage(chatID int64, lang string)
}

// MemoryPreferences is a PreferenceStore that lives for the process only.
type MemoryPreferences struct {
	mu    sync.RWMutex
	langs map[int64]string
}

func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{langs: make(map[int64]string)}
}

func (p *MemoryPreferences) Language(chatID int64) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	lang, ok := p.langs[chatID]
	return lang, ok
}

func (p *MemoryPreferences) SetLanguage(chatID int64, lang string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.langs[chatID] = lang
}

// handleLanguageCommand sends a keyboard to choose a language.
func (s *BotService) handleLanguageCommand(chatID int64) {
	lang := s.language(chatID, "")
	msg := tgbotapi.NewMessage(chatID, s.Localizer.GetString(lang, "choose_language"))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("English", languageCallbackPrefix+"en"),
			tgbotapi.NewInlineKeyboardButtonData("Українська", languageCallbackPrefix+"uk"),
		),
	)
	s.send(msg)
}

// handleCallbackQuery applies a language choice.
func (s *BotService) handleCallbackQuery(cq *tgbotapi.CallbackQuery) {
	if _, err := s.BotAPI.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		s.logger.Warn("failed to answer callback query", zap.Error(err))
	}
	if cq.Message == nil || !strings.HasPrefix(cq.Data, languageCallbackPrefix) {
		return
	}

	chatID := cq.Message.Chat.ID
	lang := strings.TrimPrefix(cq.Data, languageCallbackPrefix)
	if !s.Localizer.Supports(lang) {
		return
	}
	s.Prefs.SetLanguage(chatID, lang)
	s.reply(chatID, lang, "language_set")
}
