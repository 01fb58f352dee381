// Package telegram is the reporter-facing Telegram bot. Reporters open cases,
// follow them and talk to the police without an account; each chat is known
// to the ledger only by a random identity held in this process's memory.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"

	"safecase/backend/internal/casehub"
	"safecase/backend/internal/commitment"
	"safecase/backend/internal/config"
	"safecase/backend/internal/ledger"
	"safecase/backend/internal/localization"
	"safecase/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const historyPageSize = 20

// Sender delivers outgoing chat messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotAPI is the part of *tgbotapi.BotAPI the service uses.
type BotAPI interface {
	Sender
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// CaseLedger is the part of the ledger the bot drives.
type CaseLedger interface {
	OpenCase(ctx context.Context, caller ledger.Identity, region, subject, details string, secret commitment.Secret) (uint64, error)
	SendCitizenMessage(ctx context.Context, caller ledger.Identity, caseID uint64, content string) (uint64, error)
	Case(id uint64) (ledger.Case, bool)
	MessageCount(caseID uint64) uint64
	Messages(caseID, from, limit uint64) []ledger.Message
}

// Hub subscribes clients to case events.
type Hub interface {
	Register(c casehub.Client) bool
	Unregister(c casehub.Client)
}

// BotService receives Telegram updates and turns commands into ledger calls.
type BotService struct {
	BotAPI    BotAPI
	Ledger    CaseLedger
	Hub       Hub
	Localizer *localization.Localizer
	Prefs     PreferenceStore

	logger *zap.Logger

	mu         sync.Mutex
	identities map[int64]ledger.Identity
	watching   map[int64]map[uint64]*Client
}

// NewBotService connects to Telegram with token.
func NewBotService(token string, l CaseLedger, hub Hub, localizer *localization.Localizer, logger *zap.Logger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	logger.Info("telegram bot authorized", zap.String("account", bot.Self.UserName))
	return NewBotServiceWithAPI(bot, l, hub, localizer, logger), nil
}

// NewBotServiceWithAPI builds the service on an existing API client. hub may
// be nil, in which case nothing is forwarded to chats.
func NewBotServiceWithAPI(api BotAPI, l CaseLedger, hub Hub, localizer *localization.Localizer, logger *zap.Logger) *BotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BotService{
		BotAPI:     api,
		Ledger:     l,
		Hub:        hub,
		Localizer:  localizer,
		Prefs:      NewMemoryPreferences(),
		logger:     logger,
		identities: make(map[int64]ledger.Identity),
		watching:   make(map[int64]map[uint64]*Client),
	}
}

// Run handles updates until ctx is cancelled.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes a single update.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		s.handleCallbackQuery(update.CallbackQuery)
	case update.Message != nil:
		s.handleMessage(ctx, update.Message)
	}
}

func (s *BotService) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	var userLang string
	if msg.From != nil {
		userLang = msg.From.LanguageCode
	}
	lang := s.language(chatID, userLang)

	if !msg.IsCommand() {
		s.reply(chatID, lang, "unknown_command")
		return
	}

	args := msg.CommandArguments()
	switch msg.Command() {
	case "start":
		s.reply(chatID, lang, "welcome")
	case "help":
		s.reply(chatID, lang, "help")
	case "report":
		s.handleReport(ctx, chatID, lang, args)
	case "say":
		s.handleSay(ctx, chatID, lang, args)
	case "status":
		s.handleStatus(chatID, lang, args)
	case "history":
		s.handleHistory(chatID, lang, args)
	case "language":
		s.handleLanguageCommand(chatID)
	default:
		s.reply(chatID, lang, "unknown_command")
	}
}

func (s *BotService) handleReport(ctx context.Context, chatID int64, lang, args string) {
	report, err := ParseReport(args)
	switch {
	case errors.Is(err, ErrTooLong):
		s.send(tgbotapi.NewMessage(chatID, s.Localizer.Format(lang, "report_too_long",
			config.MaxRegionLength, config.MaxSubjectLength, config.MaxDetailsLength)))
		return
	case err != nil:
		s.reply(chatID, lang, "report_usage")
		return
	}

	secret, err := commitment.NewSecret()
	if err != nil {
		s.logger.Error("failed to generate reporter secret", zap.Error(err))
		s.reply(chatID, lang, "internal_error")
		return
	}

	id, err := s.Ledger.OpenCase(ctx, s.identityFor(chatID), report.Region, report.Subject, report.Details, secret)
	if err != nil {
		s.replyLedgerError(chatID, lang, err)
		return
	}
	s.watch(chatID, id)
	s.send(tgbotapi.NewMessage(chatID, s.Localizer.Format(lang, "report_opened", id, secret.String())))
}

func (s *BotService) handleSay(ctx context.Context, chatID int64, lang, args string) {
	caseID, text, err := ParseSay(args)
	switch {
	case errors.Is(err, ErrTooLong):
		s.send(tgbotapi.NewMessage(chatID, s.Localizer.Format(lang, "message_too_long", config.MaxContentLength)))
		return
	case err != nil:
		s.reply(chatID, lang, "say_usage")
		return
	}

	index, err := s.Ledger.SendCitizenMessage(ctx, s.identityFor(chatID), caseID, text)
	if err != nil {
		s.replyLedgerError(chatID, lang, err)
		return
	}
	s.watch(chatID, caseID)
	s.send(tgbotapi.NewMessage(chatID, s.Localizer.Format(lang, "message_sent", index, caseID)))
}

func (s *BotService) handleStatus(chatID int64, lang, args string) {
	caseID, _, err := ParseCaseArg(args)
	if err != nil {
		s.send(tgbotapi.NewMessage(chatID, s.Localizer.Format(lang, "case_usage", "status")))
		return
	}
	c, ok := s.Ledger.Case(caseID)
	if !ok {
		s.reply(chatID, lang, "case_not_found")
		return
	}

	assigned := s.Localizer.GetString(lang, "assigned_no")
	if c.IsAssigned() {
		assigned = s.Localizer.GetString(lang, "assigned_yes")
	}
	s.send(tgbotapi.NewMessage(chatID, s.Localizer.Format(lang, "case_status",
		c.ID, c.Region, c.Subject, c.Status.String(), assigned)))
}

func (s *BotService) handleHistory(chatID int64, lang, args string) {
	caseID, _, err := ParseCaseArg(args)
	if err != nil {
		s.send(tgbotapi.NewMessage(chatID, s.Localizer.Format(lang, "case_usage", "history")))
		return
	}
	if _, ok := s.Ledger.Case(caseID); !ok {
		s.reply(chatID, lang, "case_not_found")
		return
	}

	var from uint64
	if n := s.Ledger.MessageCount(caseID); n > historyPageSize {
		from = n - historyPageSize
	}
	msgs := s.Ledger.Messages(caseID, from, historyPageSize)
	if len(msgs) == 0 {
		s.reply(chatID, lang, "history_empty")
		return
	}

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		key := "history_citizen"
		if m.FromRole == ledger.RolePolice {
			key = "history_police"
		}
		lines = append(lines, s.Localizer.Format(lang, key, m.Index, m.Content))
	}
	s.send(tgbotapi.NewMessage(chatID, strings.Join(lines, "\n")))
}

func (s *BotService) replyLedgerError(chatID int64, lang string, err error) {
	switch {
	case errors.Is(err, ledger.ErrCaseNotFound):
		s.reply(chatID, lang, "case_not_found")
	case errors.Is(err, ledger.ErrCaseClosed):
		s.reply(chatID, lang, "case_closed")
	default:
		s.logger.Error("ledger call failed", zap.String("kind", ledger.ErrorKind(err)), zap.Error(err))
		s.reply(chatID, lang, "internal_error")
	}
}

// identityFor returns the chat's anonymous ledger identity, minting one on
// first use.
func (s *BotService) identityFor(chatID int64) ledger.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.identities[chatID]
	if !ok {
		id = ledger.Identity("tg-" + uuid.NewString())
		s.identities[chatID] = id
	}
	return id
}

// watch subscribes the chat to the case's events once.
func (s *BotService) watch(chatID int64, caseID uint64) {
	if s.Hub == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cases, ok := s.watching[chatID]
	if !ok {
		cases = make(map[uint64]*Client)
		s.watching[chatID] = cases
	}
	if _, ok := cases[caseID]; ok {
		return
	}

	render := func(ev models.CaseEvent) (string, bool) {
		return s.renderEvent(s.language(chatID, ""), ev)
	}
	var client *Client
	client = newClient(chatID, caseID, s.BotAPI, render, func() { s.unwatch(chatID, client) }, s.logger)
	if !s.Hub.Register(client) {
		return
	}
	cases[caseID] = client
	client.Run()
}

func (s *BotService) unwatch(chatID int64, c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watching[chatID][c.CaseID] != c {
		return
	}
	delete(s.watching[chatID], c.CaseID)
	if len(s.watching[chatID]) == 0 {
		delete(s.watching, chatID)
	}
}

// Watching reports whether the chat receives the case's events.
func (s *BotService) Watching(chatID int64, caseID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watching[chatID][caseID]
	return ok
}

// language picks the chat's stored preference, then the Telegram client
// language, then the default.
func (s *BotService) language(chatID int64, userLang string) string {
	if lang, ok := s.Prefs.Language(chatID); ok {
		return lang
	}
	if userLang != "" && s.Localizer.Supports(userLang) {
		return userLang
	}
	return localization.DefaultLanguage
}

func (s *BotService) reply(chatID int64, lang, key string) {
	s.send(tgbotapi.NewMessage(chatID, s.Localizer.GetString(lang, key)))
}

func (s *BotService) send(msg tgbotapi.Chattable) {
	if _, err := s.BotAPI.Send(msg); err != nil {
		s.logger.Warn("failed to send telegram message", zap.Error(err))
	}
}
