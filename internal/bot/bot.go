package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/internal/excel"
	"github.com/example/srsbot/internal/logger"
	"github.com/example/srsbot/internal/progress"
	"github.com/example/srsbot/internal/study"
	"github.com/example/srsbot/pkg/models"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// sender is the part of the Telegram client the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Store is the learner and deck storage the bot works with.
type Store interface {
	LearnerByTelegramID(ctx context.Context, telegramID int64) (*models.Learner, error)
	CreateLearner(ctx context.Context, l *models.Learner) error
	CreateDeck(ctx context.Context, d *models.Deck) error
	Deck(ctx context.Context, learnerID, deckID int64) (*models.Deck, error)
	DeckByName(ctx context.Context, learnerID int64, name string) (*models.Deck, error)
	Decks(ctx context.Context, learnerID int64) ([]models.Deck, error)
	Role(ctx context.Context, learnerID, deckID int64) (models.DeckRole, error)
	ResetDeck(ctx context.Context, learnerID, deckID int64) (int64, error)
}

// Engine runs study sessions.
type Engine interface {
	BuildNextBatch(ctx context.Context, req study.BatchRequest, now time.Time) (*study.Batch, error)
	BuildTodayPlan(ctx context.Context, req study.PlanRequest, now time.Time) (*study.Plan, error)
	BuildStudyStatus(ctx context.Context, learnerID, deckID int64, quotas *study.Quotas, now time.Time) (*study.StudyStatus, error)
	ApplyAnswer(ctx context.Context, a study.Answer, now time.Time) (*study.AnswerResult, error)
}

// History reads the learner's daily progress.
type History interface {
	Streak(ctx context.Context, learnerID int64, threshold int, now time.Time) (*progress.Streak, error)
	TodayGoal(ctx context.Context, learnerID int64, now time.Time) (*progress.Goal, error)
}

// Importer loads card files into decks.
type Importer interface {
	Import(ctx context.Context, deckID int64, r io.Reader, cfg excel.ImportConfig) (*excel.ImportResult, error)
}

// Deps are the services behind the bot.
type Deps struct {
	Store    Store
	Engine   Engine
	History  History
	Importer Importer
}

// session is a learner's batch being answered card by card.
type session struct {
	BatchID   uuid.UUID
	DeckID    int64
	Items     []study.BatchItem
	Pos       int
	Known     int
	Again     int
	UpdatedAt time.Time
}

func (s *session) current() (study.BatchItem, bool) {
	if s == nil || s.Pos >= len(s.Items) {
		return study.BatchItem{}, false
	}
	return s.Items[s.Pos], true
}

// Bot represents the Telegram bot application
type Bot struct {
	api    sender
	deps   Deps
	config *BotConfig
	log    *logger.Logger
	client *http.Client
	now    func() time.Time

	mu       sync.Mutex
	sessions map[int64]*session
	wg       sync.WaitGroup
}

// New creates a new bot instance
func New(api sender, deps Deps, config *BotConfig, log *logger.Logger) *Bot {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Bot{
		api:      api,
		deps:     deps,
		config:   config,
		log:      log,
		client:   &http.Client{Timeout: 30 * time.Second},
		now:      time.Now,
		sessions: make(map[int64]*session),
	}
}

// Connect authorizes on the Telegram API.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, apperr.Invalid("TELEGRAM_BOT_TOKEN is not set")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create bot")
	}
	return api, nil
}

// Serve long-polls api for updates until ctx is done.
func (b *Bot) Serve(ctx context.Context, api *tgbotapi.BotAPI) {
	b.log.Info("Authorized on account", "username", api.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := api.GetUpdatesChan(updateConfig)

	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()
	b.Run(ctx, updates)
}

// Run handles updates concurrently until the channel closes or ctx is done,
// then waits for running handlers.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Panic while handling update", "update_id", update.UpdateID, "panic", r)
		}
	}()

	var err error
	switch {
	case update.CallbackQuery != nil:
		err = b.HandleCallback(ctx, update.CallbackQuery)
	case update.Message == nil || update.Message.From == nil:
		return
	case update.Message.IsCommand():
		err = b.HandleCommand(ctx, update.Message)
	case update.Message.Document != nil:
		err = b.handleDocument(ctx, update.Message)
	default:
		b.reply(update.Message.Chat.ID, "I don't understand. Use /help to see the commands.", nil)
	}
	if err != nil {
		b.replyError(chatOf(update), err)
	}
}

func chatOf(update tgbotapi.Update) int64 {
	if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
		return update.CallbackQuery.Message.Chat.ID
	}
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	return 0
}

// replyError tells the user what went wrong for typed errors and logs the rest.
func (b *Bot) replyError(chatID int64, err error) {
	if chatID == 0 {
		return
	}
	var text string
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindInvalidInput, apperr.KindConflict:
		text = "❌ " + err.Error()
	default:
		b.log.Error("Failed to handle update", "chat_id", chatID, "error", err)
		text = "❌ Something went wrong, please try again later."
	}
	b.reply(chatID, text, nil)
}

func (b *Bot) reply(chatID int64, text string, buttons [][]MenuButton) {
	msg := tgbotapi.NewMessage(chatID, text)
	if buttons != nil {
		msg.ReplyMarkup = createKeyboard(buttons)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("Failed to send message", "chat_id", chatID, "error", err)
	}
}

// MainMenuButtons returns the buttons for the main menu
func (b *Bot) MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "🎯 Study", CallbackData: callbackStudy},
			{Text: "📋 Plan", CallbackData: callbackPlan},
		},
		{
			{Text: "📊 Status", CallbackData: callbackStatus},
			{Text: "🔥 Streak", CallbackData: callbackStreak},
		},
	}
}

// SendReminder implements the scheduler.Notifier interface
func (b *Bot) SendReminder(_ context.Context, learner models.Learner, due int) error {
	if !learner.TelegramID.Valid {
		return apperr.Invalid("learner %d has no telegram account", learner.ID)
	}
	cardForm := "cards"
	if due == 1 {
		cardForm = "card"
	}
	msg := tgbotapi.NewMessage(learner.TelegramID.Int64, fmt.Sprintf("⏰ You have %d %s due for review!", due, cardForm))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "🎯 Study now", CallbackData: callbackStudy}}})
	if _, err := b.api.Send(msg); err != nil {
		return errors.Wrapf(err, "failed to send reminder to learner %d", learner.ID)
	}
	return nil
}

func (b *Bot) session(telegramID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessions[telegramID]
	if s != nil && b.now().Sub(s.UpdatedAt) > b.config.SessionTTL {
		delete(b.sessions, telegramID)
		return nil
	}
	return s
}

func (b *Bot) setSession(telegramID int64, s *session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s == nil {
		delete(b.sessions, telegramID)
		return
	}
	b.sessions[telegramID] = s
}

func (b *Bot) currentItem(telegramID int64) (study.BatchItem, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[telegramID].current()
}

// takeCurrent advances the session past cardID when it is the card being
// shown, so a double tap cannot answer a card twice.
func (b *Bot) takeCurrent(telegramID, cardID int64, known bool) (*session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessions[telegramID]
	item, ok := s.current()
	if !ok || item.Card.ID != cardID {
		return nil, false
	}
	s.Pos++
	if known {
		s.Known++
	} else {
		s.Again++
	}
	s.UpdatedAt = b.now()
	snapshot := *s
	return &snapshot, true
}

// giveBack undoes takeCurrent for cardID so a failed answer can be retried.
func (b *Bot) giveBack(telegramID, cardID int64, known bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessions[telegramID]
	if s == nil || s.Pos == 0 || s.Items[s.Pos-1].Card.ID != cardID {
		return
	}
	s.Pos--
	if known {
		s.Known--
	} else {
		s.Again--
	}
}

// fetch downloads a Telegram file.
func (b *Bot) fetch(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get file url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build file request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to download file")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("failed to download file: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
