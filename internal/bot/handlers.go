package bot

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/internal/excel"
	"github.com/example/srsbot/internal/study"
	"github.com/example/srsbot/pkg/models"
)

// Constants for callback data
const (
	callbackStudy  = "study"
	callbackPlan   = "plan"
	callbackStatus = "status"
	callbackStreak = "streak"
	callbackCancel = "cancel"

	prefixShow  = "show:"
	prefixKnow  = "know:"
	prefixAgain = "again:"
	prefixReset = "reset:"
)

const helpText = `Available commands:
/study [deck] - Study the next batch of cards
/plan [deck] - Show today's plan
/status [deck] - Show the queue of a deck
/streak - Show your streak and today's goal
/decks - List your decks
/import - How to upload cards
/reset <deck> - Forget your progress in a deck`

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message.Command() == "start" {
		return b.handleStart(ctx, message)
	}
	if message.Command() == "help" {
		b.reply(message.Chat.ID, helpText, b.MainMenuButtons())
		return nil
	}

	learner, err := b.learner(ctx, message.From)
	if err != nil {
		return err
	}
	args := strings.TrimSpace(message.CommandArguments())
	chatID := message.Chat.ID

	switch message.Command() {
	case "decks":
		return b.handleDecks(ctx, chatID, learner)
	case "study":
		return b.handleStudy(ctx, chatID, message.From.ID, learner, args)
	case "plan":
		return b.handlePlan(ctx, chatID, learner, args)
	case "status":
		return b.handleStatus(ctx, chatID, learner, args)
	case "streak":
		return b.handleStreak(ctx, chatID, learner)
	case "reset":
		return b.handleResetCommand(ctx, chatID, learner, args)
	case "import":
		b.reply(chatID, "Send a .xlsx, .csv or .json file with front, back and example columns.\n"+
			"Put the deck name in the caption, optionally followed by skip, update or fail.", nil)
		return nil
	default:
		b.reply(chatID, "Unknown command. Use /help to see the commands.", nil)
		return nil
	}
}

// handleStart registers the learner with a personal deck.
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	if existing, err := b.deps.Store.LearnerByTelegramID(ctx, message.From.ID); err == nil {
		b.reply(message.Chat.ID, fmt.Sprintf("Welcome back, %s! 🎓\n\n%s", existing.Username, helpText), b.MainMenuButtons())
		return nil
	} else if !apperr.IsNotFound(err) {
		return err
	}

	learner := &models.Learner{
		TelegramID:          sql.NullInt64{Int64: message.From.ID, Valid: true},
		Username:            usernameOf(message.From),
		DailyCardTarget:     models.DefaultDailyCardTarget,
		DailyNewTarget:      models.DefaultDailyNewTarget,
		MaxNewPerDay:        models.DefaultMaxNewPerDay,
		MaxReviewsPerDay:    models.DefaultMaxReviewsPerDay,
		NotificationEnabled: true,
		NotificationHour:    models.DefaultNotificationHour,
	}
	if err := b.deps.Store.CreateLearner(ctx, learner); err != nil {
		return err
	}
	deck := &models.Deck{OwnerID: learner.ID, Name: b.config.PersonalDeck}
	if err := b.deps.Store.CreateDeck(ctx, deck); err != nil {
		return err
	}
	b.log.Info("Registered learner", "learner_id", learner.ID, "telegram_id", message.From.ID)

	b.reply(message.Chat.ID, fmt.Sprintf("Welcome to the flashcard bot, %s! 🎓\n"+
		"Your deck %q is ready. Upload cards with /import, then /study.\n\n%s",
		learner.Username, deck.Name, helpText), b.MainMenuButtons())
	return nil
}

func usernameOf(u *tgbotapi.User) string {
	switch {
	case u.UserName != "":
		return u.UserName
	case u.FirstName != "":
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	default:
		return "tg" + strconv.FormatInt(u.ID, 10)
	}
}

func (b *Bot) learner(ctx context.Context, from *tgbotapi.User) (*models.Learner, error) {
	l, err := b.deps.Store.LearnerByTelegramID(ctx, from.ID)
	if apperr.IsNotFound(err) {
		return nil, apperr.NotFound("you are not registered yet, send /start first")
	}
	return l, err
}

// deck resolves a deck by name, or the learner's first deck for an empty name.
func (b *Bot) deck(ctx context.Context, learner *models.Learner, name string) (*models.Deck, error) {
	if name != "" {
		return b.deps.Store.DeckByName(ctx, learner.ID, name)
	}
	decks, err := b.deps.Store.Decks(ctx, learner.ID)
	if err != nil {
		return nil, err
	}
	if len(decks) == 0 {
		return nil, apperr.NotFound("you have no decks")
	}
	return &decks[0], nil
}

func (b *Bot) handleDecks(ctx context.Context, chatID int64, learner *models.Learner) error {
	decks, err := b.deps.Store.Decks(ctx, learner.ID)
	if err != nil {
		return err
	}
	if len(decks) == 0 {
		b.reply(chatID, "You have no decks yet.", nil)
		return nil
	}
	var sb strings.Builder
	sb.WriteString("📚 Your decks:\n")
	for _, d := range decks {
		fmt.Fprintf(&sb, "- %s\n", d.Name)
	}
	b.reply(chatID, sb.String(), nil)
	return nil
}

// handleStudy builds a batch and shows its first card.
func (b *Bot) handleStudy(ctx context.Context, chatID, telegramID int64, learner *models.Learner, deckName string) error {
	deck, err := b.deck(ctx, learner, deckName)
	if err != nil {
		return err
	}
	now := b.now()
	batch, err := b.deps.Engine.BuildNextBatch(ctx, study.BatchRequest{
		LearnerID:        learner.ID,
		DeckID:           deck.ID,
		Limit:            b.config.BatchSize,
		MaxNewPerDay:     &learner.MaxNewPerDay,
		MaxReviewsPerDay: &learner.MaxReviewsPerDay,
	}, now)
	if err != nil {
		return err
	}

	if len(batch.Items) == 0 {
		b.setSession(telegramID, nil)
		text := fmt.Sprintf("🎉 Nothing to study in %q right now.", deck.Name)
		if batch.Status != nil && batch.Status.NextDueAt != nil {
			text += fmt.Sprintf("\nNext review in %s.", untilText(*batch.Status.NextDueAt, now))
		}
		b.reply(chatID, text, b.MainMenuButtons())
		return nil
	}

	s := &session{
		BatchID:   batch.ID,
		DeckID:    deck.ID,
		Items:     batch.Items,
		UpdatedAt: now,
	}
	b.setSession(telegramID, s)
	reviews := batch.Reviews()
	b.reply(chatID, fmt.Sprintf("📖 %s: %d reviews, %d new cards.", deck.Name, reviews, len(batch.Items)-reviews), nil)
	b.showCard(chatID, s.Items[0], 1, len(s.Items))
	return nil
}

func (b *Bot) showCard(chatID int64, item study.BatchItem, n, total int) {
	mark := "🔁"
	if item.Kind == study.KindNew {
		mark = "🆕"
	}
	b.reply(chatID, fmt.Sprintf("%s %d/%d\n\n%s", mark, n, total, item.Card.Front), [][]MenuButton{
		{{Text: "👀 Show answer", CallbackData: prefixShow + strconv.FormatInt(item.Card.ID, 10)}},
	})
}

func cardText(c models.Card) string {
	text := fmt.Sprintf("%s\n\n➡️ %s", c.Front, c.Back)
	if c.Example != "" {
		text += "\n\n💬 " + c.Example
	}
	return text
}

func untilText(t, now time.Time) string {
	d := t.Sub(now)
	switch {
	case d <= 0:
		return "a moment"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func (b *Bot) handlePlan(ctx context.Context, chatID int64, learner *models.Learner, deckName string) error {
	deck, err := b.deck(ctx, learner, deckName)
	if err != nil {
		return err
	}
	plan, err := b.deps.Engine.BuildTodayPlan(ctx, study.PlanRequest{LearnerID: learner.ID, DeckID: deck.ID}, b.now())
	if err != nil {
		return err
	}
	text := fmt.Sprintf("📋 Today's plan for %s:\n- Reviews: %d\n- New cards: %d\n- Due backlog: %d",
		deck.Name, plan.PlannedReviews, plan.PlannedNew, plan.BacklogDueCount)
	if plan.Message != "" {
		text += "\n\n⚠️ " + plan.Message
	}
	b.reply(chatID, text, [][]MenuButton{{{Text: "🎯 Study", CallbackData: callbackStudy}}})
	return nil
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64, learner *models.Learner, deckName string) error {
	deck, err := b.deck(ctx, learner, deckName)
	if err != nil {
		return err
	}
	now := b.now()
	st, err := b.deps.Engine.BuildStudyStatus(ctx, learner.ID, deck.ID,
		&study.Quotas{MaxNewPerDay: learner.MaxNewPerDay, MaxReviewsPerDay: learner.MaxReviewsPerDay}, now)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("📊 %s\n- Due now: %d\n- New available: %d\n- Reviewed today: %d (%d left)\n- New today: %d (%d left)",
		deck.Name, st.DueCount, st.NewAvailable, st.ReviewedToday, st.RemainingReviewQuota, st.NewToday, st.RemainingNewQuota)
	if st.NextDueAt != nil {
		text += fmt.Sprintf("\n- Next review in %s", untilText(*st.NextDueAt, now))
	}
	b.reply(chatID, text, nil)
	return nil
}

func (b *Bot) handleStreak(ctx context.Context, chatID int64, learner *models.Learner) error {
	now := b.now()
	streak, err := b.deps.History.Streak(ctx, learner.ID, b.config.StreakThreshold, now)
	if err != nil {
		return err
	}
	goal, err := b.deps.History.TodayGoal(ctx, learner.ID, now)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("🔥 Streak: %d days (best %d)\n🎯 Today: %d/%d cards",
		streak.Current, streak.Best, goal.Done, goal.Target)
	if goal.Completed {
		text += " ✅"
	} else if !streak.TodayDone {
		text += fmt.Sprintf("\nAnswer %d cards today to keep your streak.", max(0, streak.Threshold-goal.Done))
	}
	b.reply(chatID, text, nil)
	return nil
}

func (b *Bot) handleResetCommand(ctx context.Context, chatID int64, learner *models.Learner, deckName string) error {
	if deckName == "" {
		return apperr.Invalid("usage: /reset <deck>")
	}
	deck, err := b.deps.Store.DeckByName(ctx, learner.ID, deckName)
	if err != nil {
		return err
	}
	b.reply(chatID, fmt.Sprintf("Forget all progress in %q?", deck.Name), [][]MenuButton{{
		{Text: "🗑 Reset", CallbackData: prefixReset + strconv.FormatInt(deck.ID, 10)},
		{Text: "Cancel", CallbackData: callbackCancel},
	}})
	return nil
}

// handleDocument imports an uploaded card file. The caption names the deck
// and optionally the import mode.
func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) error {
	learner, err := b.learner(ctx, message.From)
	if err != nil {
		return err
	}
	doc := message.Document
	format, err := excel.ParseFormat(doc.FileName)
	if err != nil {
		return err
	}
	if doc.FileSize > b.config.MaxDocumentBytes {
		return apperr.Invalid("file is larger than %d bytes", b.config.MaxDocumentBytes)
	}

	var deckName, modeName string
	if fields := strings.Fields(message.Caption); len(fields) > 0 {
		deckName = fields[0]
		if len(fields) > 1 {
			modeName = fields[1]
		}
	}
	mode, err := excel.ParseMode(modeName)
	if err != nil {
		return err
	}
	deck, err := b.deck(ctx, learner, deckName)
	if err != nil {
		return err
	}
	role, err := b.deps.Store.Role(ctx, learner.ID, deck.ID)
	if err != nil {
		return err
	}
	if !role.CanEdit() {
		return apperr.Invalid("you can only view deck %s", deck.Name)
	}

	body, err := b.fetch(ctx, doc.FileID)
	if err != nil {
		return err
	}
	defer body.Close()

	res, err := b.deps.Importer.Import(ctx, deck.ID, body, excel.ImportConfig{Format: format, Mode: mode})
	if err != nil {
		return err
	}
	b.reply(message.Chat.ID, fmt.Sprintf("✅ Cards imported into %s:\n- Added: %d\n- Updated: %d\n- Skipped: %d",
		deck.Name, res.Created, res.Updated, res.Skipped), [][]MenuButton{{{Text: "🎯 Study", CallbackData: callbackStudy}}})
	return nil
}

// HandleCallback handles inline button presses
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil || callback.From == nil {
		return nil
	}
	b.ack(callback, "")
	chatID := callback.Message.Chat.ID
	learner, err := b.learner(ctx, callback.From)
	if err != nil {
		return err
	}

	data := callback.Data
	switch {
	case data == callbackStudy:
		return b.handleStudy(ctx, chatID, callback.From.ID, learner, "")
	case data == callbackPlan:
		return b.handlePlan(ctx, chatID, learner, "")
	case data == callbackStatus:
		return b.handleStatus(ctx, chatID, learner, "")
	case data == callbackStreak:
		return b.handleStreak(ctx, chatID, learner)
	case data == callbackCancel:
		b.reply(chatID, "Cancelled.", b.MainMenuButtons())
		return nil
	}

	prefix, id, ok := parseCallback(data)
	if !ok {
		b.log.Warn("Unknown callback data", "data", data)
		return nil
	}
	switch prefix {
	case prefixShow:
		return b.handleShow(chatID, callback.Message.MessageID, callback.From.ID, id)
	case prefixKnow, prefixAgain:
		return b.handleAnswer(ctx, chatID, callback.From.ID, learner, id, prefix == prefixKnow)
	case prefixReset:
		return b.handleReset(ctx, chatID, callback.From.ID, learner, id)
	}
	return nil
}

func parseCallback(data string) (string, int64, bool) {
	for _, prefix := range []string{prefixShow, prefixKnow, prefixAgain, prefixReset} {
		if rest, ok := strings.CutPrefix(data, prefix); ok {
			id, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				return "", 0, false
			}
			return prefix, id, true
		}
	}
	return "", 0, false
}

func (b *Bot) ack(callback *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, text)); err != nil {
		b.log.Debug("Failed to answer callback", "error", err)
	}
}

// handleShow reveals the back of the current card.
func (b *Bot) handleShow(chatID int64, messageID int, telegramID, cardID int64) error {
	item, ok := b.currentItem(telegramID)
	if !ok || item.Card.ID != cardID {
		b.reply(chatID, "This card is no longer part of your session. Use /study to continue.", nil)
		return nil
	}
	id := strconv.FormatInt(cardID, 10)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, cardText(item.Card), createKeyboard([][]MenuButton{{
		{Text: "✅ Know", CallbackData: prefixKnow + id},
		{Text: "🔁 Again", CallbackData: prefixAgain + id},
	}}))
	if _, err := b.api.Send(edit); err != nil {
		b.log.Warn("Failed to edit message", "chat_id", chatID, "error", err)
	}
	return nil
}

// handleAnswer applies a Know/Again press and moves to the next card.
func (b *Bot) handleAnswer(ctx context.Context, chatID, telegramID int64, learner *models.Learner, cardID int64, known bool) error {
	s, ok := b.takeCurrent(telegramID, cardID, known)
	if !ok {
		return nil
	}
	now := b.now()
	res, err := b.deps.Engine.ApplyAnswer(ctx, study.Answer{LearnerID: learner.ID, CardID: cardID, Learned: known}, now)
	if err != nil {
		b.giveBack(telegramID, cardID, known)
		return err
	}
	b.reply(chatID, answerText(res.Progress, known, now), nil)

	if next, ok := s.current(); ok {
		b.showCard(chatID, next, s.Pos+1, len(s.Items))
		return nil
	}
	b.setSession(telegramID, nil)
	b.log.Debug("Finished batch", "learner_id", learner.ID, "batch_id", s.BatchID, "known", s.Known, "again", s.Again)
	b.reply(chatID, fmt.Sprintf("🏁 Batch done: %d known, %d to repeat.", s.Known, s.Again), b.MainMenuButtons())
	return nil
}

func answerText(p *models.Progress, known bool, now time.Time) string {
	prefix := "🔁 Again."
	if known {
		prefix = "✅ Correct!"
	}
	switch {
	case p.Status == models.StatusMastered:
		return prefix + " 🏆 Card mastered."
	case p.DueAt.Valid:
		return fmt.Sprintf("%s Next review in %s.", prefix, untilText(p.DueAt.Time, now))
	default:
		return prefix
	}
}

func (b *Bot) handleReset(ctx context.Context, chatID, telegramID int64, learner *models.Learner, deckID int64) error {
	deck, err := b.deps.Store.Deck(ctx, learner.ID, deckID)
	if err != nil {
		return err
	}
	n, err := b.deps.Store.ResetDeck(ctx, learner.ID, deck.ID)
	if err != nil {
		return err
	}
	if s := b.session(telegramID); s != nil && s.DeckID == deck.ID {
		b.setSession(telegramID, nil)
	}
	b.log.Info("Reset deck progress", "learner_id", learner.ID, "deck_id", deck.ID, "records", n)
	b.reply(chatID, fmt.Sprintf("🗑 Progress in %s reset (%d cards).", deck.Name, n), b.MainMenuButtons())
	return nil
}
