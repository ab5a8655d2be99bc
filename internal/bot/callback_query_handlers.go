package bot

import (
	"context"
	"fmt"
	"time"

	"aidigest/internal/domain"
	"aidigest/internal/markdown"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	subscribedText     = "✅ Subscribed\\! You will get AI news every %s\\. The first digest is on its way\\."
	cadenceUpdatedText = "✅ Settings are updated\\. You will get AI news every %s\\."
)

func (b *Bot) handleCadenceQuery(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	chatID := callbackChatID(callback)

	cadence, ok := parseCadenceCallback(callback.Data)
	if !ok || chatID == 0 {
		b.answerCallback(ctx, callback, "❌ Failed.")
		return
	}

	created, err := b.subscribers.Upsert(ctx, chatID, cadence, time.Now())
	if err != nil {
		b.answerCallback(ctx, callback, "❌ Failed.")
		b.replyError(ctx, chatID, fmt.Errorf("upsert subscriber: %w", err), "cadence")

		return
	}

	b.triggers.Subscribed(chatID, cadence)

	b.log.InfoContext(ctx, "Cadence is set",
		"chatID", chatID,
		"userID", callback.From.ID,
		"cadence", cadence,
		"created", created)

	b.answerCallback(ctx, callback, "✅ Settings are updated.")

	if err = b.editMessage(ctx, callback, cadenceConfirmation(created, cadence)); err != nil {
		b.log.ErrorContext(ctx, "Failed to edit message",
			"error", err,
			"chatID", chatID,
			"messageID", callbackMessageID(callback))
	}
}

func cadenceConfirmation(created bool, cadence domain.Cadence) string {
	format := cadenceUpdatedText
	if created {
		format = subscribedText
	}

	return fmt.Sprintf(format, markdown.EscapeV2(cadence.Short()))
}

func (b *Bot) answerCallback(ctx context.Context, callback *models.CallbackQuery, text string) {
	if _, err := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            text,
	}); err != nil {
		b.log.ErrorContext(ctx, "Failed to answer callback query",
			"error", err,
			"data", callback.Data)
	}
}

func (b *Bot) editMessage(ctx context.Context, callback *models.CallbackQuery, text string) error {
	chatID := callbackChatID(callback)

	if err := b.rateLimiter.Wait(ctx, chatID); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	if _, err := b.api.EditMessageText(ctx, &tgbot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: callbackMessageID(callback),
		Text:      text,
		ParseMode: models.ParseModeMarkdown,
	}); err != nil {
		return fmt.Errorf("edit message text: %w", err)
	}

	return nil
}
