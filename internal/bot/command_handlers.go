package bot

import (
	"context"
	"fmt"
	"strings"

	"aidigest/internal/markdown"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	commandStart    = "/start"
	commandNow      = "/now"
	commandSettings = "/settings"
	commandHelp     = "/help"
)

const welcomeText = `🤖 *Welcome to AI news digest\!*

I collect fresh AI news from tech media and send you short digests\.

Choose how often you want to get them:`

const helpText = `🤖 *AI news digest*

– /start – subscribe or change how often you get news
– /now – get the latest news right away
– /settings – show your current settings
– /help – show this message`

const settingsText = `*⚙️ Settings*

You get AI news every %s\.

You can choose different setting below:`

const (
	nowText         = "⏳ Collecting fresh news for you\\.\\.\\."
	nowBusyText     = "⏳ Already collecting news for you, please wait\\."
	notSubscribed   = "✖️ You are not subscribed yet\\. Send /start to choose how often you want news\\."
	failedText      = "❌ Failed\\. Please try again later\\."
	unknownText     = "❔ Unknown command\\. Send /help to see what I can do\\."
	maxCommandRunes = 64
)

// commandOf extracts "/cmd" from a message text such as "/cmd@my_bot args".
func commandOf(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}

	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")

	if len([]rune(cmd)) > maxCommandRunes {
		return ""
	}

	return strings.ToLower(cmd)
}

func isCommand(command string) tgbot.MatchFunc {
	return func(update *models.Update) bool {
		return update.Message != nil && commandOf(update.Message.Text) == command
	}
}

func (b *Bot) handleStartCommand(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID

	if err := b.sendMessage(ctx, chatID, welcomeText, cadenceKeyboard()); err != nil {
		b.log.ErrorContext(ctx, "Failed to send welcome message",
			"error", err,
			"chatID", chatID)
	}
}

func (b *Bot) handleNowCommand(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID

	registered, err := b.subscribers.IsRegistered(ctx, chatID)
	if err != nil {
		b.replyError(ctx, chatID, fmt.Errorf("check subscription: %w", err), commandNow)
		return
	}

	text := notSubscribed
	if registered {
		text = nowBusyText
		if b.triggers.TriggerNow(chatID) {
			text = nowText
		}
	}

	if err = b.sendMessage(ctx, chatID, text, nil); err != nil {
		b.log.ErrorContext(ctx, "Failed to send message",
			"error", err,
			"chatID", chatID,
			"command", commandNow)
	}
}

func (b *Bot) handleSettingsCommand(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	chatID := update.Message.Chat.ID

	cadence, err := b.subscribers.CadenceOf(ctx, chatID)
	if err != nil {
		b.replyError(ctx, chatID, fmt.Errorf("get cadence: %w", err), commandSettings)
		return
	}

	text := fmt.Sprintf(settingsText, markdown.EscapeV2(cadence.Short()))
	if err = b.sendMessage(ctx, chatID, text, cadenceKeyboard()); err != nil {
		b.log.ErrorContext(ctx, "Failed to send settings",
			"error", err,
			"chatID", chatID)
	}
}

func (b *Bot) handleHelpCommand(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	b.reply(ctx, update, helpText)
}

func (b *Bot) handleDefault(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	b.reply(ctx, update, unknownText)
}

func (b *Bot) reply(ctx context.Context, update *models.Update, text string) {
	chatID := update.Message.Chat.ID

	if err := b.sendMessage(ctx, chatID, text, nil); err != nil {
		b.log.ErrorContext(ctx, "Failed to send message",
			"error", err,
			"chatID", chatID)
	}
}
