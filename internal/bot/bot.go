package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"aidigest/internal/domain"
	"aidigest/internal/ratelimiter"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	pollTimeout             = 60 * time.Second
	httpTimeoutMargin       = 10 * time.Second
	updateProcessingTimeout = 60 * time.Second
)

type Subscribers interface {
	Upsert(ctx context.Context, recipientID int64, cadence domain.Cadence, now time.Time) (bool, error)
	CadenceOf(ctx context.Context, recipientID int64) (domain.Cadence, error)
	IsRegistered(ctx context.Context, recipientID int64) (bool, error)
}

// Triggers starts delivery cycles outside of the schedule.
type Triggers interface {
	Subscribed(recipientID int64, cadence domain.Cadence) bool
	TriggerNow(recipientID int64) bool
}

// Bot is the Telegram surface: it delivers digests and handles the
// subscription commands. Recipients are identified by chat ID.
type Bot struct {
	api          *tgbot.Bot
	rateLimiter  *ratelimiter.RateLimiter
	subscribers  Subscribers
	triggers     Triggers
	allowedUsers []int64
	log          *slog.Logger
}

func New(
	token string,
	subscribers Subscribers,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	b := &Bot{
		rateLimiter:  ratelimiter.New(log),
		subscribers:  subscribers,
		allowedUsers: allowedUsers,
		log:          log,
	}

	api, err := tgbot.New(strings.TrimSpace(token),
		tgbot.WithHTTPClient(pollTimeout, &http.Client{Timeout: pollTimeout + httpTimeoutMargin}),
		tgbot.WithMiddlewares(b.allowedUsersOnly, b.withTimeout),
		tgbot.WithDefaultHandler(b.handleDefault),
		tgbot.WithErrorsHandler(func(err error) {
			b.log.Error("Telegram polling failed",
				"error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	b.api = api
	b.registerHandlers()

	return b, nil
}

// Start polls updates until ctx is done. Triggers must be set before any
// update is handled, so they are passed here rather than to New.
func (b *Bot) Start(ctx context.Context, triggers Triggers) {
	b.triggers = triggers

	b.log.InfoContext(ctx, "Bot is polling updates")

	b.api.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

// Send delivers a MarkdownV2 message to the recipient's chat. Any failure
// wraps domain.ErrNotifier.
func (b *Bot) Send(ctx context.Context, recipientID int64, message string) error {
	if err := b.sendMessage(ctx, recipientID, message, nil); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotifier, err)
	}

	return nil
}

func (b *Bot) registerHandlers() {
	b.api.RegisterHandlerMatchFunc(isCommand(commandStart), b.handleStartCommand)
	b.api.RegisterHandlerMatchFunc(isCommand(commandNow), b.handleNowCommand)
	b.api.RegisterHandlerMatchFunc(isCommand(commandSettings), b.handleSettingsCommand)
	b.api.RegisterHandlerMatchFunc(isCommand(commandHelp), b.handleHelpCommand)
	b.api.RegisterHandler(tgbot.HandlerTypeCallbackQueryData,
		cadenceCallbackPrefix, tgbot.MatchTypePrefix, b.handleCadenceQuery)
}

func (b *Bot) allowedUsersOnly(next tgbot.HandlerFunc) tgbot.HandlerFunc {
	return func(ctx context.Context, api *tgbot.Bot, update *models.Update) {
		userID, chatID := updateSender(update)

		if !b.userAllowed(userID) {
			b.log.DebugContext(ctx, "User is not allowed",
				"userID", userID,
				"chatID", chatID)

			return
		}

		next(ctx, api, update)
	}
}

func (b *Bot) withTimeout(next tgbot.HandlerFunc) tgbot.HandlerFunc {
	return func(ctx context.Context, api *tgbot.Bot, update *models.Update) {
		ctx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
		defer cancel()

		next(ctx, api, update)
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func (b *Bot) sendMessage(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard *models.InlineKeyboardMarkup,
) error {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	if err := b.rateLimiter.Wait(ctx, chatID); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	params := &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   normalizedText,
		// See https://core.telegram.org/bots/api#markdownv2-style.
		ParseMode:          models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: tgbot.True()},
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}

	if _, err := b.api.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

func (b *Bot) replyError(ctx context.Context, chatID int64, err error, op string) {
	b.log.ErrorContext(ctx, "Failed to handle update",
		"error", err,
		"chatID", chatID,
		"operation", op)

	if sendErr := b.sendMessage(ctx, chatID, failedText, nil); sendErr != nil {
		b.log.ErrorContext(ctx, "Failed to send error reply",
			"error", sendErr,
			"chatID", chatID)
	}
}

// updateSender returns the user and chat an update came from.
func updateSender(update *models.Update) (int64, int64) {
	switch {
	case update == nil:
		return 0, 0
	case update.Message != nil:
		var userID int64
		if update.Message.From != nil {
			userID = update.Message.From.ID
		}

		return userID, update.Message.Chat.ID
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID, callbackChatID(update.CallbackQuery)
	default:
		return 0, 0
	}
}

func callbackChatID(cb *models.CallbackQuery) int64 {
	if cb != nil && cb.Message.Message != nil {
		return cb.Message.Message.Chat.ID
	}

	return 0
}

func callbackMessageID(cb *models.CallbackQuery) int {
	if cb != nil && cb.Message.Message != nil {
		return cb.Message.Message.ID
	}

	return 0
}
