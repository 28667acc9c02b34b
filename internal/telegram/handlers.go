package telegram

import (
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/user/quakebot/internal/storage"
	"github.com/user/quakebot/pkg/logger"
)

// Handlers manages command handling for the bot.
type Handlers struct {
	api   *tgbotapi.BotAPI
	store *storage.Store
}

// NewHandlers creates a new handlers instance.
func NewHandlers(api *tgbotapi.BotAPI, store *storage.Store) *Handlers {
	return &Handlers{
		api:   api,
		store: store,
	}
}

// HandleCommand routes commands to appropriate handlers.
func (h *Handlers) HandleCommand(msg *tgbotapi.Message) {
	command := msg.Command()

	logger.Debug().
		Str("command", command).
		Int64("chat_id", msg.Chat.ID).
		Msg("Received command")

	switch command {
	case "start":
		h.handleStart(msg)
	case "help":
		h.handleHelp(msg)
	case "stop":
		h.handleStop(msg)
	case "test":
		h.handleTest(msg)
	case "stats":
		h.handleStats(msg)
	default:
		h.sendReply(msg.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

// handleStart subscribes the chat to notifications.
func (h *Handlers) handleStart(msg *tgbotapi.Message) {
	username := ""
	if msg.From != nil {
		username = msg.From.UserName
	}

	if err := h.store.UpsertSubscriber(msg.Chat.ID, username); err != nil {
		logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to save subscriber")
		h.sendReply(msg.Chat.ID, "Something went wrong, please try again later.")
		return
	}

	h.sendReply(msg.Chat.ID, "You are subscribed to earthquake notifications!\n/help - show available commands")
}

// handleHelp sends help information.
func (h *Handlers) handleHelp(msg *tgbotapi.Message) {
	text := "The bot notifies about earthquakes.\n" +
		"Commands:\n" +
		"/help - show this help\n" +
		"/start - subscribe to notifications\n" +
		"/test - send a test notification\n" +
		"/stats - earthquake statistics\n" +
		"/stop - unsubscribe from notifications"
	h.sendReply(msg.Chat.ID, text)
}

// handleStop unsubscribes the chat.
func (h *Handlers) handleStop(msg *tgbotapi.Message) {
	err := h.store.DeleteSubscriber(msg.Chat.ID)
	switch {
	case errors.Is(err, storage.ErrSubscriberNotFound):
		h.sendReply(msg.Chat.ID, "You are not subscribed.")
	case err != nil:
		logger.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to delete subscriber")
		h.sendReply(msg.Chat.ID, "Something went wrong, please try again later.")
	default:
		h.sendReply(msg.Chat.ID, "You have been unsubscribed from notifications.")
	}
}

// handleTest sends a sample notification rendered through the same
// builder the notification loop uses.
func (h *Handlers) handleTest(msg *tgbotapi.Message) {
	sample := storage.Earthquake{
		Location:  "Test Location",
		Magnitude: 4.5,
		EventTime: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		URL:       "https://example.com",
	}
	h.sendMarkdown(msg.Chat.ID, EarthquakeMessage(sample))
}

// handleStats replies with aggregate earthquake statistics.
func (h *Handlers) handleStats(msg *tgbotapi.Message) {
	st, err := h.store.Stats()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to query stats")
		h.sendReply(msg.Chat.ID, "Something went wrong, please try again later.")
		return
	}
	h.sendMarkdown(msg.Chat.ID, StatsMessage(st))
}

// sendReply sends a plain text reply.
func (h *Handlers) sendReply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}

// sendMarkdown sends a markdown-formatted reply.
func (h *Handlers) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := h.api.Send(msg); err != nil {
		logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send reply")
	}
}
