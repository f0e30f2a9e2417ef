package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// Replier answers a WhatsApp chat
type Replier interface {
	Reply(to types.JID, message string) error
}

// commands that start a check-in message, longest spelling first
var checkInCommands = []string{"check-in", "check in", "checkin"}

type WhatsAppHandler struct {
	service CheckInService
	replier Replier
	log     zerolog.Logger
}

// NewWhatsAppHandler creates a handler checking in attendees from chat messages
func NewWhatsAppHandler(service CheckInService, replier Replier, logger zerolog.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{
		service: service,
		replier: replier,
		log:     logger.With().Str("component", "WhatsAppHandler").Logger(),
	}
}

// HandleMessage checks in the attendee named in a "checkin <id or phone>"
// message and replies with the result. Other messages are ignored.
func (h *WhatsAppHandler) HandleMessage(msg *events.Message) error {
	if msg.Message == nil {
		return nil
	}

	text := msg.Message.GetConversation()
	if text == "" {
		text = msg.Message.GetExtendedTextMessage().GetText()
	}

	query, ok := parseCheckIn(text)
	if !ok {
		return nil
	}

	res := h.service.CheckIn(context.Background(), query)
	h.log.Info().
		Str("sender", msg.Info.Sender.String()).
		Str("query", query).
		Bool("success", res.Success).
		Msg("Check-in over WhatsApp")

	if err := h.replier.Reply(msg.Info.Chat, res.Message); err != nil {
		return fmt.Errorf("failed to send result: %w", err)
	}
	return nil
}

// parseCheckIn returns the identifier following a check-in command
func parseCheckIn(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, cmd := range checkInCommands {
		if len(text) <= len(cmd) || !strings.EqualFold(text[:len(cmd)], cmd) {
			continue
		}
		rest := text[len(cmd):]
		if rest[0] != ' ' && rest[0] != ':' {
			continue
		}
		query := strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		return query, query != ""
	}
	return "", false
}
