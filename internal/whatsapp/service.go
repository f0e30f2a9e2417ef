package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// MessageHandler is a callback function for handling messages
type MessageHandler func(*events.Message) error

type Config struct {
	DataDir     string
	CountryCode string
}

type Service struct {
	client         *whatsmeow.Client
	cfg            *Config
	log            zerolog.Logger
	messageHandler MessageHandler
}

// NewService creates a new WhatsApp service
func NewService(cfg *Config, logger zerolog.Logger) (*Service, error) {
	ctx := context.Background()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Use nil logger - sqlstore will use a no-op logger by default
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(cfg.DataDir, "whatsmeow.db"))
	container, err := sqlstore.New(ctx, "sqlite3", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	service := &Service{
		client: whatsmeow.NewClient(deviceStore, nil),
		cfg:    cfg,
		log:    logger.With().Str("component", "WhatsApp").Logger(),
	}

	// Register event handlers
	service.client.AddEventHandler(func(evt interface{}) {
		service.eventHandler(evt)
	})

	return service, nil
}

// NormalizePhoneNumber strips formatting and turns a national number with a
// leading 0 into international format using countryCode
func NormalizePhoneNumber(phoneNumber, countryCode string) string {
	phoneNumber = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phoneNumber)

	if countryCode == "" {
		return phoneNumber
	}

	// 0912345678 -> 886912345678
	if strings.HasPrefix(phoneNumber, "0") && !strings.HasPrefix(phoneNumber, "00") {
		return countryCode + phoneNumber[1:]
	}
	// 00886912345678 -> 886912345678
	if strings.HasPrefix(phoneNumber, "00") {
		phoneNumber = phoneNumber[2:]
	}
	// 8860912345678 -> 886912345678
	if strings.HasPrefix(phoneNumber, countryCode+"0") {
		return countryCode + phoneNumber[len(countryCode)+1:]
	}
	return phoneNumber
}

// Connect connects to WhatsApp, printing a pairing QR code on first use
func (s *Service) Connect() error {
	if s.client.Store.ID != nil {
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	qrChan, _ := s.client.GetQRChannel(context.Background())
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			s.log.Info().Str("event", evt.Event).Msg("Login event")
			continue
		}
		q, err := qrcode.New(evt.Code, qrcode.Medium)
		if err != nil {
			fmt.Printf("QR Code: %s\n", evt.Code)
		} else {
			fmt.Println("\n" + q.ToSmallString(false))
		}
		fmt.Println("📱 Scan the QR code with WhatsApp > Settings > Linked Devices > Link a Device")
	}
	return nil
}

// Disconnect disconnects from WhatsApp
func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// SendMessage sends a simple text message
func (s *Service) SendMessage(phoneNumber, message string) error {
	ctx := context.Background()
	phoneNumber = NormalizePhoneNumber(phoneNumber, s.cfg.CountryCode)

	// Verify the number is on WhatsApp before sending
	resp, err := s.client.IsOnWhatsApp(ctx, []string{phoneNumber})
	if err != nil {
		return fmt.Errorf("failed to verify number on WhatsApp: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return fmt.Errorf("number %s is not registered on WhatsApp", phoneNumber)
	}
	jid := resp[0].JID

	s.log.Debug().Str("jid", jid.String()).Str("phone", phoneNumber).Msg("Sending message")

	sent, err := s.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: &message,
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", jid.String(), err)
	}

	s.log.Info().Str("id", string(sent.ID)).Str("jid", jid.String()).Msg("Message sent")
	return nil
}

// Reply sends message to the chat identified by to
func (s *Service) Reply(to types.JID, message string) error {
	_, err := s.client.SendMessage(context.Background(), to.ToNonAD(), &waE2E.Message{
		Conversation: &message,
	})
	if err != nil {
		return fmt.Errorf("failed to reply to %s: %w", to.String(), err)
	}
	return nil
}

// eventHandler handles incoming WhatsApp events
func (s *Service) eventHandler(evt interface{}) {
	switch evt := evt.(type) {
	case *events.Message:
		s.handleMessage(evt)
	case *events.Connected:
		s.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		s.log.Info().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		s.log.Info().Msg("Logged out from WhatsApp")
	}
}

// handleMessage processes incoming messages
func (s *Service) handleMessage(msg *events.Message) {
	// Skip messages from self
	if msg.Info.IsFromMe {
		return
	}

	if s.messageHandler == nil {
		s.log.Debug().Str("sender", msg.Info.Sender.String()).Msg("Received message, no handler set")
		return
	}
	if err := s.messageHandler(msg); err != nil {
		s.log.Error().Err(err).Msg("Error handling message")
	}
}

// SetMessageHandler sets a custom handler for incoming messages
func (s *Service) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}
