package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"voucher-storefront/internal/config"
	"voucher-storefront/pkg/logger"
)

// ErrWhatsAppNotConnected is returned when a notice is sent while offline
var ErrWhatsAppNotConnected = errors.New("WhatsApp client not connected")

// WhatsAppService sends operator notices over WhatsApp
type WhatsAppService struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	recipient types.JID
	logger    *logger.Logger
}

// NewWhatsAppService creates a new WhatsApp notifier. The session store
// lives in its own sqlite file.
func NewWhatsAppService(cfg *config.WhatsAppConfig, log *logger.Logger) (*WhatsAppService, error) {
	recipient, err := ParseRecipient(cfg.NotifyJID)
	if err != nil {
		return nil, fmt.Errorf("invalid notify recipient: %w", err)
	}

	ctx := context.Background()

	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", cfg.DBPath), waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return &WhatsAppService{
		client:    whatsmeow.NewClient(deviceStore, waLog.Noop),
		container: container,
		recipient: recipient,
		logger:    log,
	}, nil
}

// Connect connects to WhatsApp, pairing through a terminal QR code when
// no session exists yet
func (s *WhatsAppService) Connect(ctx context.Context) error {
	s.client.AddEventHandler(s.handleEvent)

	if s.client.Store.ID != nil {
		s.logger.Info("Existing WhatsApp session found, connecting...")
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	s.logger.Info("No WhatsApp session found, starting QR code pairing...")
	qrChan, err := s.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to WhatsApp: %w", err)
	}

	refreshes := 0
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			refreshes++
			if refreshes == 1 {
				fmt.Println("\nScan this code from WhatsApp > Linked Devices > Link a Device:")
			} else {
				s.logger.Info("QR code refreshed", "count", refreshes)
			}
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
		case "success":
			s.logger.Info("WhatsApp pairing successful")
			return nil
		case "timeout":
			return errors.New("QR code scan timeout")
		case "error":
			return fmt.Errorf("QR code error: %v", evt.Error)
		default:
			s.logger.Info("QR channel event", "event", evt.Event)
		}
	}

	if !s.client.IsLoggedIn() {
		return errors.New("WhatsApp login did not complete")
	}
	return nil
}

// Disconnect disconnects from WhatsApp
func (s *WhatsAppService) Disconnect() {
	s.client.Disconnect()
	s.logger.Info("WhatsApp client disconnected")
}

// IsConnected checks if client is connected
func (s *WhatsAppService) IsConnected() bool {
	return s.client.IsConnected()
}

// Notify sends text to the configured recipient
func (s *WhatsAppService) Notify(ctx context.Context, text string) error {
	if !s.IsConnected() {
		return ErrWhatsAppNotConnected
	}

	msg := &waE2E.Message{Conversation: proto.String(text)}
	if _, err := s.client.SendMessage(ctx, s.recipient, msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// ConnectionStatus returns connection status information
func (s *WhatsAppService) ConnectionStatus() map[string]interface{} {
	status := map[string]interface{}{
		"enabled":   true,
		"connected": s.IsConnected(),
		"recipient": s.recipient.String(),
	}
	if s.client.Store.ID != nil {
		status["phone"] = s.client.Store.ID.User
	}
	return status
}

func (s *WhatsAppService) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		s.logger.Info("WhatsApp client connected")
	case *events.Disconnected:
		s.logger.Warn("WhatsApp client disconnected")
	case *events.LoggedOut:
		s.logger.Error("WhatsApp device logged out", "reason", v.Reason)
	}
}

// ParseRecipient accepts a full JID (user or group) or a phone number
func ParseRecipient(destination string) (types.JID, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return types.JID{}, errors.New("recipient is empty")
	}

	if strings.Contains(destination, "@") {
		jid, err := types.ParseJID(destination)
		if err != nil {
			return types.JID{}, fmt.Errorf("invalid JID: %w", err)
		}
		return jid, nil
	}

	phone := normalizePhoneNumber(destination)
	if phone == "" {
		return types.JID{}, errors.New("invalid phone number format")
	}
	return types.NewJID(phone, types.DefaultUserServer), nil
}

// normalizePhoneNumber normalizes phone number to format 628xxx
func normalizePhoneNumber(phone string) string {
	phone = nonDigits.ReplaceAllString(phone, "")
	phone = strings.TrimLeft(phone, "0")

	if !strings.HasPrefix(phone, "62") {
		phone = "62" + phone
	}

	// Indonesian numbers
	if len(phone) < 11 || len(phone) > 15 {
		return ""
	}
	return phone
}
