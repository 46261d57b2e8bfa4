package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/islandtrails/excursion-backend/pkg/sms"
)

// ============================================================================
// SMS
// ============================================================================

// SMSProvider texts the booking's contact phone
type SMSProvider struct {
	gateway sms.Gateway
}

// NewSMSProvider creates a new SMSProvider
func NewSMSProvider(gateway sms.Gateway) *SMSProvider {
	return &SMSProvider{gateway: gateway}
}

// Name returns the provider name
func (p *SMSProvider) Name() string {
	return "sms:" + p.gateway.Name()
}

// Send skips bookings without a contact phone
func (p *SMSProvider) Send(ctx context.Context, n Notice) error {
	if n.ContactPhone == nil || *n.ContactPhone == "" {
		return nil
	}
	if _, err := p.gateway.Send(ctx, *n.ContactPhone, n.Text()); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}

// ============================================================================
// TELEGRAM
// ============================================================================

// TelegramProvider posts every notice to the operations chat
type TelegramProvider struct {
	bot    *bot.Bot
	chatID int64
}

// NewTelegramProvider creates a bot client for chatID. Extra options are
// passed to bot.New (tests point the client at a local server).
func NewTelegramProvider(token string, chatID int64, opts ...bot.Option) (*TelegramProvider, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramProvider{bot: b, chatID: chatID}, nil
}

// Name returns the provider name
func (p *TelegramProvider) Name() string {
	return "telegram"
}

// Send posts a one-line summary for the operations team
func (p *TelegramProvider) Send(ctx context.Context, n Notice) error {
	text := fmt.Sprintf("[%s] booking %s at destination %s, %s..%s, %s x%d, total %.2f",
		n.Kind, n.BookingID, n.DestinationID, n.StartDate, n.EndDate, n.Mode, n.PartySize, n.TotalPrice)
	if n.Reason != nil && *n.Reason != "" {
		text += "\nreason: " + *n.Reason
	}

	if _, err := p.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: p.chatID,
		Text:   text,
	}); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// ============================================================================
// WEBHOOK
// ============================================================================

// WebhookProvider POSTs the notice as JSON, e.g. to a mail relay
type WebhookProvider struct {
	url    string
	client *http.Client
}

// NewWebhookProvider creates a new WebhookProvider
func NewWebhookProvider(url string) *WebhookProvider {
	return &WebhookProvider{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the provider name
func (p *WebhookProvider) Name() string {
	return "webhook"
}

// Send treats any non-2xx response as a failure
func (p *WebhookProvider) Send(ctx context.Context, n Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notice-Kind", string(n.Kind))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
