package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/google/uuid"
	"github.com/islandtrails/excursion-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name string
	err  error

	mu   sync.Mutex
	sent []Notice
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Send(ctx context.Context, n Notice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return p.err
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func sampleNotice(kind NoticeKind) Notice {
	b := &models.Booking{
		ID:            uuid.New(),
		RequesterID:   uuid.New(),
		DestinationID: uuid.New(),
		StartDate:     d("2025-03-10"),
		EndDate:       d("2025-03-12"),
		Mode:          models.BookingModeJoiner,
		PartySize:     3,
		Status:        models.BookingStatusConfirmed,
		TotalPrice:    6000,
		ContactPhone:  strPtr("0771234567"),
	}
	return NewNotice(kind, b, testNow)
}

func TestNotice_Text(t *testing.T) {
	n := sampleNotice(NoticeBookingConfirmed)
	assert.Contains(t, n.Text(), "is confirmed")
	assert.Contains(t, n.Text(), "2025-03-10..2025-03-12")
	assert.Contains(t, n.Text(), "6000.00")

	n.Kind = NoticeBookingRejected
	n.Reason = strPtr("weather")
	assert.Contains(t, n.Text(), "Reason: weather")

	n.Kind = NoticeBookingCancelled
	assert.Contains(t, n.Text(), "has been cancelled")
}

func TestNotificationDispatcher_DeliversToAllProviders(t *testing.T) {
	failing := &fakeProvider{name: "failing", err: errors.New("boom")}
	ok := &fakeProvider{name: "ok"}
	dispatcher := NewNotificationDispatcher(DispatcherConfig{Workers: 2, QueueSize: 10}, quietLogger(), failing, ok)
	dispatcher.Start(context.Background())

	for i := 0; i < 5; i++ {
		assert.True(t, dispatcher.Dispatch(sampleNotice(NoticeBookingConfirmed)))
	}
	dispatcher.Stop()

	assert.Equal(t, 5, failing.count())
	assert.Equal(t, 5, ok.count())
}

func TestNotificationDispatcher_DropsWhenFull(t *testing.T) {
	provider := &fakeProvider{name: "fake"}
	dispatcher := NewNotificationDispatcher(DispatcherConfig{Workers: 1, QueueSize: 1}, quietLogger(), provider)

	// Not started, so nothing drains the queue
	assert.True(t, dispatcher.Dispatch(sampleNotice(NoticeBookingConfirmed)))
	assert.False(t, dispatcher.Dispatch(sampleNotice(NoticeBookingConfirmed)))

	dispatcher.Start(context.Background())
	dispatcher.Stop()
	assert.Equal(t, 1, provider.count())
}

func TestNotificationDispatcher_DispatchAfterStop(t *testing.T) {
	dispatcher := NewNotificationDispatcher(DispatcherConfig{}, quietLogger())
	dispatcher.Start(context.Background())
	dispatcher.Stop()
	dispatcher.Stop()

	assert.False(t, dispatcher.Dispatch(sampleNotice(NoticeBookingCancelled)))
}

// ============================================================================
// PROVIDERS
// ============================================================================

type fakeGateway struct {
	phones   []string
	messages []string
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Send(ctx context.Context, phone, message string) (int64, error) {
	g.phones = append(g.phones, phone)
	g.messages = append(g.messages, message)
	return 1, nil
}

func TestSMSProvider(t *testing.T) {
	gateway := &fakeGateway{}
	provider := NewSMSProvider(gateway)
	assert.Equal(t, "sms:fake", provider.Name())

	n := sampleNotice(NoticeBookingConfirmed)
	require.NoError(t, provider.Send(context.Background(), n))
	assert.Equal(t, []string{"0771234567"}, gateway.phones)
	assert.Equal(t, n.Text(), gateway.messages[0])

	n.ContactPhone = nil
	require.NoError(t, provider.Send(context.Background(), n))
	assert.Len(t, gateway.phones, 1)
}

func TestWebhookProvider(t *testing.T) {
	requests := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- r
		bodies <- body
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := sampleNotice(NoticeBookingRejected)
	require.NoError(t, NewWebhookProvider(server.URL).Send(context.Background(), n))

	r := <-requests
	assert.Equal(t, "booking_rejected", r.Header.Get("X-Notice-Kind"))
	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

	var received Notice
	require.NoError(t, json.Unmarshal(<-bodies, &received))
	assert.Equal(t, n.BookingID, received.BookingID)
	assert.Equal(t, n.StartDate, received.StartDate)
}

func TestWebhookProvider_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookProvider(server.URL).Send(context.Background(), sampleNotice(NoticeBookingConfirmed))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestTelegramProvider(t *testing.T) {
	paths := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"group"}}}`))
	}))
	defer server.Close()

	provider, err := NewTelegramProvider("123:test-token", 42, bot.WithServerURL(server.URL))
	require.NoError(t, err)
	assert.Equal(t, "telegram", provider.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, provider.Send(ctx, sampleNotice(NoticeBookingConfirmed)))
	assert.True(t, strings.HasSuffix(<-paths, "/sendMessage"))
}
