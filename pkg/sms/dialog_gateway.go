package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DialogGateway implements SMS sending via Dialog eSMS API v2
type DialogGateway struct {
	apiURL   string
	username string
	password string
	mask     string
	client   *http.Client
	logger   *logrus.Logger

	// Token management
	token       string
	tokenMutex  sync.RWMutex
	tokenExpiry time.Time
}

// DialogConfig holds configuration for Dialog SMS Gateway
type DialogConfig struct {
	APIURL   string
	Username string
	Password string
	Mask     string
}

// NewDialogGateway creates a new Dialog SMS Gateway client
func NewDialogGateway(config DialogConfig, logger *logrus.Logger) *DialogGateway {
	return &DialogGateway{
		apiURL:   strings.TrimRight(config.APIURL, "/"),
		username: config.Username,
		password: config.Password,
		mask:     config.Mask,
		logger:   logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status     string `json:"status"`
	Comment    string `json:"comment"`
	Token      string `json:"token"`
	Expiration int    `json:"expiration"` // seconds
	ErrCode    string `json:"errCode"`
}

type smsRecipient struct {
	Mobile string `json:"mobile"`
}

type sendSMSRequest struct {
	MSISDN        []smsRecipient `json:"msisdn"`
	Message       string         `json:"message"`
	SourceAddress string         `json:"sourceAddress,omitempty"`
	TransactionID int64          `json:"transaction_id"`
	PaymentMethod int            `json:"payment_method"` // 0 = wallet
}

type sendSMSResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
	Data    struct {
		CampaignID   int     `json:"campaignId"`
		CampaignCost float64 `json:"campaignCost"`
	} `json:"data"`
	ErrCode string `json:"errCode"`
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// FormatPhoneForDialog converts a phone number to Dialog's 9-digit format
// Input: "0771234567", "94771234567" or "+94771234567"
// Output: "771234567"
func FormatPhoneForDialog(phone string) (string, error) {
	phone = nonDigits.ReplaceAllString(phone, "")

	if strings.HasPrefix(phone, "94") && len(phone) == 11 {
		phone = phone[2:]
	}
	if strings.HasPrefix(phone, "0") && len(phone) == 10 {
		phone = phone[1:]
	}

	if len(phone) != 9 {
		return "", fmt.Errorf("invalid phone number length after formatting: %d digits (expected 9)", len(phone))
	}
	if !strings.HasPrefix(phone, "7") {
		return "", fmt.Errorf("invalid Sri Lankan mobile prefix: must start with 7")
	}
	return phone, nil
}

// Send sends message to a single phone number
func (d *DialogGateway) Send(ctx context.Context, phone, message string) (int64, error) {
	formattedPhone, err := FormatPhoneForDialog(phone)
	if err != nil {
		return 0, fmt.Errorf("failed to format phone number: %w", err)
	}

	if err := d.ensureValidToken(ctx); err != nil {
		return 0, fmt.Errorf("failed to get access token: %w", err)
	}

	transactionID := time.Now().UnixMicro()
	payload := sendSMSRequest{
		MSISDN:        []smsRecipient{{Mobile: formattedPhone}},
		Message:       message,
		SourceAddress: d.mask,
		TransactionID: transactionID,
	}

	var resp sendSMSResponse
	if err := d.post(ctx, "/sms", payload, true, &resp); err != nil {
		return 0, fmt.Errorf("failed to send SMS request: %w", err)
	}
	if resp.Status != "success" {
		return 0, fmt.Errorf("SMS sending failed: %s (error code: %s)", resp.Comment, resp.ErrCode)
	}

	if d.logger != nil {
		d.logger.WithFields(logrus.Fields{
			"campaign_id":    resp.Data.CampaignID,
			"campaign_cost":  resp.Data.CampaignCost,
			"transaction_id": transactionID,
		}).Debug("SMS sent via Dialog")
	}
	return transactionID, nil
}

// Name returns the name of this SMS gateway
func (d *DialogGateway) Name() string {
	return "dialog"
}

func (d *DialogGateway) login(ctx context.Context) error {
	var resp loginResponse
	if err := d.post(ctx, "/login", loginRequest{Username: d.username, Password: d.password}, false, &resp); err != nil {
		return fmt.Errorf("failed to send login request: %w", err)
	}
	if resp.Status != "success" {
		return fmt.Errorf("login failed: %s (error code: %s)", resp.Comment, resp.ErrCode)
	}

	d.tokenMutex.Lock()
	d.token = resp.Token
	d.tokenExpiry = time.Now().Add(time.Duration(resp.Expiration) * time.Second)
	d.tokenMutex.Unlock()
	return nil
}

// isTokenValid treats the token as expired 5 minutes early
func (d *DialogGateway) isTokenValid() bool {
	d.tokenMutex.RLock()
	defer d.tokenMutex.RUnlock()

	if d.token == "" {
		return false
	}
	return time.Now().Before(d.tokenExpiry.Add(-5 * time.Minute))
}

func (d *DialogGateway) ensureValidToken(ctx context.Context) error {
	if d.isTokenValid() {
		return nil
	}
	return d.login(ctx)
}

func (d *DialogGateway) post(ctx context.Context, path string, payload interface{}, authorized bool, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authorized {
		d.tokenMutex.RLock()
		req.Header.Set("Authorization", "Bearer "+d.token)
		d.tokenMutex.RUnlock()
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}
