package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

// SMSConfig targets a Twilio-compatible messages endpoint.
type SMSConfig struct {
	APIURL     string
	AccountSID string
	AuthToken  string
	From       string
	Timeout    time.Duration
}

func (c SMSConfig) IsConfigured() bool {
	return c.APIURL != "" && c.AccountSID != "" && c.AuthToken != "" && c.From != ""
}

// HTTPSMSSender posts form-encoded messages and reads back the provider message id.
type HTTPSMSSender struct {
	cfg    SMSConfig
	client *http.Client
}

func NewHTTPSMSSender(cfg SMSConfig, client *http.Client) (*HTTPSMSSender, error) {
	if !cfg.IsConfigured() {
		return nil, errors.New("sms not configured (set SMS_API_URL, SMS_ACCOUNT_SID, SMS_AUTH_TOKEN, SMS_FROM)")
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPSMSSender{cfg: cfg, client: client}, nil
}

type smsResponse struct {
	SID     string `json:"sid"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *HTTPSMSSender) SendSMS(ctx context.Context, to, body string) (ports.DeliveryResult, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return ports.DeliveryResult{}, errors.New("recipient is required")
	}
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.From)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return ports.DeliveryResult{}, fmt.Errorf("build sms request: %w", err)
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return ports.DeliveryResult{}, fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var decoded smsResponse
	_ = json.Unmarshal(raw, &decoded)
	if resp.StatusCode >= http.StatusMultipleChoices {
		msg := decoded.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return ports.DeliveryResult{}, fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, msg)
	}
	return ports.DeliveryResult{MessageID: decoded.SID}, nil
}
