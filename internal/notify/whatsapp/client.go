package whatsapp

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
)

// DefaultBaseURL is the Twilio REST API root.
const DefaultBaseURL = "https://api.twilio.com/2010-04-01"

// ClientConfig configures the Twilio client.
type ClientConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	Timeout    time.Duration
}

// Message is the accepted Twilio message.
type Message struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client posts WhatsApp messages through the Twilio Messages API.
type Client struct {
	baseURL string
	sid     string
	token   string
	from    string
	client  *http.Client
}

// NewClient constructs a Twilio client. Missing credentials leave it disabled.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		sid:     strings.TrimSpace(cfg.AccountSID),
		token:   strings.TrimSpace(cfg.AuthToken),
		from:    whatsappAddress(cfg.From),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		c.client.Timeout = 15 * time.Second
	}
	return c
}

// Enabled reports whether account credentials are configured.
func (c *Client) Enabled() bool {
	return c != nil && c.sid != "" && c.token != ""
}

// Send posts body to the E.164 number to.
func (c *Client) Send(ctx context.Context, to, body string) (Message, error) {
	if !c.Enabled() {
		return Message{}, errors.New("twilio client: missing credentials")
	}
	form := url.Values{}
	form.Set("From", c.from)
	form.Set("To", whatsappAddress(to))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.sid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Message{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.sid, c.token)
	resp, err := c.client.Do(req)
	if err != nil {
		return Message{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Message{}, err
	}
	if resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return Message{}, fmt.Errorf("twilio client: status %d: %s (code %d)", resp.StatusCode, apiErr.Message, apiErr.Code)
		}
		return Message{}, fmt.Errorf("twilio client: status %d", resp.StatusCode)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("twilio client: decode response: %w", err)
	}
	return msg, nil
}

func whatsappAddress(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
