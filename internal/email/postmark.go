package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"
)

const postmarkURL = "https://api.postmarkapp.com/email"

// ErrNotConfigured is returned when no Postmark server token is set.
var ErrNotConfigured = errors.New("email client not configured: missing server token")

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient creates a Postmark client. baseURL is the client app URL used in
// links inside emails.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody,omitempty"`
	TextBody string `json:"TextBody"`
}

// Send delivers a plain-text email.
func (c *Client) Send(ctx context.Context, to, subject, text string) error {
	return c.send(ctx, to, subject, text, "")
}

// SendReminder emails the daily reminder for a habit.
func (c *Client) SendReminder(ctx context.Context, to, name, habitTitle string) error {
	if name == "" {
		name = "there"
	}
	subject := fmt.Sprintf("Reminder: %s", habitTitle)
	text := fmt.Sprintf(
		"Hi %s,\n\nThis is your reminder for \"%s\" today.\n\nKeep your streak going!\nHabitFlow",
		name, habitTitle,
	)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>This is your reminder for <strong>%s</strong> today.</p><p>Keep your streak going!<br>HabitFlow</p>`,
		html.EscapeString(name), html.EscapeString(habitTitle),
	)
	return c.send(ctx, to, subject, text, htmlBody)
}

// SendPasswordReset emails a link carrying the reset token.
func (c *Client) SendPasswordReset(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", c.baseURL, token)
	text := fmt.Sprintf("Click the link below to reset your password:\n\n%s\n\nThis link expires in 15 minutes.", link)
	htmlBody := fmt.Sprintf(
		`<p>Click the link below to reset your password:</p><p><a href="%s">Reset password</a></p><p>This link expires in 15 minutes.</p>`,
		html.EscapeString(link),
	)
	return c.send(ctx, to, "Reset your HabitFlow password", text, htmlBody)
}

func (c *Client) send(ctx context.Context, to, subject, text, htmlBody string) error {
	token, from := c.serverToken, c.fromEmail
	if token == "" {
		return ErrNotConfigured
	}

	payload := postmarkEmail{
		From:     from,
		To:       to,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
