package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/stockhome/internal/apperr"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
	maxRetries  uint64
	backoffBase time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithRetry sets how often a transient failure is retried and the first
// backoff delay, which doubles on every attempt.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(cl *Client) {
		cl.maxRetries = maxRetries
		cl.backoffBase = base
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		maxRetries:  3,
		backoffBase: 500 * time.Millisecond,
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
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// Invitation describes a pending house membership to announce by e-mail.
type Invitation struct {
	To          string
	InviterName string
	HouseName   string
	Role        string
}

// SendInvitation tells a user they were invited to a house.
func (c *Client) SendInvitation(ctx context.Context, inv Invitation) error {
	link := c.baseURL + "/invitations"
	role := "anggota"
	if inv.Role == "admin" {
		role = "admin"
	}

	subject := fmt.Sprintf("Undangan bergabung ke %s di StockHome", inv.HouseName)
	textBody := fmt.Sprintf(
		"%s mengundang Anda bergabung ke %s sebagai %s.\n\nBuka tautan berikut untuk menerima atau menolak undangan:\n\n%s",
		inv.InviterName, inv.HouseName, role, link,
	)
	htmlBody := fmt.Sprintf(
		`<p>%s mengundang Anda bergabung ke <strong>%s</strong> sebagai %s.</p><p><a href="%s">Lihat undangan</a></p>`,
		html.EscapeString(inv.InviterName), html.EscapeString(inv.HouseName), role, html.EscapeString(link),
	)

	return c.send(ctx, postmarkEmail{
		From:     c.fromEmail,
		To:       inv.To,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

// send posts one message, retrying network errors, 429 and 5xx responses
// with exponential backoff. A failure that outlives the retries wraps
// apperr.ErrTransient.
func (c *Client) send(ctx context.Context, payload postmarkEmail) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoffBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, postmarkURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Postmark-Server-Token", c.serverToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.RetryableError(fmt.Errorf("%w: send email: %v", apperr.ErrTransient, err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("%w: postmark API status %d", apperr.ErrTransient, resp.StatusCode))
		case resp.StatusCode >= 400:
			return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
		}
		return nil
	})
}
