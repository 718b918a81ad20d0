// Package google implements thin Gmail and Calendar REST clients. Access
// tokens arrive per call (short-lived OAuth tokens minted by the client app);
// each request builds an oauth2 transport around a static token source.
package google

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

	"golang.org/x/oauth2"
)

const (
	defaultMailBaseURL     = "https://gmail.googleapis.com/gmail/v1"
	defaultCalendarBaseURL = "https://www.googleapis.com/calendar/v3"
)

// ErrCursorRejected is returned when the mail provider no longer accepts the
// stored history cursor (expired or invalid).
var ErrCursorRejected = errors.New("google: history cursor rejected")

// ErrSyncTokenRejected is returned when the calendar provider invalidates the
// stored sync token (HTTP 410 Gone per the Calendar API contract).
var ErrSyncTokenRejected = errors.New("google: sync token rejected")

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("google: api status %d: %s", e.Status, e.Message)
}

type Option func(*Client)

// Client carries the shared HTTP plumbing for both provider domains.
type Client struct {
	mailBase     string
	calendarBase string
	httpClient   *http.Client
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		mailBase:     defaultMailBaseURL,
		calendarBase: defaultCalendarBaseURL,
		httpClient:   &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func WithMailBaseURL(base string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(base), "/"); trimmed != "" {
			c.mailBase = trimmed
		}
	}
}

func WithCalendarBaseURL(base string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(base), "/"); trimmed != "" {
			c.calendarBase = trimmed
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// getJSON issues an authenticated GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, token, rawURL string, params url.Values, out any) error {
	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	return c.send(ctx, token, req, out)
}

// postJSON issues an authenticated POST with a JSON body.
func (c *Client) postJSON(ctx context.Context, token, rawURL string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(string(encoded)))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(ctx, token, req, out)
}

func (c *Client) send(ctx context.Context, token string, req *http.Request, out any) error {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	authed := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), src)

	resp, err := authed.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return fmt.Errorf("decode: %w", decodeErr)
	}

	return nil
}

func statusOf(err error) int {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}
