package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Message is the normalized metadata view of one mail message.
type Message struct {
	ID         string
	ThreadID   string
	FromName   string // display form, "Name <email@x.com>" trimmed to the name
	FromEmail  string
	Subject    string
	Snippet    string
	InternalAt time.Time
}

// OutgoingMessage is a plain-text message to send.
type OutgoingMessage struct {
	To       string
	CC       string
	BCC      string
	Subject  string
	Body     string
	ThreadID string
}

var addrRE = regexp.MustCompile(`<([^>]+)>`)

// ListRecent fetches up to max most recent messages in metadata mode,
// optionally narrowed by a provider search query.
func (c *Client) ListRecent(ctx context.Context, token, query string, max int) ([]*Message, error) {
	params := url.Values{}
	params.Set("maxResults", strconv.Itoa(max))
	if query != "" {
		params.Set("q", query)
	}

	var listed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := c.getJSON(ctx, token, c.mailBase+"/users/me/messages", params, &listed); err != nil {
		return nil, fmt.Errorf("google.Client.ListRecent: %w", err)
	}

	ids := make([]string, 0, len(listed.Messages))
	for _, m := range listed.Messages {
		ids = append(ids, m.ID)
	}

	msgs, err := c.FetchMessages(ctx, token, ids)
	if err != nil {
		return nil, fmt.Errorf("google.Client.ListRecent: %w", err)
	}
	return msgs, nil
}

// FetchMessages fetches metadata for the given message ids, preserving order.
func (c *Client) FetchMessages(ctx context.Context, token string, ids []string) ([]*Message, error) {
	params := url.Values{}
	params.Set("format", "metadata")
	params.Add("metadataHeaders", "From")
	params.Add("metadataHeaders", "Subject")

	msgs := make([]*Message, 0, len(ids))
	for _, id := range ids {
		var raw struct {
			ID           string `json:"id"`
			ThreadID     string `json:"threadId"`
			Snippet      string `json:"snippet"`
			InternalDate string `json:"internalDate"` // epoch millis as string
			Payload      struct {
				Headers []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"headers"`
			} `json:"payload"`
		}
		if err := c.getJSON(ctx, token, c.mailBase+"/users/me/messages/"+url.PathEscape(id), params, &raw); err != nil {
			return nil, fmt.Errorf("google.Client.FetchMessages(%s): %w", id, err)
		}

		msg := &Message{
			ID:       raw.ID,
			ThreadID: raw.ThreadID,
			Snippet:  raw.Snippet,
		}
		for _, h := range raw.Payload.Headers {
			switch h.Name {
			case "From":
				msg.FromName, msg.FromEmail = splitAddress(h.Value)
			case "Subject":
				msg.Subject = h.Value
			}
		}
		if ms, parseErr := strconv.ParseInt(raw.InternalDate, 10, 64); parseErr == nil {
			msg.InternalAt = time.UnixMilli(ms).UTC()
		}
		msgs = append(msgs, msg)
	}

	return msgs, nil
}

// ListHistory returns message ids changed since the given cursor plus the new
// cursor position. A rejected cursor surfaces as ErrCursorRejected so the
// caller can fall back to a bounded full fetch.
func (c *Client) ListHistory(ctx context.Context, token, cursor string, max int) ([]string, string, error) {
	params := url.Values{}
	params.Set("startHistoryId", cursor)
	params.Set("maxResults", strconv.Itoa(max))
	params.Add("historyTypes", "messageAdded")

	var raw struct {
		History []struct {
			MessagesAdded []struct {
				Message struct {
					ID string `json:"id"`
				} `json:"message"`
			} `json:"messagesAdded"`
		} `json:"history"`
		HistoryID string `json:"historyId"`
	}
	err := c.getJSON(ctx, token, c.mailBase+"/users/me/history", params, &raw)
	if err != nil {
		// The API answers 404 for an expired/unknown startHistoryId.
		if statusOf(err) == http.StatusNotFound {
			return nil, "", fmt.Errorf("google.Client.ListHistory: %w", ErrCursorRejected)
		}
		return nil, "", fmt.Errorf("google.Client.ListHistory: %w", err)
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, item := range raw.History {
		for _, added := range item.MessagesAdded {
			id := added.Message.ID
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	return ids, raw.HistoryID, nil
}

// ProfileCursor fetches the provider's current history position, used to seed
// incremental sync after a full fetch.
func (c *Client) ProfileCursor(ctx context.Context, token string) (string, error) {
	var raw struct {
		HistoryID string `json:"historyId"`
	}
	if err := c.getJSON(ctx, token, c.mailBase+"/users/me/profile", nil, &raw); err != nil {
		return "", fmt.Errorf("google.Client.ProfileCursor: %w", err)
	}
	return raw.HistoryID, nil
}

// Send submits a plain-text RFC 2822 message.
func (c *Client) Send(ctx context.Context, token string, msg OutgoingMessage) error {
	var sb strings.Builder
	sb.WriteString("To: " + msg.To + "\r\n")
	if msg.CC != "" {
		sb.WriteString("Cc: " + msg.CC + "\r\n")
	}
	if msg.BCC != "" {
		sb.WriteString("Bcc: " + msg.BCC + "\r\n")
	}
	sb.WriteString("Subject: " + msg.Subject + "\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(msg.Body)

	body := map[string]string{
		"raw": base64.URLEncoding.EncodeToString([]byte(sb.String())),
	}
	if msg.ThreadID != "" {
		body["threadId"] = msg.ThreadID
	}

	if err := c.postJSON(ctx, token, c.mailBase+"/users/me/messages/send", body, nil); err != nil {
		return fmt.Errorf("google.Client.Send: %w", err)
	}

	return nil
}

// splitAddress separates "Name <email@x.com>" into display name and address.
func splitAddress(raw string) (name, email string) {
	raw = strings.TrimSpace(raw)
	if m := addrRE.FindStringSubmatch(raw); m != nil {
		email = strings.TrimSpace(m[1])
		name = strings.Trim(strings.TrimSpace(strings.Replace(raw, m[0], "", 1)), `"`)
		if name == "" {
			name = email
		}
		return name, email
	}
	return raw, raw
}
