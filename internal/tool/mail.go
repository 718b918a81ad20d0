package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hushh/voicegate/internal/domain"
	"github.com/hushh/voicegate/internal/llm"
	"github.com/hushh/voicegate/internal/provider/google"
)

var (
	emailRE     = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	angleAddrRE = regexp.MustCompile(`<([^<>]+)>`)
)

// MailReader serves cache-first inbox reads. Satisfied by
// *cachesync.Synchronizer.
type MailReader interface {
	Messages(ctx context.Context, userID uuid.UUID, token, query string, limit int) ([]*domain.CachedMessage, error)
}

// MailSender submits outgoing messages. Satisfied by *google.Client.
type MailSender interface {
	Send(ctx context.Context, token string, msg google.OutgoingMessage) error
}

type mailTools struct {
	reader MailReader
	sender MailSender
	model  llm.Client
}

// RegisterMail wires the mail tools into the registry.
func RegisterMail(reg *Registry, reader MailReader, sender MailSender, model llm.Client) error {
	mt := &mailTools{reader: reader, sender: sender, model: model}

	specs := []Spec{
		{
			Name:        "gmail_search",
			Description: "Search the user's recent inbox. Returns sender, subject and snippet for matching messages.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Free-text filter over sender, subject and snippet."},
					"limit": {"type": "integer", "description": "Maximum messages to return.", "default": 10}
				}
			}`),
			ActionLevel: ActionRead,
			Handler:     mt.search,
		},
		{
			Name:        "gmail_send",
			Description: "Send a plain-text email on the user's behalf. Requires to, subject and body.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"to": {"type": "string", "description": "Recipient address or comma-separated list."},
					"cc": {"type": "string"},
					"bcc": {"type": "string"},
					"subject": {"type": "string"},
					"body": {"type": "string"},
					"thread_id": {"type": "string", "description": "Reply within an existing thread."}
				},
				"required": ["to", "subject", "body"]
			}`),
			ActionLevel: ActionWrite,
			Handler:     mt.send,
		},
		{
			Name:        "gmail_draft_reply",
			Description: "Draft (but do not send) a reply to the most relevant recent message, following the user's instruction.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"instruction": {"type": "string", "description": "What the reply should say."},
					"query": {"type": "string", "description": "Filter to pick the message being replied to."}
				},
				"required": ["instruction"]
			}`),
			ActionLevel: ActionRead,
			Handler:     mt.draftReply,
		},
	}

	for _, spec := range specs {
		if err := reg.Register(spec); err != nil {
			return fmt.Errorf("tool.RegisterMail: %w", err)
		}
	}
	return nil
}

type messageView struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date"`
}

func (mt *mailTools) search(ctx context.Context, args json.RawMessage, tc Context) Result {
	if tc.GoogleToken == "" {
		return Fail(CodeMissingGoogleToken, "gmail_search needs a Google access token")
	}

	var in struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return Fail(CodeInvalidArguments, "gmail_search: "+err.Error())
		}
	}
	if in.Limit <= 0 {
		in.Limit = 10
	}

	msgs, err := mt.reader.Messages(ctx, tc.UserID, tc.GoogleToken, "", 0)
	if err != nil {
		return Fail(CodeToolError, "mail lookup failed")
	}

	// Every query token must match somewhere in from, subject or snippet.
	tokens := strings.Fields(strings.ToLower(in.Query))
	views := make([]messageView, 0, in.Limit)
	for _, m := range msgs {
		haystack := strings.ToLower(m.FromName + " " + m.FromEmail + " " + m.Subject + " " + m.Snippet)
		matched := true
		for _, tok := range tokens {
			if !strings.Contains(haystack, tok) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		views = append(views, messageView{
			ID:       m.ProviderID,
			ThreadID: m.ThreadID,
			From:     formatSender(m.FromName, m.FromEmail),
			Subject:  m.Subject,
			Snippet:  m.Snippet,
			Date:     m.InternalAt.Format(time.RFC3339),
		})
		if len(views) >= in.Limit {
			break
		}
	}

	return Ok(map[string]any{"messages": views, "count": len(views)})
}

func (mt *mailTools) send(ctx context.Context, args json.RawMessage, tc Context) Result {
	if tc.GoogleToken == "" {
		return Fail(CodeMissingGoogleToken, "gmail_send needs a Google access token")
	}

	var in struct {
		To       string `json:"to"`
		CC       string `json:"cc"`
		BCC      string `json:"bcc"`
		Subject  string `json:"subject"`
		Body     string `json:"body"`
		ThreadID string `json:"thread_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return Fail(CodeInvalidArguments, "gmail_send: "+err.Error())
	}
	if strings.TrimSpace(in.To) == "" || strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Body) == "" {
		return Fail(CodeInvalidArguments, "gmail_send requires to, subject and body")
	}

	to, err := cleanRecipients(in.To)
	if err != nil {
		return Fail(CodeInvalidEmail, err.Error())
	}
	cc, err := cleanRecipients(in.CC)
	if err != nil {
		return Fail(CodeInvalidEmail, err.Error())
	}
	bcc, err := cleanRecipients(in.BCC)
	if err != nil {
		return Fail(CodeInvalidEmail, err.Error())
	}

	err = mt.sender.Send(ctx, tc.GoogleToken, google.OutgoingMessage{
		To:       to,
		CC:       cc,
		BCC:      bcc,
		Subject:  strings.TrimSpace(in.Subject),
		Body:     in.Body,
		ThreadID: in.ThreadID,
	})
	if err != nil {
		return Fail(CodeSendFailed, "the message could not be sent")
	}

	return Ok(map[string]any{"sent": true, "to": to})
}

func (mt *mailTools) draftReply(ctx context.Context, args json.RawMessage, tc Context) Result {
	if tc.GoogleToken == "" {
		return Fail(CodeMissingGoogleToken, "gmail_draft_reply needs a Google access token")
	}

	var in struct {
		Instruction string `json:"instruction"`
		Query       string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return Fail(CodeInvalidArguments, "gmail_draft_reply: "+err.Error())
	}
	if strings.TrimSpace(in.Instruction) == "" {
		return Fail(CodeInvalidArguments, "gmail_draft_reply requires an instruction")
	}

	msgs, err := mt.reader.Messages(ctx, tc.UserID, tc.GoogleToken, "", 10)
	if err != nil {
		return Fail(CodeToolError, "mail lookup failed")
	}
	if len(msgs) == 0 {
		return Fail(CodeToolError, "no recent messages to reply to")
	}

	target := msgs[0]
	if tokens := strings.Fields(strings.ToLower(in.Query)); len(tokens) > 0 {
		for _, m := range msgs {
			haystack := strings.ToLower(m.FromName + " " + m.FromEmail + " " + m.Subject + " " + m.Snippet)
			hit := true
			for _, tok := range tokens {
				if !strings.Contains(haystack, tok) {
					hit = false
					break
				}
			}
			if hit {
				target = m
				break
			}
		}
	}

	prompt := fmt.Sprintf(
		"Draft a short plain-text email reply.\n\nOriginal message:\nFrom: %s\nSubject: %s\n%s\n\nInstruction: %s\n\nReply with the body text only, no subject line.",
		formatSender(target.FromName, target.FromEmail), target.Subject, target.Snippet, in.Instruction,
	)
	completion, err := mt.model.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You draft concise, polite email replies."},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: 0.4,
		MaxTokens:   400,
	})
	if err != nil {
		return Fail(CodeToolError, "drafting failed")
	}

	subject := target.Subject
	if subject != "" && !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	return Ok(map[string]any{
		"draft": map[string]string{
			"to":        target.FromEmail,
			"subject":   subject,
			"body":      strings.TrimSpace(completion.Content),
			"thread_id": target.ThreadID,
		},
	})
}

func formatSender(name, email string) string {
	if name == "" || name == email {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// cleanRecipients normalizes a comma-separated recipient list, accepting both
// bare addresses and "Name <addr>" forms, and validates every address.
func cleanRecipients(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr := part
		if m := angleAddrRE.FindStringSubmatch(part); m != nil {
			addr = strings.TrimSpace(m[1])
		}
		if !emailRE.MatchString(addr) {
			return "", fmt.Errorf("invalid recipient %q", part)
		}
		out = append(out, addr)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("no valid recipients in %q", raw)
	}
	return strings.Join(out, ", "), nil
}
