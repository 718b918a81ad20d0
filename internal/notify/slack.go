package notify

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"
)

// SlackAPI abstracts the subset of the Slack client used by SlackSender.
// This allows testing without real HTTP calls.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackSender posts confirmation pings to a fixed Slack channel.
type SlackSender struct {
	api       SlackAPI
	channelID string
}

var _ Sender = (*SlackSender)(nil)

func NewSlackSender(api SlackAPI, channelID string) *SlackSender {
	return &SlackSender{api: api, channelID: channelID}
}

func (s *SlackSender) Send(ctx context.Context, text string) error {
	section := slacklib.NewSectionBlock(
		slacklib.NewTextBlockObject(slacklib.MarkdownType, text, false, false),
		nil,
		nil,
	)
	_, _, err := s.api.PostMessageContext(ctx, s.channelID,
		slacklib.MsgOptionText(text, false),
		slacklib.MsgOptionBlocks(section),
	)
	if err != nil {
		return fmt.Errorf("notify.SlackSender.Send: %w", err)
	}
	return nil
}

func (s *SlackSender) Channel() string { return "slack" }
