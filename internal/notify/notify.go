// Package notify delivers out-of-band alerts.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
)

var ErrNotConfigured = errors.New("notifier not configured")

// Notifier sends a short text alert.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop drops every alert.
type Nop struct{}

func (Nop) Notify(context.Context, string) error { return nil }

// SlackNotifier posts alerts to one channel with a bot token.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier returns ErrNotConfigured when either the token or the channel is empty.
func NewSlackNotifier(botToken, channelID string, opts ...slack.Option) (*SlackNotifier, error) {
	if botToken == "" || channelID == "" {
		return nil, ErrNotConfigured
	}
	return &SlackNotifier{
		client:  slack.New(botToken, opts...),
		channel: channelID,
	}, nil
}

func (n *SlackNotifier) Notify(ctx context.Context, text string) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("failed to post message to Slack channel %s: %w", n.channel, err)
	}
	return nil
}
