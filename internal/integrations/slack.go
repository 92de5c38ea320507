package integrations

import (
	"context"
	"fmt"
	"strings"

	"arc-backend/internal/models"

	"github.com/slack-go/slack"
)

// Ensure SlackIntegration implements the Integration interface.
var _ Integration = (*SlackIntegration)(nil)

// SlackIntegration checks the bot token used for security alerts.
type SlackIntegration struct {
	client  *slack.Client
	channel string
}

func NewSlackIntegration(botToken, channelID string, opts ...slack.Option) *SlackIntegration {
	return &SlackIntegration{client: slack.New(botToken, opts...), channel: channelID}
}

func (s *SlackIntegration) Name() string { return "slack" }

// TestConnection calls auth.test with the bot token.
func (s *SlackIntegration) TestConnection(ctx context.Context) (*models.IntegrationStatus, error) {
	resp, err := s.client.AuthTestContext(ctx)
	if err != nil {
		errStr := err.Error()
		switch {
		case strings.Contains(errStr, "invalid_auth"):
			return &models.IntegrationStatus{Message: "Slack API Error: Invalid authentication token (bot_token)."}, nil
		case strings.Contains(errStr, "not_authed"):
			return &models.IntegrationStatus{Message: "Slack API Error: Not authenticated (check token scopes?)."}, nil
		case strings.Contains(errStr, "account_inactive"):
			return &models.IntegrationStatus{Message: "Slack API Error: Bot account is inactive."}, nil
		}
		return nil, fmt.Errorf("failed during Slack connection test (AuthTest): %w", err)
	}

	return &models.IntegrationStatus{
		OK:      true,
		Message: fmt.Sprintf("Connected to Slack workspace '%s' as bot '%s'", resp.Team, resp.User),
		Details: map[string]interface{}{
			"bot_user_id":   resp.UserID,
			"team_id":       resp.TeamID,
			"alert_channel": s.channel,
		},
	}, nil
}
