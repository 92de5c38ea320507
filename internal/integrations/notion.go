package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"arc-backend/internal/models"

	"github.com/jomei/notionapi"
)

// Ensure NotionIntegration implements the Integration interface.
var _ Integration = (*NotionIntegration)(nil)

// NotionIntegration checks the token and page backing the Notion fact store.
type NotionIntegration struct {
	client *notionapi.Client
	pageID notionapi.PageID
}

// NewNotionIntegration creates the check. httpClient may be nil.
func NewNotionIntegration(token, pageID string, httpClient *http.Client) *NotionIntegration {
	var opts []notionapi.ClientOption
	if httpClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(httpClient))
	}
	return &NotionIntegration{
		client: notionapi.NewClient(notionapi.Token(token), opts...),
		pageID: notionapi.PageID(pageID),
	}
}

func (n *NotionIntegration) Name() string { return "notion" }

// TestConnection fetches the bot user, then confirms the facts page is shared with it.
func (n *NotionIntegration) TestConnection(ctx context.Context) (*models.IntegrationStatus, error) {
	botUser, err := n.client.User.Me(ctx)
	if err != nil {
		return notionStatus(err)
	}

	var botName string
	if botUser != nil && botUser.Type == notionapi.UserTypeBot {
		botName = botUser.Name
	}

	if _, err := n.client.Page.Get(ctx, n.pageID); err != nil {
		return notionStatus(err)
	}

	return &models.IntegrationStatus{
		OK:      true,
		Message: fmt.Sprintf("Connected to Notion as bot '%s'", botName),
		Details: map[string]interface{}{"bot_name": botName, "page_id": string(n.pageID)},
	}, nil
}

// notionStatus turns API errors into a failed status and passes everything else through.
func notionStatus(err error) (*models.IntegrationStatus, error) {
	var notionErr *notionapi.Error
	if !errors.As(err, &notionErr) {
		return nil, fmt.Errorf("failed during Notion connection test: %w", err)
	}
	message := fmt.Sprintf("Notion API error (%s): %s", notionErr.Code, notionErr.Message)
	switch notionErr.Status {
	case http.StatusUnauthorized:
		message = "Notion API Error: Invalid API key (Unauthorized)."
	case http.StatusNotFound:
		message = "Notion API Error: Facts page not found or not shared with the integration."
	}
	return &models.IntegrationStatus{Message: message}, nil
}
