// Package notion keeps long-term facts as paragraph blocks on a Notion page.
package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"arc-backend/internal/models"
	"arc-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jomei/notionapi"
)

var _ store.FactStore = (*FactStore)(nil)

const pageSize = 100

// FactStore appends each fact as one paragraph on a page the integration can edit.
// Non-paragraph children of the page are ignored when listing.
type FactStore struct {
	client *notionapi.Client
	pageID notionapi.BlockID
}

// NewFactStore creates a store for pageID. httpClient may be nil.
func NewFactStore(token, pageID string, httpClient *http.Client) *FactStore {
	var opts []notionapi.ClientOption
	if httpClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(httpClient))
	}
	return &FactStore{
		client: notionapi.NewClient(notionapi.Token(token), opts...),
		pageID: notionapi.BlockID(pageID),
	}
}

func (s *FactStore) AddFact(ctx context.Context, content string) (*models.Fact, error) {
	resp, err := s.client.Block.AppendChildren(ctx, s.pageID, &notionapi.AppendBlockChildrenRequest{
		Children: []notionapi.Block{paragraph(content)},
	})
	if err != nil {
		return nil, fmt.Errorf("notion append failed: %w", wrapNotionError(err))
	}

	fact := &models.Fact{ID: uuid.New(), Content: content, CreatedAt: time.Now().UTC()}
	if resp != nil && len(resp.Results) > 0 {
		if pb, ok := resp.Results[len(resp.Results)-1].(*notionapi.ParagraphBlock); ok {
			fillFromBlock(fact, pb)
			fact.Content = content
		}
	}
	return fact, nil
}

// ListFacts walks every page of children. limit keeps the newest entries.
func (s *FactStore) ListFacts(ctx context.Context, limit int) ([]models.Fact, error) {
	var facts []models.Fact
	var cursor notionapi.Cursor
	for {
		resp, err := s.client.Block.GetChildren(ctx, s.pageID, &notionapi.Pagination{
			StartCursor: cursor,
			PageSize:    pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("notion list failed: %w", wrapNotionError(err))
		}
		for _, b := range resp.Results {
			pb, ok := b.(*notionapi.ParagraphBlock)
			if !ok {
				continue
			}
			var f models.Fact
			fillFromBlock(&f, pb)
			if f.Content == "" {
				continue
			}
			facts = append(facts, f)
		}
		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}

	if limit > 0 && len(facts) > limit {
		facts = facts[len(facts)-limit:]
	}
	if facts == nil {
		facts = []models.Fact{}
	}
	return facts, nil
}

func paragraph(content string) *notionapi.ParagraphBlock {
	return &notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeParagraph,
		},
		Paragraph: notionapi.Paragraph{
			RichText: []notionapi.RichText{{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{Content: content},
			}},
		},
	}
}

func fillFromBlock(f *models.Fact, pb *notionapi.ParagraphBlock) {
	if id, err := uuid.Parse(string(pb.ID)); err == nil {
		f.ID = id
	}
	if pb.CreatedTime != nil {
		f.CreatedAt = pb.CreatedTime.UTC()
	}
	var sb strings.Builder
	for _, rt := range pb.Paragraph.RichText {
		switch {
		case rt.PlainText != "":
			sb.WriteString(rt.PlainText)
		case rt.Text != nil:
			sb.WriteString(rt.Text.Content)
		}
	}
	f.Content = strings.TrimSpace(sb.String())
}

func wrapNotionError(err error) error {
	var notionErr *notionapi.Error
	if errors.As(err, &notionErr) && notionErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", store.ErrNotFound, notionErr.Message)
	}
	return err
}
