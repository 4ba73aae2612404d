package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/voxlane/voxlane-core/domain/integrations"
	"github.com/voxlane/voxlane-core/internal/config"
)

const slackDefaultBaseURL = "https://slack.com/api"

// Slack imports workspace members as contacts. Slack has no user write API,
// so the adapter is list-only: it implements RecordLister and deliberately
// not RecordPusher.
type Slack struct {
	client  *Client
	baseURL string
}

func NewSlack(cfg *config.SyncConfig, log *slog.Logger) *Slack {
	return &Slack{
		// users.list is a Tier 2 method, about 20 calls per minute.
		client:  NewClient("slack", 0.3, cfg, log),
		baseURL: slackDefaultBaseURL,
	}
}

func (s *Slack) Provider() integrations.Provider { return integrations.ProviderSlack }

func (s *Slack) Resources(ctx context.Context, accessToken string) ([]Resource, error) {
	return []Resource{{ID: "members", Name: "Workspace members"}}, nil
}

type slackMember struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
	IsBot   bool   `json:"is_bot"`
	Updated int64  `json:"updated"`
	Profile struct {
		RealName string `json:"real_name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Title    string `json:"title"`
	} `json:"profile"`
}

func (s *Slack) ListRecords(ctx context.Context, accessToken string, opts ListOptions) (*Page, error) {
	q := url.Values{}
	if opts.PageSize > 0 {
		q.Set("limit", fmt.Sprint(min(opts.PageSize, 200)))
	}
	if opts.PageToken != "" {
		q.Set("cursor", opts.PageToken)
	}

	// Slack reports failures inside a 200 response.
	var resp struct {
		OK       bool          `json:"ok"`
		Error    string        `json:"error"`
		Members  []slackMember `json:"members"`
		Metadata struct {
			NextCursor string `json:"next_cursor"`
		} `json:"response_metadata"`
	}
	err := s.client.DoJSON(ctx, http.MethodGet,
		s.baseURL+"/users.list?"+q.Encode(), accessToken, nil, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("slack users.list failed: %s", resp.Error)
	}

	want := make(map[string]bool, len(opts.ExternalIDs))
	for _, id := range opts.ExternalIDs {
		want[id] = true
	}

	records := make([]RemoteRecord, 0, len(resp.Members))
	for _, m := range resp.Members {
		if m.Deleted || m.IsBot || m.ID == "USLACKBOT" {
			continue
		}
		if len(want) > 0 && !want[m.ID] {
			continue
		}
		records = append(records, RemoteRecord{
			ExternalID: m.ID,
			Fields: map[string]any{
				"real_name": m.Profile.RealName,
				"email":     m.Profile.Email,
				"phone":     m.Profile.Phone,
				"title":     m.Profile.Title,
			},
			UpdatedAt: time.Unix(m.Updated, 0),
		})
	}
	return &Page{Records: records, NextPageToken: resp.Metadata.NextCursor}, nil
}
