package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxlane/voxlane-core/domain/integrations"
	"github.com/voxlane/voxlane-core/internal/config"
)

const hubspotDefaultBaseURL = "https://api.hubapi.com"

var hubspotProperties = []string{"email", "phone", "firstname", "lastname", "company"}

// HubSpot syncs CRM contacts through the HubSpot v3 objects API.
type HubSpot struct {
	client  *Client
	baseURL string
}

func NewHubSpot(cfg *config.SyncConfig, log *slog.Logger) *HubSpot {
	return &HubSpot{
		// HubSpot allows ~10 requests per second per token.
		client:  NewClient("hubspot", 8, cfg, log),
		baseURL: hubspotDefaultBaseURL,
	}
}

func (h *HubSpot) Provider() integrations.Provider { return integrations.ProviderHubSpot }

func (h *HubSpot) Resources(ctx context.Context, accessToken string) ([]Resource, error) {
	// Contacts are the only syncable object for now.
	return []Resource{{ID: "contacts", Name: "Contacts"}}, nil
}

type hubspotContact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type hubspotListResponse struct {
	Results []hubspotContact `json:"results"`
	Paging  *struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

func (h *HubSpot) ListRecords(ctx context.Context, accessToken string, opts ListOptions) (*Page, error) {
	if len(opts.ExternalIDs) > 0 {
		return h.batchRead(ctx, accessToken, opts.ExternalIDs)
	}

	q := url.Values{}
	q.Set("properties", strings.Join(hubspotProperties, ","))
	if opts.PageSize > 0 {
		q.Set("limit", fmt.Sprint(min(opts.PageSize, 100)))
	}
	if opts.PageToken != "" {
		q.Set("after", opts.PageToken)
	}

	var resp hubspotListResponse
	err := h.client.DoJSON(ctx, http.MethodGet,
		h.baseURL+"/crm/v3/objects/contacts?"+q.Encode(), accessToken, nil, &resp)
	if err != nil {
		return nil, err
	}

	page := &Page{Records: hubspotRecords(resp.Results)}
	if resp.Paging != nil {
		page.NextPageToken = resp.Paging.Next.After
	}
	return page, nil
}

func (h *HubSpot) batchRead(ctx context.Context, accessToken string, ids []string) (*Page, error) {
	type input struct {
		ID string `json:"id"`
	}
	body := map[string]any{"properties": hubspotProperties}
	inputs := make([]input, 0, len(ids))
	for _, id := range ids {
		inputs = append(inputs, input{ID: id})
	}
	body["inputs"] = inputs

	// Read-only POST, safe to replay on a transient failure.
	var resp hubspotListResponse
	err := h.client.DoJSONIdempotent(ctx, http.MethodPost,
		h.baseURL+"/crm/v3/objects/contacts/batch/read", accessToken, body, &resp)
	if err != nil {
		return nil, err
	}
	return &Page{Records: hubspotRecords(resp.Results)}, nil
}

func (h *HubSpot) PushRecord(ctx context.Context, accessToken string, req PushRequest) (string, error) {
	body := map[string]any{"properties": req.Fields}

	var resp hubspotContact
	if req.ExternalID == "" {
		err := h.client.DoJSON(ctx, http.MethodPost,
			h.baseURL+"/crm/v3/objects/contacts", accessToken, body, &resp)
		if err != nil {
			return "", err
		}
		return resp.ID, nil
	}

	err := h.client.DoJSON(ctx, http.MethodPatch,
		h.baseURL+"/crm/v3/objects/contacts/"+url.PathEscape(req.ExternalID), accessToken, body, &resp)
	if err != nil {
		return "", err
	}
	return req.ExternalID, nil
}

func hubspotRecords(contacts []hubspotContact) []RemoteRecord {
	out := make([]RemoteRecord, 0, len(contacts))
	for _, c := range contacts {
		fields := make(map[string]any, len(c.Properties))
		for k, v := range c.Properties {
			fields[k] = v
		}
		out = append(out, RemoteRecord{
			ExternalID: c.ID,
			Fields:     fields,
			UpdatedAt:  c.UpdatedAt,
		})
	}
	return out
}
