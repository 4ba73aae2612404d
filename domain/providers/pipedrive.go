package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/voxlane/voxlane-core/domain/integrations"
	"github.com/voxlane/voxlane-core/internal/config"
)

const pipedriveDefaultBaseURL = "https://api.pipedrive.com/v1"

// Pipedrive syncs persons through the Pipedrive v1 API. Pagination is
// offset-based; the page token is the decimal next_start offset.
type Pipedrive struct {
	client  *Client
	baseURL string
}

func NewPipedrive(cfg *config.SyncConfig, log *slog.Logger) *Pipedrive {
	return &Pipedrive{
		client:  NewClient("pipedrive", 5, cfg, log),
		baseURL: pipedriveDefaultBaseURL,
	}
}

func (p *Pipedrive) Provider() integrations.Provider { return integrations.ProviderPipedrive }

func (p *Pipedrive) Resources(ctx context.Context, accessToken string) ([]Resource, error) {
	return []Resource{{ID: "persons", Name: "Persons"}}, nil
}

type pipedriveValue struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary"`
}

type pipedrivePerson struct {
	ID         int              `json:"id"`
	Name       string           `json:"name"`
	Email      []pipedriveValue `json:"email"`
	Phone      []pipedriveValue `json:"phone"`
	OrgName    string           `json:"org_name"`
	UpdateTime string           `json:"update_time"`
}

type pipedriveListResponse struct {
	Success        bool              `json:"success"`
	Data           []pipedrivePerson `json:"data"`
	AdditionalData *struct {
		Pagination struct {
			MoreItems bool `json:"more_items_in_collection"`
			NextStart int  `json:"next_start"`
		} `json:"pagination"`
	} `json:"additional_data"`
}

func (p *Pipedrive) ListRecords(ctx context.Context, accessToken string, opts ListOptions) (*Page, error) {
	if len(opts.ExternalIDs) > 0 {
		return p.fetchByIDs(ctx, accessToken, opts.ExternalIDs)
	}

	q := url.Values{}
	if opts.PageSize > 0 {
		q.Set("limit", fmt.Sprint(min(opts.PageSize, 500)))
	}
	if opts.PageToken != "" {
		q.Set("start", opts.PageToken)
	}

	var resp pipedriveListResponse
	err := p.client.DoJSON(ctx, http.MethodGet,
		p.baseURL+"/persons?"+q.Encode(), accessToken, nil, &resp)
	if err != nil {
		return nil, err
	}

	page := &Page{Records: pipedriveRecords(resp.Data)}
	if resp.AdditionalData != nil && resp.AdditionalData.Pagination.MoreItems {
		page.NextPageToken = strconv.Itoa(resp.AdditionalData.Pagination.NextStart)
	}
	return page, nil
}

func (p *Pipedrive) fetchByIDs(ctx context.Context, accessToken string, ids []string) (*Page, error) {
	records := make([]RemoteRecord, 0, len(ids))
	for _, id := range ids {
		var resp struct {
			Success bool             `json:"success"`
			Data    *pipedrivePerson `json:"data"`
		}
		err := p.client.DoJSON(ctx, http.MethodGet,
			p.baseURL+"/persons/"+url.PathEscape(id), accessToken, nil, &resp)
		if err != nil {
			return nil, err
		}
		if resp.Data != nil {
			records = append(records, pipedriveRecords([]pipedrivePerson{*resp.Data})...)
		}
	}
	return &Page{Records: records}, nil
}

func (p *Pipedrive) PushRecord(ctx context.Context, accessToken string, req PushRequest) (string, error) {
	body := pipedrivePushBody(req.Fields)

	var resp struct {
		Data pipedrivePerson `json:"data"`
	}
	if req.ExternalID == "" {
		err := p.client.DoJSON(ctx, http.MethodPost, p.baseURL+"/persons", accessToken, body, &resp)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(resp.Data.ID), nil
	}

	err := p.client.DoJSON(ctx, http.MethodPut,
		p.baseURL+"/persons/"+url.PathEscape(req.ExternalID), accessToken, body, &resp)
	if err != nil {
		return "", err
	}
	return req.ExternalID, nil
}

// pipedrivePushBody reshapes flat fields into Pipedrive's person payload,
// where email and phone are arrays of labeled values.
func pipedrivePushBody(fields map[string]any) map[string]any {
	body := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "email", "phone":
			body[k] = []map[string]any{{"value": v, "primary": true}}
		default:
			body[k] = v
		}
	}
	return body
}

func pipedriveRecords(persons []pipedrivePerson) []RemoteRecord {
	out := make([]RemoteRecord, 0, len(persons))
	for _, person := range persons {
		fields := map[string]any{
			"name":     person.Name,
			"org_name": person.OrgName,
			"email":    nil,
			"phone":    nil,
		}
		if v := primaryValue(person.Email); v != "" {
			fields["email"] = v
		}
		if v := primaryValue(person.Phone); v != "" {
			fields["phone"] = v
		}

		updated, _ := time.Parse("2006-01-02 15:04:05", person.UpdateTime)
		out = append(out, RemoteRecord{
			ExternalID: strconv.Itoa(person.ID),
			Fields:     fields,
			UpdatedAt:  updated,
		})
	}
	return out
}

func primaryValue(values []pipedriveValue) string {
	for _, v := range values {
		if v.Primary {
			return v.Value
		}
	}
	if len(values) > 0 {
		return values[0].Value
	}
	return ""
}
