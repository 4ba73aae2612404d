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

const graphDefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Outlook syncs personal contacts through the Microsoft Graph API.
// Pagination uses Graph's @odata.nextLink, carried as the page token.
type Outlook struct {
	client  *Client
	baseURL string
}

func NewOutlook(cfg *config.SyncConfig, log *slog.Logger) *Outlook {
	return &Outlook{
		client:  NewClient("outlook", 10, cfg, log),
		baseURL: graphDefaultBaseURL,
	}
}

func (o *Outlook) Provider() integrations.Provider { return integrations.ProviderOutlook }

func (o *Outlook) Resources(ctx context.Context, accessToken string) ([]Resource, error) {
	var resp struct {
		Value []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
		} `json:"value"`
	}
	err := o.client.DoJSON(ctx, http.MethodGet,
		o.baseURL+"/me/contactFolders", accessToken, nil, &resp)
	if err != nil {
		return nil, err
	}

	// The default contacts folder is not in the folder list.
	out := []Resource{{ID: "contacts", Name: "Contacts"}}
	for _, f := range resp.Value {
		out = append(out, Resource{ID: f.ID, Name: f.DisplayName})
	}
	return out, nil
}

type graphContact struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	EmailAddresses []struct {
		Address string `json:"address"`
	} `json:"emailAddresses"`
	MobilePhone      string   `json:"mobilePhone"`
	BusinessPhones   []string `json:"businessPhones"`
	CompanyName      string   `json:"companyName"`
	LastModifiedTime string   `json:"lastModifiedDateTime"`
}

func (o *Outlook) ListRecords(ctx context.Context, accessToken string, opts ListOptions) (*Page, error) {
	if len(opts.ExternalIDs) > 0 {
		return o.fetchByIDs(ctx, accessToken, opts.ExternalIDs)
	}

	endpoint := opts.PageToken
	if endpoint == "" {
		q := url.Values{}
		if opts.PageSize > 0 {
			q.Set("$top", fmt.Sprint(min(opts.PageSize, 1000)))
		}
		endpoint = o.contactsURL(opts.ResourceID) + "?" + q.Encode()
	}

	var resp struct {
		Value    []graphContact `json:"value"`
		NextLink string         `json:"@odata.nextLink"`
	}
	if err := o.client.DoJSON(ctx, http.MethodGet, endpoint, accessToken, nil, &resp); err != nil {
		return nil, err
	}

	records := make([]RemoteRecord, 0, len(resp.Value))
	for _, c := range resp.Value {
		records = append(records, graphRecord(c))
	}
	return &Page{Records: records, NextPageToken: resp.NextLink}, nil
}

func (o *Outlook) fetchByIDs(ctx context.Context, accessToken string, ids []string) (*Page, error) {
	records := make([]RemoteRecord, 0, len(ids))
	for _, id := range ids {
		var c graphContact
		err := o.client.DoJSON(ctx, http.MethodGet,
			o.baseURL+"/me/contacts/"+url.PathEscape(id), accessToken, nil, &c)
		if err != nil {
			return nil, err
		}
		records = append(records, graphRecord(c))
	}
	return &Page{Records: records}, nil
}

func (o *Outlook) PushRecord(ctx context.Context, accessToken string, req PushRequest) (string, error) {
	body := graphPushBody(req.Fields)

	var resp graphContact
	if req.ExternalID == "" {
		err := o.client.DoJSON(ctx, http.MethodPost,
			o.contactsURL(req.ResourceID), accessToken, body, &resp)
		if err != nil {
			return "", err
		}
		return resp.ID, nil
	}

	err := o.client.DoJSON(ctx, http.MethodPatch,
		o.baseURL+"/me/contacts/"+url.PathEscape(req.ExternalID), accessToken, body, &resp)
	if err != nil {
		return "", err
	}
	return req.ExternalID, nil
}

func (o *Outlook) contactsURL(folderID string) string {
	if folderID == "" || folderID == "contacts" {
		return o.baseURL + "/me/contacts"
	}
	return o.baseURL + "/me/contactFolders/" + url.PathEscape(folderID) + "/contacts"
}

func graphRecord(c graphContact) RemoteRecord {
	fields := map[string]any{
		"displayName": c.DisplayName,
		"companyName": c.CompanyName,
		"email":       nil,
		"phone":       nil,
	}
	if len(c.EmailAddresses) > 0 {
		fields["email"] = c.EmailAddresses[0].Address
	}
	if c.MobilePhone != "" {
		fields["phone"] = c.MobilePhone
	} else if len(c.BusinessPhones) > 0 {
		fields["phone"] = c.BusinessPhones[0]
	}

	updated, _ := time.Parse(time.RFC3339, c.LastModifiedTime)
	return RemoteRecord{ExternalID: c.ID, Fields: fields, UpdatedAt: updated}
}

// graphPushBody reshapes flat email/phone fields into Graph's contact
// payload.
func graphPushBody(fields map[string]any) map[string]any {
	body := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "email":
			addr := fmt.Sprint(v)
			body["emailAddresses"] = []map[string]any{{"address": addr, "name": addr}}
		case "phone":
			body["mobilePhone"] = v
		default:
			body[k] = v
		}
	}
	return body
}
