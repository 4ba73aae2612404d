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

const salesforceAPIVersion = "v60.0"

// Salesforce syncs Contact objects through the REST API. The org instance
// URL comes from configuration because every Salesforce org lives on its own
// host.
type Salesforce struct {
	client  *Client
	baseURL string
}

func NewSalesforce(oauth *config.OAuthConfig, cfg *config.SyncConfig, log *slog.Logger) *Salesforce {
	return &Salesforce{
		client:  NewClient("salesforce", 5, cfg, log),
		baseURL: strings.TrimSuffix(oauth.SalesforceInstanceURL, "/"),
	}
}

func (s *Salesforce) Provider() integrations.Provider { return integrations.ProviderSalesforce }

func (s *Salesforce) Resources(ctx context.Context, accessToken string) ([]Resource, error) {
	return []Resource{{ID: "Contact", Name: "Contacts"}}, nil
}

type salesforceContact struct {
	ID               string `json:"Id"`
	FirstName        string `json:"FirstName"`
	LastName         string `json:"LastName"`
	Email            string `json:"Email"`
	Phone            string `json:"Phone"`
	LastModifiedDate string `json:"LastModifiedDate"`
}

type salesforceQueryResponse struct {
	Done           bool                `json:"done"`
	NextRecordsURL string              `json:"nextRecordsUrl"`
	Records        []salesforceContact `json:"records"`
}

func (s *Salesforce) ListRecords(ctx context.Context, accessToken string, opts ListOptions) (*Page, error) {
	var endpoint string
	if opts.PageToken != "" {
		// nextRecordsUrl is a server-issued relative path.
		endpoint = s.baseURL + opts.PageToken
	} else {
		soql := "SELECT Id, FirstName, LastName, Email, Phone, LastModifiedDate FROM Contact"
		if len(opts.ExternalIDs) > 0 {
			quoted := make([]string, 0, len(opts.ExternalIDs))
			for _, id := range opts.ExternalIDs {
				quoted = append(quoted, "'"+strings.ReplaceAll(id, "'", "\\'")+"'")
			}
			soql += " WHERE Id IN (" + strings.Join(quoted, ",") + ")"
		}
		endpoint = fmt.Sprintf("%s/services/data/%s/query?q=%s",
			s.baseURL, salesforceAPIVersion, url.QueryEscape(soql))
	}

	var resp salesforceQueryResponse
	if err := s.client.DoJSON(ctx, http.MethodGet, endpoint, accessToken, nil, &resp); err != nil {
		return nil, err
	}

	page := &Page{Records: salesforceRecords(resp.Records)}
	if !resp.Done {
		page.NextPageToken = resp.NextRecordsURL
	}
	return page, nil
}

func (s *Salesforce) PushRecord(ctx context.Context, accessToken string, req PushRequest) (string, error) {
	base := fmt.Sprintf("%s/services/data/%s/sobjects/Contact", s.baseURL, salesforceAPIVersion)

	if req.ExternalID == "" {
		var resp struct {
			ID string `json:"id"`
		}
		if err := s.client.DoJSON(ctx, http.MethodPost, base, accessToken, req.Fields, &resp); err != nil {
			return "", err
		}
		return resp.ID, nil
	}

	err := s.client.DoJSON(ctx, http.MethodPatch,
		base+"/"+url.PathEscape(req.ExternalID), accessToken, req.Fields, nil)
	if err != nil {
		return "", err
	}
	return req.ExternalID, nil
}

func salesforceRecords(contacts []salesforceContact) []RemoteRecord {
	out := make([]RemoteRecord, 0, len(contacts))
	for _, c := range contacts {
		updated, _ := time.Parse("2006-01-02T15:04:05.000-0700", c.LastModifiedDate)
		out = append(out, RemoteRecord{
			ExternalID: c.ID,
			Fields: map[string]any{
				"FirstName": c.FirstName,
				"LastName":  c.LastName,
				"Email":     c.Email,
				"Phone":     c.Phone,
			},
			UpdatedAt: updated,
		})
	}
	return out
}
