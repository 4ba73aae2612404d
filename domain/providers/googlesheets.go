package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/voxlane/voxlane-core/domain/integrations"
	"github.com/voxlane/voxlane-core/internal/config"
)

const (
	sheetsDefaultBaseURL = "https://sheets.googleapis.com/v4"
	driveDefaultBaseURL  = "https://www.googleapis.com/drive/v3"

	// sheetsPageRows is how many data rows one ListRecords page covers.
	sheetsPageRows = 500
)

// GoogleSheets treats each spreadsheet as a table: row one holds the column
// headers, every following row is a record. The external id of a record is
// its sheet row number, which is stable for append-only sheets.
type GoogleSheets struct {
	client   *Client
	baseURL  string
	driveURL string
}

func NewGoogleSheets(cfg *config.SyncConfig, log *slog.Logger) *GoogleSheets {
	return &GoogleSheets{
		client:   NewClient("google_sheets", 10, cfg, log),
		baseURL:  sheetsDefaultBaseURL,
		driveURL: driveDefaultBaseURL,
	}
}

func (g *GoogleSheets) Provider() integrations.Provider {
	return integrations.ProviderGoogleSheets
}

func (g *GoogleSheets) Resources(ctx context.Context, accessToken string) ([]Resource, error) {
	q := url.Values{}
	q.Set("q", "mimeType='application/vnd.google-apps.spreadsheet' and trashed=false")
	q.Set("fields", "files(id,name)")

	var resp struct {
		Files []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"files"`
	}
	err := g.client.DoJSON(ctx, http.MethodGet,
		g.driveURL+"/files?"+q.Encode(), accessToken, nil, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]Resource, 0, len(resp.Files))
	for _, f := range resp.Files {
		out = append(out, Resource{ID: f.ID, Name: f.Name})
	}
	return out, nil
}

type sheetsValuesResponse struct {
	Values [][]any `json:"values"`
}

func (g *GoogleSheets) ListRecords(ctx context.Context, accessToken string, opts ListOptions) (*Page, error) {
	headers, err := g.headerRow(ctx, accessToken, opts.ResourceID)
	if err != nil {
		return nil, err
	}

	// Data rows start at sheet row 2. The page token is the first row of
	// the next page.
	startRow := 2
	if opts.PageToken != "" {
		startRow, err = strconv.Atoi(opts.PageToken)
		if err != nil {
			return nil, fmt.Errorf("bad sheets page token %q: %w", opts.PageToken, err)
		}
	}
	endRow := startRow + sheetsPageRows - 1

	var resp sheetsValuesResponse
	err = g.client.DoJSON(ctx, http.MethodGet,
		g.valuesURL(opts.ResourceID, fmt.Sprintf("A%d:ZZ%d", startRow, endRow)),
		accessToken, nil, &resp)
	if err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(opts.ExternalIDs))
	for _, id := range opts.ExternalIDs {
		want[id] = true
	}

	records := make([]RemoteRecord, 0, len(resp.Values))
	for i, row := range resp.Values {
		externalID := "row-" + strconv.Itoa(startRow+i)
		if len(want) > 0 && !want[externalID] {
			continue
		}
		fields := make(map[string]any, len(headers))
		for col, header := range headers {
			if col < len(row) {
				fields[header] = row[col]
			} else {
				fields[header] = nil
			}
		}
		records = append(records, RemoteRecord{ExternalID: externalID, Fields: fields})
	}

	page := &Page{Records: records}
	if len(resp.Values) == sheetsPageRows {
		page.NextPageToken = strconv.Itoa(endRow + 1)
	}
	return page, nil
}

func (g *GoogleSheets) PushRecord(ctx context.Context, accessToken string, req PushRequest) (string, error) {
	headers, err := g.headerRow(ctx, accessToken, req.ResourceID)
	if err != nil {
		return "", err
	}

	row := make([]any, len(headers))
	for col, header := range headers {
		row[col] = req.Fields[header]
	}
	body := map[string]any{"values": [][]any{row}}

	if req.ExternalID == "" {
		var resp struct {
			Updates struct {
				UpdatedRange string `json:"updatedRange"`
			} `json:"updates"`
		}
		err := g.client.DoJSON(ctx, http.MethodPost,
			g.valuesURL(req.ResourceID, "A:ZZ")+":append?valueInputOption=RAW",
			accessToken, body, &resp)
		if err != nil {
			return "", err
		}
		return "row-" + strconv.Itoa(rowFromRange(resp.Updates.UpdatedRange)), nil
	}

	rowNum, ok := strings.CutPrefix(req.ExternalID, "row-")
	if !ok {
		return "", fmt.Errorf("bad sheets external id %q", req.ExternalID)
	}
	err = g.client.DoJSON(ctx, http.MethodPut,
		g.valuesURL(req.ResourceID, fmt.Sprintf("A%s:ZZ%s", rowNum, rowNum))+"?valueInputOption=RAW",
		accessToken, body, nil)
	if err != nil {
		return "", err
	}
	return req.ExternalID, nil
}

func (g *GoogleSheets) headerRow(ctx context.Context, accessToken, spreadsheetID string) ([]string, error) {
	var resp sheetsValuesResponse
	err := g.client.DoJSON(ctx, http.MethodGet,
		g.valuesURL(spreadsheetID, "A1:ZZ1"), accessToken, nil, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("spreadsheet %s has no header row", spreadsheetID)
	}

	headers := make([]string, 0, len(resp.Values[0]))
	for _, v := range resp.Values[0] {
		headers = append(headers, fmt.Sprint(v))
	}
	return headers, nil
}

func (g *GoogleSheets) valuesURL(spreadsheetID, valueRange string) string {
	return g.baseURL + "/spreadsheets/" + url.PathEscape(spreadsheetID) + "/values/" + url.PathEscape(valueRange)
}

// rowFromRange extracts the row number from an A1-notation range such as
// "Sheet1!A42:F42".
func rowFromRange(a1 string) int {
	if i := strings.Index(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	if i := strings.Index(a1, ":"); i >= 0 {
		a1 = a1[:i]
	}
	digits := strings.TrimLeft(a1, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, _ := strconv.Atoi(digits)
	return n
}
