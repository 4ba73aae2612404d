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

const calendarDefaultBaseURL = "https://www.googleapis.com/calendar/v3"

// GoogleCalendar syncs events through the Calendar v3 API. Each calendar on
// the account is a linkable resource.
type GoogleCalendar struct {
	client  *Client
	baseURL string
}

func NewGoogleCalendar(cfg *config.SyncConfig, log *slog.Logger) *GoogleCalendar {
	return &GoogleCalendar{
		client:  NewClient("google_calendar", 10, cfg, log),
		baseURL: calendarDefaultBaseURL,
	}
}

func (g *GoogleCalendar) Provider() integrations.Provider {
	return integrations.ProviderGoogleCalendar
}

func (g *GoogleCalendar) Resources(ctx context.Context, accessToken string) ([]Resource, error) {
	var resp struct {
		Items []struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
		} `json:"items"`
	}
	err := g.client.DoJSON(ctx, http.MethodGet,
		g.baseURL+"/users/me/calendarList", accessToken, nil, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]Resource, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, Resource{ID: item.ID, Name: item.Summary})
	}
	return out, nil
}

type calendarEvent struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Updated     string `json:"updated"`
	Start       struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"end"`
}

func (g *GoogleCalendar) ListRecords(ctx context.Context, accessToken string, opts ListOptions) (*Page, error) {
	if len(opts.ExternalIDs) > 0 {
		return g.fetchByIDs(ctx, accessToken, opts.ResourceID, opts.ExternalIDs)
	}

	q := url.Values{}
	q.Set("singleEvents", "true")
	if opts.PageSize > 0 {
		q.Set("maxResults", fmt.Sprint(min(opts.PageSize, 2500)))
	}
	if opts.PageToken != "" {
		q.Set("pageToken", opts.PageToken)
	}

	var resp struct {
		Items         []calendarEvent `json:"items"`
		NextPageToken string          `json:"nextPageToken"`
	}
	err := g.client.DoJSON(ctx, http.MethodGet,
		g.eventsURL(opts.ResourceID)+"?"+q.Encode(), accessToken, nil, &resp)
	if err != nil {
		return nil, err
	}

	records := make([]RemoteRecord, 0, len(resp.Items))
	for _, ev := range resp.Items {
		records = append(records, calendarRecord(ev))
	}
	return &Page{Records: records, NextPageToken: resp.NextPageToken}, nil
}

func (g *GoogleCalendar) fetchByIDs(ctx context.Context, accessToken, calendarID string, ids []string) (*Page, error) {
	records := make([]RemoteRecord, 0, len(ids))
	for _, id := range ids {
		var ev calendarEvent
		err := g.client.DoJSON(ctx, http.MethodGet,
			g.eventsURL(calendarID)+"/"+url.PathEscape(id), accessToken, nil, &ev)
		if err != nil {
			return nil, err
		}
		records = append(records, calendarRecord(ev))
	}
	return &Page{Records: records}, nil
}

func (g *GoogleCalendar) PushRecord(ctx context.Context, accessToken string, req PushRequest) (string, error) {
	body := calendarPushBody(req.Fields)

	var resp calendarEvent
	if req.ExternalID == "" {
		err := g.client.DoJSON(ctx, http.MethodPost,
			g.eventsURL(req.ResourceID), accessToken, body, &resp)
		if err != nil {
			return "", err
		}
		return resp.ID, nil
	}

	err := g.client.DoJSON(ctx, http.MethodPut,
		g.eventsURL(req.ResourceID)+"/"+url.PathEscape(req.ExternalID), accessToken, body, &resp)
	if err != nil {
		return "", err
	}
	return req.ExternalID, nil
}

func (g *GoogleCalendar) eventsURL(calendarID string) string {
	return g.baseURL + "/calendars/" + url.PathEscape(calendarID) + "/events"
}

func calendarRecord(ev calendarEvent) RemoteRecord {
	updated, _ := time.Parse(time.RFC3339, ev.Updated)
	return RemoteRecord{
		ExternalID: ev.ID,
		Fields: map[string]any{
			"summary":     ev.Summary,
			"description": ev.Description,
			"status":      ev.Status,
			"start":       firstNonEmpty(ev.Start.DateTime, ev.Start.Date),
			"end":         firstNonEmpty(ev.End.DateTime, ev.End.Date),
		},
		UpdatedAt: updated,
	}
}

// calendarPushBody reshapes flat start/end fields into the API's nested
// dateTime objects.
func calendarPushBody(fields map[string]any) map[string]any {
	body := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case "start", "end":
			body[k] = map[string]any{"dateTime": v}
		default:
			body[k] = v
		}
	}
	return body
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
