package providers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlane/voxlane-core/internal/config"
)

func testHubSpot(t *testing.T, handler http.Handler) *HubSpot {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	h := NewHubSpot(&config.SyncConfig{
		HTTPTimeout:    5 * time.Second,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	}, slog.New(slog.DiscardHandler))
	h.baseURL = srv.URL
	return h
}

func TestHubSpotListRecordsPaginates(t *testing.T) {
	h := testHubSpot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/contacts", r.URL.Path)

		switch r.URL.Query().Get("after") {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{{
					"id":         "101",
					"properties": map[string]string{"email": "a@example.com", "firstname": "Ada"},
					"updatedAt":  "2026-08-01T10:00:00Z",
				}},
				"paging": map[string]any{"next": map[string]any{"after": "cursor-2"}},
			})
		case "cursor-2":
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{{
					"id":         "102",
					"properties": map[string]string{"email": "b@example.com"},
					"updatedAt":  "2026-08-02T10:00:00Z",
				}},
			})
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	}))

	ctx := context.Background()

	page1, err := h.ListRecords(ctx, "tok", ListOptions{PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page1.Records, 1)
	assert.Equal(t, "101", page1.Records[0].ExternalID)
	assert.Equal(t, "a@example.com", page1.Records[0].Fields["email"])
	assert.Equal(t, "cursor-2", page1.NextPageToken)

	page2, err := h.ListRecords(ctx, "tok", ListOptions{PageToken: page1.NextPageToken})
	require.NoError(t, err)
	require.Len(t, page2.Records, 1)
	assert.Equal(t, "102", page2.Records[0].ExternalID)
	assert.Empty(t, page2.NextPageToken, "last page carries no token")
}

func TestHubSpotSelectiveFetchUsesBatchRead(t *testing.T) {
	h := testHubSpot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/crm/v3/objects/contacts/batch/read", r.URL.Path)

		var body struct {
			Inputs []struct {
				ID string `json:"id"`
			} `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Inputs, 2)

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": "7", "properties": map[string]string{"email": "x@example.com"}},
				{"id": "9", "properties": map[string]string{"phone": "+15550002222"}},
			},
		})
	}))

	page, err := h.ListRecords(context.Background(), "tok", ListOptions{ExternalIDs: []string{"7", "9"}})
	require.NoError(t, err)
	assert.Len(t, page.Records, 2)
	assert.Empty(t, page.NextPageToken)
}

func TestHubSpotPushRecord(t *testing.T) {
	var gotMethod, gotPath string
	h := testHubSpot(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path

		var body struct {
			Properties map[string]any `json:"properties"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "new@example.com", body.Properties["email"])

		json.NewEncoder(w).Encode(map[string]any{"id": "555"})
	}))

	ctx := context.Background()
	fields := map[string]any{"email": "new@example.com"}

	// Empty external id creates.
	id, err := h.PushRecord(ctx, "tok", PushRequest{Fields: fields})
	require.NoError(t, err)
	assert.Equal(t, "555", id)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/crm/v3/objects/contacts", gotPath)

	// A known external id updates in place and keeps the same id.
	id, err = h.PushRecord(ctx, "tok", PushRequest{ExternalID: "555", Fields: fields})
	require.NoError(t, err)
	assert.Equal(t, "555", id)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/crm/v3/objects/contacts/555", gotPath)
}
