// Package providers defines the adapter contract every external system
// implements, plus the shared HTTP plumbing adapters are built on. Adapters
// normalize provider records into one shape and never touch the database.
package providers

import (
	"context"
	"time"

	"github.com/voxlane/voxlane-core/domain/integrations"
)

// RemoteRecord is the normalized shape of one record as the provider holds
// it. Fields are keyed by the provider's own field names; the field mapping
// on the linked resource translates them to internal names.
type RemoteRecord struct {
	ExternalID string
	Fields     map[string]any
	UpdatedAt  time.Time
}

// Page is one page of remote records. A non-empty NextPageToken means more
// pages remain; the token is opaque and provider-specific.
type Page struct {
	Records       []RemoteRecord
	NextPageToken string
}

// ListOptions scope a ListRecords call to one remote resource.
type ListOptions struct {
	// ResourceID is the provider-side resource to read, such as a
	// spreadsheet id or calendar id.
	ResourceID string

	// PageToken resumes pagination; empty starts from the beginning.
	PageToken string

	// PageSize is a hint; adapters clamp it to provider limits.
	PageSize int

	// ExternalIDs, when non-empty, restricts the fetch to those records.
	// Matching rules downstream are unchanged.
	ExternalIDs []string
}

// PushRequest asks the provider to create or update one record.
type PushRequest struct {
	ResourceID string

	// ExternalID is the provider-side id from a prior push or list. Empty
	// means create; non-empty means update, and retries with the same id
	// must not create duplicates.
	ExternalID string

	Fields map[string]any
}

// Adapter is the metadata surface every provider implements.
type Adapter interface {
	Provider() integrations.Provider

	// Resources enumerates the linkable resources the token can reach,
	// such as the account's spreadsheets or calendars.
	Resources(ctx context.Context, accessToken string) ([]Resource, error)
}

// Resource is one linkable provider-side resource.
type Resource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RecordLister reads records out of a provider. Implemented by every
// adapter that supports inbound sync.
type RecordLister interface {
	Adapter
	ListRecords(ctx context.Context, accessToken string, opts ListOptions) (*Page, error)
}

// RecordPusher writes records into a provider. Implemented by adapters that
// support outbound sync; list-only providers omit it.
type RecordPusher interface {
	Adapter
	PushRecord(ctx context.Context, accessToken string, req PushRequest) (externalID string, err error)
}
