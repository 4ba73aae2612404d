// Package sync holds the reconciliation engine, the sync run ledger, and the
// linked resource and record mapping stores that together keep local and
// provider records converged without duplicates.
package sync

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Type classifies what triggered a run and how its fetch is scoped.
type Type string

const (
	TypeFull      Type = "full"
	TypeSelective Type = "selective"
	TypeScheduled Type = "scheduled"
)

// ParseType validates a sync type from an untrusted source.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeFull, TypeSelective, TypeScheduled:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown sync type %q", s)
	}
}

// RunStatus is the sync run state machine. A run is live while pending or
// running; every run is finalized exactly once into one of the other states.
type RunStatus string

const (
	StatusPending             RunStatus = "pending"
	StatusRunning             RunStatus = "running"
	StatusCompleted           RunStatus = "completed"
	StatusCompletedWithErrors RunStatus = "completed_with_errors"
	StatusFailed              RunStatus = "failed"
)

// Direction controls which way records flow for a linked resource.
type Direction string

const (
	DirectionInbound       Direction = "inbound"
	DirectionOutbound      Direction = "outbound"
	DirectionBidirectional Direction = "bidirectional"
)

// ParseDirection validates a direction from an untrusted source.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionInbound, DirectionOutbound, DirectionBidirectional:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("unknown sync direction %q", s)
	}
}

// LinkedResource is one provider-side resource the tenant chose to sync,
// such as a spreadsheet or a calendar. FieldMapping maps external field
// names to internal ones.
type LinkedResource struct {
	bun.BaseModel `bun:"table:linked_resources,alias:lr"`

	ID                   string            `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	IntegrationID        string            `bun:"integration_id,notnull,type:uuid" json:"integration_id"`
	ExternalResourceID   string            `bun:"external_resource_id,notnull" json:"external_resource_id"`
	ExternalResourceName string            `bun:"external_resource_name,notnull,default:''" json:"external_resource_name"`
	FieldMapping         map[string]string `bun:"field_mapping,type:jsonb" json:"field_mapping"`
	SyncDirection        Direction         `bun:"sync_direction,notnull,default:'inbound'" json:"sync_direction"`
	CreatedAt            time.Time         `bun:"created_at,notnull,default:now()" json:"created_at"`
}

// RecordMapping is the durable join between one external record and one
// local record for an integration. It is what makes repeated runs
// idempotent: a mapped record can only ever be updated, never re-created.
// Rows are removed only when the tenant unlinks the integration.
type RecordMapping struct {
	bun.BaseModel `bun:"table:record_mappings,alias:rm"`

	ID               string    `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	IntegrationID    string    `bun:"integration_id,notnull,type:uuid" json:"integration_id"`
	ExternalRecordID string    `bun:"external_record_id,notnull" json:"external_record_id"`
	LocalRecordID    string    `bun:"local_record_id,notnull,type:uuid" json:"local_record_id"`
	LastSyncedAt     time.Time `bun:"last_synced_at,notnull,default:now()" json:"last_synced_at"`
}

// RunError is one record- or run-level error accumulated on a sync run.
type RunError struct {
	ExternalID string `json:"external_id,omitempty"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

// SyncRun is the ledger row for one sync invocation.
type SyncRun struct {
	bun.BaseModel `bun:"table:sync_runs,alias:sr"`

	ID              string     `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	IntegrationID   string     `bun:"integration_id,notnull,type:uuid" json:"integration_id"`
	SyncType        Type       `bun:"sync_type,notnull,default:'full'" json:"sync_type"`
	Status          RunStatus  `bun:"status,notnull,default:'pending'" json:"status"`
	StartedAt       time.Time  `bun:"started_at,notnull,default:now()" json:"started_at"`
	CompletedAt     *time.Time `bun:"completed_at" json:"completed_at,omitempty"`
	RecordsCreated  int        `bun:"records_created,notnull,default:0" json:"records_created"`
	RecordsUpdated  int        `bun:"records_updated,notnull,default:0" json:"records_updated"`
	RecordsSkipped  int        `bun:"records_skipped,notnull,default:0" json:"records_skipped"`
	Errors          []RunError `bun:"errors,type:jsonb" json:"errors"`
	CancelRequested bool       `bun:"cancel_requested,notnull,default:false" json:"cancel_requested"`
}

// Live reports whether the run still occupies the one-live-run slot for its
// integration.
func (r *SyncRun) Live() bool {
	return r.Status == StatusPending || r.Status == StatusRunning
}
