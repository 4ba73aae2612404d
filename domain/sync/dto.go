package sync

import "time"

// TriggerRequestDTO is the body of a manual sync trigger.
type TriggerRequestDTO struct {
	SyncType    string   `json:"sync_type"`
	ExternalIDs []string `json:"external_ids,omitempty"`
}

// RunDTO is the API representation of a sync run summary.
type RunDTO struct {
	ID             string     `json:"id"`
	IntegrationID  string     `json:"integration_id"`
	SyncType       string     `json:"sync_type"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	RecordsCreated int        `json:"records_created"`
	RecordsUpdated int        `json:"records_updated"`
	RecordsSkipped int        `json:"records_skipped"`
	Errors         []RunError `json:"errors"`
}

// LinkResourceRequestDTO creates or updates a linked resource.
type LinkResourceRequestDTO struct {
	ExternalResourceID   string            `json:"external_resource_id"`
	ExternalResourceName string            `json:"external_resource_name"`
	FieldMapping         map[string]string `json:"field_mapping"`
	SyncDirection        string            `json:"sync_direction"`
}

func toRunDTO(r *SyncRun) RunDTO {
	errs := r.Errors
	if errs == nil {
		errs = []RunError{}
	}
	return RunDTO{
		ID:             r.ID,
		IntegrationID:  r.IntegrationID,
		SyncType:       string(r.SyncType),
		Status:         string(r.Status),
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		RecordsCreated: r.RecordsCreated,
		RecordsUpdated: r.RecordsUpdated,
		RecordsSkipped: r.RecordsSkipped,
		Errors:         errs,
	}
}

func toRunDTOs(runs []*SyncRun) []RunDTO {
	out := make([]RunDTO, 0, len(runs))
	for _, r := range runs {
		out = append(out, toRunDTO(r))
	}
	return out
}
