package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxlane/voxlane-core/domain/contacts"
	"github.com/voxlane/voxlane-core/domain/integrations"
	"github.com/voxlane/voxlane-core/domain/providers"
	"github.com/voxlane/voxlane-core/pkg/logger"
	"github.com/voxlane/voxlane-core/pkg/syncerr"
)

// knownBusinessKeys are the internal fields usable for matching, in match
// priority order.
var knownBusinessKeys = []string{"email", "phone"}

// TokenRunner supplies a valid access token for the duration of fn.
type TokenRunner interface {
	WithValidToken(ctx context.Context, integrationID string, fn func(ctx context.Context, accessToken string) error) error
}

// LocalStore is the engine's view of the tenant's contact records.
type LocalStore interface {
	GetByID(ctx context.Context, companyID, id string) (*contacts.Contact, error)
	FindByEmail(ctx context.Context, companyID, emailNormalized string) ([]*contacts.Contact, error)
	FindByPhone(ctx context.Context, companyID, phoneNormalized string) ([]*contacts.Contact, error)
	Create(ctx context.Context, c *contacts.Contact) error
	Update(ctx context.Context, c *contacts.Contact) error
	ListUpdatedSince(ctx context.Context, companyID string, since time.Time, afterID string, limit int) ([]*contacts.Contact, error)
}

// Mappings is the engine's view of the record mapping store.
type Mappings interface {
	GetByExternalID(ctx context.Context, integrationID, externalRecordID string) (*RecordMapping, error)
	GetByLocalID(ctx context.Context, integrationID, localRecordID string) (*RecordMapping, error)
	Upsert(ctx context.Context, m *RecordMapping) error
}

// RunState is the engine's view of the ledger while a run is in flight.
type RunState interface {
	RecordBatch(ctx context.Context, runID string, created, updated, skipped int, errs []RunError) error
	CancelRequested(ctx context.Context, runID string) (bool, error)
}

// Options scope one engine invocation.
type Options struct {
	// ExternalIDs restricts a selective sync to those remote records.
	// Matching rules are unchanged; only the fetch scope narrows.
	ExternalIDs []string
}

// Engine reconciles one linked resource per call. It owns the match, create,
// update, skip decision for every record; adapters only move bytes.
type Engine struct {
	registry  *providers.Registry
	tokens    TokenRunner
	local     LocalStore
	mappings  Mappings
	batchSize int
	log       *slog.Logger
}

func NewEngine(registry *providers.Registry, tokens TokenRunner, local LocalStore, mappings Mappings, batchSize int, log *slog.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Engine{
		registry:  registry,
		tokens:    tokens,
		local:     local,
		mappings:  mappings,
		batchSize: batchSize,
		log:       log.With(logger.Scope("sync.engine")),
	}
}

// SyncResource reconciles one linked resource within a run, honoring the
// resource's direction. Record-level failures are reported to the ledger and
// never abort the resource; a returned error is run-level and terminal.
func (e *Engine) SyncResource(ctx context.Context, integration *integrations.Integration, resource *LinkedResource, run *SyncRun, state RunState, opts Options) error {
	switch resource.SyncDirection {
	case DirectionInbound:
		return e.syncInbound(ctx, integration, resource, run, state, opts)
	case DirectionOutbound:
		return e.syncOutbound(ctx, integration, resource, run, state)
	case DirectionBidirectional:
		if err := e.syncInbound(ctx, integration, resource, run, state, opts); err != nil {
			return err
		}
		return e.syncOutbound(ctx, integration, resource, run, state)
	default:
		return fmt.Errorf("linked resource %s has unknown direction %q", resource.ID, resource.SyncDirection)
	}
}

// ------------------------------------------------------------------
// Inbound: remote records into local contacts
// ------------------------------------------------------------------

func (e *Engine) syncInbound(ctx context.Context, integration *integrations.Integration, resource *LinkedResource, run *SyncRun, state RunState, opts Options) error {
	lister, ok := e.registry.Lister(integration.Provider)
	if !ok {
		return fmt.Errorf("provider %s does not support inbound sync", integration.Provider)
	}

	keys := configuredBusinessKeys(resource.FieldMapping)
	pageToken := ""
	for {
		if err := e.checkCancelled(ctx, run.ID, state); err != nil {
			return err
		}

		var page *providers.Page
		err := e.tokens.WithValidToken(ctx, integration.ID, func(ctx context.Context, accessToken string) error {
			var listErr error
			page, listErr = lister.ListRecords(ctx, accessToken, providers.ListOptions{
				ResourceID:  resource.ExternalResourceID,
				PageToken:   pageToken,
				PageSize:    e.batchSize,
				ExternalIDs: opts.ExternalIDs,
			})
			return listErr
		})
		if err != nil {
			return err
		}

		for start := 0; start < len(page.Records); start += e.batchSize {
			if err := e.checkCancelled(ctx, run.ID, state); err != nil {
				return err
			}

			end := min(start+e.batchSize, len(page.Records))
			batch := e.reconcileBatch(ctx, integration, resource, keys, page.Records[start:end])
			if err := state.RecordBatch(ctx, run.ID, batch.created, batch.updated, batch.skipped, batch.errors); err != nil {
				return err
			}
		}

		if page.NextPageToken == "" {
			return nil
		}
		pageToken = page.NextPageToken
	}
}

type batchResult struct {
	created, updated, skipped int
	errors                    []RunError
}

func (e *Engine) reconcileBatch(ctx context.Context, integration *integrations.Integration, resource *LinkedResource, keys []string, records []providers.RemoteRecord) batchResult {
	var out batchResult
	for _, record := range records {
		outcome, err := e.reconcileRecord(ctx, integration, resource, keys, record)
		if err != nil {
			// One bad record never stops the batch.
			out.skipped++
			out.errors = append(out.errors, runError(record.ExternalID, err))
			e.log.Warn("record skipped",
				slog.String("integration_id", integration.ID),
				slog.String("external_id", record.ExternalID),
				logger.Error(err))
			continue
		}
		switch outcome {
		case outcomeCreated:
			out.created++
		case outcomeUpdated:
			out.updated++
		case outcomeSkipped:
			out.skipped++
		}
	}
	return out
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

// reconcileRecord is the per-record decision: mapped records update in
// place, unmapped ones are matched by business key and either adopted or
// created. Ambiguity is never resolved by guessing.
func (e *Engine) reconcileRecord(ctx context.Context, integration *integrations.Integration, resource *LinkedResource, keys []string, record providers.RemoteRecord) (outcome, error) {
	fields, err := providers.MapRemoteToLocal(record, resource.FieldMapping, keys)
	if err != nil {
		return outcomeSkipped, err
	}

	mapping, err := e.mappings.GetByExternalID(ctx, integration.ID, record.ExternalID)
	switch {
	case err == nil:
		return e.updateMapped(ctx, integration, resource, mapping, record, fields)
	case errors.Is(err, ErrMappingNotFound):
		return e.matchUnmapped(ctx, integration, keys, record, fields)
	default:
		return outcomeSkipped, err
	}
}

func (e *Engine) updateMapped(ctx context.Context, integration *integrations.Integration, resource *LinkedResource, mapping *RecordMapping, record providers.RemoteRecord, fields map[string]any) (outcome, error) {
	local, err := e.local.GetByID(ctx, integration.CompanyID, mapping.LocalRecordID)
	if errors.Is(err, contacts.ErrContactNotFound) {
		// The local record was deleted out from under the mapping. Do not
		// recreate it; the mapping stays for history.
		e.log.Info("skipping stale mapping",
			slog.String("integration_id", integration.ID),
			slog.String("external_id", record.ExternalID),
			slog.String("local_record_id", mapping.LocalRecordID))
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, err
	}

	// Last write wins on bidirectional conflicts. A strictly newer local
	// edit survives; ties go to the remote side.
	if resource.SyncDirection == DirectionBidirectional &&
		!record.UpdatedAt.IsZero() && local.UpdatedAt.After(record.UpdatedAt) {
		return outcomeSkipped, nil
	}

	applyFields(local, fields)
	if err := e.local.Update(ctx, local); err != nil {
		return outcomeSkipped, err
	}
	if err := e.mappings.Upsert(ctx, &RecordMapping{
		IntegrationID:    integration.ID,
		ExternalRecordID: record.ExternalID,
		LocalRecordID:    local.ID,
		LastSyncedAt:     time.Now(),
	}); err != nil {
		return outcomeSkipped, err
	}
	return outcomeUpdated, nil
}

func (e *Engine) matchUnmapped(ctx context.Context, integration *integrations.Integration, keys []string, record providers.RemoteRecord, fields map[string]any) (outcome, error) {
	matches, matchedKey, err := e.findByBusinessKey(ctx, integration.CompanyID, keys, fields)
	if err != nil {
		return outcomeSkipped, err
	}

	switch len(matches) {
	case 1:
		// Adopt the existing record instead of duplicating it.
		local := matches[0]
		applyFields(local, fields)
		if err := e.local.Update(ctx, local); err != nil {
			return outcomeSkipped, err
		}
		if err := e.mappings.Upsert(ctx, &RecordMapping{
			IntegrationID:    integration.ID,
			ExternalRecordID: record.ExternalID,
			LocalRecordID:    local.ID,
			LastSyncedAt:     time.Now(),
		}); err != nil {
			return outcomeSkipped, err
		}
		return outcomeUpdated, nil

	case 0:
		local := &contacts.Contact{CompanyID: integration.CompanyID}
		applyFields(local, fields)
		if err := e.local.Create(ctx, local); err != nil {
			return outcomeSkipped, err
		}
		if err := e.mappings.Upsert(ctx, &RecordMapping{
			IntegrationID:    integration.ID,
			ExternalRecordID: record.ExternalID,
			LocalRecordID:    local.ID,
			LastSyncedAt:     time.Now(),
		}); err != nil {
			return outcomeSkipped, err
		}
		return outcomeCreated, nil

	default:
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
		return outcomeSkipped, &syncerr.AmbiguousMatchError{
			ExternalID:  record.ExternalID,
			BusinessKey: matchedKey,
			LocalIDs:    ids,
		}
	}
}

// findByBusinessKey tries each configured key in priority order and returns
// the matches for the first key the record actually carries.
func (e *Engine) findByBusinessKey(ctx context.Context, companyID string, keys []string, fields map[string]any) ([]*contacts.Contact, string, error) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok || raw == nil {
			continue
		}
		value := fmt.Sprint(raw)

		switch key {
		case "email":
			normalized := contacts.NormalizeEmail(value)
			if normalized == "" {
				continue
			}
			matches, err := e.local.FindByEmail(ctx, companyID, normalized)
			if err != nil {
				return nil, "", err
			}
			if len(matches) > 0 {
				return matches, key, nil
			}
		case "phone":
			normalized := contacts.NormalizePhone(value)
			if normalized == "" {
				continue
			}
			matches, err := e.local.FindByPhone(ctx, companyID, normalized)
			if err != nil {
				return nil, "", err
			}
			if len(matches) > 0 {
				return matches, key, nil
			}
		}
	}
	return nil, "", nil
}

// ------------------------------------------------------------------
// Outbound: local contacts into remote records
// ------------------------------------------------------------------

func (e *Engine) syncOutbound(ctx context.Context, integration *integrations.Integration, resource *LinkedResource, run *SyncRun, state RunState) error {
	pusher, ok := e.registry.Pusher(integration.Provider)
	if !ok {
		return fmt.Errorf("provider %s does not support outbound sync", integration.Provider)
	}

	reverse := reverseMapping(resource.FieldMapping)
	// Keyset cursor. Advancing by timestamp alone would drop contacts that
	// share a batch boundary's updated_at.
	since := time.Time{}
	afterID := ""
	for {
		if err := e.checkCancelled(ctx, run.ID, state); err != nil {
			return err
		}

		batch, err := e.local.ListUpdatedSince(ctx, integration.CompanyID, since, afterID, e.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		var out batchResult
		for _, local := range batch {
			outcome, err := e.pushLocal(ctx, integration, resource, pusher, reverse, local)
			if err != nil {
				out.skipped++
				out.errors = append(out.errors, runError(local.ID, err))
				e.log.Warn("outbound push failed",
					slog.String("integration_id", integration.ID),
					slog.String("contact_id", local.ID),
					logger.Error(err))
				continue
			}
			switch outcome {
			case outcomeCreated:
				out.created++
			case outcomeUpdated:
				out.updated++
			case outcomeSkipped:
				out.skipped++
			}
		}
		if err := state.RecordBatch(ctx, run.ID, out.created, out.updated, out.skipped, out.errors); err != nil {
			return err
		}

		last := batch[len(batch)-1]
		since, afterID = last.UpdatedAt, last.ID
		if len(batch) < e.batchSize {
			return nil
		}
	}
}

func (e *Engine) pushLocal(ctx context.Context, integration *integrations.Integration, resource *LinkedResource, pusher providers.RecordPusher, reverse map[string]string, local *contacts.Contact) (outcome, error) {
	mapping, err := e.mappings.GetByLocalID(ctx, integration.ID, local.ID)
	externalID := ""
	switch {
	case err == nil:
		// A mapping synced at or after the local edit is already fresh;
		// pushing again would be a no-op round trip.
		if !mapping.LastSyncedAt.Before(local.UpdatedAt) {
			return outcomeSkipped, nil
		}
		externalID = mapping.ExternalRecordID
	case errors.Is(err, ErrMappingNotFound):
		// No mapping: this push creates the remote record. The returned
		// external id is persisted before anything else can retry, so a
		// rerun updates instead of creating a duplicate.
	default:
		return outcomeSkipped, err
	}

	fields := extractFields(local, reverse)
	var returnedID string
	err = e.tokens.WithValidToken(ctx, integration.ID, func(ctx context.Context, accessToken string) error {
		var pushErr error
		returnedID, pushErr = pusher.PushRecord(ctx, accessToken, providers.PushRequest{
			ResourceID: resource.ExternalResourceID,
			ExternalID: externalID,
			Fields:     fields,
		})
		return pushErr
	})
	if err != nil {
		return outcomeSkipped, err
	}

	if err := e.mappings.Upsert(ctx, &RecordMapping{
		IntegrationID:    integration.ID,
		ExternalRecordID: returnedID,
		LocalRecordID:    local.ID,
		LastSyncedAt:     time.Now(),
	}); err != nil {
		return outcomeSkipped, err
	}

	if externalID == "" {
		return outcomeCreated, nil
	}
	return outcomeUpdated, nil
}

// ------------------------------------------------------------------
// Shared helpers
// ------------------------------------------------------------------

func (e *Engine) checkCancelled(ctx context.Context, runID string, state RunState) error {
	cancelled, err := state.CancelRequested(ctx, runID)
	if err != nil {
		return err
	}
	if cancelled {
		return syncerr.ErrRunCancelled
	}
	return ctx.Err()
}

// configuredBusinessKeys returns the matchable keys the field mapping
// actually targets, in priority order. A mapping targeting neither email nor
// phone disables business-key matching entirely.
func configuredBusinessKeys(fieldMapping map[string]string) []string {
	targets := make(map[string]bool, len(fieldMapping))
	for _, internal := range fieldMapping {
		targets[internal] = true
	}
	var keys []string
	for _, key := range knownBusinessKeys {
		if targets[key] {
			keys = append(keys, key)
		}
	}
	return keys
}

// applyFields writes mapped values onto the contact. Well-known fields land
// on their columns; everything else goes to the attributes bag. Nil values
// mean "field absent remotely" and leave existing local values alone.
func applyFields(c *contacts.Contact, fields map[string]any) {
	if c.Attributes == nil {
		c.Attributes = make(map[string]any)
	}
	for k, v := range fields {
		if v == nil {
			continue
		}
		s := fmt.Sprint(v)
		switch k {
		case "email":
			c.Email = &s
		case "phone":
			c.Phone = &s
		case "first_name":
			c.FirstName = s
		case "last_name":
			c.LastName = s
		default:
			c.Attributes[k] = v
		}
	}
}

// extractFields builds the provider-side payload for a contact using the
// reversed field mapping (internal name to external name).
func extractFields(c *contacts.Contact, reverse map[string]string) map[string]any {
	out := make(map[string]any, len(reverse))
	for internal, external := range reverse {
		switch internal {
		case "email":
			if c.Email != nil {
				out[external] = *c.Email
			}
		case "phone":
			if c.Phone != nil {
				out[external] = *c.Phone
			}
		case "first_name":
			out[external] = c.FirstName
		case "last_name":
			out[external] = c.LastName
		default:
			if v, ok := c.Attributes[internal]; ok {
				out[external] = v
			}
		}
	}
	return out
}

func reverseMapping(fieldMapping map[string]string) map[string]string {
	out := make(map[string]string, len(fieldMapping))
	for external, internal := range fieldMapping {
		out[internal] = external
	}
	return out
}

// runError classifies an error for the run's error list.
func runError(externalID string, err error) RunError {
	kind := "error"
	var me *syncerr.MalformedRecordError
	var ae *syncerr.AmbiguousMatchError
	switch {
	case errors.As(err, &me):
		kind = "malformed_record"
	case errors.As(err, &ae):
		kind = "ambiguous_match"
	case syncerr.IsRetryable(err):
		kind = "transient"
	}
	return RunError{ExternalID: externalID, Kind: kind, Message: err.Error()}
}
