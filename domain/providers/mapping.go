package providers

import (
	"fmt"

	"github.com/voxlane/voxlane-core/pkg/syncerr"
)

// MapRemoteToLocal translates a remote record's fields into internal field
// names using the linked resource's field mapping (external name to internal
// name). Mapped fields absent from the record come through as nil. The only
// failure mode is a record carrying none of the configured business keys; a
// mapping that configures no business key at all disables matching rather
// than rejecting every record.
func MapRemoteToLocal(raw RemoteRecord, fieldMapping map[string]string, businessKeys []string) (map[string]any, error) {
	out := make(map[string]any, len(fieldMapping))
	for external, internal := range fieldMapping {
		v, ok := raw.Fields[external]
		if !ok {
			out[internal] = nil
			continue
		}
		out[internal] = v
	}

	if len(businessKeys) == 0 {
		return out, nil
	}
	for _, key := range businessKeys {
		if v, ok := out[key]; ok && v != nil && v != "" {
			return out, nil
		}
	}
	return nil, &syncerr.MalformedRecordError{
		ExternalID: raw.ExternalID,
		Reason:     fmt.Sprintf("none of the business keys %v are present", businessKeys),
	}
}
