package providers

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlane/voxlane-core/pkg/syncerr"
)

func TestMapRemoteToLocal(t *testing.T) {
	mapping := map[string]string{
		"properties.email": "email",
		"properties.phone": "phone",
		"properties.name":  "full_name",
	}
	keys := []string{"email", "phone"}

	t.Run("maps and renames fields", func(t *testing.T) {
		raw := RemoteRecord{
			ExternalID: "hs-1",
			Fields: map[string]any{
				"properties.email": "dana@example.com",
				"properties.name":  "Dana",
				"ignored_field":    "dropped",
			},
			UpdatedAt: time.Now(),
		}

		got, err := MapRemoteToLocal(raw, mapping, keys)
		require.NoError(t, err)
		assert.Equal(t, "dana@example.com", got["email"])
		assert.Equal(t, "Dana", got["full_name"])
		assert.Nil(t, got["phone"], "missing optional fields map to nil")
		assert.NotContains(t, got, "ignored_field", "unmapped fields are dropped")
	})

	t.Run("fallback business key is enough", func(t *testing.T) {
		raw := RemoteRecord{
			ExternalID: "hs-2",
			Fields:     map[string]any{"properties.phone": "+15550001111"},
		}

		got, err := MapRemoteToLocal(raw, mapping, keys)
		require.NoError(t, err)
		assert.Equal(t, "+15550001111", got["phone"])
		assert.Nil(t, got["email"])
	})

	t.Run("malformed only when every business key is absent", func(t *testing.T) {
		raw := RemoteRecord{
			ExternalID: "hs-3",
			Fields:     map[string]any{"properties.name": "No Contact Info"},
		}

		_, err := MapRemoteToLocal(raw, mapping, keys)
		var me *syncerr.MalformedRecordError
		require.True(t, errors.As(err, &me))
		assert.Equal(t, "hs-3", me.ExternalID)
		assert.True(t, syncerr.IsRecordLevel(err))
	})

	t.Run("empty string business key counts as absent", func(t *testing.T) {
		raw := RemoteRecord{
			ExternalID: "hs-4",
			Fields:     map[string]any{"properties.email": ""},
		}

		_, err := MapRemoteToLocal(raw, mapping, keys)
		assert.True(t, syncerr.IsRecordLevel(err))
	})

	t.Run("no configured business keys disables the check", func(t *testing.T) {
		raw := RemoteRecord{
			ExternalID: "hs-5",
			Fields:     map[string]any{"properties.name": "Keyless"},
		}

		got, err := MapRemoteToLocal(raw, map[string]string{"properties.name": "full_name"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Keyless", got["full_name"])
	})
}
