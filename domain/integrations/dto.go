package integrations

import "time"

// ProviderDTO describes one supported provider to the frontend.
type ProviderDTO struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// IntegrationDTO is the API representation of an integration.
type IntegrationDTO struct {
	ID                      string     `json:"id"`
	Provider                string     `json:"provider"`
	OwningUserID            string     `json:"owning_user_id"`
	ProviderAccountIdentity string     `json:"provider_account_identity"`
	IsActive                bool       `json:"is_active"`
	LastSyncedAt            *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
}

// ConnectResponseDTO carries the provider consent URL.
type ConnectResponseDTO struct {
	AuthorizeURL string `json:"authorize_url"`
}

func toIntegrationDTO(i *Integration) IntegrationDTO {
	return IntegrationDTO{
		ID:                      i.ID,
		Provider:                string(i.Provider),
		OwningUserID:            i.OwningUserID,
		ProviderAccountIdentity: i.ProviderAccountIdentity,
		IsActive:                i.IsActive,
		LastSyncedAt:            i.LastSyncedAt,
		CreatedAt:               i.CreatedAt,
	}
}

func toIntegrationDTOs(items []*Integration) []IntegrationDTO {
	out := make([]IntegrationDTO, 0, len(items))
	for _, i := range items {
		out = append(out, toIntegrationDTO(i))
	}
	return out
}
