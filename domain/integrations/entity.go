package integrations

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Provider identifies an external system a tenant can connect.
type Provider string

const (
	ProviderGoogleCalendar Provider = "google_calendar"
	ProviderGoogleSheets   Provider = "google_sheets"
	ProviderOutlook        Provider = "outlook"
	ProviderHubSpot        Provider = "hubspot"
	ProviderPipedrive      Provider = "pipedrive"
	ProviderSalesforce     Provider = "salesforce"
	ProviderSlack          Provider = "slack"
)

// Providers lists every supported provider.
var Providers = []Provider{
	ProviderGoogleCalendar,
	ProviderGoogleSheets,
	ProviderOutlook,
	ProviderHubSpot,
	ProviderPipedrive,
	ProviderSalesforce,
	ProviderSlack,
}

// ParseProvider validates a provider string from an untrusted source.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Integration is a tenant's authorized connection to one external provider.
// Disconnect soft-deletes (is_active = false); the row is kept for history.
type Integration struct {
	bun.BaseModel `bun:"table:integrations,alias:i"`

	ID                      string     `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	CompanyID               string     `bun:"company_id,notnull,type:uuid" json:"company_id"`
	Provider                Provider   `bun:"provider,notnull" json:"provider"`
	OwningUserID            string     `bun:"owning_user_id,notnull,type:uuid" json:"owning_user_id"`
	ProviderAccountIdentity string     `bun:"provider_account_identity,notnull,default:''" json:"provider_account_identity"`
	IsActive                bool       `bun:"is_active,notnull,default:true" json:"is_active"`
	LastSyncedAt            *time.Time `bun:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt               time.Time  `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt               time.Time  `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// Credential is the persisted, encrypted OAuth credential for an
// integration. Owned by the credential store; mutated only through it.
type Credential struct {
	bun.BaseModel `bun:"table:integration_credentials,alias:ic"`

	IntegrationID         string    `bun:"integration_id,pk,type:uuid"`
	AccessTokenEncrypted  string    `bun:"access_token_encrypted,notnull"`
	RefreshTokenEncrypted *string   `bun:"refresh_token_encrypted"`
	ExpiresAt             time.Time `bun:"expires_at,notnull"`
	Scopes                []string  `bun:"scopes,type:jsonb"`
	UpdatedAt             time.Time `bun:"updated_at,notnull,default:now()"`
}

// Token is the decrypted credential handed to callers. RefreshToken is empty
// for providers that did not issue one.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
}

// Expired reports whether the access token is expired or expires within the
// given safety margin.
func (t *Token) Expired(margin time.Duration) bool {
	return time.Now().Add(margin).After(t.ExpiresAt)
}
