package integrations

import (
	"golang.org/x/oauth2"

	"github.com/voxlane/voxlane-core/internal/config"
)

// providerEndpoints maps each provider to its OAuth2 authorize/token URLs.
var providerEndpoints = map[Provider]oauth2.Endpoint{
	ProviderGoogleCalendar: {
		AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
	},
	ProviderGoogleSheets: {
		AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
	},
	ProviderOutlook: {
		AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
	},
	ProviderHubSpot: {
		AuthURL:  "https://app.hubspot.com/oauth/authorize",
		TokenURL: "https://api.hubapi.com/oauth/v1/token",
	},
	ProviderPipedrive: {
		AuthURL:  "https://oauth.pipedrive.com/oauth/authorize",
		TokenURL: "https://oauth.pipedrive.com/oauth/token",
	},
	ProviderSalesforce: {
		AuthURL:  "https://login.salesforce.com/services/oauth2/authorize",
		TokenURL: "https://login.salesforce.com/services/oauth2/token",
	},
	ProviderSlack: {
		AuthURL:  "https://slack.com/oauth/v2/authorize",
		TokenURL: "https://slack.com/api/oauth.v2.access",
	},
}

// providerScopes are the minimum scopes each integration requests.
var providerScopes = map[Provider][]string{
	ProviderGoogleCalendar: {"https://www.googleapis.com/auth/calendar"},
	ProviderGoogleSheets:   {"https://www.googleapis.com/auth/spreadsheets"},
	ProviderOutlook:        {"offline_access", "Calendars.ReadWrite", "Contacts.ReadWrite"},
	ProviderHubSpot:        {"crm.objects.contacts.read", "crm.objects.contacts.write"},
	ProviderPipedrive:      {"contacts:full"},
	ProviderSalesforce:     {"api", "refresh_token"},
	ProviderSlack:          {"users:read", "users:read.email"},
}

// extraAuthOptions are provider-specific authorize parameters, mainly to
// force issuance of a refresh token.
func extraAuthOptions(p Provider) []oauth2.AuthCodeOption {
	switch p {
	case ProviderGoogleCalendar, ProviderGoogleSheets:
		return []oauth2.AuthCodeOption{
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
		}
	default:
		return nil
	}
}

// OAuthClient returns the oauth2 client configuration for a provider.
func OAuthClient(cfg *config.OAuthConfig, p Provider) *oauth2.Config {
	var id, secret string
	switch p {
	case ProviderGoogleCalendar, ProviderGoogleSheets:
		id, secret = cfg.GoogleClientID, cfg.GoogleClientSecret
	case ProviderOutlook:
		id, secret = cfg.MicrosoftClientID, cfg.MicrosoftClientSecret
	case ProviderHubSpot:
		id, secret = cfg.HubSpotClientID, cfg.HubSpotClientSecret
	case ProviderPipedrive:
		id, secret = cfg.PipedriveClientID, cfg.PipedriveClientSecret
	case ProviderSalesforce:
		id, secret = cfg.SalesforceClientID, cfg.SalesforceClientSecret
	case ProviderSlack:
		id, secret = cfg.SlackClientID, cfg.SlackClientSecret
	}

	return &oauth2.Config{
		ClientID:     id,
		ClientSecret: secret,
		Endpoint:     providerEndpoints[p],
		RedirectURL:  cfg.CallbackURL(string(p)),
		Scopes:       providerScopes[p],
	}
}
