package integrations

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/voxlane/voxlane-core/internal/config"
	"github.com/voxlane/voxlane-core/pkg/apperror"
	"github.com/voxlane/voxlane-core/pkg/auth"
	"github.com/voxlane/voxlane-core/pkg/logger"
)

// Handler handles HTTP requests for the integration lifecycle.
type Handler struct {
	service *Service
	oauth   *config.OAuthConfig
	log     *slog.Logger
}

func NewHandler(service *Service, cfg *config.Config, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		oauth:   &cfg.OAuth,
		log:     log.With(logger.Scope("integrations.handler")),
	}
}

// ListProviders handles GET /api/integrations/providers
func (h *Handler) ListProviders(c echo.Context) error {
	out := make([]ProviderDTO, 0, len(Providers))
	for _, p := range Providers {
		out = append(out, ProviderDTO{
			Type:       string(p),
			Name:       providerDisplayName(p),
			Configured: OAuthClient(h.oauth, p).ClientID != "",
		})
	}
	return c.JSON(http.StatusOK, out)
}

// List handles GET /api/integrations
func (h *Handler) List(c echo.Context) error {
	identity := auth.GetIdentity(c)

	items, err := h.service.List(c.Request().Context(), identity.CompanyID)
	if err != nil {
		return apperror.NewInternal("failed to list integrations", err)
	}
	return c.JSON(http.StatusOK, toIntegrationDTOs(items))
}

// Get handles GET /api/integrations/:id
func (h *Handler) Get(c echo.Context) error {
	identity := auth.GetIdentity(c)

	integration, err := h.service.Get(c.Request().Context(), identity.CompanyID, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrIntegrationNotFound) {
			return apperror.ErrIntegrationNotFound
		}
		return apperror.NewInternal("failed to get integration", err)
	}
	return c.JSON(http.StatusOK, toIntegrationDTO(integration))
}

// Connect handles POST /api/integrations/connect/:provider
// Returns the provider consent URL the frontend should redirect to.
func (h *Handler) Connect(c echo.Context) error {
	identity := auth.GetIdentity(c)

	provider, err := ParseProvider(c.Param("provider"))
	if err != nil {
		return apperror.NewBadRequest(err.Error())
	}

	returnTo := c.QueryParam("return_to")
	authorizeURL, err := h.service.ConnectURL(provider, identity.UserID, identity.CompanyID, returnTo)
	if err != nil {
		return apperror.NewBadRequest(err.Error())
	}
	return c.JSON(http.StatusOK, ConnectResponseDTO{AuthorizeURL: authorizeURL})
}

// Callback handles GET /api/oauth/:provider/callback
//
// The route is unauthenticated; the tenant identity travels in the opaque
// state parameter, which is treated as untrusted input and validated field
// by field after decoding. Every failure mode redirects back to the app
// with an `error` query parameter so the user never lands on a raw error
// page.
func (h *Handler) Callback(c echo.Context) error {
	provider, err := ParseProvider(c.Param("provider"))
	if err != nil {
		return h.redirectWithError(c, "/", "unknown_provider")
	}

	state, err := DecodeState(c.QueryParam("state"))
	if err != nil {
		h.log.Warn("rejecting callback with invalid state",
			slog.String("provider", string(provider)), logger.Error(err))
		return h.redirectWithError(c, "/", "invalid_state")
	}
	if state.Provider != string(provider) {
		return h.redirectWithError(c, state.ReturnTo, "provider_mismatch")
	}

	// The provider reports consent denial via the error parameter.
	if denied := c.QueryParam("error"); denied != "" {
		h.log.Info("oauth consent denied",
			slog.String("provider", string(provider)),
			slog.String("reason", denied))
		return h.redirectWithError(c, state.ReturnTo, "consent_denied")
	}

	code := c.QueryParam("code")
	if code == "" {
		return h.redirectWithError(c, state.ReturnTo, "missing_code")
	}

	if _, err := h.service.HandleCallback(c.Request().Context(), provider, code, state); err != nil {
		h.log.Error("oauth callback failed",
			slog.String("provider", string(provider)), logger.Error(err))
		return h.redirectWithError(c, state.ReturnTo, "connection_failed")
	}

	return c.Redirect(http.StatusFound, state.ReturnTo)
}

// Disconnect handles DELETE /api/integrations/:id
func (h *Handler) Disconnect(c echo.Context) error {
	identity := auth.GetIdentity(c)

	err := h.service.Disconnect(c.Request().Context(), identity.CompanyID, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrIntegrationNotFound) {
			return apperror.ErrIntegrationNotFound
		}
		return apperror.NewInternal("failed to disconnect integration", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) redirectWithError(c echo.Context, returnTo, code string) error {
	if returnTo == "" {
		returnTo = "/"
	}
	sep := "?"
	if u, err := url.Parse(returnTo); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return c.Redirect(http.StatusFound, returnTo+sep+"error="+url.QueryEscape(code))
}

func providerDisplayName(p Provider) string {
	switch p {
	case ProviderGoogleCalendar:
		return "Google Calendar"
	case ProviderGoogleSheets:
		return "Google Sheets"
	case ProviderOutlook:
		return "Outlook"
	case ProviderHubSpot:
		return "HubSpot"
	case ProviderPipedrive:
		return "Pipedrive"
	case ProviderSalesforce:
		return "Salesforce"
	case ProviderSlack:
		return "Slack"
	default:
		return string(p)
	}
}
