package sync

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/voxlane/voxlane-core/domain/integrations"
	"github.com/voxlane/voxlane-core/pkg/apperror"
	"github.com/voxlane/voxlane-core/pkg/auth"
	"github.com/voxlane/voxlane-core/pkg/logger"
	"github.com/voxlane/voxlane-core/pkg/syncerr"
)

// Handler handles HTTP requests for sync runs and linked resources.
type Handler struct {
	service   *Service
	resources *ResourceStore
	repo      *integrations.Repository
	log       *slog.Logger
}

func NewHandler(service *Service, resources *ResourceStore, repo *integrations.Repository, log *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		resources: resources,
		repo:      repo,
		log:       log.With(logger.Scope("sync.handler")),
	}
}

// TriggerSync handles POST /api/integrations/:id/sync
//
// The run executes synchronously and the response is the finalized summary,
// counts plus error list, even when the run partially or wholly failed.
func (h *Handler) TriggerSync(c echo.Context) error {
	identity := auth.GetIdentity(c)
	integrationID := c.Param("id")

	req := TriggerRequestDTO{SyncType: string(TypeFull)}
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	syncType, err := ParseType(req.SyncType)
	if err != nil {
		return apperror.NewBadRequest(err.Error())
	}
	if syncType == TypeSelective && len(req.ExternalIDs) == 0 {
		return apperror.NewBadRequest("selective sync requires external_ids")
	}

	run, err := h.service.Run(c.Request().Context(), identity.CompanyID, integrationID, syncType, req.ExternalIDs)
	if err != nil {
		return h.mapRunError(err)
	}
	return c.JSON(http.StatusOK, toRunDTO(run))
}

// ListRuns handles GET /api/integrations/:id/runs
func (h *Handler) ListRuns(c echo.Context) error {
	identity := auth.GetIdentity(c)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := h.service.ListRuns(c.Request().Context(), identity.CompanyID, c.Param("id"), limit)
	if err != nil {
		return h.mapRunError(err)
	}
	return c.JSON(http.StatusOK, toRunDTOs(runs))
}

// LatestRun handles GET /api/integrations/:id/runs/latest
func (h *Handler) LatestRun(c echo.Context) error {
	identity := auth.GetIdentity(c)

	run, err := h.service.LatestRun(c.Request().Context(), identity.CompanyID, c.Param("id"))
	if err != nil {
		return h.mapRunError(err)
	}
	return c.JSON(http.StatusOK, toRunDTO(run))
}

// GetRun handles GET /api/integrations/:id/runs/:runId
func (h *Handler) GetRun(c echo.Context) error {
	identity := auth.GetIdentity(c)

	run, err := h.service.GetRun(c.Request().Context(), identity.CompanyID, c.Param("id"), c.Param("runId"))
	if err != nil {
		return h.mapRunError(err)
	}
	return c.JSON(http.StatusOK, toRunDTO(run))
}

// CancelRun handles POST /api/integrations/:id/runs/:runId/cancel
func (h *Handler) CancelRun(c echo.Context) error {
	identity := auth.GetIdentity(c)

	err := h.service.Cancel(c.Request().Context(), identity.CompanyID, c.Param("id"), c.Param("runId"))
	if err != nil {
		return h.mapRunError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

// ListResources handles GET /api/integrations/:id/resources
func (h *Handler) ListResources(c echo.Context) error {
	identity := auth.GetIdentity(c)

	integration, err := h.repo.GetByID(c.Request().Context(), identity.CompanyID, c.Param("id"))
	if err != nil {
		return h.mapRunError(err)
	}

	resources, err := h.resources.List(c.Request().Context(), integration.ID)
	if err != nil {
		return apperror.NewInternal("failed to list linked resources", err)
	}
	return c.JSON(http.StatusOK, resources)
}

// LinkResource handles POST /api/integrations/:id/resources
func (h *Handler) LinkResource(c echo.Context) error {
	identity := auth.GetIdentity(c)

	integration, err := h.repo.GetByID(c.Request().Context(), identity.CompanyID, c.Param("id"))
	if err != nil {
		return h.mapRunError(err)
	}

	var req LinkResourceRequestDTO
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.ExternalResourceID == "" {
		return apperror.NewBadRequest("external_resource_id is required")
	}
	direction := DirectionInbound
	if req.SyncDirection != "" {
		direction, err = ParseDirection(req.SyncDirection)
		if err != nil {
			return apperror.NewBadRequest(err.Error())
		}
	}

	resource := &LinkedResource{
		IntegrationID:        integration.ID,
		ExternalResourceID:   req.ExternalResourceID,
		ExternalResourceName: req.ExternalResourceName,
		FieldMapping:         req.FieldMapping,
		SyncDirection:        direction,
	}
	if err := h.resources.Create(c.Request().Context(), resource); err != nil {
		return apperror.NewBadRequest(err.Error())
	}
	return c.JSON(http.StatusCreated, resource)
}

// UpdateResource handles PATCH /api/integrations/:id/resources/:resourceId
func (h *Handler) UpdateResource(c echo.Context) error {
	identity := auth.GetIdentity(c)
	ctx := c.Request().Context()

	integration, err := h.repo.GetByID(ctx, identity.CompanyID, c.Param("id"))
	if err != nil {
		return h.mapRunError(err)
	}
	resource, err := h.resources.Get(ctx, integration.ID, c.Param("resourceId"))
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return apperror.NewNotFound("linked resource", c.Param("resourceId"))
		}
		return apperror.NewInternal("failed to load linked resource", err)
	}

	var req LinkResourceRequestDTO
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if req.ExternalResourceName != "" {
		resource.ExternalResourceName = req.ExternalResourceName
	}
	if req.FieldMapping != nil {
		resource.FieldMapping = req.FieldMapping
	}
	if req.SyncDirection != "" {
		direction, err := ParseDirection(req.SyncDirection)
		if err != nil {
			return apperror.NewBadRequest(err.Error())
		}
		resource.SyncDirection = direction
	}

	if err := h.resources.Update(ctx, resource); err != nil {
		return apperror.NewBadRequest(err.Error())
	}
	return c.JSON(http.StatusOK, resource)
}

// UnlinkResource handles DELETE /api/integrations/:id/resources/:resourceId
func (h *Handler) UnlinkResource(c echo.Context) error {
	identity := auth.GetIdentity(c)

	integration, err := h.repo.GetByID(c.Request().Context(), identity.CompanyID, c.Param("id"))
	if err != nil {
		return h.mapRunError(err)
	}
	if err := h.resources.Delete(c.Request().Context(), integration.ID, c.Param("resourceId")); err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return apperror.NewNotFound("linked resource", c.Param("resourceId"))
		}
		return apperror.NewInternal("failed to unlink resource", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// mapRunError converts domain errors into the structured HTTP vocabulary.
func (h *Handler) mapRunError(err error) error {
	switch {
	case errors.Is(err, integrations.ErrIntegrationNotFound):
		return apperror.ErrIntegrationNotFound
	case errors.Is(err, syncerr.ErrNotConnected):
		return apperror.ErrNotConnected
	case errors.Is(err, syncerr.ErrRunAlreadyInProgress):
		return apperror.ErrRunAlreadyInProgress
	case errors.Is(err, ErrRunNotFound):
		return apperror.NewNotFound("sync run", "")
	case syncerr.IsReauthRequired(err):
		return apperror.ErrReauthRequired
	default:
		return apperror.NewInternal("sync request failed", err)
	}
}
