package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/middleware"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
	"github.com/noah-isme/sma-timetable-engine/pkg/response"
)

type conflictManager interface {
	Scan(ctx context.Context, scheduleID string) (*dto.ConflictScanResponse, error)
	List(ctx context.Context, scheduleID string, query dto.ConflictQuery) ([]models.Conflict, error)
	Resolve(ctx context.Context, conflictID string) (*dto.ResolveConflictResponse, error)
	Ignore(ctx context.Context, conflictID string) error
}

// ConflictHandler exposes conflict detection and lifecycle endpoints.
type ConflictHandler struct {
	service conflictManager
}

// NewConflictHandler constructs the handler.
func NewConflictHandler(svc *service.ConflictService) *ConflictHandler {
	return &ConflictHandler{service: svc}
}

// Scan godoc
// @Summary Run a conflict scan over a schedule's committed sessions
// @Tags Conflicts
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/conflicts/scan [post]
func (h *ConflictHandler) Scan(c *gin.Context) {
	result, err := h.service.Scan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, result.FromCache)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// List godoc
// @Summary List stored conflicts for a schedule
// @Tags Conflicts
// @Produce json
// @Param id path string true "Schedule ID"
// @Param status query string false "Filter by status (open, resolved, ignored)"
// @Param type query string false "Filter by conflict type"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/conflicts [get]
func (h *ConflictHandler) List(c *gin.Context) {
	var query dto.ConflictQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflict query"))
		return
	}
	conflicts, err := h.service.List(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}

// Resolve godoc
// @Summary Apply the automated fix for a conflict
// @Description Moves one participating session when the conflict type has an automated strategy. Returns 422 when only a manual edit can fix it.
// @Tags Conflicts
// @Produce json
// @Param id path string true "Conflict ID"
// @Success 200 {object} response.Envelope
// @Router /conflicts/{id}/resolve [post]
func (h *ConflictHandler) Resolve(c *gin.Context) {
	result, err := h.service.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Ignore godoc
// @Summary Suppress a conflict without changing sessions
// @Tags Conflicts
// @Param id path string true "Conflict ID"
// @Success 204
// @Router /conflicts/{id}/ignore [post]
func (h *ConflictHandler) Ignore(c *gin.Context) {
	if err := h.service.Ignore(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
