package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	"github.com/noah-isme/sma-timetable-engine/pkg/response"
)

type timetableReader interface {
	ListSessions(ctx context.Context, scheduleID string) ([]models.Session, error)
	ListVersions(ctx context.Context, scheduleID string) ([]models.ScheduleVersion, error)
	PublishVersion(ctx context.Context, versionID string) error
}

// TimetableHandler exposes committed timetable reads and version lifecycle.
type TimetableHandler struct {
	service timetableReader
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Sessions godoc
// @Summary List a schedule's committed sessions
// @Tags Timetable
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/sessions [get]
func (h *TimetableHandler) Sessions(c *gin.Context) {
	sessions, err := h.service.ListSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Versions godoc
// @Summary List a schedule's version history
// @Tags Timetable
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/versions [get]
func (h *TimetableHandler) Versions(c *gin.Context) {
	versions, err := h.service.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Publish godoc
// @Summary Publish a draft schedule version
// @Tags Timetable
// @Param id path string true "Version ID"
// @Success 204
// @Router /versions/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	if err := h.service.PublishVersion(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
