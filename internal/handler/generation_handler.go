package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
	"github.com/noah-isme/sma-timetable-engine/internal/models"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-engine/pkg/errors"
	"github.com/noah-isme/sma-timetable-engine/pkg/response"
)

const maxInlineLoads = 256

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	RunSync(ctx context.Context, req dto.GenerateTimetableRequest) (*models.GenerationResult, error)
	Progress(jobID string) (*dto.JobProgressResponse, error)
	Result(jobID string) (*models.GenerationResult, error)
	Cancel(jobID string) error
}

// GenerationHandler exposes timetable generation endpoints.
type GenerationHandler struct {
	service timetableGenerator
}

// NewGenerationHandler constructs the handler.
func NewGenerationHandler(svc *service.GenerationService) *GenerationHandler {
	return &GenerationHandler{service: svc}
}

// Generate godoc
// @Summary Start a timetable generation run
// @Description Enqueues a generation job and returns its handle. Pass sync=true to run inline and return the full result instead.
// @Tags Generation
// @Accept json
// @Produce json
// @Param sync query bool false "Run inline and return the result"
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 202 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}
	if len(req.Loads) > maxInlineLoads {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "loads exceeds supported limit"))
		return
	}

	if c.Query("sync") == "true" {
		result, err := h.service.RunSync(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, result, nil)
		return
	}

	ack, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, ack)
}

// Progress godoc
// @Summary Poll a generation job
// @Tags Generation
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/jobs/{id} [get]
func (h *GenerationHandler) Progress(c *gin.Context) {
	progress, err := h.service.Progress(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// Result godoc
// @Summary Fetch the result of a finished generation job
// @Tags Generation
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/jobs/{id}/result [get]
func (h *GenerationHandler) Result(c *gin.Context) {
	result, err := h.service.Result(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Cancel a running generation job
// @Tags Generation
// @Param id path string true "Job ID"
// @Success 202 {object} response.Envelope
// @Router /timetable/jobs/{id}/cancel [post]
func (h *GenerationHandler) Cancel(c *gin.Context) {
	jobID := c.Param("id")
	if err := h.service.Cancel(jobID); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"jobId": jobID, "status": models.JobCancelled})
}
