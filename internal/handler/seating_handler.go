package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-seating-api/internal/dto"
	"github.com/noah-isme/exam-seating-api/internal/middleware"
	"github.com/noah-isme/exam-seating-api/internal/models"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
	"github.com/noah-isme/exam-seating-api/pkg/response"
)

type seatingService interface {
	Generate(ctx context.Context, req dto.GenerateSeatingRequest) (*dto.GenerateSeatingResponse, error)
	Save(ctx context.Context, req dto.SaveSeatingRequest, actorID string) (*models.SeatingPlan, error)
	List(ctx context.Context, query dto.SeatingPlanQuery) ([]models.SeatingPlan, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.SeatingPlanDetail, error)
	Publish(ctx context.Context, id, actorID string) (*models.SeatingPlan, error)
	Delete(ctx context.Context, id, actorID string) error
}

// SeatingHandler exposes seat generation and saved plan endpoints.
type SeatingHandler struct {
	seating seatingService
}

// NewSeatingHandler constructs SeatingHandler.
func NewSeatingHandler(seating seatingService) *SeatingHandler {
	return &SeatingHandler{seating: seating}
}

// Generate godoc
// @Summary Generate seating proposal
// @Description Runs the seating engine. Unplaceable inputs still answer 200 with success=false and diagnostics.
// @Tags Seating
// @Accept json
// @Produce json
// @Param payload body dto.GenerateSeatingRequest true "Generate payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /seating/generate [post]
func (h *SeatingHandler) Generate(c *gin.Context) {
	var req dto.GenerateSeatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid generate payload"))
		return
	}
	result, err := h.seating.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "conflicts", len(result.Diagnostics.Conflicts))
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Save godoc
// @Summary Save seating proposal
// @Tags Seating
// @Accept json
// @Produce json
// @Param payload body dto.SaveSeatingRequest true "Save payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /seating/save [post]
func (h *SeatingHandler) Save(c *gin.Context) {
	var req dto.SaveSeatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid save payload"))
		return
	}
	plan, err := h.seating.Save(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// List godoc
// @Summary List saved seating plans
// @Tags Seating Plans
// @Produce json
// @Param status query string false "DRAFT or PUBLISHED"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /seating-plans [get]
func (h *SeatingHandler) List(c *gin.Context) {
	var query dto.SeatingPlanQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Validation(err, "invalid query"))
		return
	}
	plans, pagination, err := h.seating.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get godoc
// @Summary Get saved seating plan
// @Tags Seating Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /seating-plans/{id} [get]
func (h *SeatingHandler) Get(c *gin.Context) {
	detail, err := h.seating.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Publish godoc
// @Summary Publish seating plan
// @Tags Seating Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /seating-plans/{id}/publish [post]
func (h *SeatingHandler) Publish(c *gin.Context) {
	plan, err := h.seating.Publish(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Delete godoc
// @Summary Delete draft seating plan
// @Tags Seating Plans
// @Param id path string true "Plan ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /seating-plans/{id} [delete]
func (h *SeatingHandler) Delete(c *gin.Context) {
	if err := h.seating.Delete(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
