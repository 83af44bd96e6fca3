package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/watchtower-api/internal/dto"
	"github.com/noah-isme/watchtower-api/internal/middleware"
	"github.com/noah-isme/watchtower-api/internal/models"
	appErrors "github.com/noah-isme/watchtower-api/pkg/errors"
	"github.com/noah-isme/watchtower-api/pkg/response"
)

type dutyScheduleService interface {
	Generate(ctx context.Context, periodID string, req dto.GenerateDutyScheduleRequest) (*dto.GenerateDutyScheduleResponse, error)
	Save(ctx context.Context, req dto.SaveDutyScheduleRequest, actorID string) (*dto.SaveDutyScheduleResponse, error)
	List(ctx context.Context, periodID string) (*models.DutyScheduleSummary, error)
	Detail(ctx context.Context, scheduleID string) (*models.DutyScheduleDetail, bool, error)
	Publish(ctx context.Context, scheduleID string) (*models.DutySchedule, error)
	Delete(ctx context.Context, scheduleID string) error
}

type dutySchedulePreview struct {
	Mode     string                            `json:"mode"`
	Proposal *dto.GenerateDutyScheduleResponse `json:"proposal"`
}

// DutyScheduleHandler exposes invigilation duty scheduling endpoints.
type DutyScheduleHandler struct {
	service dutyScheduleService
}

// NewDutyScheduleHandler constructs the handler.
func NewDutyScheduleHandler(svc dutyScheduleService) *DutyScheduleHandler {
	return &DutyScheduleHandler{service: svc}
}

// Generate godoc
// @Summary Generate an invigilation duty proposal
// @Description Runs the duty planner over the stored roster and timetable. The proposal is kept in memory until saved or expired.
// @Tags DutySchedules
// @Accept json
// @Produce json
// @Param id path string true "Exam period ID"
// @Param payload body dto.GenerateDutyScheduleRequest false "Planner options"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /exam-periods/{id}/duty-schedules/generate [post]
func (h *DutyScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateDutyScheduleRequest
	if err := bindJSON(c, &req, true, "invalid generate payload"); err != nil {
		response.Error(c, err)
		return
	}
	proposal, err := h.service.Generate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dutySchedulePreview{Mode: "preview", Proposal: proposal}, nil)
}

// List godoc
// @Summary List saved duty schedule versions of an exam period
// @Tags DutySchedules
// @Produce json
// @Param id path string true "Exam period ID"
// @Success 200 {object} response.Envelope
// @Router /exam-periods/{id}/duty-schedules [get]
func (h *DutyScheduleHandler) List(c *gin.Context) {
	summary, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Save godoc
// @Summary Save a generated proposal as a new schedule version
// @Tags DutySchedules
// @Accept json
// @Produce json
// @Param payload body dto.SaveDutyScheduleRequest true "Save payload"
// @Success 201 {object} response.Envelope
// @Router /duty-schedules/save [post]
func (h *DutyScheduleHandler) Save(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SaveDutyScheduleRequest
	if err := bindJSON(c, &req, false, "invalid save payload"); err != nil {
		response.Error(c, err)
		return
	}
	saved, err := h.service.Save(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, saved)
}

// Detail godoc
// @Summary Get a saved duty schedule with its slots
// @Tags DutySchedules
// @Produce json
// @Param id path string true "Duty schedule ID"
// @Success 200 {object} response.Envelope
// @Router /duty-schedules/{id} [get]
func (h *DutyScheduleHandler) Detail(c *gin.Context) {
	detail, cacheHit, err := h.service.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, detail, nil, middleware.ExtractMeta(c))
}

// Publish godoc
// @Summary Publish a draft duty schedule
// @Tags DutySchedules
// @Produce json
// @Param id path string true "Duty schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /duty-schedules/{id}/publish [post]
func (h *DutyScheduleHandler) Publish(c *gin.Context) {
	schedule, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Delete godoc
// @Summary Delete a draft duty schedule
// @Tags DutySchedules
// @Param id path string true "Duty schedule ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /duty-schedules/{id} [delete]
func (h *DutyScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
