package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/watchtower-api/internal/dto"
	"github.com/noah-isme/watchtower-api/internal/models"
	"github.com/noah-isme/watchtower-api/pkg/response"
)

type examPeriodService interface {
	Create(ctx context.Context, req dto.CreateExamPeriodRequest) (*models.ExamPeriod, error)
	List(ctx context.Context, page, size int) ([]models.ExamPeriod, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ExamPeriod, error)
}

type rosterService interface {
	Submit(ctx context.Context, periodID string, req dto.SubmitRosterRequest) (*dto.RosterResponse, error)
	Get(ctx context.Context, periodID string) (*dto.RosterResponse, error)
}

type timetableService interface {
	Submit(ctx context.Context, periodID string, req dto.SubmitTimetableRequest) (*dto.TimetableResponse, error)
	Get(ctx context.Context, periodID string) (*dto.TimetableResponse, error)
	Sessions(ctx context.Context, periodID string) ([]models.ExamSession, error)
}

// ExamPeriodHandler exposes exam periods and the roster and timetable entered for them.
type ExamPeriodHandler struct {
	periods   examPeriodService
	roster    rosterService
	timetable timetableService
}

// NewExamPeriodHandler constructs the handler.
func NewExamPeriodHandler(periods examPeriodService, roster rosterService, timetable timetableService) *ExamPeriodHandler {
	return &ExamPeriodHandler{periods: periods, roster: roster, timetable: timetable}
}

// Create godoc
// @Summary Open an exam period
// @Tags ExamPeriods
// @Accept json
// @Produce json
// @Param payload body dto.CreateExamPeriodRequest true "Exam period payload"
// @Success 201 {object} response.Envelope
// @Router /exam-periods [post]
func (h *ExamPeriodHandler) Create(c *gin.Context) {
	var req dto.CreateExamPeriodRequest
	if err := bindJSON(c, &req, false, "invalid exam period payload"); err != nil {
		response.Error(c, err)
		return
	}
	period, err := h.periods.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// List godoc
// @Summary List exam periods
// @Tags ExamPeriods
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /exam-periods [get]
func (h *ExamPeriodHandler) List(c *gin.Context) {
	page, limit := pageParams(c)
	periods, pagination, err := h.periods.List(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, pagination)
}

// Get godoc
// @Summary Get an exam period
// @Tags ExamPeriods
// @Produce json
// @Param id path string true "Exam period ID"
// @Success 200 {object} response.Envelope
// @Router /exam-periods/{id} [get]
func (h *ExamPeriodHandler) Get(c *gin.Context) {
	period, err := h.periods.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// SubmitRoster godoc
// @Summary Replace the teacher roster
// @Description Each entry binds a teacher to a grade and one subject. Repeat a name to add subjects.
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Exam period ID"
// @Param payload body dto.SubmitRosterRequest true "Roster entries"
// @Success 200 {object} response.Envelope
// @Router /exam-periods/{id}/roster [put]
func (h *ExamPeriodHandler) SubmitRoster(c *gin.Context) {
	var req dto.SubmitRosterRequest
	if err := bindJSON(c, &req, false, "invalid roster payload"); err != nil {
		response.Error(c, err)
		return
	}
	roster, err := h.roster.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// Roster godoc
// @Summary Get the teacher roster
// @Tags Roster
// @Produce json
// @Param id path string true "Exam period ID"
// @Success 200 {object} response.Envelope
// @Router /exam-periods/{id}/roster [get]
func (h *ExamPeriodHandler) Roster(c *gin.Context) {
	roster, err := h.roster.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// SubmitTimetable godoc
// @Summary Replace the exam timetable
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Exam period ID"
// @Param payload body dto.SubmitTimetableRequest true "Timetable entries"
// @Success 200 {object} response.Envelope
// @Router /exam-periods/{id}/timetable [put]
func (h *ExamPeriodHandler) SubmitTimetable(c *gin.Context) {
	var req dto.SubmitTimetableRequest
	if err := bindJSON(c, &req, false, "invalid timetable payload"); err != nil {
		response.Error(c, err)
		return
	}
	timetable, err := h.timetable.Submit(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Timetable godoc
// @Summary Get the exam timetable
// @Tags Timetable
// @Produce json
// @Param id path string true "Exam period ID"
// @Success 200 {object} response.Envelope
// @Router /exam-periods/{id}/timetable [get]
func (h *ExamPeriodHandler) Timetable(c *gin.Context) {
	timetable, err := h.timetable.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Sessions godoc
// @Summary List exam sessions expanded from the timetable
// @Tags Timetable
// @Produce json
// @Param id path string true "Exam period ID"
// @Success 200 {object} response.Envelope
// @Router /exam-periods/{id}/sessions [get]
func (h *ExamPeriodHandler) Sessions(c *gin.Context) {
	sessions, err := h.timetable.Sessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if sessions == nil {
		sessions = []models.ExamSession{}
	}
	response.JSON(c, http.StatusOK, sessions, nil, map[string]interface{}{"count": len(sessions)})
}
