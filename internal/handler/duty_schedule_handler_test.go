package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/watchtower-api/internal/dto"
	internalmiddleware "github.com/noah-isme/watchtower-api/internal/middleware"
	"github.com/noah-isme/watchtower-api/internal/models"
	appErrors "github.com/noah-isme/watchtower-api/pkg/errors"
)

type dutyScheduleServiceMock struct {
	generated   dto.GenerateDutyScheduleRequest
	generateErr error
	saved       dto.SaveDutyScheduleRequest
	actorID     string
	cacheHit    bool
	deleteErr   error
	publishErr  error
}

func (m *dutyScheduleServiceMock) Generate(ctx context.Context, periodID string, req dto.GenerateDutyScheduleRequest) (*dto.GenerateDutyScheduleResponse, error) {
	m.generated = req
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return &dto.GenerateDutyScheduleResponse{ProposalID: "proposal-1", ExamPeriodID: periodID}, nil
}

func (m *dutyScheduleServiceMock) Save(ctx context.Context, req dto.SaveDutyScheduleRequest, actorID string) (*dto.SaveDutyScheduleResponse, error) {
	m.saved, m.actorID = req, actorID
	return &dto.SaveDutyScheduleResponse{ScheduleID: "sched-1", Version: 1, Status: models.DutyScheduleStatusDraft}, nil
}

func (m *dutyScheduleServiceMock) List(ctx context.Context, periodID string) (*models.DutyScheduleSummary, error) {
	return &models.DutyScheduleSummary{ExamPeriodID: periodID, Versions: []models.DutyScheduleVersion{}}, nil
}

func (m *dutyScheduleServiceMock) Detail(ctx context.Context, scheduleID string) (*models.DutyScheduleDetail, bool, error) {
	return &models.DutyScheduleDetail{Schedule: models.DutySchedule{ID: scheduleID}}, m.cacheHit, nil
}

func (m *dutyScheduleServiceMock) Publish(ctx context.Context, scheduleID string) (*models.DutySchedule, error) {
	if m.publishErr != nil {
		return nil, m.publishErr
	}
	return &models.DutySchedule{ID: scheduleID, Status: models.DutyScheduleStatusPublished}, nil
}

func (m *dutyScheduleServiceMock) Delete(ctx context.Context, scheduleID string) error {
	return m.deleteErr
}

func TestDutyScheduleHandlerGenerateWithoutBody(t *testing.T) {
	svc := &dutyScheduleServiceMock{}
	h := NewDutyScheduleHandler(svc)

	c, w := newGinContext(http.MethodPost, "/exam-periods/period-1/duty-schedules/generate", nil)
	c.Params = gin.Params{{Key: "id", Value: "period-1"}}
	h.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mode":"preview"`)
	assert.Contains(t, w.Body.String(), `"proposalId":"proposal-1"`)
	assert.Empty(t, svc.generated.GapFillScope)
}

func TestDutyScheduleHandlerGenerateWithScope(t *testing.T) {
	svc := &dutyScheduleServiceMock{}
	h := NewDutyScheduleHandler(svc)

	c, w := newGinContext(http.MethodPost, "/exam-periods/period-1/duty-schedules/generate", []byte(`{"gapFillScope":"first_grade"}`))
	c.Params = gin.Params{{Key: "id", Value: "period-1"}}
	h.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "first_grade", svc.generated.GapFillScope)
}

func TestDutyScheduleHandlerGeneratePreconditionFailed(t *testing.T) {
	svc := &dutyScheduleServiceMock{generateErr: appErrors.Clone(appErrors.ErrPreconditionFailed, "please submit teacher data first")}
	h := NewDutyScheduleHandler(svc)

	c, w := newGinContext(http.MethodPost, "/exam-periods/period-1/duty-schedules/generate", nil)
	h.Generate(c)

	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Contains(t, w.Body.String(), "please submit teacher data first")
}

func TestDutyScheduleHandlerSave(t *testing.T) {
	svc := &dutyScheduleServiceMock{}
	h := NewDutyScheduleHandler(svc)

	c, w := newGinContext(http.MethodPost, "/duty-schedules/save", []byte(`{"proposalId":"7b4f1f2e-9a53-4c1c-8f0e-3f1a2b3c4d5e","publish":true}`))
	asAdmin(c)
	h.Save(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "admin-1", svc.actorID)
	assert.True(t, svc.saved.Publish)
}

func TestDutyScheduleHandlerSaveRequiresClaims(t *testing.T) {
	h := NewDutyScheduleHandler(&dutyScheduleServiceMock{})

	c, w := newGinContext(http.MethodPost, "/duty-schedules/save", []byte(`{}`))
	h.Save(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDutyScheduleHandlerDetailReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewDutyScheduleHandler(&dutyScheduleServiceMock{cacheHit: true})
	router := gin.New()
	router.Use(internalmiddleware.WithResponseMeta())
	router.GET("/duty-schedules/:id", h.Detail)

	c, w := newGinContext(http.MethodGet, "/duty-schedules/sched-1", nil)
	router.ServeHTTP(w, c.Request)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
}

func TestDutyScheduleHandlerPublishConflict(t *testing.T) {
	h := NewDutyScheduleHandler(&dutyScheduleServiceMock{publishErr: appErrors.ErrPublished})

	c, w := newGinContext(http.MethodPost, "/duty-schedules/sched-1/publish", nil)
	c.Params = gin.Params{{Key: "id", Value: "sched-1"}}
	h.Publish(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PUBLISHED", decodeEnvelope(t, w).Error.Code)
}

func TestDutyScheduleHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewDutyScheduleHandler(&dutyScheduleServiceMock{})
	router := gin.New()
	router.DELETE("/duty-schedules/:id", h.Delete)

	c, w := newGinContext(http.MethodDelete, "/duty-schedules/sched-1", nil)
	router.ServeHTTP(w, c.Request)

	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestDutyScheduleHandlerDeleteRequiresAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewDutyScheduleHandler(&dutyScheduleServiceMock{})
	router := gin.New()
	router.DELETE("/duty-schedules/:id", func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher})
	}, internalmiddleware.RequireRoles(models.RoleAdmin), h.Delete)

	c, w := newGinContext(http.MethodDelete, "/duty-schedules/sched-1", nil)
	router.ServeHTTP(w, c.Request)

	require.Equal(t, http.StatusForbidden, w.Code)
}
