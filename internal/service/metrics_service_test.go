package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/watchtower-api/internal/models"
)

func TestMetricsServiceObserveDutyPlan(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveDutyPlan(20*time.Millisecond, models.DutyPlanStats{UnassignedHalves: 4, Conflicts: 2})

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	gauges := map[string]float64{}
	for _, family := range families {
		if family.GetName() == "duty_plan_unassigned_halves" || family.GetName() == "duty_plan_conflicts" {
			gauges[family.GetName()] = family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 4.0, gauges["duty_plan_unassigned_halves"])
	assert.Equal(t, 2.0, gauges["duty_plan_conflicts"])
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/duty-schedules/:id", http.StatusOK, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordExportJob(models.ExportFormatPDF, models.ExportStatusFinished)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "http_requests_total"))
	assert.True(t, strings.Contains(body, `export_jobs_total{format="pdf",status="FINISHED"} 1`))
	assert.True(t, strings.Contains(body, "cache_hits_total 1"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveDutyPlan(time.Second, models.DutyPlanStats{})
	metrics.RecordCacheOperation(false, time.Second)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
