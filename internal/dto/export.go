package dto

import "github.com/noah-isme/watchtower-api/internal/models"

// ExportRequest captures POST /duty-schedules/:id/exports payload.
type ExportRequest struct {
	Format              models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Days                []int               `json:"days" validate:"omitempty,dive,min=1,max=14"`
	IncludeDistribution *bool               `json:"includeDistribution"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID             string              `json:"id"`
	DutyScheduleID string              `json:"dutyScheduleId"`
	Status         models.ExportStatus `json:"status"`
	Progress       int                 `json:"progress"`
	ResultURL      *string             `json:"resultUrl,omitempty"`
	Error          *string             `json:"error,omitempty"`
}
