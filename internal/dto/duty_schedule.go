package dto

import (
	"time"

	"github.com/noah-isme/watchtower-api/internal/models"
)

// GenerateDutyScheduleRequest optionally overrides the configured gap-fill scope.
type GenerateDutyScheduleRequest struct {
	GapFillScope string `json:"gapFillScope" validate:"omitempty,oneof=all_grades first_grade"`
}

// GenerateDutyScheduleResponse is a preview proposal that can later be saved.
type GenerateDutyScheduleResponse struct {
	ProposalID   string                    `json:"proposalId"`
	ExamPeriodID string                    `json:"examPeriodId"`
	GapFillScope string                    `json:"gapFillScope"`
	Days         map[int][]models.DutySlot `json:"days"`
	Stats        models.DutyPlanStats      `json:"stats"`
	DutyCounts   map[string]int            `json:"dutyCounts"`
	Distribution models.DutyDistribution   `json:"distribution"`
	ExpiresAt    time.Time                 `json:"expiresAt"`
}

// SaveDutyScheduleRequest persists a generated proposal.
type SaveDutyScheduleRequest struct {
	ProposalID string `json:"proposalId" validate:"required,uuid4"`
	Publish    bool   `json:"publish"`
}

// SaveDutyScheduleResponse identifies the stored version.
type SaveDutyScheduleResponse struct {
	ScheduleID string                    `json:"scheduleId"`
	Version    int                       `json:"version"`
	Status     models.DutyScheduleStatus `json:"status"`
}
