package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/watchtower-api/internal/dto"
	"github.com/noah-isme/watchtower-api/internal/models"
	appErrors "github.com/noah-isme/watchtower-api/pkg/errors"
)

type timetableRepository interface {
	Replace(ctx context.Context, exec sqlx.ExtContext, periodID string, entries []models.TimetableEntry) error
	ListByPeriod(ctx context.Context, periodID string) ([]models.TimetableEntry, error)
}

// TimetableService stores the exam routine of an exam period and expands it into
// hall sessions.
type TimetableService struct {
	periods   examPeriodRepository
	repo      timetableRepository
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService constructs the service.
func NewTimetableService(periods examPeriodRepository, repo timetableRepository, tx txProvider, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{periods: periods, repo: repo, tx: tx, validator: validate, logger: logger}
}

// Submit replaces the timetable of the exam period. A grade sits at most one
// subject per day.
func (s *TimetableService) Submit(ctx context.Context, periodID string, req dto.SubmitTimetableRequest) (resp *dto.TimetableResponse, err error) {
	if _, err := loadExamPeriod(ctx, s.periods, periodID); err != nil {
		return nil, err
	}
	for i := range req.Entries {
		req.Entries[i].Subject = strings.TrimSpace(req.Entries[i].Subject)
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}

	type dayGrade struct{ day, grade int }
	seen := make(map[dayGrade]bool, len(req.Entries))
	entries := make([]models.TimetableEntry, 0, len(req.Entries))
	for _, entry := range req.Entries {
		key := dayGrade{entry.Day, entry.Grade}
		if seen[key] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grade %d has more than one subject on day %d", entry.Grade, entry.Day))
		}
		seen[key] = true
		entries = append(entries, models.TimetableEntry{
			ExamPeriodID: periodID,
			Day:          entry.Day,
			Grade:        entry.Grade,
			Subject:      entry.Subject,
		})
	}

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Replace(ctx, tx, periodID, entries); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
		return nil, err
	}
	if err = s.periods.Touch(ctx, tx, periodID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam period")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable")
		return nil, err
	}

	s.logger.Info("timetable submitted", zap.String("exam_period_id", periodID), zap.Int("entries", len(entries)))
	return timetableResponse(periodID, entries), nil
}

// Get returns the stored timetable grouped by day.
func (s *TimetableService) Get(ctx context.Context, periodID string) (*dto.TimetableResponse, error) {
	if _, err := loadExamPeriod(ctx, s.periods, periodID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return timetableResponse(periodID, entries), nil
}

// Sessions expands the timetable into one session per section hall. Gap entries
// produce no sessions.
func (s *TimetableService) Sessions(ctx context.Context, periodID string) ([]models.ExamSession, error) {
	entries, err := s.repo.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return ExpandSessions(entries), nil
}

// ExpandSessions turns timetable entries into one session per section hall.
func ExpandSessions(entries []models.TimetableEntry) []models.ExamSession {
	sessions := make([]models.ExamSession, 0, len(entries)*len(models.Sections))
	for _, entry := range entries {
		if entry.Subject == models.SubjectGap || entry.Subject == "" {
			continue
		}
		for _, section := range models.Sections {
			sessions = append(sessions, models.ExamSession{
				Day:     entry.Day,
				Subject: entry.Subject,
				Grade:   entry.Grade,
				Hall:    models.HallName(entry.Grade, section),
			})
		}
	}
	return sessions
}

func timetableResponse(periodID string, entries []models.TimetableEntry) *dto.TimetableResponse {
	byDay := make(map[int]map[int]string)
	for _, entry := range entries {
		if byDay[entry.Day] == nil {
			byDay[entry.Day] = make(map[int]string)
		}
		byDay[entry.Day][entry.Grade] = entry.Subject
	}
	days := make([]dto.TimetableDay, 0, len(byDay))
	for day := 1; day <= models.MaxExamDays; day++ {
		if subjects, ok := byDay[day]; ok {
			days = append(days, dto.TimetableDay{Day: day, Subjects: subjects})
		}
	}
	return &dto.TimetableResponse{
		ExamPeriodID: periodID,
		Days:         days,
		Sessions:     len(ExpandSessions(entries)),
	}
}
