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

type rosterRepository interface {
	Replace(ctx context.Context, exec sqlx.ExtContext, periodID string, entries []models.RosterEntry) error
	ListByPeriod(ctx context.Context, periodID string) ([]models.RosterEntry, error)
}

// RosterService stores the teacher roster of an exam period and turns it into
// planner input.
type RosterService struct {
	periods   examPeriodRepository
	repo      rosterRepository
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs the service.
func NewRosterService(periods examPeriodRepository, repo rosterRepository, tx txProvider, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{periods: periods, repo: repo, tx: tx, validator: validate, logger: logger}
}

// Submit replaces the roster of the exam period. Entries with a blank teacher
// name are ignored.
func (s *RosterService) Submit(ctx context.Context, periodID string, req dto.SubmitRosterRequest) (resp *dto.RosterResponse, err error) {
	if _, err := loadExamPeriod(ctx, s.periods, periodID); err != nil {
		return nil, err
	}

	filtered := dto.SubmitRosterRequest{Entries: make([]dto.RosterEntryRequest, 0, len(req.Entries))}
	for _, entry := range req.Entries {
		entry.TeacherName = strings.TrimSpace(entry.TeacherName)
		entry.Subject = strings.TrimSpace(entry.Subject)
		if entry.TeacherName == "" {
			continue
		}
		filtered.Entries = append(filtered.Entries, entry)
	}
	if len(filtered.Entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster must name at least one teacher")
	}
	if err := s.validator.Struct(filtered); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster payload")
	}

	entries := make([]models.RosterEntry, 0, len(filtered.Entries))
	for _, entry := range filtered.Entries {
		entries = append(entries, models.RosterEntry{
			ExamPeriodID: periodID,
			TeacherName:  entry.TeacherName,
			Grade:        entry.Grade,
			Subject:      entry.Subject,
		})
	}
	teachers, mergeErr := MergeRoster(entries)
	if mergeErr != nil {
		return nil, mergeErr
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
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store roster")
		return nil, err
	}
	if err = s.periods.Touch(ctx, tx, periodID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam period")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit roster")
		return nil, err
	}

	s.logger.Info("roster submitted",
		zap.String("exam_period_id", periodID),
		zap.Int("entries", len(entries)),
		zap.Int("teachers", len(teachers)),
	)
	return rosterResponse(periodID, teachers, len(entries)), nil
}

// Get returns the stored roster merged per teacher.
func (s *RosterService) Get(ctx context.Context, periodID string) (*dto.RosterResponse, error) {
	if _, err := loadExamPeriod(ctx, s.periods, periodID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	teachers, err := MergeRoster(entries)
	if err != nil {
		return nil, err
	}
	return rosterResponse(periodID, teachers, len(entries)), nil
}

// Teachers returns the planner roster of the exam period.
func (s *RosterService) Teachers(ctx context.Context, periodID string) ([]models.Teacher, error) {
	entries, err := s.repo.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return MergeRoster(entries)
}

// MergeRoster folds entries sharing a teacher name into one Teacher, keeping the
// order in which names first appear.
func MergeRoster(entries []models.RosterEntry) ([]models.Teacher, error) {
	index := make(map[string]int, len(entries))
	teachers := make([]models.Teacher, 0, len(entries))
	for _, entry := range entries {
		pos, seen := index[entry.TeacherName]
		if !seen {
			index[entry.TeacherName] = len(teachers)
			teachers = append(teachers, models.Teacher{
				Name:     entry.TeacherName,
				Grade:    entry.Grade,
				Subjects: []string{entry.Subject},
			})
			continue
		}
		teacher := &teachers[pos]
		if teacher.Grade != entry.Grade {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher %q is listed under grades %d and %d", entry.TeacherName, teacher.Grade, entry.Grade))
		}
		if !teacher.Teaches(entry.Subject) {
			teacher.Subjects = append(teacher.Subjects, entry.Subject)
		}
	}
	return teachers, nil
}

func rosterResponse(periodID string, teachers []models.Teacher, entries int) *dto.RosterResponse {
	out := make([]dto.RosterTeacher, 0, len(teachers))
	for _, t := range teachers {
		out = append(out, dto.RosterTeacher{Name: t.Name, Grade: t.Grade, Subjects: t.Subjects})
	}
	return &dto.RosterResponse{ExamPeriodID: periodID, Teachers: out, Entries: entries}
}
