package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/watchtower-api/internal/dto"
	"github.com/noah-isme/watchtower-api/internal/models"
	appErrors "github.com/noah-isme/watchtower-api/pkg/errors"
)

type examPeriodRepository interface {
	Create(ctx context.Context, period *models.ExamPeriod) error
	FindByID(ctx context.Context, id string) (*models.ExamPeriod, error)
	List(ctx context.Context, limit, offset int) ([]models.ExamPeriod, int, error)
	Touch(ctx context.Context, exec sqlx.ExtContext, id string) error
}

// ExamPeriodService manages exam periods.
type ExamPeriodService struct {
	repo      examPeriodRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamPeriodService constructs the service.
func NewExamPeriodService(repo examPeriodRepository, validate *validator.Validate, logger *zap.Logger) *ExamPeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamPeriodService{repo: repo, validator: validate, logger: logger}
}

// Create opens a new exam period.
func (s *ExamPeriodService) Create(ctx context.Context, req dto.CreateExamPeriodRequest) (*models.ExamPeriod, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam period payload")
	}
	period := &models.ExamPeriod{Name: req.Name, StartsOn: req.StartsOn}
	if err := s.repo.Create(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam period")
	}
	s.logger.Info("exam period created", zap.String("exam_period_id", period.ID))
	return period, nil
}

// List returns a page of exam periods.
func (s *ExamPeriodService) List(ctx context.Context, page, size int) ([]models.ExamPeriod, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	periods, total, err := s.repo.List(ctx, size, (page-1)*size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam periods")
	}
	return periods, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an exam period by id.
func (s *ExamPeriodService) Get(ctx context.Context, id string) (*models.ExamPeriod, error) {
	return loadExamPeriod(ctx, s.repo, id)
}

func loadExamPeriod(ctx context.Context, repo examPeriodRepository, id string) (*models.ExamPeriod, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam period id is required")
	}
	period, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam period")
	}
	return period, nil
}
