package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/watchtower-api/internal/dto"
	"github.com/noah-isme/watchtower-api/internal/models"
	appErrors "github.com/noah-isme/watchtower-api/pkg/errors"
)

type dutyScheduleRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.DutySchedule) error
	ListByPeriod(ctx context.Context, periodID string) ([]models.DutySchedule, error)
	FindByID(ctx context.Context, id string) (*models.DutySchedule, error)
	Delete(ctx context.Context, id string) error
	MarkPublished(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error
}

type dutySlotRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.DutySlotRecord) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.DutySlotRecord, error)
}

type rosterReader interface {
	Teachers(ctx context.Context, periodID string) ([]models.Teacher, error)
}

type sessionReader interface {
	Sessions(ctx context.Context, periodID string) ([]models.ExamSession, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type dutyPlanner func(sessions []models.ExamSession, teachers []models.Teacher, opts PlannerOptions) (*models.DutyPlan, error)

// DutyScheduleConfig governs generation and caching.
type DutyScheduleConfig struct {
	ProposalTTL  time.Duration
	CacheTTL     time.Duration
	GapFillScope GapFillScope
}

// DutyScheduleService generates invigilation duty proposals and persists them
// as versioned schedules.
type DutyScheduleService struct {
	periods   examPeriodRepository
	roster    rosterReader
	timetable sessionReader
	schedules dutyScheduleRepository
	slots     dutySlotRepository
	tx        txProvider
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       DutyScheduleConfig
	store     *proposalStore
	plan      dutyPlanner
	now       func() time.Time
}

// DutyScheduleDeps groups the collaborators of DutyScheduleService.
type DutyScheduleDeps struct {
	Periods   examPeriodRepository
	Roster    rosterReader
	Timetable sessionReader
	Schedules dutyScheduleRepository
	Slots     dutySlotRepository
	Tx        txProvider
	Cache     *CacheService
	Metrics   *MetricsService
}

// NewDutyScheduleService wires duty schedule dependencies.
func NewDutyScheduleService(deps DutyScheduleDeps, validate *validator.Validate, logger *zap.Logger, cfg DutyScheduleConfig) *DutyScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.GapFillScope == "" {
		cfg.GapFillScope = GapFillAllGrades
	}
	return &DutyScheduleService{
		periods:   deps.Periods,
		roster:    deps.Roster,
		timetable: deps.Timetable,
		schedules: deps.Schedules,
		slots:     deps.Slots,
		tx:        deps.Tx,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		store:     newProposalStore(cfg.ProposalTTL),
		plan:      PlanDuties,
		now:       time.Now,
	}
}

// Generate plans duties for the exam period and keeps the result as a proposal.
func (s *DutyScheduleService) Generate(ctx context.Context, periodID string, req dto.GenerateDutyScheduleRequest) (*dto.GenerateDutyScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid duty schedule generation payload")
	}
	if _, err := loadExamPeriod(ctx, s.periods, periodID); err != nil {
		return nil, err
	}

	teachers, err := s.roster.Teachers(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if len(teachers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "please submit teacher data first")
	}
	sessions, err := s.timetable.Sessions(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "please submit exam routine with at least one exam defined")
	}

	scope := s.cfg.GapFillScope
	if req.GapFillScope != "" {
		scope = GapFillScope(req.GapFillScope)
	}

	start := time.Now()
	plan, err := s.plan(sessions, teachers, PlannerOptions{GapFill: scope})
	if err != nil {
		s.logger.Error("duty planning failed", zap.String("exam_period_id", periodID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate duty schedule")
	}
	stats := plan.Stats()
	s.metrics.ObserveDutyPlan(time.Since(start), stats)

	proposal := dutyProposal{
		ProposalID:   uuid.NewString(),
		ExamPeriodID: periodID,
		GapFillScope: scope,
		Plan:         plan,
		RequestedAt:  s.now().UTC(),
	}
	s.store.Save(proposal)

	s.logger.Info("duty schedule generated",
		zap.String("exam_period_id", periodID),
		zap.String("proposal_id", proposal.ProposalID),
		zap.Int("sessions", stats.Sessions),
		zap.Int("unassigned_halves", stats.UnassignedHalves),
		zap.Int("conflicts", stats.Conflicts),
	)

	return &dto.GenerateDutyScheduleResponse{
		ProposalID:   proposal.ProposalID,
		ExamPeriodID: periodID,
		GapFillScope: string(scope),
		Days:         plan.Days,
		Stats:        stats,
		DutyCounts:   plan.DutyCounts,
		Distribution: plan.Distribution,
		ExpiresAt:    proposal.RequestedAt.Add(s.cfg.ProposalTTL),
	}, nil
}

// Save persists a generated proposal as the next schedule version of its exam
// period, optionally publishing it.
func (s *DutyScheduleService) Save(ctx context.Context, req dto.SaveDutyScheduleRequest, actorID string) (resp *dto.SaveDutyScheduleResponse, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save duty schedule payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	meta := models.DutyScheduleMeta{
		GapFillScope: string(proposal.GapFillScope),
		Stats:        proposal.Plan.Stats(),
		DutyCounts:   proposal.Plan.DutyCounts,
		Distribution: proposal.Plan.Distribution,
	}
	metaBytes, marshalErr := json.Marshal(meta)
	if marshalErr != nil {
		return nil, appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode duty schedule metadata")
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

	record := &models.DutySchedule{
		ExamPeriodID: proposal.ExamPeriodID,
		Status:       models.DutyScheduleStatusDraft,
		Meta:         types.JSONText(metaBytes),
		CreatedBy:    actorID,
	}
	if err = s.schedules.CreateVersioned(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create duty schedule")
		return nil, err
	}

	records := make([]models.DutySlotRecord, 0, len(proposal.Plan.Slots()))
	for day := 1; day <= models.MaxExamDays; day++ {
		for _, slot := range proposal.Plan.Days[day] {
			records = append(records, models.DutySlotRecord{
				DutyScheduleID: record.ID,
				Day:            day,
				Serial:         slot.Serial,
				Hall:           slot.Hall,
				Grade:          slot.Grade,
				Subject:        slot.Subject,
				FirstHalf:      slot.FirstHalf,
				SecondHalf:     slot.SecondHalf,
				Conflict:       slot.Conflict,
			})
		}
	}
	if err = s.slots.InsertBatch(ctx, tx, records); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist duty slots")
		return nil, err
	}

	if req.Publish {
		now := s.now().UTC()
		if err = s.schedules.MarkPublished(ctx, tx, record.ID, now); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish duty schedule")
			return nil, err
		}
		record.Status = models.DutyScheduleStatusPublished
		record.PublishedAt = &now
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit duty schedule transaction")
		return nil, err
	}

	s.store.Delete(req.ProposalID)
	s.logger.Info("duty schedule saved",
		zap.String("schedule_id", record.ID),
		zap.Int("version", record.Version),
		zap.String("status", string(record.Status)),
	)
	return &dto.SaveDutyScheduleResponse{ScheduleID: record.ID, Version: record.Version, Status: record.Status}, nil
}

// List returns the saved versions of an exam period, newest first.
func (s *DutyScheduleService) List(ctx context.Context, periodID string) (*models.DutyScheduleSummary, error) {
	if _, err := loadExamPeriod(ctx, s.periods, periodID); err != nil {
		return nil, err
	}
	list, err := s.schedules.ListByPeriod(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list duty schedules")
	}
	summary := &models.DutyScheduleSummary{
		ExamPeriodID: periodID,
		Versions:     make([]models.DutyScheduleVersion, 0, len(list)),
	}
	for _, item := range list {
		if summary.ActiveID == nil && item.Status == models.DutyScheduleStatusPublished {
			id := item.ID
			summary.ActiveID = &id
		}
		summary.Versions = append(summary.Versions, models.DutyScheduleVersion{
			ID:          item.ID,
			Version:     item.Version,
			Status:      item.Status,
			Stats:       s.decodeMeta(item).Stats,
			CreatedAt:   item.CreatedAt,
			PublishedAt: item.PublishedAt,
		})
	}
	return summary, nil
}

// Detail returns a stored schedule with its slots. The boolean reports whether
// the result came from cache.
func (s *DutyScheduleService) Detail(ctx context.Context, scheduleID string) (*models.DutyScheduleDetail, bool, error) {
	key := dutyScheduleCacheKey(scheduleID)
	if s.cache != nil {
		var cached models.DutyScheduleDetail
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	record, err := s.find(ctx, scheduleID)
	if err != nil {
		return nil, false, err
	}
	slots, err := s.slots.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list duty slots")
	}

	detail := &models.DutyScheduleDetail{
		Schedule: *record,
		Meta:     s.decodeMeta(*record),
		Days:     make(map[int][]models.DutySlot, models.MaxExamDays),
	}
	for day := 1; day <= models.MaxExamDays; day++ {
		detail.Days[day] = []models.DutySlot{}
	}
	for _, slot := range slots {
		detail.Days[slot.Day] = append(detail.Days[slot.Day], slot.Slot())
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, detail, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("duty schedule cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return detail, false, nil
}

// Publish marks a draft schedule as published.
func (s *DutyScheduleService) Publish(ctx context.Context, scheduleID string) (*models.DutySchedule, error) {
	record, err := s.find(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if record.Status == models.DutyScheduleStatusPublished {
		return nil, appErrors.ErrPublished
	}
	now := s.now().UTC()
	if err := s.schedules.MarkPublished(ctx, nil, scheduleID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "duty schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish duty schedule")
	}
	record.Status = models.DutyScheduleStatusPublished
	record.PublishedAt = &now
	record.UpdatedAt = now
	s.evict(ctx, scheduleID)
	return record, nil
}

// Delete removes a draft schedule version.
func (s *DutyScheduleService) Delete(ctx context.Context, scheduleID string) error {
	record, err := s.find(ctx, scheduleID)
	if err != nil {
		return err
	}
	if record.Status != models.DutyScheduleStatusDraft {
		return appErrors.Clone(appErrors.ErrPublished, "only draft schedules can be deleted")
	}
	if err := s.schedules.Delete(ctx, scheduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "duty schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete duty schedule")
	}
	s.evict(ctx, scheduleID)
	return nil
}

func (s *DutyScheduleService) find(ctx context.Context, scheduleID string) (*models.DutySchedule, error) {
	if scheduleID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schedule id is required")
	}
	record, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "duty schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load duty schedule")
	}
	return record, nil
}

func (s *DutyScheduleService) decodeMeta(record models.DutySchedule) models.DutyScheduleMeta {
	var meta models.DutyScheduleMeta
	if len(record.Meta) == 0 {
		return meta
	}
	if err := json.Unmarshal(record.Meta, &meta); err != nil {
		s.logger.Warn("undecodable duty schedule meta", zap.String("schedule_id", record.ID), zap.Error(err))
	}
	return meta
}

func (s *DutyScheduleService) evict(ctx context.Context, scheduleID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Evict(ctx, dutyScheduleCacheKey(scheduleID))
}

func dutyScheduleCacheKey(scheduleID string) string {
	return fmt.Sprintf("duty:schedule:%s", scheduleID)
}

type dutyProposal struct {
	ProposalID   string
	ExamPeriodID string
	GapFillScope GapFillScope
	Plan         *models.DutyPlan
	RequestedAt  time.Time
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]dutyProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]dutyProposal),
	}
}

func (s *proposalStore) Save(proposal dutyProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpired()
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string) (dutyProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return dutyProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return dutyProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// purgeExpired drops stale proposals; callers hold the write lock.
func (s *proposalStore) purgeExpired() {
	for id, proposal := range s.items {
		if time.Since(proposal.RequestedAt) > s.ttl {
			delete(s.items, id)
		}
	}
}
