package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/watchtower-api/internal/dto"
	"github.com/noah-isme/watchtower-api/internal/models"
	appErrors "github.com/noah-isme/watchtower-api/pkg/errors"
)

func TestDutyScheduleServiceGenerate(t *testing.T) {
	svc, _ := newDutyScheduleFixture(t, dutyFixtureConfig{})

	resp, err := svc.Generate(context.Background(), "period-1", dto.GenerateDutyScheduleRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ProposalID)
	assert.Equal(t, string(GapFillAllGrades), resp.GapFillScope)
	assert.Len(t, resp.Days, models.MaxExamDays)
	require.Len(t, resp.Days[1], 3)
	assert.Equal(t, 3, resp.Stats.Sessions)
	assert.Equal(t, 6, resp.Stats.AssignedHalves+resp.Stats.UnassignedHalves)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
}

func TestDutyScheduleServiceGenerateScopeOverride(t *testing.T) {
	svc, _ := newDutyScheduleFixture(t, dutyFixtureConfig{})

	resp, err := svc.Generate(context.Background(), "period-1", dto.GenerateDutyScheduleRequest{GapFillScope: "first_grade"})
	require.NoError(t, err)
	assert.Equal(t, string(GapFillFirstGrade), resp.GapFillScope)

	_, err = svc.Generate(context.Background(), "period-1", dto.GenerateDutyScheduleRequest{GapFillScope: "everyone"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDutyScheduleServiceGeneratePreconditions(t *testing.T) {
	t.Run("empty roster", func(t *testing.T) {
		svc, _ := newDutyScheduleFixture(t, dutyFixtureConfig{teachers: []models.Teacher{}})
		_, err := svc.Generate(context.Background(), "period-1", dto.GenerateDutyScheduleRequest{})
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
		assert.Equal(t, "please submit teacher data first", appErr.Message)
	})
	t.Run("empty timetable", func(t *testing.T) {
		svc, _ := newDutyScheduleFixture(t, dutyFixtureConfig{sessions: []models.ExamSession{}})
		_, err := svc.Generate(context.Background(), "period-1", dto.GenerateDutyScheduleRequest{})
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
		assert.Equal(t, "please submit exam routine with at least one exam defined", appErr.Message)
	})
	t.Run("unknown period", func(t *testing.T) {
		svc, _ := newDutyScheduleFixture(t, dutyFixtureConfig{})
		_, err := svc.Generate(context.Background(), "missing", dto.GenerateDutyScheduleRequest{})
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	})
}

func TestDutyScheduleServiceGeneratePlannerFault(t *testing.T) {
	svc, _ := newDutyScheduleFixture(t, dutyFixtureConfig{})
	svc.plan = func([]models.ExamSession, []models.Teacher, PlannerOptions) (*models.DutyPlan, error) {
		return nil, errors.New("plan duties: index out of range")
	}

	_, err := svc.Generate(context.Background(), "period-1", dto.GenerateDutyScheduleRequest{})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	assert.Equal(t, "failed to generate duty schedule", appErr.Message)
}

func TestDutyScheduleServiceSaveAndPublish(t *testing.T) {
	svc, deps := newDutyScheduleFixture(t, dutyFixtureConfig{})
	resp, err := svc.Generate(context.Background(), "period-1", dto.GenerateDutyScheduleRequest{})
	require.NoError(t, err)

	deps.mock.ExpectBegin()
	deps.mock.ExpectCommit()

	saved, err := svc.Save(context.Background(), dto.SaveDutyScheduleRequest{ProposalID: resp.ProposalID, Publish: true}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)
	assert.Equal(t, models.DutyScheduleStatusPublished, saved.Status)
	assert.Len(t, deps.slots.inserted, 3)
	assert.Equal(t, "admin-1", deps.schedules.items[saved.ScheduleID].CreatedBy)
	assert.NoError(t, deps.mock.ExpectationsWereMet())

	_, err = svc.Save(context.Background(), dto.SaveDutyScheduleRequest{ProposalID: resp.ProposalID}, "admin-1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDutyScheduleServiceSaveRollsBack(t *testing.T) {
	svc, deps := newDutyScheduleFixture(t, dutyFixtureConfig{})
	deps.slots.insertErr = errors.New("disk full")
	resp, err := svc.Generate(context.Background(), "period-1", dto.GenerateDutyScheduleRequest{})
	require.NoError(t, err)

	deps.mock.ExpectBegin()
	deps.mock.ExpectRollback()

	_, err = svc.Save(context.Background(), dto.SaveDutyScheduleRequest{ProposalID: resp.ProposalID}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.NoError(t, deps.mock.ExpectationsWereMet())

	_, ok := svc.store.Get(resp.ProposalID)
	assert.True(t, ok, "failed save keeps the proposal")
}

func TestDutyScheduleServiceSaveExpiredProposal(t *testing.T) {
	svc, _ := newDutyScheduleFixture(t, dutyFixtureConfig{})
	svc.store.Save(dutyProposal{
		ProposalID:   "3f1a4c3e-0b4e-4f7e-9a51-0d1c6f0e2a11",
		ExamPeriodID: "period-1",
		Plan:         &models.DutyPlan{},
		RequestedAt:  time.Now().Add(-time.Hour),
	})

	_, err := svc.Save(context.Background(), dto.SaveDutyScheduleRequest{ProposalID: "3f1a4c3e-0b4e-4f7e-9a51-0d1c6f0e2a11"}, "admin-1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDutyScheduleServiceListMarksActiveVersion(t *testing.T) {
	svc, deps := newDutyScheduleFixture(t, dutyFixtureConfig{})
	published := time.Now()
	deps.schedules.list = []models.DutySchedule{
		{ID: "v3", ExamPeriodID: "period-1", Version: 3, Status: models.DutyScheduleStatusDraft, Meta: types.JSONText(`{"stats":{"sessions":9}}`)},
		{ID: "v2", ExamPeriodID: "period-1", Version: 2, Status: models.DutyScheduleStatusPublished, PublishedAt: &published},
		{ID: "v1", ExamPeriodID: "period-1", Version: 1, Status: models.DutyScheduleStatusPublished, PublishedAt: &published},
	}

	summary, err := svc.List(context.Background(), "period-1")
	require.NoError(t, err)
	require.NotNil(t, summary.ActiveID)
	assert.Equal(t, "v2", *summary.ActiveID)
	require.Len(t, summary.Versions, 3)
	assert.Equal(t, 9, summary.Versions[0].Stats.Sessions)
}

func TestDutyScheduleServiceDetailUsesCache(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	svc, deps := newDutyScheduleFixture(t, dutyFixtureConfig{cache: NewCacheService(cacheRepo, nil, time.Minute, nil, true)})
	deps.schedules.items["sched-1"] = &models.DutySchedule{ID: "sched-1", ExamPeriodID: "period-1", Version: 1, Status: models.DutyScheduleStatusDraft, Meta: types.JSONText(`{"gap_fill_scope":"all_grades"}`)}
	deps.slots.stored = []models.DutySlotRecord{
		{DutyScheduleID: "sched-1", Day: 2, Serial: 1, Hall: "7A", Grade: 7, Subject: "Math", FirstHalf: models.AssignedTo("Indra")},
	}

	detail, hit, err := svc.Detail(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, detail.Days, models.MaxExamDays)
	require.Len(t, detail.Days[2], 1)
	assert.Equal(t, "all_grades", detail.Meta.GapFillScope)

	detail, hit, err = svc.Detail(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, models.AssignedTo("Indra"), detail.Days[2][0].FirstHalf)
	assert.False(t, detail.Days[2][0].SecondHalf.Assigned())
}

func TestDutyScheduleServicePublishAndDelete(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	svc, deps := newDutyScheduleFixture(t, dutyFixtureConfig{cache: NewCacheService(cacheRepo, nil, time.Minute, nil, true)})
	deps.schedules.items["sched-1"] = &models.DutySchedule{ID: "sched-1", Status: models.DutyScheduleStatusDraft}

	published, err := svc.Publish(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.Equal(t, models.DutyScheduleStatusPublished, published.Status)
	assert.Contains(t, cacheRepo.deleted, "duty:schedule:sched-1")

	_, err = svc.Publish(context.Background(), "sched-1")
	assert.Equal(t, appErrors.ErrPublished.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "sched-1")
	assert.Equal(t, appErrors.ErrPublished.Code, appErrors.FromError(err).Code)

	deps.schedules.items["sched-2"] = &models.DutySchedule{ID: "sched-2", Status: models.DutyScheduleStatusDraft}
	require.NoError(t, svc.Delete(context.Background(), "sched-2"))
	_, exists := deps.schedules.items["sched-2"]
	assert.False(t, exists)

	err = svc.Delete(context.Background(), "sched-404")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProposalStoreExpires(t *testing.T) {
	store := newProposalStore(time.Minute)
	store.Save(dutyProposal{ProposalID: "fresh", RequestedAt: time.Now()})
	store.Save(dutyProposal{ProposalID: "stale", RequestedAt: time.Now().Add(-2 * time.Minute)})

	_, ok := store.Get("fresh")
	assert.True(t, ok)
	_, ok = store.Get("stale")
	assert.False(t, ok)
}

// --- Fixtures ---

type dutyFixtureConfig struct {
	teachers []models.Teacher
	sessions []models.ExamSession
	cache    *CacheService
}

type dutyFixtureDeps struct {
	mock      sqlmock.Sqlmock
	schedules *dutyScheduleRepoStub
	slots     *dutySlotRepoStub
}

func newDutyScheduleFixture(t *testing.T, cfg dutyFixtureConfig) (*DutyScheduleService, dutyFixtureDeps) {
	teachers := cfg.teachers
	if teachers == nil {
		teachers = []models.Teacher{
			{Name: "Indra", Grade: 7, Subjects: []string{models.SubjectMath}},
			{Name: "Janak", Grade: 7, Subjects: []string{models.SubjectScience}},
			{Name: "Kamala", Grade: 7, Subjects: []string{models.SubjectNepali}},
			{Name: "Laxmi", Grade: 7, Subjects: []string{models.SubjectEnglish}},
		}
	}
	sessions := cfg.sessions
	if sessions == nil {
		sessions = sessionsFor(1, 7, models.SubjectMath)
	}
	tx, mock := newTxProviderMock(t)
	schedules := &dutyScheduleRepoStub{items: map[string]*models.DutySchedule{}}
	slots := &dutySlotRepoStub{}
	svc := NewDutyScheduleService(DutyScheduleDeps{
		Periods:   &examPeriodRepoStub{items: map[string]*models.ExamPeriod{"period-1": {ID: "period-1", Name: "First Terminal"}}},
		Roster:    rosterReaderStub{teachers: teachers},
		Timetable: sessionReaderStub{sessions: sessions},
		Schedules: schedules,
		Slots:     slots,
		Tx:        tx,
		Cache:     cfg.cache,
	}, nil, nil, DutyScheduleConfig{ProposalTTL: 30 * time.Minute})
	return svc, dutyFixtureDeps{mock: mock, schedules: schedules, slots: slots}
}

type rosterReaderStub struct {
	teachers []models.Teacher
}

func (s rosterReaderStub) Teachers(ctx context.Context, periodID string) ([]models.Teacher, error) {
	return s.teachers, nil
}

type sessionReaderStub struct {
	sessions []models.ExamSession
}

func (s sessionReaderStub) Sessions(ctx context.Context, periodID string) ([]models.ExamSession, error) {
	return s.sessions, nil
}

type dutyScheduleRepoStub struct {
	items map[string]*models.DutySchedule
	list  []models.DutySchedule
}

func (s *dutyScheduleRepoStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, schedule *models.DutySchedule) error {
	schedule.ID = "sched-new"
	schedule.Version = 1
	copied := *schedule
	s.items[schedule.ID] = &copied
	return nil
}

func (s *dutyScheduleRepoStub) ListByPeriod(ctx context.Context, periodID string) ([]models.DutySchedule, error) {
	return s.list, nil
}

func (s *dutyScheduleRepoStub) FindByID(ctx context.Context, id string) (*models.DutySchedule, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *item
	return &copied, nil
}

func (s *dutyScheduleRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.items, id)
	return nil
}

func (s *dutyScheduleRepoStub) MarkPublished(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	item, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Status = models.DutyScheduleStatusPublished
	item.PublishedAt = &at
	return nil
}

type dutySlotRepoStub struct {
	inserted  []models.DutySlotRecord
	stored    []models.DutySlotRecord
	insertErr error
}

func (s *dutySlotRepoStub) InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.DutySlotRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, slots...)
	return nil
}

func (s *dutySlotRepoStub) ListBySchedule(ctx context.Context, scheduleID string) ([]models.DutySlotRecord, error) {
	return s.stored, nil
}

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}
