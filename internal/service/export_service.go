package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/watchtower-api/internal/models"
	"github.com/noah-isme/watchtower-api/pkg/export"
	"github.com/noah-isme/watchtower-api/pkg/storage"
)

const (
	exportTitle    = "Watchtower for Exams - Schedule"
	exportSubtitle = "Invigilation Duties"
)

type dutyScheduleReader interface {
	Detail(ctx context.Context, scheduleID string) (*models.DutyScheduleDetail, bool, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type documentRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders saved duty schedules and persists the files.
type ExportService struct {
	schedules dutyScheduleReader
	storage   fileStorage
	csv       documentRenderer
	pdf       documentRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the pkg/export defaults.
func NewExportService(schedules dutyScheduleReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf documentRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		schedules: schedules,
		storage:   store,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Generate renders the job's schedule and stores the result behind a signed token.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	detail, _, err := s.schedules.Detail(ctx, job.DutyScheduleID)
	if err != nil {
		return nil, fmt.Errorf("load duty schedule %s: %w", job.DutyScheduleID, err)
	}

	doc := BuildScheduleDocument(detail, job.Params)
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(doc)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(doc)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job, detail.Schedule.Version), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Debug("duty schedule exported",
		zap.String("job_id", job.ID),
		zap.String("duty_schedule_id", job.DutyScheduleID),
		zap.String("path", relPath),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (*storage.SignedToken, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob, version int) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("duty_schedule_%s_v%d_%s.%s", sanitizeFilename(job.DutyScheduleID), version, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

var dutyTableHeaders = []string{"S.N", "Exam Hall", "1st Half", "2nd Half"}

// BuildScheduleDocument lays a schedule out as printed on the notice board: one
// section per exam day with a table for each grade cohort sitting that day, then
// the duty distribution when requested.
func BuildScheduleDocument(detail *models.DutyScheduleDetail, params models.ExportJobParams) export.Document {
	doc := export.Document{
		Title:    exportTitle,
		Subtitle: exportSubtitle,
	}
	if detail == nil {
		return doc
	}
	if detail.Schedule.Version > 0 {
		doc.Subtitle = fmt.Sprintf("%s (version %d, %s)", exportSubtitle, detail.Schedule.Version, strings.ToLower(string(detail.Schedule.Status)))
	}

	for day := 1; day <= models.MaxExamDays; day++ {
		slots := detail.Days[day]
		if len(slots) == 0 || !params.Includes(day) {
			continue
		}
		lower, upper := splitByCohort(slots)
		section := export.Section{Heading: fmt.Sprintf("Day %d", day)}
		if len(lower) > 0 {
			section.Tables = append(section.Tables, dutyTable("Grades 4-6", lower))
		}
		if len(upper) > 0 {
			section.Tables = append(section.Tables, dutyTable("Grades 7-10", upper))
		}
		doc.Sections = append(doc.Sections, section)
	}

	if params.IncludeDistribution {
		doc.Sections = append(doc.Sections, export.Section{
			Heading: "Duty Distribution",
			Tables: []export.Table{
				distributionTable("Grades 4-6", detail.Meta.Distribution.Lower),
				distributionTable("Grades 7-10", detail.Meta.Distribution.Upper),
			},
		})
	}
	return doc
}

func splitByCohort(slots []models.DutySlot) (lower, upper []models.DutySlot) {
	for _, slot := range slots {
		if slot.Grade <= models.LowerCohortMaxGrade {
			lower = append(lower, slot)
		} else {
			upper = append(upper, slot)
		}
	}
	return lower, upper
}

func dutyTable(caption string, slots []models.DutySlot) export.Table {
	rows := make([][]string, 0, len(slots))
	for i, slot := range slots {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("%s (%s)", slot.Subject, slot.Hall),
			slot.FirstHalf.String(),
			slot.SecondHalf.String(),
		})
	}
	return export.Table{
		Caption: caption,
		Headers: dutyTableHeaders,
		Widths:  []float64{0.5, 2, 2, 2},
		Rows:    rows,
	}
}

func distributionTable(caption string, duties []models.TeacherDuty) export.Table {
	rows := make([][]string, 0, len(duties))
	for _, duty := range duties {
		rows = append(rows, []string{duty.Name, strconv.Itoa(duty.Grade), strconv.Itoa(duty.Duties)})
	}
	return export.Table{
		Caption: caption,
		Headers: []string{"Teacher", "Grade", "Duties"},
		Widths:  []float64{3, 1, 1},
		Rows:    rows,
	}
}
