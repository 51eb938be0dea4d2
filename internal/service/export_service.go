package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ethicsline/ethicsline-api/internal/dto"
	"github.com/ethicsline/ethicsline-api/internal/models"
	"github.com/ethicsline/ethicsline-api/internal/repository"
	appErrors "github.com/ethicsline/ethicsline-api/pkg/errors"
	"github.com/ethicsline/ethicsline-api/pkg/export"
	"github.com/ethicsline/ethicsline-api/pkg/jobs"
	"github.com/ethicsline/ethicsline-api/pkg/storage"
)

// csvHeaders fixes the CSV column order.
var csvHeaders = []string{"Protocol", "Created At", "Status", "Unit", "Category", "Incident Date", "Location", "Description", "Anonymous", "Attachments"}

// htmlHeaders fixes the printable table columns.
var htmlHeaders = []string{"Protocol", "Date", "Unit", "Category", "Location", "Status"}

type exportCaseRepo interface {
	List(ctx context.Context, filter models.CaseFilter) ([]models.Case, error)
}

type exportJobRepo interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type titledRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ExportedFile is the outcome of a synchronous export.
type ExportedFile struct {
	FileName    string
	ContentType string
	Payload     []byte
}

// ExportService renders case exports. Small exports render inline; large
// ones run as background jobs whose results land in file storage behind
// signed URLs.
type ExportService struct {
	cases    exportCaseRepo
	jobsRepo exportJobRepo
	audits   auditWriter
	storage  exportFileStorage
	signer   *storage.SignedURLSigner
	queue    jobEnqueuer
	metrics  *MetricsService
	csv      csvRenderer
	html     titledRenderer
	pdf      titledRenderer
	logger   *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(cases exportCaseRepo, jobsRepo exportJobRepo, audits auditWriter, fileStorage exportFileStorage, signer *storage.SignedURLSigner, queue jobEnqueuer, metrics *MetricsService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		cases:    cases,
		jobsRepo: jobsRepo,
		audits:   audits,
		storage:  fileStorage,
		signer:   signer,
		queue:    queue,
		metrics:  metrics,
		csv:      export.NewCSVExporter(),
		html:     export.NewHTMLExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// Export renders the filtered case set synchronously.
func (s *ExportService) Export(ctx context.Context, claims *models.JWTClaims, req dto.ExportRequest) (*ExportedFile, error) {
	if !models.ValidExportFormat(req.Format) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	cases, err := s.listCases(ctx, models.ExportJobParams{Format: req.Format, Status: req.Status, Search: req.Search, Protocols: req.Protocols})
	if err != nil {
		return nil, err
	}

	payload, contentType, err := s.render(req.Format, cases)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.metrics.RecordExport(string(req.Format))
	s.recordExportAudit(ctx, claims, req.Format, len(cases))
	return &ExportedFile{
		FileName:    exportFileName(req.Format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

// Enqueue creates a background export job and hands it to the worker queue.
func (s *ExportService) Enqueue(ctx context.Context, claims *models.JWTClaims, req dto.ExportRequest) (dto.ExportJobResponse, error) {
	if !models.ValidExportFormat(req.Format) {
		return dto.ExportJobResponse{}, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	job := &models.ExportJob{
		ID:     uuid.NewString(),
		Params: models.ExportJobParams{Format: req.Format, Status: req.Status, Search: req.Search, Protocols: req.Protocols},
		Status: models.ExportStatusQueued,
	}
	if claims != nil {
		job.CreatedBy = claims.UserID
	}
	if err := s.jobsRepo.Create(ctx, job); err != nil {
		return dto.ExportJobResponse{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "case_export", Payload: job.ID}); err != nil {
		message := err.Error()
		failed := models.ExportStatusFailed
		_ = s.jobsRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &failed, ErrorMessage: &message})
		return dto.ExportJobResponse{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}

	return dto.ExportJobResponse{ID: job.ID, Status: job.Status}, nil
}

// JobStatus reports a background job to the requesting reviewer.
func (s *ExportService) JobStatus(ctx context.Context, id string) (dto.ExportJobResponse, error) {
	job, err := s.jobsRepo.GetByID(ctx, id)
	if err != nil {
		return dto.ExportJobResponse{}, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return dto.ExportJobResponse{ID: job.ID, Status: job.Status, ResultURL: job.ResultURL, Error: job.ErrorMessage}, nil
}

// ProcessJob is the queue handler: it renders the export, stores the file
// and records the signed download URL on the job row.
func (s *ExportService) ProcessJob(ctx context.Context, queued jobs.Job) error {
	jobID, ok := queued.Payload.(string)
	if !ok || jobID == "" {
		return fmt.Errorf("export job payload must be a job id")
	}

	job, err := s.jobsRepo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}

	processing := models.ExportStatusProcessing
	if err := s.jobsRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		s.logger.Warn("failed to mark export job processing", zap.String("job_id", job.ID), zap.Error(err))
	}

	result, err := s.generate(ctx, job)
	now := time.Now().UTC()
	if err != nil {
		message := err.Error()
		failed := models.ExportStatusFailed
		if updateErr := s.jobsRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &failed, ErrorMessage: &message, FinishedAt: &now}); updateErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return err
	}

	finished := models.ExportStatusFinished
	if err := s.jobsRepo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &finished, ResultURL: &result, FinishedAt: &now}); err != nil {
		return fmt.Errorf("finalize export job %s: %w", job.ID, err)
	}
	s.metrics.RecordExport(string(job.Params.Format))
	s.logger.Info("export job finished", zap.String("job_id", job.ID), zap.String("format", string(job.Params.Format)))
	return nil
}

// OpenResult validates a download token and opens the stored file.
func (s *ExportService) OpenResult(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, nil
}

// Cleanup removes rendered files older than the TTL.
func (s *ExportService) Cleanup(ttl time.Duration) {
	deleted, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("export files cleaned up", zap.Int("count", len(deleted)))
	}
}

func (s *ExportService) generate(ctx context.Context, job *models.ExportJob) (string, error) {
	cases, err := s.listCases(ctx, job.Params)
	if err != nil {
		return "", err
	}

	payload, _, err := s.render(job.Params.Format, cases)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s-%s", job.ID, exportFileName(job.Params.Format))
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return "", fmt.Errorf("store export file: %w", err)
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return "", fmt.Errorf("sign export url: %w", err)
	}
	return token, nil
}

func (s *ExportService) listCases(ctx context.Context, params models.ExportJobParams) ([]models.Case, error) {
	cases, err := s.cases.List(ctx, models.CaseFilter{Status: params.Status, Search: params.Search})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cases for export")
	}
	if len(params.Protocols) == 0 {
		return cases, nil
	}

	wanted := make(map[string]struct{}, len(params.Protocols))
	for _, protocol := range params.Protocols {
		wanted[protocol] = struct{}{}
	}
	filtered := cases[:0]
	for _, c := range cases {
		if _, ok := wanted[c.Protocol]; ok {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func (s *ExportService) render(format models.ExportFormat, cases []models.Case) ([]byte, string, error) {
	switch format {
	case models.ExportFormatCSV:
		payload, err := s.csv.Render(BuildCSVDataset(cases))
		return payload, "text/csv", err
	case models.ExportFormatHTML:
		payload, err := s.html.Render(BuildHTMLDataset(cases), "Case export")
		return payload, "text/html", err
	case models.ExportFormatPDF:
		payload, err := s.pdf.Render(BuildHTMLDataset(cases), "Case export")
		return payload, "application/pdf", err
	}
	return nil, "", fmt.Errorf("unsupported format %s", format)
}

func (s *ExportService) recordExportAudit(ctx context.Context, claims *models.JWTClaims, format models.ExportFormat, count int) {
	if s.audits == nil {
		return
	}
	log := &models.AuditLog{
		Action:    models.AuditActionExport,
		Resource:  "case",
		NewValues: []byte(fmt.Sprintf(`{"format":%q,"cases":%d}`, format, count)),
	}
	if claims != nil {
		log.UserID = &claims.UserID
	}
	if err := s.audits.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record export audit log", zap.Error(err))
	}
}

// BuildCSVDataset projects cases into the fixed CSV column layout.
func BuildCSVDataset(cases []models.Case) export.Dataset {
	rows := make([]map[string]string, 0, len(cases))
	for i := range cases {
		c := &cases[i]
		rows = append(rows, map[string]string{
			"Protocol":      c.Protocol,
			"Created At":    c.CreatedAt.UTC().Format(time.RFC3339),
			"Status":        c.Status.Label(),
			"Unit":          c.Unit,
			"Category":      c.Category,
			"Incident Date": c.Answers.IncidentDate,
			"Location":      c.Answers.Location,
			"Description":   c.Answers.Description,
			"Anonymous":     strconv.FormatBool(c.Anonymous),
			"Attachments":   strconv.Itoa(len(c.Attachments)),
		})
	}
	return export.Dataset{Headers: csvHeaders, Rows: rows}
}

// BuildHTMLDataset projects cases into the printable table layout.
func BuildHTMLDataset(cases []models.Case) export.Dataset {
	rows := make([]map[string]string, 0, len(cases))
	for i := range cases {
		c := &cases[i]
		rows = append(rows, map[string]string{
			"Protocol": c.Protocol,
			"Date":     c.CreatedAt.UTC().Format("2006-01-02"),
			"Unit":     c.Unit,
			"Category": c.Category,
			"Location": c.Answers.Location,
			"Status":   c.Status.Label(),
		})
	}
	return export.Dataset{Headers: htmlHeaders, Rows: rows}
}

func exportFileName(format models.ExportFormat) string {
	stamp := time.Now().UTC().Format("20060102-150405")
	ext := strings.ToLower(string(format))
	return fmt.Sprintf("cases-%s.%s", stamp, ext)
}
