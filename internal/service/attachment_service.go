package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ethicsline/ethicsline-api/internal/models"
	"github.com/ethicsline/ethicsline-api/pkg/timeout"
)

type blobStore interface {
	Save(filename string, data []byte) (string, error)
	DeletePrefix(prefix string) error
}

type urlSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
}

// AttachmentUpload is one file handed to the pipeline: the declared metadata
// plus its bytes.
type AttachmentUpload struct {
	Name     string
	MimeType string
	Data     []byte
}

// AttachmentResult reports what the pipeline did with a submission's files.
// Excluded files never reached the blob store; failed files were attempted
// but their upload did not finish in time or errored.
type AttachmentResult struct {
	Uploaded []models.Attachment
	Excluded []string
	Failed   []string
}

// AttachmentService filters oversized files and uploads the rest
// concurrently, each upload bounded by its own deadline. A failed upload
// never fails the submission.
type AttachmentService struct {
	blobs         blobStore
	signer        urlSigner
	logger        *zap.Logger
	maxBytes      int64
	uploadTimeout time.Duration
}

// NewAttachmentService constructs the pipeline.
func NewAttachmentService(blobs blobStore, signer urlSigner, logger *zap.Logger, maxBytes int64, uploadTimeout time.Duration) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBytes <= 0 {
		maxBytes = 8 * 1024 * 1024
	}
	return &AttachmentService{
		blobs:         blobs,
		signer:        signer,
		logger:        logger,
		maxBytes:      maxBytes,
		uploadTimeout: uploadTimeout,
	}
}

// MaxBytes exposes the size ceiling for intake option responses.
func (s *AttachmentService) MaxBytes() int64 {
	return s.maxBytes
}

// Process runs the pipeline for one submission. Files over the ceiling are
// excluded up front; the remainder upload concurrently under per-file
// deadlines. The returned order of uploaded descriptors follows the input.
func (s *AttachmentService) Process(ctx context.Context, protocol string, uploads []AttachmentUpload) AttachmentResult {
	result := AttachmentResult{}
	if len(uploads) == 0 {
		return result
	}

	eligible := make([]AttachmentUpload, 0, len(uploads))
	for _, upload := range uploads {
		if int64(len(upload.Data)) > s.maxBytes {
			s.logger.Info("attachment excluded by size ceiling",
				zap.String("protocol", protocol),
				zap.String("name", upload.Name),
				zap.Int("size", len(upload.Data)),
				zap.Int64("max_bytes", s.maxBytes))
			result.Excluded = append(result.Excluded, upload.Name)
			continue
		}
		eligible = append(eligible, upload)
	}

	uploaded := make([]*models.Attachment, len(eligible))
	failed := make([]string, len(eligible))

	var wg sync.WaitGroup
	for i, upload := range eligible {
		wg.Add(1)
		go func(idx int, upload AttachmentUpload) {
			defer wg.Done()
			descriptor, err := s.uploadOne(ctx, protocol, upload)
			if err != nil {
				s.logger.Warn("attachment upload failed",
					zap.String("protocol", protocol),
					zap.String("name", upload.Name),
					zap.Error(err))
				failed[idx] = upload.Name
				return
			}
			uploaded[idx] = descriptor
		}(i, upload)
	}
	wg.Wait()

	for i := range eligible {
		if uploaded[i] != nil {
			result.Uploaded = append(result.Uploaded, *uploaded[i])
		} else if failed[i] != "" {
			result.Failed = append(result.Failed, failed[i])
		}
	}
	return result
}

func (s *AttachmentService) uploadOne(ctx context.Context, protocol string, upload AttachmentUpload) (*models.Attachment, error) {
	relPath := blobPath(protocol, upload.Name)
	_, err := timeout.Guard(ctx, s.uploadTimeout, "attachment upload", func(ctx context.Context) (string, error) {
		return s.blobs.Save(relPath, upload.Data)
	})
	if err != nil {
		return nil, err
	}

	descriptor := &models.Attachment{
		Name:        upload.Name,
		Size:        int64(len(upload.Data)),
		MimeType:    upload.MimeType,
		StoragePath: relPath,
	}
	if s.signer != nil {
		token, _, err := s.signer.Generate(protocol, relPath)
		if err != nil {
			s.logger.Warn("failed to sign attachment url", zap.String("protocol", protocol), zap.Error(err))
		} else {
			descriptor.URL = token
		}
	}
	return descriptor, nil
}

// Cleanup removes every blob stored for a protocol. Used when the case
// itself is deleted.
func (s *AttachmentService) Cleanup(protocol string) error {
	if err := s.blobs.DeletePrefix(filepath.Join("cases", protocol)); err != nil {
		return fmt.Errorf("cleanup attachments for %s: %w", protocol, err)
	}
	return nil
}

func blobPath(protocol, name string) string {
	stamp := time.Now().UnixMilli()
	return filepath.Join("cases", protocol, fmt.Sprintf("%d-%s", stamp, sanitizeFileName(name)))
}

// sanitizeFileName keeps letters, digits, dot, underscore and hyphen and
// drops everything else, so reporter-supplied names can never escape the
// blob directory.
func sanitizeFileName(name string) string {
	base := filepath.Base(name)
	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "file"
	}
	return cleaned
}
