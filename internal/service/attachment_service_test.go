package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBlobStore struct {
	mu      sync.Mutex
	saved   map[string][]byte
	saveErr error
	delay   time.Duration
	deleted []string
}

func (f *fakeBlobStore) Save(filename string, data []byte) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[filename] = data
	return filename, nil
}

func (f *fakeBlobStore) DeletePrefix(prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, prefix)
	return nil
}

type fakeSigner struct{}

func (fakeSigner) Generate(resourceID, relPath string) (string, time.Time, error) {
	return resourceID + ":" + relPath, time.Now().Add(time.Hour), nil
}

func TestAttachmentServiceExcludesOversizedAndUploadsRest(t *testing.T) {
	blobs := &fakeBlobStore{}
	svc := NewAttachmentService(blobs, fakeSigner{}, zap.NewNop(), 8*1024*1024, time.Second)

	big := AttachmentUpload{Name: "dump.bin", Data: bytes.Repeat([]byte{1}, 9*1024*1024)}
	small := AttachmentUpload{Name: "evidence.pdf", MimeType: "application/pdf", Data: bytes.Repeat([]byte{2}, 1024*1024)}

	result := svc.Process(context.Background(), "ABCD-1234", []AttachmentUpload{big, small})

	assert.Equal(t, []string{"dump.bin"}, result.Excluded)
	assert.Empty(t, result.Failed)
	require.Len(t, result.Uploaded, 1)
	assert.Equal(t, "evidence.pdf", result.Uploaded[0].Name)
	assert.EqualValues(t, 1024*1024, result.Uploaded[0].Size)
	assert.NotEmpty(t, result.Uploaded[0].URL)
	assert.Len(t, blobs.saved, 1)
}

func TestAttachmentServiceSizeCeilingBoundary(t *testing.T) {
	blobs := &fakeBlobStore{}
	svc := NewAttachmentService(blobs, fakeSigner{}, zap.NewNop(), 8*1024*1024, time.Second)

	atLimit := AttachmentUpload{Name: "exact.bin", Data: bytes.Repeat([]byte{1}, 8*1024*1024)}
	oneOver := AttachmentUpload{Name: "over.bin", Data: bytes.Repeat([]byte{2}, 8*1024*1024+1)}

	result := svc.Process(context.Background(), "ABCD-1234", []AttachmentUpload{atLimit, oneOver})

	assert.Equal(t, []string{"over.bin"}, result.Excluded)
	assert.Empty(t, result.Failed)
	require.Len(t, result.Uploaded, 1)
	assert.Equal(t, "exact.bin", result.Uploaded[0].Name)
	assert.EqualValues(t, 8*1024*1024, result.Uploaded[0].Size)
}

func TestAttachmentServiceUploadFailureDoesNotFailOthers(t *testing.T) {
	blobs := &fakeBlobStore{saveErr: errors.New("disk full")}
	svc := NewAttachmentService(blobs, nil, zap.NewNop(), 8*1024*1024, time.Second)

	result := svc.Process(context.Background(), "ABCD-1234", []AttachmentUpload{
		{Name: "a.txt", Data: []byte("hello")},
	})

	assert.Empty(t, result.Uploaded)
	assert.Equal(t, []string{"a.txt"}, result.Failed)
}

func TestAttachmentServiceSlowUploadCountsAsFailed(t *testing.T) {
	blobs := &fakeBlobStore{delay: 200 * time.Millisecond}
	svc := NewAttachmentService(blobs, nil, zap.NewNop(), 8*1024*1024, 20*time.Millisecond)

	result := svc.Process(context.Background(), "ABCD-1234", []AttachmentUpload{
		{Name: "slow.txt", Data: []byte("hello")},
	})

	assert.Empty(t, result.Uploaded)
	assert.Equal(t, []string{"slow.txt"}, result.Failed)
}

func TestAttachmentServiceEmptyInput(t *testing.T) {
	svc := NewAttachmentService(&fakeBlobStore{}, nil, zap.NewNop(), 8*1024*1024, time.Second)
	result := svc.Process(context.Background(), "ABCD-1234", nil)
	assert.Empty(t, result.Uploaded)
	assert.Empty(t, result.Excluded)
	assert.Empty(t, result.Failed)
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"evidence.pdf":      "evidence.pdf",
		"../../etc/passwd":  "passwd",
		"relatório ago.doc": "relatrioago.doc",
		"çãé":               "file",
		"..":                "file",
		"":                  "file",
	}
	for input, want := range cases {
		assert.Equal(t, want, sanitizeFileName(input), "input %q", input)
	}
}

func TestAttachmentServiceCleanup(t *testing.T) {
	blobs := &fakeBlobStore{}
	svc := NewAttachmentService(blobs, nil, zap.NewNop(), 8*1024*1024, time.Second)

	require.NoError(t, svc.Cleanup("ABCD-1234"))
	require.Len(t, blobs.deleted, 1)
	assert.Contains(t, blobs.deleted[0], "ABCD-1234")
}
