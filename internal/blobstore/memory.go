package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by the test suites and local
// development. It honors the chunked-progress contract, including the
// unknown-total case, and can simulate the typed failure categories.
type MemoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	chunkSize int64

	// Authorized gates every operation, mirroring a store that was
	// connected before sign-in completed.
	Authorized bool

	// MaxObjectSize, when positive, rejects larger uploads with
	// ErrObjectTooLarge.
	MaxObjectSize int64

	// HideTotals makes FetchChunked report an unknown total (-1).
	HideTotals bool

	// FailDeletes makes DeleteByID fail, for testing that local records
	// survive a remote deletion failure.
	FailDeletes bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:    make(map[string][]byte),
		chunkSize:  64 << 10,
		Authorized: true,
	}
}

func (m *MemoryStore) Connect(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) IsAuthorized(ctx context.Context) (bool, error) {
	return m.Authorized, nil
}

func (m *MemoryStore) UploadChunked(ctx context.Context, r io.Reader, size int64, meta ObjectMetadata, progress ProgressFunc) (string, error) {
	if !m.Authorized {
		return "", ErrNotAuthorized
	}
	if m.MaxObjectSize > 0 && size > m.MaxObjectSize {
		return "", ErrObjectTooLarge
	}

	var buf bytes.Buffer
	if _, err := CopyChunked(&buf, r, m.chunkSize, size, progress); err != nil {
		return "", err
	}

	objectID := fmt.Sprintf("%s/%s_%s", meta.Folder, uuid.New(), meta.Filename)
	m.mu.Lock()
	m.objects[objectID] = buf.Bytes()
	m.mu.Unlock()
	return objectID, nil
}

func (m *MemoryStore) FetchChunked(ctx context.Context, objectID string, w io.Writer, progress ProgressFunc) (int64, error) {
	if !m.Authorized {
		return 0, ErrNotAuthorized
	}
	m.mu.Lock()
	data, ok := m.objects[objectID]
	m.mu.Unlock()
	if !ok {
		return 0, ErrObjectNotFound
	}

	total := int64(len(data))
	if m.HideTotals {
		total = -1
	}
	return CopyChunked(w, bytes.NewReader(data), m.chunkSize, total, progress)
}

func (m *MemoryStore) DeleteByID(ctx context.Context, objectID string) error {
	if !m.Authorized {
		return ErrNotAuthorized
	}
	if m.FailDeletes {
		return errors.New("blobstore: delete failed")
	}
	m.mu.Lock()
	delete(m.objects, objectID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Len reports the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var _ Store = (*MemoryStore)(nil)
