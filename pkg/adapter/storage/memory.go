package storage

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
)

// MemoryClient keeps objects in process memory. State does not survive a restart.
type MemoryClient struct {
	mu      sync.RWMutex
	objects map[string][]byte
	failPut error
}

var _ interfaces.StorageClient = &MemoryClient{}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		objects: make(map[string][]byte),
	}
}

// FailWrites makes every subsequent writer return err on Close. Nil restores normal writes.
func (m *MemoryClient) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPut = err
}

func (m *MemoryClient) PutObject(ctx context.Context, object string) io.WriteCloser {
	return &memoryWriter{
		client: m,
		object: object,
	}
}

func (m *MemoryClient) GetObject(ctx context.Context, object string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.objects[object]
	if !exists {
		return nil, goerr.New("object not found",
			goerr.TV(errutil.StorageKeyKey, object),
			goerr.T(errs.TagNotFound))
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryClient) DeleteObject(ctx context.Context, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, object)
	return nil
}

func (m *MemoryClient) Close(ctx context.Context) {}

type memoryWriter struct {
	client *MemoryClient
	object string
	buffer bytes.Buffer
	closed bool
	mu     sync.Mutex
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, goerr.New("writer is closed", goerr.TV(errutil.StorageKeyKey, w.object))
	}
	return w.buffer.Write(p)
}

// Close commits the buffered bytes. Nothing is visible to readers before Close.
func (w *memoryWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.client.mu.Lock()
	defer w.client.mu.Unlock()

	if w.client.failPut != nil {
		return goerr.Wrap(w.client.failPut, "failed to store object", goerr.TV(errutil.StorageKeyKey, w.object))
	}
	w.client.objects[w.object] = bytes.Clone(w.buffer.Bytes())
	return nil
}
