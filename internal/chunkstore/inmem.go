package chunkstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"soundvault/internal/models"
)

// MemPayloadStore is an in-memory PayloadStore used in tests
type MemPayloadStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// PutErr, when set, fails every PutChunk call
	PutErr error
	// DelErr, when set, fails every DeleteChunk call
	DelErr error
}

func NewMemPayloadStore() *MemPayloadStore {
	return &MemPayloadStore{objects: make(map[string][]byte)}
}

func (m *MemPayloadStore) PutChunk(_ context.Context, objectKey string, data []byte) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[objectKey] = buf
	return nil
}

func (m *MemPayloadStore) GetChunk(_ context.Context, objectKey string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectKey]
	if !ok {
		return nil, fmt.Errorf("payload missing: %s", objectKey)
	}
	return data, nil
}

func (m *MemPayloadStore) DeleteChunk(_ context.Context, objectKey string) error {
	if m.DelErr != nil {
		return m.DelErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectKey)
	return nil
}

// Drop removes a payload out-of-band, simulating storage loss
func (m *MemPayloadStore) Drop(objectKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectKey)
}

// Len reports how many chunk payloads are held
func (m *MemPayloadStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// MemMetaStore is an in-memory MetaStore used in tests
type MemMetaStore struct {
	mu          sync.Mutex
	descriptors map[string]*models.ObjectDescriptor
	chunks      map[string][]*models.ChunkInfo
	chunkTimes  map[string]time.Time
}

func NewMemMetaStore() *MemMetaStore {
	return &MemMetaStore{
		descriptors: make(map[string]*models.ObjectDescriptor),
		chunks:      make(map[string][]*models.ChunkInfo),
		chunkTimes:  make(map[string]time.Time),
	}
}

func (m *MemMetaStore) InsertChunk(_ context.Context, chunk *models.ChunkInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *chunk
	m.chunks[chunk.ObjectID] = append(m.chunks[chunk.ObjectID], &c)
	m.chunkTimes[chunk.ObjectID] = time.Now()
	return nil
}

func (m *MemMetaStore) GetChunks(_ context.Context, objectID string) ([]*models.ChunkInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunks := append([]*models.ChunkInfo(nil), m.chunks[objectID]...)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Seq < chunks[j].Seq })
	return chunks, nil
}

func (m *MemMetaStore) DeleteChunks(_ context.Context, objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, objectID)
	delete(m.chunkTimes, objectID)
	return nil
}

func (m *MemMetaStore) InsertDescriptor(_ context.Context, desc *models.ObjectDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.descriptors[desc.ID]; exists {
		return fmt.Errorf("descriptor already exists: %s", desc.ID)
	}
	d := *desc
	m.descriptors[desc.ID] = &d
	return nil
}

func (m *MemMetaStore) GetDescriptor(_ context.Context, objectID string) (*models.ObjectDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	desc, ok := m.descriptors[objectID]
	if !ok {
		return nil, nil
	}
	d := *desc
	return &d, nil
}

func (m *MemMetaStore) DeleteDescriptor(_ context.Context, objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.descriptors, objectID)
	return nil
}

func (m *MemMetaStore) StaleUncommittedObjects(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stale []string
	for objectID, last := range m.chunkTimes {
		if _, committed := m.descriptors[objectID]; committed {
			continue
		}
		if last.Before(cutoff) {
			stale = append(stale, objectID)
		}
	}
	return stale, nil
}

// ChunkRowCount reports how many chunk rows exist for an object
func (m *MemMetaStore) ChunkRowCount(objectID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks[objectID])
}
