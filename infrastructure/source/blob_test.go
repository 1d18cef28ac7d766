package source

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/artsearch/internal/config"
)

type memoryStore struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	moveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{buckets: map[string]map[string][]byte{}}
}

func (m *memoryStore) put(bucket, key, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = map[string][]byte{}
	}
	m.buckets[bucket][key] = []byte(data)
}

func (m *memoryStore) keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *memoryStore) List(_ context.Context, bucket string) ([]string, error) {
	return m.keys(bucket), nil
}

func (m *memoryStore) Read(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.buckets[bucket][key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (m *memoryStore) Move(_ context.Context, from, to, key string) error {
	if m.moveErr != nil {
		return m.moveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[to] == nil {
		m.buckets[to] = map[string][]byte{}
	}
	m.buckets[to][key] = m.buckets[from][key]
	delete(m.buckets[from], key)
	return nil
}

func TestBlob_RecordsAndAcknowledge(t *testing.T) {
	store := newMemoryStore()
	store.put("images", "b.csv", "ObjectId,ImageUrl\n2,https://img.example/2.jpg\n")
	store.put("images", "a.csv", "ObjectId,ImageUrl\n1,https://img.example/1.jpg\n")
	store.put("images", "readme.md", "not a csv")

	src := NewBlob(store, "images", "processed", nil)
	records, err := src.Records(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].ID())
	assert.Equal(t, "2", records[1].ID())

	require.NoError(t, src.Acknowledge(context.Background()))
	assert.Equal(t, []string{"readme.md"}, store.keys("images"))
	assert.Equal(t, []string{"a.csv", "b.csv"}, store.keys("processed"))
}

func TestBlob_LimitOnlyConsumesReadObjects(t *testing.T) {
	store := newMemoryStore()
	store.put("images", "a.csv", "ObjectId,ImageUrl\n1,https://img.example/1.jpg\n2,https://img.example/2.jpg\n")
	store.put("images", "b.csv", "ObjectId,ImageUrl\n3,https://img.example/3.jpg\n")

	src := NewBlob(store, "images", "processed", nil)
	records, err := src.Records(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, src.Acknowledge(context.Background()))
	assert.Equal(t, []string{"b.csv"}, store.keys("images"))
	assert.Equal(t, []string{"a.csv"}, store.keys("processed"))
}

func TestBlob_AcknowledgeWithoutRecordsIsNoop(t *testing.T) {
	store := newMemoryStore()
	store.put("images", "a.csv", "ObjectId,ImageUrl\n1,https://img.example/1.jpg\n")

	src := NewBlob(store, "images", "processed", nil)
	require.NoError(t, src.Acknowledge(context.Background()))
	assert.Equal(t, []string{"a.csv"}, store.keys("images"))
}

func TestBlob_AcknowledgeReportsMoveErrors(t *testing.T) {
	store := newMemoryStore()
	store.put("images", "a.csv", "ObjectId,ImageUrl\n1,https://img.example/1.jpg\n")
	store.moveErr = errors.New("access denied")

	src := NewBlob(store, "images", "processed", nil)
	_, err := src.Records(context.Background(), 0)
	require.NoError(t, err)

	err = src.Acknowledge(context.Background())
	assert.ErrorIs(t, err, store.moveErr)
}

func TestBlob_ParseErrorNamesObject(t *testing.T) {
	store := newMemoryStore()
	store.put("images", "bad.csv", "Title\nx\n")

	_, err := NewBlob(store, "images", "processed", nil).Records(context.Background(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "bad.csv")
}

func TestNewMinioStore_RequiresEndpoint(t *testing.T) {
	_, err := NewMinioStore(config.BlobConfig{})
	assert.ErrorIs(t, err, ErrMissingBlobEndpoint)
}
