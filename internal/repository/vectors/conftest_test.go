package vectors

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/db"
	"github.com/kailas-cloud/catalogsearch/internal/index"
)

// mockStore implements the consumer interface for tests and records the call sequence.
type mockStore struct {
	kv       map[string][]byte
	docCount int
	scanKeys []string
	knnFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	hsetFn   func(ctx context.Context, items []db.HashSetItem) error

	calls   []string
	created *db.IndexDefinition
	written []db.HashSetItem
	deleted []string
}

func newMockStore() *mockStore {
	return &mockStore{kv: map[string][]byte{}}
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	m.calls = append(m.calls, "GET")
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) Set(_ context.Context, key string, value []byte) error {
	m.calls = append(m.calls, "SET")
	m.kv[key] = value
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	m.calls = append(m.calls, "HSET")
	if m.hsetFn != nil {
		return m.hsetFn(ctx, items)
	}
	m.written = append(m.written, items...)
	return nil
}

func (m *mockStore) Del(_ context.Context, keys ...string) error {
	m.calls = append(m.calls, "DEL")
	m.deleted = append(m.deleted, keys...)
	return nil
}

func (m *mockStore) Scan(_ context.Context, _ string) ([]string, error) {
	m.calls = append(m.calls, "SCAN")
	return m.scanKeys, nil
}

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	m.calls = append(m.calls, "FT.CREATE")
	m.created = def
	return nil
}

func (m *mockStore) DropIndex(_ context.Context, _ string) error {
	m.calls = append(m.calls, "FT.DROPINDEX")
	return db.ErrIndexNotFound
}

func (m *mockStore) IndexDocCount(_ context.Context, _ string) (int, error) {
	m.calls = append(m.calls, "FT.INFO")
	return m.docCount, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.calls = append(m.calls, "FT.SEARCH")
	if m.knnFn != nil {
		return m.knnFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := newMockStore()
	return New(ms, "cs:", zap.NewNop()), ms
}

func testArtifacts(t *testing.T, rows [][]float32, fingerprint string) *index.Artifacts {
	t.Helper()
	m, err := index.NewMatrix(rows)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	return &index.Artifacts{Vectors: m, Fingerprint: fingerprint}
}
