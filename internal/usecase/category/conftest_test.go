package category

import (
	"context"
	"sync"

	domcat "github.com/kailas-cloud/catalogsearch/internal/domain/category"
)

func i64(v int64) *int64 { return &v }

type fakeSource struct {
	mu    sync.Mutex
	nodes []domcat.Node
	err   error
	loads int
}

func (s *fakeSource) Load(_ context.Context) ([]domcat.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return s.nodes, nil
}

func (s *fakeSource) set(nodes []domcat.Node, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes, s.err = nodes, err
}

func (s *fakeSource) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

// The leaf "Холодильные шкафы" is listed before its parent so that source order
// alone would pick it on a tie.
func shopNodes() []domcat.Node {
	return []domcat.Node{
		{ID: 3, Name: "Холодильные шкафы", ParentID: i64(1)},
		{ID: 1, Name: "Холодильное оборудование"},
		{ID: 2, Name: "Холодильные витрины", ParentID: i64(1)},
		{ID: 4, Name: "Льдогенераторы", ParentID: i64(1)},
		{ID: 7, Name: "Шкафы шоковой заморозки", ParentID: i64(4)},
		{ID: 5, Name: "Кофемашины"},
		{ID: 6, Name: "Кофемолки", ParentID: i64(5)},
		{ID: 8, Name: "--"},
	}
}
