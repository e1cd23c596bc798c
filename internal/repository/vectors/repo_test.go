package vectors

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"sort"
	"strconv"
	"testing"

	"github.com/kailas-cloud/catalogsearch/internal/db"
	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

// --- Mirror ---

func TestMirror_FreshStore(t *testing.T) {
	repo, ms := newTestRepo(t)
	repo.batchSize = 2
	ms.scanKeys = []string{"cs:vec:0", "cs:vec:9"}

	art := testArtifacts(t, [][]float32{{1, 0}, {0, 1}, {0.6, 0.8}}, "fp-1")
	wrote, err := repo.Mirror(context.Background(), art)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !wrote {
		t.Fatal("expected mirror to write")
	}

	want := []string{"GET", "FT.DROPINDEX", "SCAN", "DEL", "FT.CREATE", "HSET", "HSET", "SET"}
	if !slices.Equal(ms.calls, want) {
		t.Errorf("calls = %v, want %v", ms.calls, want)
	}
	if !slices.Equal(ms.deleted, []string{"cs:vec:0", "cs:vec:9"}) {
		t.Errorf("deleted = %v", ms.deleted)
	}
	if ms.created.Name != "cs:vec:idx" || ms.created.Prefixes[0] != "cs:vec:" {
		t.Errorf("unexpected index definition %s", ms.created)
	}
	vf := ms.created.Fields[1]
	if vf.VectorDim != 2 || vf.VectorDistance != db.DistanceIP || vf.VectorAlgo != db.VectorFlat {
		t.Errorf("vector field = %+v", vf)
	}
	if len(ms.written) != 3 {
		t.Fatalf("written = %d, want 3", len(ms.written))
	}
	if ms.written[2].Key != "cs:vec:2" || ms.written[2].Fields["pos"] != "2" {
		t.Errorf("third item = %+v", ms.written[2])
	}
	blob := []byte(ms.written[2].Fields["vector"])
	if got := math.Float32frombits(binary.LittleEndian.Uint32(blob[4:])); got != 0.8 {
		t.Errorf("encoded vector[1] = %v, want 0.8", got)
	}
	if string(ms.kv["cs:vec_fingerprint"]) != "fp-1" {
		t.Errorf("fingerprint not stored")
	}
}

func TestMirror_UpToDateSkips(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.kv["cs:vec_fingerprint"] = []byte("fp-1")
	ms.docCount = 2

	art := testArtifacts(t, [][]float32{{1, 0}, {0, 1}}, "fp-1")
	wrote, err := repo.Mirror(context.Background(), art)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wrote {
		t.Error("expected no write for matching fingerprint and count")
	}
	if !slices.Equal(ms.calls, []string{"GET", "FT.INFO"}) {
		t.Errorf("calls = %v", ms.calls)
	}
}

func TestMirror_CountDriftRepublishes(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.kv["cs:vec_fingerprint"] = []byte("fp-1")
	ms.docCount = 1

	art := testArtifacts(t, [][]float32{{1, 0}, {0, 1}}, "fp-1")
	wrote, err := repo.Mirror(context.Background(), art)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !wrote {
		t.Error("expected republish when doc count differs")
	}
}

func TestMirror_WriteError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hsetFn = func(context.Context, []db.HashSetItem) error { return errors.New("OOM") }

	art := testArtifacts(t, [][]float32{{1, 0}}, "fp-2")
	if _, err := repo.Mirror(context.Background(), art); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := ms.kv["cs:vec_fingerprint"]; ok {
		t.Error("fingerprint must not be stored after a failed write")
	}
}

// --- Index ---

func TestBuilder_SearchOrdersByScore(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.knnFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "cs:vec:idx" {
			t.Errorf("index = %s", q.IndexName)
		}
		if q.K != 3 {
			t.Errorf("k = %d, want clamped to 3", q.K)
		}
		if !q.RawScores {
			t.Error("expected raw distances")
		}
		return &db.SearchResult{
			Total: 3,
			Entries: []db.SearchEntry{
				{Key: "cs:vec:2", Score: 0.4, Fields: map[string]string{"pos": "2"}},
				{Key: "cs:vec:1", Score: 0.2, Fields: map[string]string{}},
				{Key: "cs:vec:0", Score: 0.2, Fields: map[string]string{"pos": "0"}},
			},
		}, nil
	}

	art := testArtifacts(t, [][]float32{{1, 0}, {0, 1}, {0.6, 0.8}}, "fp")
	idx, err := repo.Builder()(context.Background(), art)
	if err != nil {
		t.Fatalf("builder: %v", err)
	}
	if idx.Len() != 3 || idx.Dim() != 2 {
		t.Fatalf("len/dim = %d/%d", idx.Len(), idx.Dim())
	}

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("hits = %d", len(hits))
	}
	// equal scores resolve by ascending position; pos 1 comes from the key
	if hits[0].Position != 0 || hits[1].Position != 1 || hits[2].Position != 2 {
		t.Errorf("order = %+v", hits)
	}
	if math.Abs(float64(hits[0].Score)-0.8) > 1e-6 || math.Abs(float64(hits[2].Score)-0.6) > 1e-6 {
		t.Errorf("scores = %+v", hits)
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)
	idx := &Index{repo: repo, rows: 2, dim: 3}
	_, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestIndex_EmptyAndZeroK(t *testing.T) {
	repo, ms := newTestRepo(t)

	empty := &Index{repo: repo, rows: 0, dim: 2}
	hits, err := empty.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil || len(hits) != 0 {
		t.Errorf("empty index: hits=%v err=%v", hits, err)
	}

	idx := &Index{repo: repo, rows: 2, dim: 2}
	hits, err = idx.Search(context.Background(), []float32{1, 0}, 0)
	if err != nil || len(hits) != 0 {
		t.Errorf("k=0: hits=%v err=%v", hits, err)
	}
	if len(ms.calls) != 0 {
		t.Errorf("store should not be called, got %v", ms.calls)
	}
}

func TestIndex_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.knnFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: errors.New("timeout")}
	}
	idx := &Index{repo: repo, rows: 2, dim: 2}
	if _, err := idx.Search(context.Background(), []float32{1, 0}, 1); err == nil {
		t.Fatal("expected error")
	}
}

// engineKNN answers like an engine that breaks distance ties by descending key,
// the opposite of the flat backend.
func engineKNN(dist []float64, ks *[]int) func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
	return func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		*ks = append(*ks, q.K)
		order := make([]int, len(dist))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			if dist[order[a]] != dist[order[b]] {
				return dist[order[a]] < dist[order[b]]
			}
			return order[a] > order[b]
		})
		sr := &db.SearchResult{Total: len(dist)}
		for _, pos := range order[:min(q.K, len(order))] {
			sr.Entries = append(sr.Entries, db.SearchEntry{
				Key:    "cs:vec:" + strconv.Itoa(pos),
				Score:  dist[pos],
				Fields: map[string]string{"pos": strconv.Itoa(pos)},
			})
		}
		return sr, nil
	}
}

func TestIndex_TiesMatchFlatOrder(t *testing.T) {
	tests := []struct {
		name      string
		dist      []float64
		k         int
		want      []int
		wantCalls []int
	}{
		{
			name:      "tie inside margin",
			dist:      []float64{0.5, 0.1, 0.5, 0.5, 0.9},
			k:         2,
			want:      []int{1, 0},
			wantCalls: []int{5},
		},
		{
			// 40 equal distances: the first window of k+16 ends inside the tie group
			name:      "tie group wider than margin",
			dist:      append([]float64{0.1}, slices.Repeat([]float64{0.3}, 40)...),
			k:         3,
			want:      []int{0, 1, 2},
			wantCalls: []int{19, 38, 41},
		},
		{
			name:      "tie ends before window",
			dist:      append([]float64{0.1, 0.3, 0.3}, slices.Repeat([]float64{0.7}, 40)...),
			k:         2,
			want:      []int{0, 1},
			wantCalls: []int{18},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, ms := newTestRepo(t)
			var ks []int
			ms.knnFn = engineKNN(tt.dist, &ks)
			idx := &Index{repo: repo, rows: len(tt.dist), dim: 2}

			hits, err := idx.Search(context.Background(), []float32{1, 0}, tt.k)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			got := make([]int, len(hits))
			for i, h := range hits {
				got[i] = h.Position
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("positions = %v, want %v", got, tt.want)
			}
			if !slices.Equal(ks, tt.wantCalls) {
				t.Errorf("knn depths = %v, want %v", ks, tt.wantCalls)
			}
		})
	}
}
