package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/db"
	"github.com/kailas-cloud/catalogsearch/internal/domain"
)

const queryInstruction = "query: "

func keyFor(prefix, text string) string {
	h := sha256.Sum256([]byte(text))
	return prefix + "emb_cache:" + hex.EncodeToString(h[:])
}

// vec384 is a MiniLM-sized vector whose first component tags its origin.
func vec384(tag float32) []float32 {
	v := make([]float32, 384)
	v[0] = tag
	return v
}

// memStore backs ms with a map and returns it for seeding and inspection.
func memStore(ms *mockKVStore) map[string][]byte {
	kv := map[string][]byte{}
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		if v, ok := kv[key]; ok {
			return v, nil
		}
		return nil, db.ErrKeyNotFound
	}
	ms.setFn = func(_ context.Context, key string, value []byte) error {
		kv[key] = value
		return nil
	}
	return kv
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_embedding_cache_total"}, []string{"result"})
}

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: vec384(0.5), PromptTokens: 9, TotalTokens: 9}}
	ms := &mockKVStore{}
	kv := memStore(ms)
	counter := newCounter()
	ce := New(inner, ms, Options{KeyPrefix: "catalogsearch:", TTL: 24 * time.Hour}, counter, zap.NewNop())
	ctx := context.Background()

	first, err := ce.Embed(ctx, "морозильный ларь")
	if err != nil {
		t.Fatalf("miss: %v", err)
	}
	if first.TotalTokens != 9 || inner.calls != 1 {
		t.Fatalf("miss should reach provider: tokens=%d calls=%d", first.TotalTokens, inner.calls)
	}
	key := keyFor("catalogsearch:", "морозильный ларь")
	if len(kv[key]) != 384*4 {
		t.Fatalf("stored %d bytes under %q, want 1536", len(kv[key]), key)
	}
	if ms.lastTTL != 24*time.Hour {
		t.Errorf("ttl = %v", ms.lastTTL)
	}

	second, err := ce.Embed(ctx, "морозильный ларь")
	if err != nil {
		t.Fatalf("hit: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("hit must not call provider, calls=%d", inner.calls)
	}
	if second.TotalTokens != 0 || len(second.Embedding) != 384 || second.Embedding[0] != 0.5 {
		t.Errorf("hit = tokens %d, len %d, head %v", second.TotalTokens, len(second.Embedding), second.Embedding[0])
	}
	if testutil.ToFloat64(counter.WithLabelValues("hit")) != 1 || testutil.ToFloat64(counter.WithLabelValues("miss")) != 1 {
		t.Errorf("hit/miss counters = %v/%v",
			testutil.ToFloat64(counter.WithLabelValues("hit")), testutil.ToFloat64(counter.WithLabelValues("miss")))
	}
}

func TestEmbed_InstructionPrefixedKey(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: vec384(1)}}
	ms := &mockKVStore{}
	kv := memStore(ms)
	cached := New(inner, ms, Options{KeyPrefix: "catalogsearch:"}, nil, zap.NewNop())
	// same order as the app chain: instruction outside the cache
	e := domain.NewInstructionEmbedder(cached, queryInstruction)

	if _, err := e.Embed(context.Background(), "кофемолка"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if !slices.Equal(inner.texts, []string{"query: кофемолка"}) {
		t.Errorf("provider saw %q", inner.texts)
	}
	if _, ok := kv[keyFor("catalogsearch:", "query: кофемолка")]; !ok {
		t.Errorf("expected key over the prefixed text, have %v", ms.gets)
	}
	if _, ok := kv[keyFor("catalogsearch:", "кофемолка")]; ok {
		t.Error("raw query text must not be a cache key when an instruction is set")
	}

	// a bare lookup for the same words is a different entry
	if _, err := cached.Embed(context.Background(), "кофемолка"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("provider calls = %d, want 2", inner.calls)
	}
}

func TestEmbed_ProviderErrorIsNotCached(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingQuotaExceeded}
	ms := &mockKVStore{}
	kv := memStore(ms)
	ce := New(inner, ms, Options{}, nil, zap.NewNop())

	_, err := ce.Embed(context.Background(), "витрина")
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected wrapped quota error, got %v", err)
	}
	if len(kv) != 0 {
		t.Errorf("failed embed wrote %d entries", len(kv))
	}
}

func TestEmbed_StoreTrouble(t *testing.T) {
	tests := []struct {
		name      string
		get       func(context.Context, string) ([]byte, error)
		set       func(context.Context, string, []byte) error
		wantError float64
	}{
		{
			name:      "store down",
			get:       func(context.Context, string) ([]byte, error) { return nil, errors.New("connection refused") },
			set:       func(context.Context, string, []byte) error { return errors.New("connection refused") },
			wantError: 2,
		},
		{
			name: "truncated entry",
			get:  func(context.Context, string) ([]byte, error) { return []byte{0, 0, 128}, nil },
		},
		{
			name: "empty entry",
			get:  func(context.Context, string) ([]byte, error) { return []byte{}, nil },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: vec384(0.25), TotalTokens: 4}}
			counter := newCounter()
			ce := New(inner, &mockKVStore{getFn: tt.get, setFn: tt.set}, Options{}, counter, zap.NewNop())

			res, err := ce.Embed(context.Background(), "холодильник")
			if err != nil {
				t.Fatalf("store trouble must not fail embed: %v", err)
			}
			if res.TotalTokens != 4 || res.Embedding[0] != 0.25 {
				t.Errorf("expected provider result, got %+v", res.TotalTokens)
			}
			if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
				t.Errorf("miss = %v, want 1", got)
			}
			if got := testutil.ToFloat64(counter.WithLabelValues("error")); got != tt.wantError {
				t.Errorf("error = %v, want %v", got, tt.wantError)
			}
		})
	}
}

func TestBatchEmbed_OnlyMissesReachProvider(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: vec384(0.5), PromptTokens: 3, TotalTokens: 3}}
	ms := &mockKVStore{}
	kv := memStore(ms)
	kv[keyFor("test:", "Кофемолка")] = vectorToCacheBytes(vec384(0.9))
	ce := New(inner, ms, Options{KeyPrefix: "test:"}, nil, zap.NewNop())

	names := []string{"Витрина холодильная", "Кофемолка", "Морозильный ларь"}
	res, err := ce.BatchEmbed(context.Background(), names)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 1 || !slices.Equal(inner.texts, []string{"Витрина холодильная", "Морозильный ларь"}) {
		t.Errorf("provider batch = %d call(s) with %q", inner.batchCalls, inner.texts)
	}
	heads := []float32{res.Embeddings[0][0], res.Embeddings[1][0], res.Embeddings[2][0]}
	if !slices.Equal(heads, []float32{0.5, 0.9, 0.5}) {
		t.Errorf("rows out of input order: %v", heads)
	}
	if res.TotalTokens != 6 {
		t.Errorf("TotalTokens = %d, want 6 (two misses)", res.TotalTokens)
	}
	if len(kv) != 3 {
		t.Errorf("cache holds %d entries, want 3", len(kv))
	}
}

func TestBatchEmbed_AllCached(t *testing.T) {
	inner := &mockEmbedder{}
	ms := &mockKVStore{}
	kv := memStore(ms)
	for _, n := range []string{"ларь", "витрина"} {
		kv[keyFor("test:", n)] = vectorToCacheBytes(vec384(1))
	}
	ce := New(inner, ms, Options{KeyPrefix: "test:"}, nil, zap.NewNop())

	res, err := ce.BatchEmbed(context.Background(), []string{"ларь", "витрина"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.batchCalls != 0 || res.TotalTokens != 0 || len(res.Embeddings) != 2 {
		t.Errorf("all-hit batch: calls=%d tokens=%d rows=%d", inner.batchCalls, res.TotalTokens, len(res.Embeddings))
	}
}

func TestBatchEmbed_Failures(t *testing.T) {
	tests := []struct {
		name    string
		inner   *mockEmbedder
		wantErr error
	}{
		{
			name:    "provider error",
			inner:   &mockEmbedder{batchErr: domain.ErrEmbeddingProviderError},
			wantErr: domain.ErrEmbeddingProviderError,
		},
		{
			name: "short batch",
			inner: &mockEmbedder{batchResult: domain.BatchEmbeddingResult{
				Embeddings: [][]float32{vec384(1)},
			}},
			wantErr: domain.ErrDimensionMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := &mockKVStore{}
			kv := memStore(ms)
			ce := New(tt.inner, ms, Options{}, nil, zap.NewNop())

			_, err := ce.BatchEmbed(context.Background(), []string{"ларь", "витрина"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(kv) != 0 {
				t.Errorf("failed batch cached %d entries", len(kv))
			}
		})
	}
}

func TestBatchEmbed_EmptyInput(t *testing.T) {
	inner := &mockEmbedder{}
	ms := &mockKVStore{}
	ce := New(inner, ms, Options{}, nil, zap.NewNop())

	res, err := ce.BatchEmbed(context.Background(), nil)
	if err != nil || res.Embeddings != nil {
		t.Fatalf("empty batch: %+v %v", res, err)
	}
	if len(ms.gets) != 0 || inner.batchCalls != 0 {
		t.Error("empty batch must not touch store or provider")
	}
}
