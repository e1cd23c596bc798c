package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/domain"
	domcat "github.com/kailas-cloud/catalogsearch/internal/domain/category"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/request"
	"github.com/kailas-cloud/catalogsearch/internal/domain/search/result"
	"github.com/kailas-cloud/catalogsearch/internal/index"
	healthuc "github.com/kailas-cloud/catalogsearch/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/catalogsearch/internal/usecase/recommend"
)

// ErrorCode is the machine-readable part of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeEmbeddingQuotaExceeded ErrorCode = "embedding_quota_exceeded"
	CodeIndexUnavailable       ErrorCode = "index_unavailable"
	CodeCategoriesUnavailable  ErrorCode = "categories_unavailable"
	CodeInternalError          ErrorCode = "internal_error"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Searcher is the search orchestrator.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Result, error)
	Rerank(query string, results []result.Result, topK int) []result.Result
}

// Recommender runs the chat flow.
type Recommender interface {
	Run(ctx context.Context, in recommenduc.Input) (recommenduc.Output, error)
}

// HealthChecker aggregates component checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// SnapshotReloader swaps in a fresh index snapshot.
type SnapshotReloader interface {
	Reload(ctx context.Context) (*index.Snapshot, error)
}

// CategoryReloader swaps in a fresh category tree.
type CategoryReloader interface {
	Reload(ctx context.Context) (*domcat.Tree, error)
}

// Deps are the services behind the HTTP API. Index and Categories may be nil.
type Deps struct {
	Search     Searcher
	Chat       Recommender
	Health     HealthChecker
	Index      SnapshotReloader
	Categories CategoryReloader
	Version    string
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the catalogsearch HTTP API.
type Server struct {
	deps          Deps
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, logger: logger}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusTooManyRequests, CodeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, CodeIndexUnavailable),
		sentinelHandler(domain.ErrCategoriesUnavailable, http.StatusServiceUnavailable, CodeCategoriesUnavailable),
	}
	return s
}

type chatRequest struct {
	Query       string   `json:"query"`
	PriceMin    *float64 `json:"price_min"`
	PriceMax    *float64 `json:"price_max"`
	CategoryID  *int64   `json:"category_id"`
	BrandID     *int64   `json:"brand_id"`
	InStockOnly bool     `json:"in_stock_only"`
}

// Chat handles POST /chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	annotate(r.Context(), req.Query, -1)

	out, err := s.deps.Chat.Run(r.Context(), recommenduc.Input{
		Query:       req.Query,
		PriceMin:    req.PriceMin,
		PriceMax:    req.PriceMax,
		CategoryID:  req.CategoryID,
		BrandID:     req.BrandID,
		InStockOnly: req.InStockOnly,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if out.Products == nil {
		out.Products = []recommenduc.Product{}
	}

	annotate(r.Context(), req.Query, len(out.Products))
	writeJSON(w, http.StatusOK, out)
}

type searchRequest struct {
	Query       string   `json:"query"`
	TopK        *int     `json:"top_k"`
	PriceMin    *float64 `json:"price_min"`
	PriceMax    *float64 `json:"price_max"`
	CategoryID  *int64   `json:"category_id"`
	CategoryIDs []int64  `json:"category_ids"`
	BrandID     *int64   `json:"brand_id"`
	InStockOnly *bool    `json:"in_stock_only"`
	Rerank      *bool    `json:"rerank"`
}

type searchResponse struct {
	Results []result.Result `json:"results"`
}

// SearchPost handles POST /search.
func (s *Server) SearchPost(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.search(w, r, req)
}

// SearchGet handles GET /search.
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request) {
	req, err := bindSearchParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid query parameters: "+err.Error())
		return
	}
	s.search(w, r, req)
}

func bindSearchParams(r *http.Request) (searchRequest, error) {
	var req searchRequest
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "q", q, &req.Query); err != nil {
		return req, fmt.Errorf("parameter q: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", q, &req.TopK); err != nil {
		return req, fmt.Errorf("parameter top_k: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "price_min", q, &req.PriceMin); err != nil {
		return req, fmt.Errorf("parameter price_min: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "price_max", q, &req.PriceMax); err != nil {
		return req, fmt.Errorf("parameter price_max: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "category_id", q, &req.CategoryID); err != nil {
		return req, fmt.Errorf("parameter category_id: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "brand_id", q, &req.BrandID); err != nil {
		return req, fmt.Errorf("parameter brand_id: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "in_stock_only", q, &req.InStockOnly); err != nil {
		return req, fmt.Errorf("parameter in_stock_only: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "rerank", q, &req.Rerank); err != nil {
		return req, fmt.Errorf("parameter rerank: %w", err)
	}
	return req, nil
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, req searchRequest) {
	annotate(r.Context(), req.Query, -1)

	topK := 0
	if req.TopK != nil {
		topK = *req.TopK
	}
	f := filter.Filters{
		PriceMin:    req.PriceMin,
		PriceMax:    req.PriceMax,
		CategoryID:  req.CategoryID,
		CategoryIDs: req.CategoryIDs,
		BrandID:     req.BrandID,
		InStockOnly: req.InStockOnly != nil && *req.InStockOnly,
	}

	sreq, err := request.New(req.Query, topK, f)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	results, err := s.deps.Search.Search(r.Context(), &sreq)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if req.Rerank != nil && *req.Rerank {
		results = s.deps.Search.Rerank(sreq.Query(), results, sreq.TopK())
	}
	if results == nil {
		results = []result.Result{}
	}

	annotate(r.Context(), req.Query, len(results))
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

type healthResponse struct {
	Status    healthuc.Status                 `json:"status"`
	Version   string                          `json:"version"`
	Checks    map[string]healthuc.CheckResult `json:"checks"`
	IndexSize int                             `json:"index_size"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.deps.Health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:    report.Status,
		Version:   s.deps.Version,
		Checks:    report.Checks,
		IndexSize: report.IndexSize,
	})
}

type reloadResponse struct {
	IndexSize   int    `json:"index_size"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Categories  int    `json:"categories"`
}

// Reload handles POST /admin/reload. The index is reloaded first; a failure
// there aborts the request and the old snapshot stays active.
func (s *Server) Reload(w http.ResponseWriter, r *http.Request) {
	var resp reloadResponse

	if s.deps.Index != nil {
		snap, err := s.deps.Index.Reload(r.Context())
		if err != nil {
			s.handleDomainError(w, r, fmt.Errorf("reload index: %w", err))
			return
		}
		resp.IndexSize = snap.Len()
		resp.Fingerprint = snap.Fingerprint
	}
	if s.deps.Categories != nil {
		tree, err := s.deps.Categories.Reload(r.Context())
		if err != nil {
			s.handleDomainError(w, r, fmt.Errorf("%w: %w", domain.ErrCategoriesUnavailable, err))
			return
		}
		resp.Categories = tree.Len()
	}

	s.logger.Info("snapshot reloaded",
		zap.Int("index_size", resp.IndexSize),
		zap.Int("categories", resp.Categories),
	)
	writeJSON(w, http.StatusOK, resp)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err //nolint:wrapcheck // surfaced to the client as is
	}
	return nil
}

type errorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Validation errors carry their detail; the rest collapse to the sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidRequest) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrIndexUnavailable,
		domain.ErrCategoriesUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := requestLogger(r.Context(), s.logger)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
