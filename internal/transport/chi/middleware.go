package chi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"
	"unicode/utf8"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/catalogsearch/internal/logger"
)

// requestEvent collects handler-level fields for the canonical log line.
type requestEvent struct {
	queryLen atomic.Int64
	results  atomic.Int64
}

type eventKey struct{}

// annotate records the query length and, when results >= 0, the result count.
func annotate(ctx context.Context, query string, results int) {
	ev, ok := ctx.Value(eventKey{}).(*requestEvent)
	if !ok {
		return
	}
	ev.queryLen.Store(int64(utf8.RuneCountInString(query)))
	if results >= 0 {
		ev.results.Store(int64(results))
	}
}

// requestLogger returns the per-request logger, or fallback outside a request.
func requestLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l := logpkg.FromContext(ctx); l.Core().Enabled(zap.ErrorLevel) {
		return l
	}
	return fallback
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// corsAllowAll answers preflight requests and allows any origin.
func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ev := &requestEvent{}
			ev.results.Store(-1)
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)
			ctx = context.WithValue(ctx, eventKey{}, ev)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			if n := ev.queryLen.Load(); n > 0 {
				fields = append(fields, zap.Int64("query_len", n))
			}
			if n := ev.results.Load(); n >= 0 {
				fields = append(fields, zap.Int64("results", n))
			}
			// Canonical log line, one per request
			reqLogger.Info("http_request", fields...)
		})
	}
}
