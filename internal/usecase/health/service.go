package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure. Search still answers, possibly with empty results.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status    Status
	Checks    map[string]CheckResult
	IndexSize int
}

// Deps are the checked components. Nil members are skipped.
type Deps struct {
	Index      IndexLoader
	Categories CategoryLoader
	DB         DBPinger
	Embedding  EmbeddingChecker
}

// Service coordinates health checks.
type Service struct {
	deps Deps
}

// New creates a Service.
func New(deps Deps) *Service {
	return &Service{deps: deps}
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	report := Report{Status: Healthy, Checks: checks}

	if s.deps.Index != nil {
		snap, err := s.deps.Index.EnsureLoaded(ctx)
		checks["index"] = result(err)
		if err == nil {
			report.IndexSize = snap.Len()
		}
	}
	if s.deps.Categories != nil {
		_, err := s.deps.Categories.EnsureLoaded(ctx)
		checks["categories"] = result(err)
	}
	if s.deps.DB != nil {
		checks["database"] = result(s.deps.DB.Ping(ctx))
	}
	if s.deps.Embedding != nil {
		checks["embedding"] = result(s.deps.Embedding.HealthCheck(ctx))
	}

	for _, v := range checks {
		if v == CheckError {
			report.Status = Degraded
			break
		}
	}
	return report
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
