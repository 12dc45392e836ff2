package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/txn2/dataset-lookup/pkg/audit"
	"github.com/txn2/dataset-lookup/pkg/auth"
	dlhttp "github.com/txn2/dataset-lookup/pkg/http"
)

// Auditor records request outcomes. A nil logger disables recording.
type Auditor struct {
	logger audit.Logger
	log    *slog.Logger
}

// NewAuditor creates an auditor writing to logger.
func NewAuditor(logger audit.Logger, log *slog.Logger) *Auditor {
	if log == nil {
		log = slog.Default()
	}
	return &Auditor{logger: logger, log: log}
}

// Record logs one event for the request. Failures to record are logged and
// never fail the request.
func (a *Auditor) Record(r *http.Request, action audit.Action, resource string, params map[string]any, start time.Time, err error) {
	if a == nil || a.logger == nil {
		return
	}
	event := audit.NewEvent(action).
		WithUser(auth.Username(r.Context())).
		WithRequestID(dlhttp.GetRequestID(r.Context())).
		WithResource(resource).
		WithParameters(params).
		WithResult(err, time.Since(start).Milliseconds())
	if logErr := a.logger.Log(r.Context(), *event); logErr != nil {
		a.log.WarnContext(r.Context(), "failed to record audit event", "action", action, "error", logErr)
	}
}
