package app

import (
	"net/http"

	apialloc "github.com/kilianp07/thrustmapper/api/allocation"
	apilayout "github.com/kilianp07/thrustmapper/api/layout"
	apithrusters "github.com/kilianp07/thrustmapper/api/thrusters"
	"github.com/kilianp07/thrustmapper/core/allocation/logging"
	"github.com/kilianp07/thrustmapper/core/thrusterstatus"
	"github.com/kilianp07/thrustmapper/infra/metrics"
)

// NewHTTPHandler builds the HTTP surface: /metrics, the layout endpoints,
// thruster status and, when store is set, the allocation log.
func NewHTTPHandler(svc apilayout.Service, status thrusterstatus.Store, store logging.LogStore, token string) http.Handler {
	mux := metrics.NewServeMux(nil)
	mux.Handle("/api/layout/matrix", apilayout.NewMatrixHandler(svc))
	mux.Handle("/api/layout/faults", apilayout.NewFaultsHandler(svc))
	mux.Handle("/api/thrusters/status", apithrusters.NewStatusHandler(status))
	if store != nil {
		mux.Handle("/api/allocation/logs", apialloc.NewLogHandler(store, token))
	}
	return mux
}
