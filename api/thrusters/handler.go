package thrusters

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kilianp07/thrustmapper/core/thrusterstatus"
)

// NewStatusHandler returns an HTTP handler exposing thruster status data via GET /api/thrusters/status.
func NewStatusHandler(store thrusterstatus.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f := thrusterstatus.Filter{Status: r.URL.Query().Get("status")}
		if s := r.URL.Query().Get("dropped"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				http.Error(w, "invalid dropped", http.StatusBadRequest)
				return
			}
			f.DroppedOnly = v
		}
		entries := store.List(f)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
