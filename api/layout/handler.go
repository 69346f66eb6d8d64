package layout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/thrustmapper/core/allocation"
	"github.com/kilianp07/thrustmapper/core/model"
)

// Service is the part of the allocator exposed over HTTP.
type Service interface {
	Thrusters() []string
	Matrix() []float64
	Faults() allocation.FaultSnapshot
	UpdateLayout(dropped []string) error
}

// MatrixResponse carries the allocation matrix in row-major order.
type MatrixResponse struct {
	Rows      int       `json:"rows"`
	Cols      int       `json:"cols"`
	Thrusters []string  `json:"thrusters"`
	Matrix    []float64 `json:"matrix"`
}

// FaultsRequest replaces the dropped thruster set.
type FaultsRequest struct {
	Dropped []string `json:"dropped"`
}

// NewMatrixHandler serves GET /api/layout/matrix.
func NewMatrixHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		names := svc.Thrusters()
		writeJSON(w, http.StatusOK, MatrixResponse{
			Rows:      model.WrenchDim,
			Cols:      len(names),
			Thrusters: names,
			Matrix:    svc.Matrix(),
		})
	})
}

// NewFaultsHandler serves GET and PUT /api/layout/faults. An unknown thruster
// name answers 400 and leaves the layout untouched.
func NewFaultsHandler(svc Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, svc.Faults())
		case http.MethodPut:
			var req FaultsRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid body", http.StatusBadRequest)
				return
			}
			if err := svc.UpdateLayout(req.Dropped); err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, allocation.ErrInvalidThrusterID) {
					status = http.StatusBadRequest
				}
				http.Error(w, err.Error(), status)
				return
			}
			writeJSON(w, http.StatusOK, svc.Faults())
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
