package layout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/thrustmapper/core/allocation"
	"github.com/kilianp07/thrustmapper/core/model"
	"github.com/kilianp07/thrustmapper/infra/logger"
)

func newAllocator(t *testing.T) *allocation.Allocator {
	t.Helper()
	l, err := allocation.BuildLayout([]model.Thruster{
		{Name: "port", Position: r3.Vec{Y: 0.5}, Direction: r3.Vec{X: 1}, MinThrust: -10, MaxThrust: 10},
		{Name: "stbd", Position: r3.Vec{Y: -0.5}, Direction: r3.Vec{X: 1}, MinThrust: -10, MaxThrust: 10},
	})
	require.NoError(t, err)
	a, err := allocation.NewAllocator(l, allocation.Config{}, nil, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	return a
}

func TestMatrixHandler(t *testing.T) {
	h := NewMatrixHandler(newAllocator(t))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/layout/matrix", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp MatrixResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.Rows)
	assert.Equal(t, 2, resp.Cols)
	assert.Equal(t, []string{"port", "stbd"}, resp.Thrusters)
	require.Len(t, resp.Matrix, 12)
	// Fx row, then the yaw row: r × d = (0, ±0.5, 0) × (1, 0, 0) = (0, 0, ∓0.5).
	assert.Equal(t, []float64{1, 1}, resp.Matrix[0:2])
	assert.InDeltaSlice(t, []float64{-0.5, 0.5}, resp.Matrix[10:12], 1e-12)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/layout/matrix", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestFaultsHandler(t *testing.T) {
	a := newAllocator(t)
	h := NewFaultsHandler(a)

	put := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/layout/faults", strings.NewReader(body)))
		return rr
	}

	rr := put(`{"dropped":["stbd"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var snap allocation.FaultSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, []string{"stbd"}, snap.Dropped)
	assert.Equal(t, []string{"stbd"}, a.Dropped())

	rr = put(`{"dropped":["nope"]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, []string{"stbd"}, a.Dropped(), "rejected request leaves the layout untouched")

	rr = put(`not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/layout/faults", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, []string{"stbd"}, snap.Dropped)
	assert.Len(t, snap.Bounds.Max, 2)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/layout/faults", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
