package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"gotest.tools/v3/assert"

	"github.com/talgya/gridsim/internal/config"
	"github.com/talgya/gridsim/internal/economy"
	"github.com/talgya/gridsim/internal/engine"
	"github.com/talgya/gridsim/internal/finance"
	"github.com/talgya/gridsim/internal/power"
	"github.com/talgya/gridsim/internal/social"
	"github.com/talgya/gridsim/internal/world"
)

const adminKey = "s3cret"

func testServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	m := world.NewMap(20, 10)
	for x := 0; x < 20; x++ {
		for y := 0; y < 10; y++ {
			m.SetGround(&world.Tile{Pos: world.Koord3D{X: x, Y: y, Z: 1}})
		}
	}
	sim := engine.NewSimulation(m, config.Default(), finance.NewLedger())
	sim.AddFactory(economy.NewPowerPlant(0, "Ashford Power Station", world.Koord{X: 1, Y: 1}, world.Koord{X: 2, Y: 2}, 5000))
	sim.AddCity(social.NewCity(0, "Greenford", world.Koord{X: 12, Y: 1}, world.Koord{X: 5, Y: 5}, 2500))
	_, err := sim.LayLine(world.Koord{X: 3, Y: 1}, world.Koord{X: 12, Y: 1}, 2, power.KindSupply, power.KindDemand)
	assert.NilError(t, err)
	sim.Step(1)
	sim.Step(2)

	s := &Server{Sim: sim, Eng: engine.NewEngine(), AdminKey: adminKey, Rate: 1000, Burst: 1000}
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if admin {
		req.Header.Set("Authorization", "Bearer "+adminKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	_, h := testServer(t)
	rec := do(t, h, http.MethodGet, "/api/v1/status", "", false)
	assert.Equal(t, rec.Code, http.StatusOK)

	var status struct {
		Tick  uint64          `json:"tick"`
		Stats engine.SimStats `json:"stats"`
	}
	assert.NilError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, status.Tick, uint64(2))
	assert.Equal(t, status.Stats.Nets, 1)
}

func TestStatusBeforeFirstTick(t *testing.T) {
	sim := engine.NewSimulation(world.NewMap(4, 4), config.Default(), finance.NewLedger())
	s := &Server{Sim: sim, Eng: engine.NewEngine()}
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/status", "", false)
	assert.Equal(t, rec.Code, http.StatusServiceUnavailable)
}

func TestNodes(t *testing.T) {
	_, h := testServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/nodes?kind=supply", "", false)
	assert.Equal(t, rec.Code, http.StatusOK)
	var nodes []power.NodeSnapshot
	assert.NilError(t, json.NewDecoder(rec.Body).Decode(&nodes))
	assert.Equal(t, len(nodes), 1)
	assert.Equal(t, nodes[0].Pos, world.Koord3D{X: 3, Y: 1, Z: 1})

	rec = do(t, h, http.MethodGet, "/api/v1/nodes", "", false)
	assert.NilError(t, json.NewDecoder(rec.Body).Decode(&nodes))
	assert.Equal(t, len(nodes), 2)

	rec = do(t, h, http.MethodGet, "/api/v1/nodes?kind=transformer", "", false)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestSpeedRequiresAdmin(t *testing.T) {
	s, h := testServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed": 4}`, false)
	assert.Equal(t, rec.Code, http.StatusUnauthorized)

	rec = do(t, h, http.MethodPost, "/api/v1/speed", `{"speed": 4}`, true)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, s.Eng.Speed(), 4.0)

	rec = do(t, h, http.MethodPost, "/api/v1/speed", `{"speed": -1}`, true)
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	s.AdminKey = ""
	rec = do(t, s.Handler(), http.MethodPost, "/api/v1/speed", `{"speed": 4}`, true)
	assert.Equal(t, rec.Code, http.StatusForbidden)
}

func TestBuildAndDemolish(t *testing.T) {
	s, h := testServer(t)

	rec := do(t, h, http.MethodDelete, "/api/v1/nodes/7/1/1", "", true)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, s.Sim.Grid.NetCount(), 2)

	rec = do(t, h, http.MethodDelete, "/api/v1/nodes/7/1/1", "", true)
	assert.Equal(t, rec.Code, http.StatusNotFound)

	body := `{"x": 7, "y": 1, "z": 1, "owner": 2}`
	rec = do(t, h, http.MethodPost, "/api/v1/nodes", body, true)
	assert.Equal(t, rec.Code, http.StatusCreated)
	assert.Equal(t, s.Sim.Grid.NetCount(), 1)

	rec = do(t, h, http.MethodPost, "/api/v1/nodes", body, true)
	assert.Equal(t, rec.Code, http.StatusConflict)

	rec = do(t, h, http.MethodPost, "/api/v1/nodes", `{"x": 99, "y": 1, "z": 1}`, true)
	assert.Equal(t, rec.Code, http.StatusUnprocessableEntity)
}

func TestCloseFactory(t *testing.T) {
	s, h := testServer(t)
	rec := do(t, h, http.MethodPost, "/api/v1/factories/1/close", "", true)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Assert(t, s.Sim.Factory(1) == nil)

	rec = do(t, h, http.MethodPost, "/api/v1/factories/1/close", "", true)
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestSnapshotWithoutDB(t *testing.T) {
	_, h := testServer(t)
	rec := do(t, h, http.MethodPost, "/api/v1/snapshot", "", true)
	assert.Equal(t, rec.Code, http.StatusServiceUnavailable)
}

func TestRateLimit(t *testing.T) {
	s, _ := testServer(t)
	s.Rate, s.Burst = 0.01, 2
	h := s.Handler()

	for i := 0; i < 2; i++ {
		assert.Equal(t, do(t, h, http.MethodGet, "/api/v1/cities", "", false).Code, http.StatusOK)
	}
	rec := do(t, h, http.MethodGet, "/api/v1/cities", "", false)
	assert.Equal(t, rec.Code, http.StatusTooManyRequests)
	assert.Assert(t, rec.Header().Get("Retry-After") != "")

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cities", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	other := httptest.NewRecorder()
	h.ServeHTTP(other, req)
	assert.Equal(t, other.Code, http.StatusOK)
}

func TestStream(t *testing.T) {
	s, h := testServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NilError(t, err)
	defer conn.Close()

	var f streamFrame
	assert.NilError(t, conn.ReadJSON(&f))
	assert.Equal(t, f.Tick, uint64(2))
	assert.Equal(t, f.Nets, 1)

	s.Sim.Step(3)
	assert.NilError(t, conn.ReadJSON(&f))
	assert.Equal(t, f.Tick, uint64(3))
}
