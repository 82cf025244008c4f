package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/peer"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/profile"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/session"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/transport"
)

func newTestServer(t *testing.T) (*Server, *session.Controller, *transport.Loopback) {
	t.Helper()
	lb := transport.NewLoopback()
	ctrl, err := session.New(session.Config{
		Transport:       lb,
		Sink:            lb,
		DefaultEndpoint: peer.Endpoint{Address: "127.0.0.1", Port: 28015},
		BaseProfile:     profile.Profile{DelayMS: 30, JitterMS: 5, Enabled: true},
	})
	require.NoError(t, err)
	require.NoError(t, ctrl.Start())
	return New(ctrl), ctrl, lb
}

func doJSON(t *testing.T, s *Server, method, path, body string, out any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	var resp map[string]any
	rec := doJSON(t, s, http.MethodGet, "/health", "", &resp)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp["status"])
}

func TestStatus(t *testing.T) {
	s, ctrl, _ := newTestServer(t)

	var resp struct {
		Profile struct {
			Enabled        bool   `json:"enabled"`
			DelayMS        int    `json:"delay_ms"`
			Classification string `json:"classification"`
		} `json:"profile"`
		NodeCount int `json:"node_count"`
	}
	rec := doJSON(t, s, http.MethodGet, "/api/v1/status", "", &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Profile.Enabled)
	assert.Equal(t, 30, resp.Profile.DelayMS)
	assert.Equal(t, len(ctrl.Nodes()), resp.NodeCount)
}

func TestNodesAndNodeByID(t *testing.T) {
	s, ctrl, _ := newTestServer(t)

	var nodes []struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	}
	rec := doJSON(t, s, http.MethodGet, "/api/v1/nodes", "", &nodes)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, nodes, 2)
	assert.Equal(t, "server", nodes[0].Role)
	assert.Equal(t, "client", nodes[1].Role)

	var node struct {
		ID string `json:"id"`
	}
	rec = doJSON(t, s, http.MethodGet, "/api/v1/nodes/"+ctrl.Client().ID, "", &node)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ctrl.Client().ID, node.ID)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/nodes/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPresetsHideDebugEntries(t *testing.T) {
	s, ctrl, _ := newTestServer(t)

	var presets []struct {
		Name  string `json:"name"`
		Debug bool   `json:"debug"`
	}
	rec := doJSON(t, s, http.MethodGet, "/api/v1/presets", "", &presets)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, p := range presets {
		assert.False(t, p.Debug, "preset %s", p.Name)
	}

	ctrl.ToggleShowAllFaultProfiles()
	var all []struct {
		Name string `json:"name"`
	}
	doJSON(t, s, http.MethodGet, "/api/v1/presets", "", &all)
	assert.Greater(t, len(all), len(presets))
}

func TestSetProfile(t *testing.T) {
	s, ctrl, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPut, "/api/v1/profile",
		`{"enabled": true, "delay_ms": 120, "jitter_ms": 40, "drop_percent": 5}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	base := ctrl.BaseProfile()
	assert.Equal(t, 120, base.DelayMS)
	assert.Equal(t, 40, base.JitterMS)
	assert.Equal(t, 5, base.DropPercent)
}

func TestApplyPreset(t *testing.T) {
	s, ctrl, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/profile/preset", `{"name": "Mobile 4G"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, ctrl.BaseProfile().DelayMS)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/profile/preset", `{"name": "Carrier Pigeon"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLagSpikeEndpoint(t *testing.T) {
	s, ctrl, _ := newTestServer(t)
	client := ctrl.Client()

	var resp struct {
		Active bool `json:"active"`
	}
	rec := doJSON(t, s, http.MethodPost, "/api/v1/nodes/"+client.ID+"/lag-spike",
		`{"duration_ms": 1000}`, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Active)
	assert.True(t, client.Fault.LagSpikeActive())
}

func TestFaultEndpointsRejectWhenEmulationDisabled(t *testing.T) {
	s, ctrl, _ := newTestServer(t)
	ctrl.SetEmulationEnabled(false)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/nodes/"+ctrl.Client().ID+"/timeout", "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "EMULATION_DISABLED", resp["code"])
}

func TestSetDesiredAndReconnect(t *testing.T) {
	s, ctrl, lb := newTestServer(t)

	rec := doJSON(t, s, http.MethodPut, "/api/v1/fleet/desired", `{"desired": 2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, ctrl.DesiredThinClients())

	lb.Tick()
	ctrl.Tick(1)
	require.Len(t, ctrl.Nodes(), 4)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/reconnect", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for _i := 0; _i < 4; _i++ {
		lb.Tick()
		ctrl.Tick(0.016)
	}
	for _, n := range ctrl.Nodes() {
		if n.Role == peer.RoleServer {
			continue
		}
		assert.Equal(t, peer.StateConnected, n.State)
	}
}

func TestDisconnectAll(t *testing.T) {
	s, ctrl, lb := newTestServer(t)

	for _i := 0; _i < 3; _i++ {
		lb.Tick()
		ctrl.Tick(0.016)
	}
	require.Equal(t, peer.StateConnected, ctrl.Client().State)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/disconnect", `{"reason": "test"}`, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	lb.Tick()
	ctrl.Tick(0.016)
	assert.Equal(t, peer.StateDisconnected, ctrl.Client().State)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "peersim_nodes_created_total")
}
