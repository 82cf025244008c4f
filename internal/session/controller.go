// Package session orchestrates the simulated peer session: the server and
// primary client anchors, the thin-client fleet, per-node connection state
// machines, fault injection, and the network-condition profile pushed to the
// transport.
//
// All mutation happens on the tick thread or under the controller mutex;
// Tick is the single logical writer and the public operations are safe to
// call from an embedding tool's UI or API thread. Node state read off the
// tick thread goes through the NodeInfo snapshots; Nodes and NodeByID hand
// out live pointers for tick-thread callers only.
package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/conn"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/fleet"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/peer"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/profile"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/simerrors"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/simmetrics"
)

// Config wires a controller to its host.
type Config struct {
	// Transport is the connection-oriented transport the session drives.
	Transport peer.Transport
	// Sink receives effective profiles; nil disables profile pushes.
	Sink peer.ProfileSink
	// DefaultEndpoint is where clients connect when no prior endpoint is
	// known.
	DefaultEndpoint peer.Endpoint
	// BaseProfile is the initial network-condition profile.
	BaseProfile profile.Profile
	// Presets extends the built-in profile catalogue.
	Presets []profile.Preset

	DesiredThinClients      int
	CreationIntervalSeconds float64
	FailureRetrySeconds     float64
	// Initializer prepares each thin client; nil accepts every node.
	Initializer peer.Initializer

	// OnStateChanged observes every node connection state change, after the
	// controller's own bookkeeping. Runs on the tick thread.
	OnStateChanged func(*peer.Node)
	// Metrics is optional; nil allocates a private set.
	Metrics *simmetrics.Metrics
}

// Controller is the session orchestrator. Create with New, then Start.
type Controller struct {
	mu sync.Mutex

	cfg       Config
	base      profile.Profile
	catalogue *profile.Catalogue
	metrics   *simmetrics.Metrics
	logger    *slog.Logger

	server *peer.Node
	client *peer.Node
	fleet  *fleet.Manager

	machines map[string]*conn.Machine

	// active gates fleet growth; faults and connection machinery keep
	// running while inactive so existing nodes stay truthful.
	active bool
}

// New creates a controller. No nodes exist until Start.
func New(cfg Config) (*Controller, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("session: transport is required")
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = simmetrics.New()
	}

	base := cfg.BaseProfile
	base.Normalize()

	c := &Controller{
		cfg:       cfg,
		base:      base,
		catalogue: profile.NewCatalogue(cfg.Presets...),
		metrics:   metrics,
		logger:    slog.Default().With("component", "session"),
		machines:  make(map[string]*conn.Machine),
		active:    true,
	}
	c.fleet = fleet.NewManager(fleet.Config{
		CreationIntervalSeconds: cfg.CreationIntervalSeconds,
		FailureRetrySeconds:     cfg.FailureRetrySeconds,
		Initializer:             cfg.Initializer,
		AnchorExists:            c.anchorExists,
		OnCreate:                c.adoptNode,
		OnDispose:               c.disposeNode,
		Metrics:                 metrics,
	})
	c.fleet.SetDesired(cfg.DesiredThinClients)
	return c, nil
}

// Start creates the server and primary client anchors and points the client
// at the default endpoint. The connect itself happens on the next Tick.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.server != nil {
		return simerrors.New(simerrors.CodeInvalidState, "session already started")
	}

	c.server = peer.New(peer.RoleServer)
	c.adoptNode(c.server)
	c.client = peer.New(peer.RoleClient)
	c.adoptNode(c.client)

	c.machines[c.client.ID].RequestReconnect(c.cfg.DefaultEndpoint)
	c.logger.Info("session started",
		"server_id", c.server.ID,
		"client_id", c.client.ID,
		"endpoint", c.cfg.DefaultEndpoint.String(),
	)
	return nil
}

// Tick advances the whole session by dt seconds: fleet sizing first, then
// fault timers, then every node's connection state machine.
func (c *Controller) Tick(dt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.TicksTotal.Inc()

	if c.active {
		c.fleet.Tick(dt)
	}

	for _, n := range c.nodeList() {
		if n.Fault.Advance(dt) {
			c.pushProfile(n)
		}
	}
	c.refreshFaultGauge()

	for _, n := range c.nodeList() {
		m, ok := c.machines[n.ID]
		if !ok {
			continue
		}
		if err := m.Tick(); err != nil {
			c.logger.Warn("connection tick failed", "node_id", n.ID, "error", err)
		}
	}
}

// SetActive pauses or resumes fleet growth. Existing nodes keep ticking.
func (c *Controller) SetActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = active
}

// SetInteractionSuppressed pauses fleet growth while the user is mid-edit on
// a control bound to the fleet size.
func (c *Controller) SetInteractionSuppressed(suppressed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fleet.SetSuppressed(suppressed)
}

// SetDesiredThinClients sets the target fleet size; convergence is gradual.
func (c *Controller) SetDesiredThinClients(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fleet.SetDesired(n)
}

// DesiredThinClients returns the target fleet size.
func (c *Controller) DesiredThinClients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fleet.Desired()
}

// ReconnectAll requests a reconnect for every client node, preferring each
// node's last known endpoint over the default.
func (c *Controller) ReconnectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, n := range c.nodeList() {
		if n.Role == peer.RoleServer {
			continue
		}
		m, ok := c.machines[n.ID]
		if !ok {
			continue
		}
		endpoint := c.cfg.DefaultEndpoint
		if n.LastKnownEndpoint != nil {
			endpoint = *n.LastKnownEndpoint
		}
		m.RequestReconnect(endpoint)
		count++
	}
	c.logger.Info("reconnect requested for all clients", "count", count)
}

// DisconnectAllFromServer drops every live client connection from the server
// side, as a real server would on shutdown or kick. The client state machines
// observe the loss through their own transport polls.
func (c *Controller) DisconnectAllFromServer(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, n := range c.nodeList() {
		if n.Role == peer.RoleServer {
			continue
		}
		m, ok := c.machines[n.ID]
		if !ok || !m.HasLiveHandle() {
			continue
		}
		if err := c.cfg.Transport.Disconnect(m.Handle()); err != nil {
			c.logger.Warn("server-side disconnect failed", "node_id", n.ID, "error", err)
			continue
		}
		count++
	}
	c.logger.Info("server dropped all connections", "reason", reason, "count", count)
}

// ToggleLagSpike toggles a lag spike of roughly durationMS on the node and
// reports whether it is active afterwards. Requires emulation to be enabled.
func (c *Controller) ToggleLagSpike(nodeID string, durationMS int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.faultTarget(nodeID)
	if err != nil {
		return false, err
	}
	active := n.Fault.ToggleLagSpike(durationMS)
	c.pushProfile(n)
	c.refreshFaultGauge()
	c.logger.Info("lag spike toggled", "node_id", nodeID, "active", active)
	return active, nil
}

// ToggleForcedTimeout toggles a forced timeout on the node and reports
// whether it is active afterwards. Requires emulation to be enabled.
func (c *Controller) ToggleForcedTimeout(nodeID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.faultTarget(nodeID)
	if err != nil {
		return false, err
	}
	active := n.Fault.ToggleTimeout()
	c.pushProfile(n)
	c.refreshFaultGauge()
	c.logger.Info("forced timeout toggled", "node_id", nodeID, "active", active)
	return active, nil
}

// SetEmulationEnabled flips the emulation master switch. This is disruptive:
// transports only pick profile changes up on connect, so every active fault
// is cleared and every in-flight connection is torn down.
func (c *Controller) SetEmulationEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.base.Enabled == enabled {
		return
	}
	c.base.Enabled = enabled
	c.disruptProfileChange()
	c.logger.Info("network emulation toggled", "enabled", enabled)
}

// SetBaseProfile replaces the base network-condition profile. Flipping the
// Enabled bit is disruptive; pure parameter edits push through in place.
func (c *Controller) SetBaseProfile(p profile.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setBaseProfile(p)
}

// ApplyPreset replaces the base profile with the named catalogue entry.
// Hidden debug presets are found too; the visibility filter only affects
// listing.
func (c *Controller) ApplyPreset(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	preset, ok := c.catalogue.Find(name)
	if !ok {
		return simerrors.Newf(simerrors.CodeInvalidState, "unknown preset %q", name)
	}
	c.setBaseProfile(preset.Profile)
	c.logger.Info("preset applied", "preset", name)
	return nil
}

// BaseProfile returns the current base profile.
func (c *Controller) BaseProfile() profile.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base
}

// ToggleShowAllFaultProfiles flips the catalogue's debug-preset filter and
// reports the new value.
func (c *Controller) ToggleShowAllFaultProfiles() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalogue.ToggleShowAll()
}

// Presets lists the currently visible catalogue entries.
func (c *Controller) Presets() []profile.Preset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalogue.Visible()
}

// NodeInfo is a point-in-time copy of one node's observable state, safe to
// read from any goroutine.
type NodeInfo struct {
	ID       string
	Role     peer.Role
	State    peer.State
	Endpoint string

	LagSpikeActive        bool
	LagSpikeRemainingMS   int
	TimeoutActive         bool
	TimeoutElapsedSeconds float64
}

func snapshotOf(n *peer.Node) NodeInfo {
	info := NodeInfo{
		ID:             n.ID,
		Role:           n.Role,
		State:          n.State,
		LagSpikeActive: n.Fault.LagSpikeActive(),
		TimeoutActive:  n.Fault.TimeoutActive(),
	}
	if n.LastKnownEndpoint != nil {
		info.Endpoint = n.LastKnownEndpoint.String()
	}
	if info.LagSpikeActive {
		info.LagSpikeRemainingMS = n.Fault.LagSpikeRemainingMS
	}
	if info.TimeoutActive {
		info.TimeoutElapsedSeconds = n.Fault.TimeoutElapsedSeconds
	}
	return info
}

// NodeInfos returns snapshots of all nodes: server, client, then the fleet in
// creation order.
func (c *Controller) NodeInfos() []NodeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodes := c.nodeList()
	out := make([]NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, snapshotOf(n))
	}
	return out
}

// NodeInfo looks a node snapshot up by ID.
func (c *Controller) NodeInfo(id string) (NodeInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.findNode(id)
	if n == nil {
		return NodeInfo{}, false
	}
	return snapshotOf(n), true
}

// Nodes returns the live node list: server, client, then the fleet in
// creation order. The pointers are owned by the tick thread; callers running
// concurrently with Tick must use NodeInfos instead.
func (c *Controller) Nodes() []*peer.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodeList()
}

// NodeByID looks a live node up by its ID. Tick-thread only, like Nodes.
func (c *Controller) NodeByID(id string) (*peer.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.findNode(id)
	return n, n != nil
}

// Server returns the server anchor, nil before Start.
func (c *Controller) Server() *peer.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

// Client returns the primary client anchor, nil before Start.
func (c *Controller) Client() *peer.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// Metrics returns the controller's instrument set.
func (c *Controller) Metrics() *simmetrics.Metrics {
	return c.metrics
}

// Close releases every node's transport resources. The controller is not
// usable afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, m := range c.machines {
		m.Dispose()
		delete(c.machines, id)
	}
	c.logger.Info("session closed")
}

func (c *Controller) setBaseProfile(p profile.Profile) {
	p.Normalize()
	disruptive := p.Enabled != c.base.Enabled
	c.base = p
	if disruptive {
		c.disruptProfileChange()
		return
	}
	for _, n := range c.nodeList() {
		c.pushProfile(n)
	}
}

// disruptProfileChange clears all faults, pushes the new profile, and tears
// down every in-flight connection so the transport re-reads the profile on
// the next connect.
func (c *Controller) disruptProfileChange() {
	for _, n := range c.nodeList() {
		n.Fault.Reset()
		c.pushProfile(n)
		m, ok := c.machines[n.ID]
		if !ok {
			continue
		}
		switch n.State {
		case peer.StateConnecting, peer.StateHandshake, peer.StateConnected:
			if err := m.RequestDisconnect(); err != nil {
				c.logger.Warn("disconnect on profile change failed", "node_id", n.ID, "error", err)
			}
		}
	}
	c.refreshFaultGauge()
}

func (c *Controller) faultTarget(nodeID string) (*peer.Node, error) {
	if !c.base.Enabled {
		return nil, simerrors.New(simerrors.CodeEmulationDisabled,
			"enable network emulation before injecting faults")
	}
	n := c.findNode(nodeID)
	if n == nil {
		return nil, simerrors.Newf(simerrors.CodeNodeNotFound, "no node %q", nodeID)
	}
	return n, nil
}

func (c *Controller) anchorExists() bool {
	return c.server != nil || c.client != nil
}

// adoptNode registers the connection machine for a node and applies the
// current profile. Runs under the mutex: either inside Tick via the fleet
// callbacks or from Start.
func (c *Controller) adoptNode(n *peer.Node) {
	c.machines[n.ID] = conn.NewMachine(n, c.cfg.Transport, c.onStateChanged)
	c.metrics.NodesCreated.Inc()
	c.pushProfile(n)
}

func (c *Controller) disposeNode(n *peer.Node) {
	if m, ok := c.machines[n.ID]; ok {
		m.Dispose()
		delete(c.machines, n.ID)
	}
	c.metrics.NodesDisposed.Inc()
}

// onStateChanged runs inside the connection machines, under the mutex. A
// disconnect implicitly ends a forced timeout: the condition the timeout
// simulates has now actually happened.
func (c *Controller) onStateChanged(n *peer.Node) {
	c.metrics.StateChanges.WithLabelValues(n.State.String()).Inc()

	if n.State == peer.StateDisconnected && n.Fault.TimeoutActive() {
		n.Fault.ClearTimeout()
		c.pushProfile(n)
		c.refreshFaultGauge()
	}

	if c.cfg.OnStateChanged != nil {
		c.cfg.OnStateChanged(n)
	}
}

func (c *Controller) pushProfile(n *peer.Node) {
	if c.cfg.Sink == nil {
		return
	}
	c.cfg.Sink.ApplyProfile(n, c.base.Effective(n.Fault.Active()))
}

func (c *Controller) refreshFaultGauge() {
	count := 0
	for _, n := range c.nodeList() {
		if n.Fault.Active() {
			count++
		}
	}
	c.metrics.ActiveFaults.Set(float64(count))
}

func (c *Controller) nodeList() []*peer.Node {
	out := make([]*peer.Node, 0, c.fleet.Count()+2)
	if c.server != nil {
		out = append(out, c.server)
	}
	if c.client != nil {
		out = append(out, c.client)
	}
	return append(out, c.fleet.Nodes()...)
}

func (c *Controller) findNode(id string) *peer.Node {
	for _, n := range c.nodeList() {
		if n.ID == id {
			return n
		}
	}
	return nil
}
