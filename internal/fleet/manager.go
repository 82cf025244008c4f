// Package fleet grows and shrinks the pool of thin-client nodes toward a
// desired size without overwhelming the host: creation is throttled by a
// fixed interval, and a failed initializer pauses growth for a retry
// interval instead of spinning.
package fleet

import (
	"log/slog"
	"math"

	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/peer"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/simmetrics"
)

// Config wires the manager to its host. The callbacks run synchronously
// inside Tick.
type Config struct {
	// CreationIntervalSeconds is the minimum delay between node creations;
	// 0 means unlimited.
	CreationIntervalSeconds float64
	// FailureRetrySeconds is the fixed floor applied after an initializer
	// failure before creation is attempted again.
	FailureRetrySeconds float64
	// Initializer prepares each new node; returning false discards the node
	// and backs growth off.
	Initializer peer.Initializer
	// AnchorExists gates growth: thin clients are only created while a
	// server or primary client node exists.
	AnchorExists func() bool
	// OnCreate is called for each node admitted to the fleet.
	OnCreate func(*peer.Node)
	// OnDispose is called for each node removed from the fleet; disposal is
	// synchronous.
	OnDispose func(*peer.Node)
	// Metrics is optional; nil disables instrumentation.
	Metrics *simmetrics.Metrics
}

// Manager owns the ordered thin-client node list.
type Manager struct {
	cfg     Config
	desired int
	nodes   []*peer.Node
	// cooldown is the time remaining until the next creation is allowed.
	cooldown   float64
	suppressed bool
	logger     *slog.Logger
}

// NewManager creates an empty fleet.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: slog.Default().With("component", "fleet"),
	}
}

// SetDesired sets the target fleet size. Negative values clamp to zero.
func (m *Manager) SetDesired(n int) {
	if n < 0 {
		n = 0
	}
	m.desired = n
}

// Desired returns the target fleet size.
func (m *Manager) Desired() int {
	return m.desired
}

// SetSuppressed pauses growth while an external actor holds an interaction
// lock, for example mid-drag on a control bound to the fleet size.
func (m *Manager) SetSuppressed(suppressed bool) {
	m.suppressed = suppressed
}

// Count returns the current fleet size.
func (m *Manager) Count() int {
	return len(m.nodes)
}

// Nodes returns a snapshot of the fleet in creation order.
func (m *Manager) Nodes() []*peer.Node {
	out := make([]*peer.Node, len(m.nodes))
	copy(out, m.nodes)
	return out
}

// Tick drives the fleet toward the desired size.
func (m *Manager) Tick(dt float64) {
	m.cooldown -= dt

	m.shrink()
	m.grow()

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.ThinClients.Set(float64(len(m.nodes)))
	}
}

// shrink removes the most recently created nodes first: they are the least
// likely to hold state the user is actively inspecting.
func (m *Manager) shrink() {
	for len(m.nodes) > m.desired {
		last := m.nodes[len(m.nodes)-1]
		m.nodes = m.nodes[:len(m.nodes)-1]
		if m.cfg.OnDispose != nil {
			m.cfg.OnDispose(last)
		}
		m.logger.Debug("thin client disposed", "node_id", last.ID, "remaining", len(m.nodes))
	}
}

func (m *Manager) grow() {
	if m.suppressed {
		return
	}
	if m.cfg.AnchorExists == nil || !m.cfg.AnchorExists() {
		return
	}

	for len(m.nodes) < m.desired && m.cooldown <= 0 {
		node := peer.New(peer.RoleThinClient)

		ok := true
		if m.cfg.Initializer != nil {
			ok = m.cfg.Initializer(node)
		}
		if m.cfg.CreationIntervalSeconds > 0 {
			m.cooldown = m.cfg.CreationIntervalSeconds
		}
		if !ok {
			// Back off and stop growing this tick; a hot failure loop would
			// starve the host.
			m.cooldown = math.Max(m.cooldown, m.cfg.FailureRetrySeconds)
			if m.cfg.Metrics != nil {
				m.cfg.Metrics.InitializerFailures.Inc()
			}
			m.logger.Warn("thin client initializer failed, backing off",
				"retry_seconds", m.cooldown)
			return
		}

		m.nodes = append(m.nodes, node)
		if m.cfg.OnCreate != nil {
			m.cfg.OnCreate(node)
		}
		m.logger.Debug("thin client created", "node_id", node.ID, "count", len(m.nodes))
	}
}
