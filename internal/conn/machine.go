// Package conn drives one node's connection lifecycle against a transport.
//
// Reconnecting is a two-phase protocol: the old handle is disconnected on the
// tick the request arrives, and the new connect is issued on a later tick,
// once the transport reports the handle released. Overlapping connect
// attempts on a not-yet-released handle are a real defect class in
// connection-oriented transports; the one-tick gap rules them out.
package conn

import (
	"errors"
	"log/slog"

	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/peer"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/simerrors"
)

// ErrNotConnected is returned when a disconnect is requested for a node that
// has no connection in flight.
var ErrNotConnected = errors.New("node has no active connection")

// Machine owns the transport handle for one node and keeps the node's cached
// state in sync with the transport's ground truth.
type Machine struct {
	node      *peer.Node
	transport peer.Transport
	handle    peer.Handle
	onChange  func(*peer.Node)
	logger    *slog.Logger
}

// NewMachine creates a state machine for the node. onChange, if non-nil, is
// invoked whenever the node's connection state differs from the prior value.
func NewMachine(node *peer.Node, transport peer.Transport, onChange func(*peer.Node)) *Machine {
	return &Machine{
		node:      node,
		transport: transport,
		onChange:  onChange,
		logger: slog.Default().With(
			"component", "connstate",
			"node_id", node.ID,
		),
	}
}

// Node returns the node this machine drives.
func (m *Machine) Node() *peer.Node {
	return m.node
}

// Handle returns the current transport handle, or nil.
func (m *Machine) Handle() peer.Handle {
	return m.handle
}

// HasLiveHandle reports whether the node still owns live transport resources.
func (m *Machine) HasLiveHandle() bool {
	return m.handle != nil && m.transport.IsLive(m.handle)
}

// RequestReconnect records the endpoint to connect to. If the node owns a
// live handle it is disconnected now and the connect happens on a later
// tick; the transport needs at least one scheduler tick to release the
// handle. Calling this while a disconnect is already in flight simply
// re-records the target; the tick loop sequences everything.
func (m *Machine) RequestReconnect(endpoint peer.Endpoint) {
	ep := endpoint
	m.node.TargetEndpoint = &ep

	if !m.HasLiveHandle() {
		return
	}
	if err := m.transport.Disconnect(m.handle); err != nil {
		m.logger.Warn("disconnect before reconnect failed", "error", err)
	}
	m.setState(peer.StateDisconnected)
	m.logger.Debug("teardown issued, connect deferred to a later tick", "endpoint", ep.String())
}

// RequestDisconnect tears down the node's connection. It is valid only while
// a connection is in flight or established.
func (m *Machine) RequestDisconnect() error {
	switch m.node.State {
	case peer.StateConnecting, peer.StateHandshake, peer.StateConnected:
	default:
		return ErrNotConnected
	}

	// An explicit disconnect abandons any pending reconnect.
	m.node.TargetEndpoint = nil

	if m.handle != nil {
		if err := m.transport.Disconnect(m.handle); err != nil {
			m.logger.Warn("disconnect failed", "error", err)
		}
	}
	m.setState(peer.StateDisconnected)
	return nil
}

// Tick polls the transport for ground truth, releases dead handles, and
// issues any pending connect whose teardown has completed. Returned errors
// are diagnostics; the machine has already recovered.
func (m *Machine) Tick() error {
	if m.handle != nil {
		m.setState(m.transport.State(m.handle))
		if !m.transport.IsLive(m.handle) {
			m.handle = nil
		}
	}

	// A pending reconnect waits here until the old handle is gone.
	if m.node.TargetEndpoint == nil || m.handle != nil {
		return nil
	}

	endpoint := *m.node.TargetEndpoint
	m.node.TargetEndpoint = nil

	if !endpoint.IsValid() {
		return simerrors.Newf(simerrors.CodeInvalidEndpoint,
			"node %s: cannot connect to %q", m.node.ID, endpoint.String())
	}

	handle, err := m.transport.Connect(endpoint)
	if err != nil {
		return simerrors.Wrap(simerrors.CodeInternal, err, "connect failed")
	}
	m.handle = handle
	ep := endpoint
	m.node.LastKnownEndpoint = &ep
	m.setState(peer.StateConnecting)
	m.logger.Debug("connect issued", "endpoint", endpoint.String())
	return nil
}

// Dispose releases the node's transport resources. Used on fleet shrink and
// session teardown; disposal is synchronous.
func (m *Machine) Dispose() {
	m.node.TargetEndpoint = nil
	if m.handle == nil {
		return
	}
	if err := m.transport.Disconnect(m.handle); err != nil {
		m.logger.Warn("disconnect on dispose failed", "error", err)
	}
	m.handle = nil
}

func (m *Machine) setState(s peer.State) {
	if s == m.node.State {
		return
	}
	prev := m.node.State
	m.node.State = s
	m.logger.Debug("connection state changed", "from", prev.String(), "to", s.String())
	if m.onChange != nil {
		m.onChange(m.node)
	}
}
