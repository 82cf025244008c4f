// Package peer defines the simulated network peers managed by the harness
// and the transport collaborator interfaces the host must provide.
package peer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/fault"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/profile"
)

// Role identifies what kind of peer a node simulates.
type Role string

const (
	// RoleServer is the single authoritative server peer.
	RoleServer Role = "server"
	// RoleClient is the primary client peer.
	RoleClient Role = "client"
	// RoleThinClient is an observer client that participates in connection
	// and session state but runs no presentation logic.
	RoleThinClient Role = "thin-client"
)

// State is the cached connection state of a node. The transport is
// authoritative; this enum is a read optimization refreshed every tick.
type State int

const (
	// StateUnknown means no connection object exists yet.
	StateUnknown State = iota
	StateConnecting
	StateHandshake
	StateConnected
	// StateDisconnected is terminal but reusable: a new connect attempt
	// re-enters StateConnecting.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "UNKNOWN"
	case StateConnecting:
		return "CONNECTING"
	case StateHandshake:
		return "HANDSHAKE"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "INVALID"
	}
}

// Endpoint is an address a node connects to.
type Endpoint struct {
	Address string
	Port    int
}

// IsValid reports whether the endpoint can be connected to at all.
func (e Endpoint) IsValid() bool {
	return e.Address != "" && e.Port > 0 && e.Port <= 65535
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Address, e.Port)
}

// Node is one simulated peer.
type Node struct {
	ID   string
	Role Role

	// State caches the last connection state reported by the transport.
	State State

	// TargetEndpoint is set only while a connect is pending; it is cleared
	// the instant a connect is issued or abandoned.
	TargetEndpoint *Endpoint

	// LastKnownEndpoint is the last endpoint actually reached, used for
	// reconnects.
	LastKnownEndpoint *Endpoint

	// Fault is the node's fault-injection overlay.
	Fault *fault.Injector
}

// New creates a node in StateUnknown with no faults active.
func New(role Role) *Node {
	return &Node{
		ID:    uuid.New().String(),
		Role:  role,
		State: StateUnknown,
		Fault: fault.New(),
	}
}

// IsAnchor reports whether the node's existence permits growing the
// thin-client fleet.
func (n *Node) IsAnchor() bool {
	return n.Role == RoleServer || n.Role == RoleClient
}

// Handle is an opaque transport connection token. The harness never inspects
// it; it only passes it back to the Transport that issued it.
type Handle any

// Transport is the connection-oriented transport the harness drives. The
// harness never touches bytes on the wire; it only manages handle lifecycle.
//
// A disconnected handle is expected to stay live for at least one scheduler
// tick before the transport releases it. The connection state machine relies
// on that to sequence teardown before reconnect.
type Transport interface {
	Connect(endpoint Endpoint) (Handle, error)
	Disconnect(handle Handle) error
	// State returns the transport's authoritative view of the handle.
	// Unknown handles (including torn-down ones) report StateUnknown.
	State(handle Handle) State
	// IsLive reports whether the handle still owns transport resources.
	IsLive(handle Handle) bool
}

// ProfileSink receives the effective network-condition profile for a node
// whenever it changes. The sink feeds whatever pipeline actually delays,
// drops, or corrupts packets.
type ProfileSink interface {
	ApplyProfile(node *Node, p profile.Profile)
}

// Initializer prepares a freshly created thin-client node, for example by
// copying loaded content from an existing peer. Returning false is a normal,
// expected outcome the fleet manager tolerates with a retry backoff.
type Initializer func(node *Node) bool
