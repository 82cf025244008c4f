// Package transport provides an in-process loopback implementation of the
// transport collaborator, for tests and the standalone CLI. It is fully
// deterministic: handle state advances only on Tick, never on wall-clock
// time.
package transport

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/peer"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/profile"
)

// Loopback simulates a connection-oriented transport. Connecting takes one
// tick to reach handshake and one more to establish; a disconnected handle
// stays live until the next tick, which is what forces the connection state
// machine's teardown-then-reconnect gap.
type Loopback struct {
	mu       sync.Mutex
	handles  map[*loopbackHandle]struct{}
	profiles map[string]profile.Profile
	logger   *slog.Logger
}

type loopbackHandle struct {
	endpoint peer.Endpoint
	state    peer.State
	live     bool
	// releasing marks a handle whose resources are freed on the next tick.
	releasing bool
}

// NewLoopback creates an empty loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{
		handles:  make(map[*loopbackHandle]struct{}),
		profiles: make(map[string]profile.Profile),
		logger:   slog.Default().With("component", "loopback"),
	}
}

// Connect opens a new handle in CONNECTING state.
func (l *Loopback) Connect(endpoint peer.Endpoint) (peer.Handle, error) {
	if !endpoint.IsValid() {
		return nil, fmt.Errorf("loopback: invalid endpoint %q", endpoint.String())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	h := &loopbackHandle{
		endpoint: endpoint,
		state:    peer.StateConnecting,
		live:     true,
	}
	l.handles[h] = struct{}{}
	l.logger.Debug("connect", "endpoint", endpoint.String())
	return h, nil
}

// Disconnect moves the handle to DISCONNECTED. The handle stays live until
// the next tick.
func (l *Loopback) Disconnect(handle peer.Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, err := l.lookup(handle)
	if err != nil {
		return err
	}
	h.state = peer.StateDisconnected
	h.releasing = true
	l.logger.Debug("disconnect", "endpoint", h.endpoint.String())
	return nil
}

// State reports the authoritative state of the handle. Unknown or torn-down
// handles report UNKNOWN.
func (l *Loopback) State(handle peer.Handle) peer.State {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, err := l.lookup(handle)
	if err != nil {
		return peer.StateUnknown
	}
	return h.state
}

// IsLive reports whether the handle still owns transport resources.
func (l *Loopback) IsLive(handle peer.Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, err := l.lookup(handle)
	if err != nil {
		return false
	}
	return h.live
}

// Tick advances every handle one step: releasing handles are freed, then
// in-flight connections progress CONNECTING -> HANDSHAKE -> CONNECTED.
func (l *Loopback) Tick() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for h := range l.handles {
		if !h.live {
			continue
		}
		if h.releasing {
			h.live = false
			h.releasing = false
			continue
		}
		switch h.state {
		case peer.StateConnecting:
			h.state = peer.StateHandshake
		case peer.StateHandshake:
			h.state = peer.StateConnected
		}
	}
}

// Teardown destroys the handle entirely; afterwards it reports UNKNOWN.
func (l *Loopback) Teardown(handle peer.Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, err := l.lookup(handle); err == nil {
		delete(l.handles, h)
	}
}

// ApplyProfile records the effective profile for a node. The loopback has no
// real packet pipeline; tests and the CLI read the value back.
func (l *Loopback) ApplyProfile(node *peer.Node, p profile.Profile) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.profiles[node.ID] = p
	l.logger.Debug("profile applied",
		"node_id", node.ID,
		"delay_ms", p.DelayMS,
		"jitter_ms", p.JitterMS,
		"drop_percent", p.DropPercent,
		"enabled", p.Enabled,
	)
}

// AppliedProfile returns the last profile applied for the node.
func (l *Loopback) AppliedProfile(nodeID string) (profile.Profile, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.profiles[nodeID]
	return p, ok
}

func (l *Loopback) lookup(handle peer.Handle) (*loopbackHandle, error) {
	h, ok := handle.(*loopbackHandle)
	if !ok || h == nil {
		return nil, fmt.Errorf("loopback: foreign handle %T", handle)
	}
	if _, tracked := l.handles[h]; !tracked {
		return nil, fmt.Errorf("loopback: handle already torn down")
	}
	return h, nil
}

var (
	_ peer.Transport   = (*Loopback)(nil)
	_ peer.ProfileSink = (*Loopback)(nil)
)
