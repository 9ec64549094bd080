// Package netstatus tracks the backend node's network connectivity.
package netstatus

import (
	"fmt"
	"strconv"
	"sync"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-miner/internal/log"
)

// Payload is the connection_status event payload.
type Payload struct {
	Connected   bool     `json:"connected"`
	PeerCount   int      `json:"peer_count"`
	ListenAddrs []string `json:"listen_addrs"`
	NodeType    string   `json:"node_type"`
}

// Endpoint is a listen address split into display parts.
type Endpoint struct {
	Host      string `json:"host"`
	Transport string `json:"transport"`
	Port      int    `json:"port"`
	PeerID    string `json:"peer_id,omitempty"`
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s/%s:%d", e.Transport, e.Host, e.Port)
}

// Status is the reconciled connection state.
type Status struct {
	Connected bool       `json:"connected"`
	PeerCount int        `json:"peer_count"`
	NodeType  string     `json:"node_type"`
	Endpoints []Endpoint `json:"endpoints"`
}

var hostProtocols = []int{ma.P_IP4, ma.P_IP6, ma.P_DNS, ma.P_DNS4, ma.P_DNS6}

// ParseEndpoint splits a multiaddr like /ip4/1.2.3.4/tcp/30303/p2p/<id>.
func ParseEndpoint(addr string) (Endpoint, error) {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return Endpoint{}, err
	}

	var ep Endpoint
	for _, code := range hostProtocols {
		if v, err := m.ValueForProtocol(code); err == nil {
			ep.Host = v
			break
		}
	}
	if ep.Host == "" {
		return Endpoint{}, fmt.Errorf("%s: no host component", addr)
	}

	var port string
	if v, err := m.ValueForProtocol(ma.P_TCP); err == nil {
		ep.Transport, port = "tcp", v
	} else if v, err := m.ValueForProtocol(ma.P_UDP); err == nil {
		ep.Transport, port = "udp", v
		if _, err := m.ValueForProtocol(ma.P_QUIC_V1); err == nil {
			ep.Transport = "quic"
		}
	} else {
		return Endpoint{}, fmt.Errorf("%s: no transport component", addr)
	}
	if ep.Port, err = strconv.Atoi(port); err != nil {
		return Endpoint{}, fmt.Errorf("%s: bad port: %w", addr, err)
	}

	if v, err := m.ValueForProtocol(ma.P_P2P); err == nil {
		ep.PeerID = v
	}
	return ep, nil
}

// Tracker holds the latest connection status.
type Tracker struct {
	mu     sync.RWMutex
	status Status
	logger zerolog.Logger
}

// NewTracker creates a tracker with a disconnected status.
func NewTracker() *Tracker {
	return &Tracker{logger: klog.Network}
}

// Apply reconciles p and reports whether the connected flag or the peer
// count changed.
func (t *Tracker) Apply(p Payload) (Status, bool) {
	next := Status{
		Connected: p.Connected,
		PeerCount: max(p.PeerCount, 0),
		NodeType:  p.NodeType,
	}
	for _, addr := range p.ListenAddrs {
		ep, err := ParseEndpoint(addr)
		if err != nil {
			t.logger.Warn().Err(err).Str("addr", addr).Msg("Ignoring listen address")
			continue
		}
		next.Endpoints = append(next.Endpoints, ep)
	}

	t.mu.Lock()
	prev := t.status
	t.status = next
	t.mu.Unlock()

	changed := prev.Connected != next.Connected || prev.PeerCount != next.PeerCount
	if changed {
		t.logger.Info().
			Bool("connected", next.Connected).
			Int("peers", next.PeerCount).
			Msg("Connection status changed")
	}
	return next, changed
}

// Status returns the latest status.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
