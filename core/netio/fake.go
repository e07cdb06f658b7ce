package netio

import "sync"

// FakeCodec is a no-op Codec for tests: it records the last priority and
// tunnel it was asked to encapsulate with and returns the packet's bytes
// unchanged, standing in for the real IP-in-IP rewrite.
type FakeCodec struct {
	mu            sync.Mutex
	LastPriority  uint8
	LastTunnel    TunnelInfo
	EncapsulateCt int
}

// Encapsulate implements Codec.
func (f *FakeCodec) Encapsulate(pkt *Packet, priority uint8, tunnel TunnelInfo) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastPriority = priority
	f.LastTunnel = tunnel
	f.EncapsulateCt++
	return pkt.Data, nil
}

// FakeSource is an in-memory PacketSource that replays a fixed queue of
// packets, used by GK/LLS worker tests to drive deterministic scenarios
// without a real NIC.
type FakeSource struct {
	mu      sync.Mutex
	pending []*Packet
}

// NewFakeSource creates a FakeSource that will replay pkts in order.
func NewFakeSource(pkts ...*Packet) *FakeSource {
	return &FakeSource{pending: pkts}
}

// Push appends more packets to be returned by future RxBurst calls.
func (s *FakeSource) Push(pkts ...*Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, pkts...)
}

// RxBurst implements PacketSource.
func (s *FakeSource) RxBurst(max int) ([]*Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if max > len(s.pending) {
		max = len(s.pending)
	}
	out := s.pending[:max]
	s.pending = s.pending[max:]
	return out, nil
}

// FakeSink is an in-memory PacketSink that records every transmitted
// packet for assertions.
type FakeSink struct {
	mu   sync.Mutex
	Sent []*Packet
}

// TxBurst implements PacketSink.
func (s *FakeSink) TxBurst(pkts []*Packet) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, pkts...)
	return len(pkts), nil
}
