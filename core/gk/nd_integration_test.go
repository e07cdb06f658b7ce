package gk_test

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"gatekeeper/core/clock"
	"gatekeeper/core/gk"
	"gatekeeper/core/lls"
	"gatekeeper/core/metrics"
	"gatekeeper/core/netio"
)

type resolvedNDOps struct{}

func (resolvedNDOps) IfaceEnabled(lls.IfaceRole) bool           { return true }
func (resolvedNDOps) InSubnet(lls.IfaceRole, [16]byte) bool     { return true }
func (resolvedNDOps) XmitRequest(lls.IfaceRole, [16]byte) error { return nil }
func (resolvedNDOps) FormatKey(k [16]byte) string               { return "" }

type noopARPOps struct{}

func (noopARPOps) IfaceEnabled(lls.IfaceRole) bool          { return true }
func (noopARPOps) InSubnet(lls.IfaceRole, [4]byte) bool     { return true }
func (noopARPOps) XmitRequest(lls.IfaceRole, [4]byte) error { return nil }
func (noopARPOps) FormatKey(k [4]byte) string               { return "" }

const icmpv6NeighborAdvertisement = 136

// ndAdvertisementFrame builds a bare Ethernet + IPv6 + ICMPv6 neighbor
// advertisement frame, matching what lls.Worker.handleND expects: a
// 40-byte IPv6 header (next header 58) followed by an ICMPv6 message whose
// first byte is the neighbor-advertisement type.
func ndAdvertisementFrame(senderIP net.IP) []byte {
	eth := make([]byte, 14)
	binary.BigEndian.PutUint16(eth[12:14], netio.EtherTypeIPv6)

	ipv6 := make([]byte, 40)
	ipv6[6] = 58 // next header: ICMPv6
	copy(ipv6[8:24], senderIP.To16())

	icmp := make([]byte, 8)
	icmp[0] = icmpv6NeighborAdvertisement

	frame := append(eth, ipv6...)
	return append(frame, icmp...)
}

// TestWorkerSatisfiesNDSubmitterAndResolvesCachedTarget exercises the
// gk.NDSubmitter integration point: a lls.Worker is handed to gk as the
// frame recipient, and SubmitND returns immediately (a non-blocking
// mailbox enqueue) without waiting for the frame to be parsed.
func TestWorkerSatisfiesNDSubmitterAndResolvesCachedTarget(t *testing.T) {
	var _ gk.NDSubmitter = (*lls.Worker)(nil)

	worker := lls.NewWorker(lls.Config{
		Clock:       clock.NewSimulated(0),
		FrontSource: netio.NewFakeSource(),
		BackIface:   false,
		ARPOps:      noopARPOps{},
		NDOps:       resolvedNDOps{},
		Metrics:     metrics.NewRegistry(prometheus.NewRegistry()),
		Log:         logrus.NewEntry(logrus.New()),
	})

	target := net.ParseIP("2001:db8::1")
	var key [16]byte
	copy(key[:], target.To16())

	pkt := &netio.Packet{Iface: netio.IfaceFront, Data: ndAdvertisementFrame(target)}
	if err := worker.SubmitND(pkt); err != nil {
		t.Fatalf("SubmitND returned an error instead of enqueuing: %v", err)
	}

	if _, ok := worker.LookupNDForTest(key); ok {
		t.Fatalf("SubmitND must not mutate cache state before a drain")
	}

	if n := worker.DrainRequestsForTest(); n != 1 {
		t.Fatalf("expected 1 request drained, got %d", n)
	}

	rec, ok := worker.LookupNDForTest(key)
	if !ok || rec.State != lls.StateResolved {
		t.Fatalf("expected submitted frame to resolve the ND cache entry, got %+v ok=%v", rec, ok)
	}
}
