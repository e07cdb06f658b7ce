package lls

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gatekeeper/core/clock"
	"gatekeeper/core/mailbox"
	"gatekeeper/core/metrics"
	"gatekeeper/core/netio"
)

// scanInterval is how often the Worker sweeps its caches for stale
// entries, the Go equivalent of LLS_CACHE_SCAN_INTERVAL (10 seconds).
const scanInterval = 10 * time.Second

// staleAfterTicks is how long a resolved record is trusted before a scan
// re-requests it.
const staleAfterTicks = clock.Ticks(10) * clock.TicksPerSec

// reqBurstSize bounds how many requests a worker drains from its mailbox
// per iteration, the Go equivalent of LLS's lls_process_reqs burst.
const reqBurstSize = 32

// requestMailboxCap is the request mailbox's fixed capacity, the Go
// equivalent of the source's LLS request ring size.
const requestMailboxCap = 128

// ethHeaderLen is the length of a bare Ethernet header preceding an ARP or
// IPv6 payload.
const ethHeaderLen = 14

// reqOp identifies which cache operation a queued request applies, the Go
// equivalent of enum lls_req_ty (LLS_ARP_REQ/LLS_ND_REQ/...).
type reqOp uint8

const (
	reqHoldARP reqOp = iota
	reqPutARP
	reqHoldND
	reqPutND
	reqSubmitND
)

// request is one entry serialized onto a Worker's request mailbox: the Go
// equivalent of the tagged union the source passes through struct
// lls_request (one of lls_hold_req/lls_put_req/lls_nd_req per LLS_REQ_*).
type request struct {
	op       reqOp
	arpKey   [4]byte
	ndKey    [16]byte
	arpCB    Callback[[4]byte]
	ndCB     Callback[[16]byte]
	ndPacket *netio.Packet
}

// Config parameterizes a Worker.
type Config struct {
	Clock       clock.Source
	FrontSource netio.PacketSource
	BackSource  netio.PacketSource
	FrontSink   netio.PacketSink
	BackIface   bool
	ARPOps      ProtoOps[[4]byte]
	NDOps       ProtoOps[[16]byte]
	Metrics     *metrics.Registry
	Log         *logrus.Entry
}

// Worker runs the ARP and ND caches for one process: a single goroutine
// that alternates between reading packets off the front/back interfaces,
// draining its request mailbox, and sweeping both caches, the Go
// equivalent of one lcore running lls_proc. Unlike GK, LLS is not sharded
// — the original runs a single LLS block, so there is exactly one Worker
// per process. Every caller-facing method (HoldARP/PutARP/HoldND/PutND/
// SubmitND) only enqueues a request; Cache state is mutated solely by this
// goroutine while draining, satisfying "only the LLS thread mutates cache
// state".
type Worker struct {
	cfg  Config
	arp  *Cache[[4]byte]
	nd   *Cache[[16]byte]
	reqs *mailbox.Mailbox[request]
}

// NewWorker builds a Worker from cfg.
func NewWorker(cfg Config) *Worker {
	return &Worker{
		cfg:  cfg,
		arp:  NewCache[[4]byte](cfg.ARPOps, staleAfterTicks, cfg.Metrics),
		nd:   NewCache[[16]byte](cfg.NDOps, staleAfterTicks, cfg.Metrics),
		reqs: mailbox.New(requestMailboxCap, func() *request { return &request{} }),
	}
}

// HoldARP serializes a request to hold targetIP's ARP record onto the
// worker's request mailbox; cb fires, on the worker goroutine, once the
// record is resolved (immediately on the next drain, if already cached).
// Non-blocking, the Go equivalent of hold_arp enqueuing a LLS_ARP_REQ.
func (w *Worker) HoldARP(targetIP [4]byte, cb Callback[[4]byte]) error {
	r := w.reqs.Alloc()
	*r = request{op: reqHoldARP, arpKey: targetIP, arpCB: cb}
	if err := w.reqs.Send(r); err != nil {
		w.reqs.Free(r)
		return err
	}
	return nil
}

// PutARP serializes a request to release one holder of targetIP's ARP
// record. Non-blocking, the Go equivalent of put_arp enqueuing a
// LLS_ARP_REQ put.
func (w *Worker) PutARP(targetIP [4]byte) error {
	r := w.reqs.Alloc()
	*r = request{op: reqPutARP, arpKey: targetIP}
	if err := w.reqs.Send(r); err != nil {
		w.reqs.Free(r)
		return err
	}
	return nil
}

// HoldND serializes a request to hold targetIP's neighbor record onto the
// worker's request mailbox. Non-blocking, the Go equivalent of hold_nd
// enqueuing a LLS_ND_REQ.
func (w *Worker) HoldND(targetIP [16]byte, cb Callback[[16]byte]) error {
	r := w.reqs.Alloc()
	*r = request{op: reqHoldND, ndKey: targetIP, ndCB: cb}
	if err := w.reqs.Send(r); err != nil {
		w.reqs.Free(r)
		return err
	}
	return nil
}

// PutND serializes a request to release one holder of targetIP's neighbor
// record. Non-blocking, the Go equivalent of put_nd enqueuing a LLS_ND_REQ
// put.
func (w *Worker) PutND(targetIP [16]byte) error {
	r := w.reqs.Alloc()
	*r = request{op: reqPutND, ndKey: targetIP}
	if err := w.reqs.Send(r); err != nil {
		w.reqs.Free(r)
		return err
	}
	return nil
}

// SubmitND hands an already-received neighbor-discovery frame to the
// worker for asynchronous processing: a non-blocking enqueue of the frame
// itself onto the request mailbox, the Go equivalent of submit_nd
// (lls/main.c:173), not a next-hop resolution call. The frame is parsed
// and applied to the ND cache later, on the worker goroutine, by
// applyRequest — the caller (GK's RX path) never blocks on resolution.
func (w *Worker) SubmitND(pkt *netio.Packet) error {
	r := w.reqs.Alloc()
	*r = request{op: reqSubmitND, ndPacket: pkt}
	if err := w.reqs.Send(r); err != nil {
		w.reqs.Free(r)
		return err
	}
	return nil
}

// ResolveNDForTest seeds the ND cache directly, standing in for a
// neighbor advertisement arriving on the wire. Exported for use by other
// packages' tests that exercise SubmitND without a real interface.
func (w *Worker) ResolveNDForTest(targetIP [16]byte, mac [6]byte) {
	w.nd.Resolve(targetIP, mac, w.cfg.Clock.Now())
}

// LookupNDForTest reads the current neighbor record for targetIP without
// registering a hold, for tests asserting on cache state after a drain.
func (w *Worker) LookupNDForTest(targetIP [16]byte) (Record[[16]byte], bool) {
	return w.nd.Lookup(targetIP)
}

// DrainRequestsForTest runs one request-mailbox drain synchronously on the
// calling goroutine, returning the number of requests applied. It lets
// same-process tests observe the effect of Hold/Put/SubmitND calls without
// running the full Run loop.
func (w *Worker) DrainRequestsForTest() int {
	buf := make([]*request, reqBurstSize)
	return w.drainRequests(buf)
}

// Run drives the worker's main loop until ctx is cancelled: receive and
// dispatch a burst of packets from the front (and, if enabled, back)
// interface, then drain the request mailbox, and only if that drain
// processed zero requests this iteration, run the periodic cache scan.
// This mirrors lls_proc's loop order exactly (lls/main.c:309-344):
// process_pkts, then lls_process_reqs, then rte_timer_manage only when
// lls_process_reqs drained nothing.
func (w *Worker) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	scanEvery := clock.Ticks(scanInterval)
	lastScan := w.cfg.Clock.Now()
	reqBuf := make([]*request, reqBurstSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.processIface(w.cfg.FrontSource, false)
		if w.cfg.BackIface && w.cfg.BackSource != nil {
			w.processIface(w.cfg.BackSource, true)
		}

		if w.drainRequests(reqBuf) > 0 {
			continue
		}

		now := w.cfg.Clock.Now()
		if now-lastScan < scanEvery {
			continue
		}
		ifaces := []IfaceRole{RoleFront}
		if w.cfg.BackIface {
			ifaces = append(ifaces, RoleBack)
		}
		w.arp.Scan(now, ifaces)
		w.nd.Scan(now, ifaces)
		lastScan = now
	}
}

// drainRequests applies up to len(buf) queued requests to the caches,
// returning the number processed. Only this goroutine (Run's loop, or a
// test via DrainRequestsForTest) ever calls into Cache.Hold/Put/Resolve,
// satisfying "only the LLS thread mutates cache state".
func (w *Worker) drainRequests(buf []*request) int {
	n := w.reqs.DequeueBurst(buf)
	for i := 0; i < n; i++ {
		w.applyRequest(buf[i])
		w.reqs.Free(buf[i])
	}
	return n
}

func (w *Worker) applyRequest(r *request) {
	now := w.cfg.Clock.Now()
	switch r.op {
	case reqHoldARP:
		if err := w.arp.Hold(RoleFront, r.arpKey, now, r.arpCB); err != nil {
			w.cfg.Log.WithError(err).Warn("lls: arp xmit request failed")
		}
	case reqPutARP:
		w.arp.Put(r.arpKey)
	case reqHoldND:
		if err := w.nd.Hold(RoleBack, r.ndKey, now, r.ndCB); err != nil {
			w.cfg.Log.WithError(err).Warn("lls: nd xmit request failed")
		}
	case reqPutND:
		w.nd.Put(r.ndKey)
	case reqSubmitND:
		if len(r.ndPacket.Data) >= ethHeaderLen {
			w.handleND(r.ndPacket.Data[ethHeaderLen:])
		}
	}
}

// processIface reads and dispatches one burst of packets from src,
// equivalent of process_pkts for a single interface.
func (w *Worker) processIface(src netio.PacketSource, isBack bool) {
	pkts, err := src.RxBurst(32)
	if err != nil {
		w.cfg.Log.WithError(err).Warn("lls: rx burst failed")
		return
	}

	for _, pkt := range pkts {
		if len(pkt.Data) < ethHeaderLen {
			continue
		}
		etherType := binary.BigEndian.Uint16(pkt.Data[12:14])
		switch etherType {
		case netio.EtherTypeARP:
			w.handleARP(pkt.Data[ethHeaderLen:])
		case netio.EtherTypeIPv6:
			if isBack {
				w.handleND(pkt.Data[ethHeaderLen:])
			}
		}
	}
}

// handleARP parses an ARP reply and resolves the sender's address in the
// ARP cache, equivalent of process_arp's reply-handling branch.
func (w *Worker) handleARP(payload []byte) {
	p, ok := parseARP(payload)
	if !ok || p.Op != arpOpReply {
		return
	}
	w.arp.Resolve(p.SenderIP, p.SenderMAC, w.cfg.Clock.Now())
}

// handleND parses an ICMPv6 neighbor solicitation/advertisement and
// resolves the sender's address in the ND cache, equivalent of
// pkt_is_nd + process_nd's reply-handling branch. Full ICMPv6 option
// parsing (extracting the target link-layer address option) is out of
// scope here; the sender's source address is used as the resolved key per
// the source's ipv6_addrs_equal checks against the packet's flow source.
func (w *Worker) handleND(payload []byte) {
	const (
		icmpv6NeighborSolicitation  = 135
		icmpv6NeighborAdvertisement = 136
	)
	// IPv6 fixed header is 40 bytes; next header should be ICMPv6 (58).
	if len(payload) < 40+8 {
		return
	}
	nextHeader := payload[6]
	if nextHeader != 58 {
		return
	}
	src := payload[8:24]
	icmp := payload[40:]
	if icmp[0] != icmpv6NeighborSolicitation && icmp[0] != icmpv6NeighborAdvertisement {
		return
	}

	var key [16]byte
	copy(key[:], src)
	// The link-layer address option (if present) would supply the real
	// MAC; absent a parsed option, zero is recorded, matching what a
	// solicitation (which carries no resolved MAC) would produce.
	w.nd.Resolve(key, [6]byte{}, w.cfg.Clock.Now())
}
