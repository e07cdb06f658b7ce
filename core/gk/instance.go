package gk

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"gatekeeper/core/clock"
	"gatekeeper/core/flowtable"
	"gatekeeper/core/mailbox"
	"gatekeeper/core/metrics"
	"gatekeeper/core/netio"
)

// cmdBurstSize bounds how many policy commands a worker drains from its
// mailbox per iteration, the Go equivalent of GK_CMD_BURST_SIZE.
const cmdBurstSize = 32

// pktBurstSize bounds how many packets a worker reads from its source per
// iteration, the Go equivalent of GATEKEEPER_MAX_PKT_BURST.
const pktBurstSize = 32

// NDSubmitter hands an already-received neighbor-discovery frame off to LLS
// for asynchronous processing. It is implemented by core/lls's Worker; the
// interface lives here (rather than gk depending on lls directly) so the
// two packages can be wired together by cmd/gatekeeper without an import
// cycle, the Go idiom for the source's direct submit_nd call from within
// the GK RX loop (gk/main.c:537-542). The call is non-blocking: it only
// enqueues the frame onto LLS's request mailbox.
type NDSubmitter interface {
	SubmitND(pkt *netio.Packet) error
}

// Config parameterizes a single shard's Instance.
type Config struct {
	ShardIndex    int
	TableCapacity int
	MailboxCap    int
	Clock         clock.Source
	Codec         netio.Codec
	Source        netio.PacketSource
	Sink          netio.PacketSink
	ND            NDSubmitter
	Metrics       *metrics.Registry
	Log           *logrus.Entry
}

// Instance is one GK shard: its flow table, its policy mailbox, and the
// goroutine that drains both. This is the Go equivalent of one lcore
// running gk_proc bound to one struct gk_instance.
type Instance struct {
	cfg   Config
	table *flowtable.Table[*Entry]
	mb    *mailbox.Mailbox[Policy]
	guard *clock.RegressionGuard
}

// NewInstance builds an Instance from cfg. cfg.Log must not be nil.
func NewInstance(cfg Config) *Instance {
	return &Instance{
		cfg:   cfg,
		table: flowtable.New[*Entry](cfg.TableCapacity),
		mb:    mailbox.New(cfg.MailboxCap, func() *Policy { return &Policy{} }),
		guard: clock.NewRegressionGuard(cfg.Log),
	}
}

// Mailbox returns the instance's policy command mailbox, for producers
// (the policy HTTP API, or another shard forwarding a command) to Send on.
func (in *Instance) Mailbox() *mailbox.Mailbox[Policy] {
	return in.mb
}

// Run drives the instance's main loop until ctx is cancelled: drain policy
// commands, receive a burst of packets, step each through its flow entry's
// state machine, and transmit what survives. This is the Go equivalent of
// gk_proc's while (!exiting) loop, with context.Context replacing the
// source's global exiting flag and wg.Done() replacing its atomic
// ref-count teardown (see SPEC_FULL.md REDESIGN FLAGS).
func (in *Instance) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	cmds := make([]*Policy, cmdBurstSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n := in.mb.DequeueBurst(cmds)
		for i := 0; i < n; i++ {
			if err := ApplyPolicy(in.table, *cmds[i], in.cfg.Clock.Now()); err != nil {
				in.cfg.Log.WithError(err).Warn("gk: failed to apply policy")
			}
			in.mb.Free(cmds[i])
		}

		pkts, err := in.cfg.Source.RxBurst(pktBurstSize)
		if err != nil {
			in.cfg.Log.WithError(err).Warn("gk: rx burst failed")
			continue
		}

		var toSend []*netio.Packet
		for _, pkt := range pkts {
			out, forward := in.processOne(pkt)
			if forward {
				toSend = append(toSend, out)
			}
		}
		if len(toSend) > 0 {
			if _, err := in.cfg.Sink.TxBurst(toSend); err != nil {
				in.cfg.Log.WithError(err).Warn("gk: tx burst failed")
			}
		}
	}
}

// processOne runs a single packet through its flow entry's state machine,
// creating the entry in StateRequest on first sight (the flow table has no
// eviction, so a full table simply drops new flows, the Go equivalent of a
// failed rte_hash_add_key).
func (in *Instance) processOne(pkt *netio.Packet) (*netio.Packet, bool) {
	info, err := netio.ExtractInfo(pkt.Data)
	if err != nil {
		return nil, false
	}

	if netio.IsND(info) {
		if in.cfg.ND != nil {
			if err := in.cfg.ND.SubmitND(pkt); err != nil {
				in.cfg.Log.WithError(err).Warn("gk: failed to hand nd packet to lls")
			}
		}
		return nil, false
	}
	if !info.IsIP {
		return nil, false
	}

	now := in.cfg.Clock.Now()
	e, err := in.table.Lookup(info.Flow)
	if err != nil {
		e = &Entry{Flow: info.Flow}
		initializeRequest(e, now, 0)
		if insErr := in.table.Insert(info.Flow, e); insErr != nil {
			in.cfg.Metrics.TableFull.Inc()
			return nil, false
		}
	}

	wasRequest := e.State == StateRequest
	verdict := Step(e, info.DataLen, now, in.guard)
	if !verdict.Forward {
		in.cfg.Metrics.PacketsDropped.Inc()
		return nil, false
	}

	encoded, err := in.cfg.Codec.Encapsulate(pkt, verdict.Priority, verdict.Tunnel)
	if err != nil {
		in.cfg.Log.WithError(err).Warn("gk: encapsulation failed")
		return nil, false
	}
	if wasRequest {
		in.cfg.Metrics.PacketsRequested.Inc()
	} else {
		in.cfg.Metrics.PacketsGranted.Inc()
	}
	in.cfg.Metrics.TableOccupancy.Set(float64(in.table.Len()))
	return &netio.Packet{Iface: netio.IfaceBack, Data: encoded}, true
}
