// Package gk implements the flow-dispatch engine: the three-state flow
// machine (request/granted/declined), its per-shard worker loop, and the
// RSS-based router that assigns a flow to one owning shard. It is the Go
// translation of the original gatekeeper GK block in original_source/gk,
// generalizing struct flow_entry's C union into per-state Go structs and
// its busy-poll lcore loop into a goroutine reading a netio.PacketSource
// and a mailbox of policy commands.
package gk

import (
	"math/bits"

	"gatekeeper/core/clock"
	"gatekeeper/core/flow"
)

// Flow-state constants, directly ported from the source's #defines.
const (
	StartPriority    uint8 = 38
	StartAllowance   uint8 = 8
	PriorityGranted  uint8 = 1
	PriorityRenewCap uint8 = 2
	PriorityMax      uint8 = 63
)

// State is the flow entry's current lifecycle state.
type State uint8

const (
	StateRequest State = iota
	StateGranted
	StateDeclined
)

func (s State) String() string {
	switch s {
	case StateRequest:
		return "request"
	case StateGranted:
		return "granted"
	case StateDeclined:
		return "declined"
	default:
		return "unknown"
	}
}

// requestData is the payload carried while a flow is in StateRequest, the
// Go equivalent of flow_entry.u.request.
type requestData struct {
	LastPacketSeenAt clock.Ticks
	LastPriority     uint8
	Allowance        uint8
	GrantorID        int
}

// grantedData is the payload carried while a flow is in StateGranted, the
// Go equivalent of flow_entry.u.granted.
type grantedData struct {
	CapExpireAt       clock.Ticks
	BudgetRenewAt     clock.Ticks
	TxRateKBCycle     int
	BudgetByte        int
	GrantorID         int
	SendNextRenewalAt clock.Ticks
	RenewalStepCycle  clock.Ticks
}

// declinedData is the payload carried while a flow is in StateDeclined, the
// Go equivalent of flow_entry.u.declined.
type declinedData struct {
	ExpireAt clock.Ticks
}

// Entry is a single flow's state machine slot, stored in a
// flowtable.Table[*Entry] per shard. Unlike the source's C union, all three
// payloads are plain fields; only the one matching State is meaningful at
// any given time, following the Go idiom of preferring clarity over the
// space saved by a union the Go memory model can't express safely anyway.
type Entry struct {
	Flow     flow.Key
	State    State
	request  requestData
	granted  grantedData
	declined declinedData
}

// initializeRequest resets e to a freshly-seen flow in StateRequest, the Go
// equivalent of initialize_flow_entry / reinitialize_flow_entry.
func initializeRequest(e *Entry, now clock.Ticks, grantorID int) {
	e.State = StateRequest
	e.request = requestData{
		LastPacketSeenAt: now,
		LastPriority:     StartPriority,
		Allowance:        StartAllowance - 1,
		GrantorID:        grantorID,
	}
}

// integerLogBase2 returns floor(log2(x)) for x > 0, the Go equivalent of
// the source's integer_log_base_2 (64 - 1 - __builtin_clzl(x)). bits.Len64
// returns the number of bits needed to represent x, i.e. one more than the
// position of its highest set bit, so the position itself is Len64(x)-1.
func integerLogBase2(x uint64) uint8 {
	return uint8(bits.Len64(x) - 1)
}

// priorityFromDelta converts the elapsed time between the current and
// previous packet of a flow into a priority level, the Go equivalent of
// priority_from_delta_time. Clock regression (present < past) is handled by
// guard, which returns a zero delta and logs rather than panicking.
func priorityFromDelta(present, past clock.Ticks, guard *clock.RegressionGuard) uint8 {
	delta := guard.Delta(present, past)
	deltaPicosec := uint64(delta) * clock.PicosecPerTick
	if deltaPicosec < 1 {
		return 0
	}
	return integerLogBase2(deltaPicosec)
}
