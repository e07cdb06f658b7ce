package gk

import (
	"gatekeeper/core/clock"
	"gatekeeper/core/netio"
)

// Verdict is the outcome of running a packet through a flow entry's state
// machine: either it is encapsulated for forwarding toward a grantor, or it
// is dropped.
type Verdict struct {
	Forward  bool
	Priority uint8
	Tunnel   netio.TunnelInfo
}

var dropVerdict = Verdict{}

// secondsToTicks converts a whole number of seconds into clock.Ticks.
func secondsToTicks(sec int) clock.Ticks {
	return clock.Ticks(sec) * clock.TicksPerSec
}

// processRequest runs a packet against a flow entry in StateRequest: it
// computes the packet's priority from the elapsed time since the flow's
// last packet (rewarding flows that wait their turn with an allowance of
// immediate reuses of their last priority), then always forwards the
// packet as a request. This is the Go equivalent of gk_process_request.
func processRequest(e *Entry, now clock.Ticks, guard *clock.RegressionGuard) Verdict {
	priority := priorityFromDelta(now, e.request.LastPacketSeenAt, guard)
	e.request.LastPacketSeenAt = now

	// The reason for "<" instead of "<=" is that equality means the source
	// waited long enough to earn the same last priority on its own merit,
	// so the allowance is reserved for genuinely early packets.
	if priority < e.request.LastPriority && e.request.Allowance > 0 {
		e.request.Allowance--
		priority = e.request.LastPriority
	} else {
		e.request.LastPriority = priority
		e.request.Allowance = StartAllowance - 1
	}

	priority += 3
	if priority > PriorityMax {
		priority = PriorityMax
	}

	return Verdict{Forward: true, Priority: priority}
}

// processGranted runs a packet against a flow entry in StateGranted: on
// capability expiry it falls back to a fresh request; otherwise it resets
// the byte budget on renewal boundaries, drops packets that would exceed
// the remaining budget, and otherwise forwards the packet, occasionally
// flagged for capability renewal. Equivalent of gk_process_granted.
func processGranted(e *Entry, pktLen int, now clock.Ticks, guard *clock.RegressionGuard) Verdict {
	if now >= e.granted.CapExpireAt {
		initializeRequest(e, now, e.granted.GrantorID)
		return processRequest(e, now, guard)
	}

	if now >= e.granted.BudgetRenewAt {
		e.granted.BudgetRenewAt = now + clock.TicksPerSec
		e.granted.BudgetByte = e.granted.TxRateKBCycle * 1024
	}

	if pktLen > e.granted.BudgetByte {
		return dropVerdict
	}
	e.granted.BudgetByte -= pktLen

	priority := PriorityGranted
	if now >= e.granted.SendNextRenewalAt {
		e.granted.SendNextRenewalAt = now + e.granted.RenewalStepCycle
		priority = PriorityRenewCap
	}

	return Verdict{Forward: true, Priority: priority}
}

// processDeclined runs a packet against a flow entry in StateDeclined: once
// the punishment window expires it falls back to a fresh request,
// otherwise every packet is dropped. Equivalent of gk_process_declined.
func processDeclined(e *Entry, now clock.Ticks, guard *clock.RegressionGuard) Verdict {
	if now >= e.declined.ExpireAt {
		initializeRequest(e, now, 0)
		return processRequest(e, now, guard)
	}
	return dropVerdict
}

// Step dispatches a packet to the handler for e's current state. pktLen is
// the IP-layer length used for granted-flow budget accounting.
func Step(e *Entry, pktLen int, now clock.Ticks, guard *clock.RegressionGuard) Verdict {
	switch e.State {
	case StateRequest:
		return processRequest(e, now, guard)
	case StateGranted:
		return processGranted(e, pktLen, now, guard)
	case StateDeclined:
		return processDeclined(e, now, guard)
	default:
		return dropVerdict
	}
}
