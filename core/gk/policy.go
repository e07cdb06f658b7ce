package gk

import (
	"fmt"

	"gatekeeper/core/clock"
	"gatekeeper/core/flow"
	"gatekeeper/core/flowtable"
)

// GrantedParams carries the parameters a decision service supplies when
// transitioning a flow to StateGranted, the Go equivalent of
// ggu_policy.params.u.granted.
type GrantedParams struct {
	CapExpireSec   int
	TxRateKBSec    int
	NextRenewalMs  int
	RenewalStepMs  int
	GrantorID      int
}

// DeclinedParams carries the parameters for a transition to StateDeclined.
type DeclinedParams struct {
	ExpireSec int
}

// Policy is a single decision-service command, the Go equivalent of struct
// ggu_policy: a flow key, the target state, and the state-specific
// parameters for it.
type Policy struct {
	Flow     flow.Key
	State    State
	Granted  GrantedParams
	Declined DeclinedParams
}

// ApplyPolicy installs or updates the flow entry named by p.Flow in table,
// creating it in StateRequest first if it does not already exist. This is
// the Go equivalent of add_ggu_policy.
func ApplyPolicy(table *flowtable.Table[*Entry], p Policy, now clock.Ticks) error {
	e, err := table.Lookup(p.Flow)
	if err != nil {
		e = &Entry{Flow: p.Flow}
		initializeRequest(e, now, 0)
		if insErr := table.Insert(p.Flow, e); insErr != nil {
			return insErr
		}
	}

	switch p.State {
	case StateGranted:
		e.State = StateGranted
		e.granted = grantedData{
			CapExpireAt:       now + secondsToTicks(p.Granted.CapExpireSec),
			TxRateKBCycle:     p.Granted.TxRateKBSec,
			SendNextRenewalAt: now + clock.Ticks(p.Granted.NextRenewalMs)*clock.TicksPerMs,
			RenewalStepCycle:  clock.Ticks(p.Granted.RenewalStepMs) * clock.TicksPerMs,
			BudgetRenewAt:     now + clock.TicksPerSec,
			GrantorID:         p.Granted.GrantorID,
		}
		e.granted.BudgetByte = e.granted.TxRateKBCycle * 1024
	case StateDeclined:
		e.State = StateDeclined
		e.declined = declinedData{
			ExpireAt: now + secondsToTicks(p.Declined.ExpireSec),
		}
	default:
		return fmt.Errorf("gk: unknown policy state %v", p.State)
	}
	return nil
}
