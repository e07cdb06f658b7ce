package gk

import (
	"testing"

	"gatekeeper/core/clock"
	"gatekeeper/core/flow"
	"gatekeeper/core/flowtable"
)

func TestApplyPolicyGrantedCreatesEntry(t *testing.T) {
	tbl := flowtable.New[*Entry](4)
	k := flow.NewV4Key([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 6)

	p := Policy{
		Flow:  k,
		State: StateGranted,
		Granted: GrantedParams{
			CapExpireSec:  60,
			TxRateKBSec:   1024,
			NextRenewalMs: 500,
			RenewalStepMs: 500,
		},
	}

	if err := ApplyPolicy(tbl, p, clock.Ticks(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e, err := tbl.Lookup(k)
	if err != nil {
		t.Fatalf("expected entry to exist: %v", err)
	}
	if e.State != StateGranted {
		t.Fatalf("expected state granted, got %v", e.State)
	}
	if e.granted.BudgetByte != 1024*1024 {
		t.Fatalf("expected initial budget, got %d", e.granted.BudgetByte)
	}
}

func TestApplyPolicyDeclinedUpdatesExistingEntry(t *testing.T) {
	tbl := flowtable.New[*Entry](4)
	k := flow.NewV4Key([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 6)

	e := &Entry{Flow: k}
	initializeRequest(e, 0, 0)
	if err := tbl.Insert(k, e); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	p := Policy{Flow: k, State: StateDeclined, Declined: DeclinedParams{ExpireSec: 10}}
	if err := ApplyPolicy(tbl, p, clock.Ticks(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := tbl.Lookup(k)
	if got.State != StateDeclined {
		t.Fatalf("expected state declined, got %v", got.State)
	}
	wantExpire := clock.Ticks(5) + secondsToTicks(10)
	if got.declined.ExpireAt != wantExpire {
		t.Fatalf("expected expire at %d, got %d", wantExpire, got.declined.ExpireAt)
	}
}

func TestApplyPolicyTableFullReturnsError(t *testing.T) {
	tbl := flowtable.New[*Entry](1)
	k1 := flow.NewV4Key([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 6)
	k2 := flow.NewV4Key([4]byte{10, 0, 0, 3}, [4]byte{10, 0, 0, 2}, 6)

	if err := ApplyPolicy(tbl, Policy{Flow: k1, State: StateDeclined, Declined: DeclinedParams{ExpireSec: 1}}, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ApplyPolicy(tbl, Policy{Flow: k2, State: StateDeclined, Declined: DeclinedParams{ExpireSec: 1}}, 0); err == nil {
		t.Fatalf("expected error when table is full")
	}
}
