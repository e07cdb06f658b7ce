package lls

import (
	"testing"

	"gatekeeper/core/clock"
)

type fakeOps struct {
	enabled   bool
	inSubnet  bool
	xmitCalls int
}

func (f *fakeOps) IfaceEnabled(iface IfaceRole) bool            { return f.enabled }
func (f *fakeOps) InSubnet(iface IfaceRole, key [4]byte) bool   { return f.inSubnet }
func (f *fakeOps) XmitRequest(iface IfaceRole, key [4]byte) error {
	f.xmitCalls++
	return nil
}
func (f *fakeOps) FormatKey(key [4]byte) string { return "" }

func TestCacheHoldMissTriggersXmit(t *testing.T) {
	ops := &fakeOps{enabled: true, inSubnet: true}
	c := NewCache[[4]byte](ops, clock.Ticks(100), nil)

	fired := false
	err := c.Hold(RoleFront, [4]byte{10, 0, 0, 1}, clock.Ticks(0), func(Record[[4]byte]) {
		fired = true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fired {
		t.Fatalf("callback should not fire until resolved")
	}
	if ops.xmitCalls != 1 {
		t.Fatalf("expected 1 xmit call, got %d", ops.xmitCalls)
	}
}

func TestCacheResolveFiresHolders(t *testing.T) {
	ops := &fakeOps{enabled: true, inSubnet: true}
	c := NewCache[[4]byte](ops, clock.Ticks(100), nil)

	fired := false
	c.Hold(RoleFront, [4]byte{10, 0, 0, 1}, clock.Ticks(0), func(Record[[4]byte]) {
		fired = true
	})

	c.Resolve([4]byte{10, 0, 0, 1}, [6]byte{1, 2, 3, 4, 5, 6}, clock.Ticks(1))
	if !fired {
		t.Fatalf("expected holder callback to fire on resolve")
	}

	rec, ok := c.Lookup([4]byte{10, 0, 0, 1})
	if !ok || rec.State != StateResolved {
		t.Fatalf("expected resolved record, got %+v ok=%v", rec, ok)
	}
}

func TestCacheHoldHitFiresImmediately(t *testing.T) {
	ops := &fakeOps{enabled: true, inSubnet: true}
	c := NewCache[[4]byte](ops, clock.Ticks(100), nil)
	c.Resolve([4]byte{10, 0, 0, 1}, [6]byte{1, 2, 3, 4, 5, 6}, clock.Ticks(0))

	fired := false
	c.Hold(RoleFront, [4]byte{10, 0, 0, 1}, clock.Ticks(1), func(Record[[4]byte]) {
		fired = true
	})
	if !fired {
		t.Fatalf("expected immediate fire on cache hit")
	}
	if ops.xmitCalls != 0 {
		t.Fatalf("expected no xmit on cache hit, got %d", ops.xmitCalls)
	}
}

func TestCacheScanDemotesResolvedAndRerequests(t *testing.T) {
	ops := &fakeOps{enabled: true, inSubnet: true}
	c := NewCache[[4]byte](ops, clock.Ticks(10), nil)
	c.Resolve([4]byte{10, 0, 0, 1}, [6]byte{1, 2, 3, 4, 5, 6}, clock.Ticks(0))

	c.Scan(clock.Ticks(100), []IfaceRole{RoleFront})

	rec, _ := c.Lookup([4]byte{10, 0, 0, 1})
	if rec.State != StateProbed {
		t.Fatalf("expected record demoted to probed after scan, got state %v", rec.State)
	}
	if ops.xmitCalls != 1 {
		t.Fatalf("expected re-request on scan, got %d calls", ops.xmitCalls)
	}
}

func TestCachePutRemovesHolderNotEntry(t *testing.T) {
	ops := &fakeOps{enabled: true, inSubnet: true}
	c := NewCache[[4]byte](ops, clock.Ticks(100), nil)
	key := [4]byte{10, 0, 0, 1}
	c.Hold(RoleFront, key, clock.Ticks(0), func(Record[[4]byte]) {})

	c.Put(key)
	if _, ok := c.Lookup(key); !ok {
		t.Fatalf("expected entry to survive Put, eviction happens at Scan")
	}
}

func TestCacheScanEvictsProbedWithNoHolders(t *testing.T) {
	ops := &fakeOps{enabled: true, inSubnet: true}
	c := NewCache[[4]byte](ops, clock.Ticks(10), nil)
	key := [4]byte{10, 0, 0, 1}
	c.Hold(RoleFront, key, clock.Ticks(0), func(Record[[4]byte]) {})
	c.Put(key)

	c.Scan(clock.Ticks(100), []IfaceRole{RoleFront})

	if _, ok := c.Lookup(key); ok {
		t.Fatalf("expected holder-less probed entry to be evicted on scan")
	}
}

func TestCacheScanKeepsProbingWithHolders(t *testing.T) {
	ops := &fakeOps{enabled: true, inSubnet: true}
	c := NewCache[[4]byte](ops, clock.Ticks(10), nil)
	key := [4]byte{10, 0, 0, 1}
	c.Hold(RoleFront, key, clock.Ticks(0), func(Record[[4]byte]) {})

	c.Scan(clock.Ticks(100), []IfaceRole{RoleFront})

	rec, ok := c.Lookup(key)
	if !ok {
		t.Fatalf("expected probed entry with a holder to survive scan")
	}
	if rec.State != StateProbed {
		t.Fatalf("expected entry to remain probed, got state %v", rec.State)
	}
	if ops.xmitCalls != 2 {
		t.Fatalf("expected re-request on both hold and scan, got %d calls", ops.xmitCalls)
	}
}
