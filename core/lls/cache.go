// Package lls implements link-layer support: the ARP and IPv6 neighbor
// discovery caches, their periodic scan/refresh loop, and the request API
// GK (and any other caller) uses to resolve a next-hop address before
// transmitting. It is the Go translation of original_source/lls/main.c,
// generalizing the source's struct lls_config vtable (one arp_cache, one
// nd_cache, each parameterized by iface_enabled/ip_in_subnet/xmit_req/
// print_record function pointers) into a single generic Cache[K] type
// instantiated once for 4-byte ARP keys and once for 16-byte ND keys.
package lls

import (
	"sync"

	"gatekeeper/core/clock"
	"gatekeeper/core/metrics"
)

// ProtoOps is the per-address-family vtable a Cache needs: whether the
// cache is enabled on a given interface, whether an address belongs to an
// interface's subnet, how to transmit a resolution request, and how to
// render a key for logging. This is the Go equivalent of the iface_enabled/
// ip_in_subnet/xmit_req/print_record fields of struct lls_cache.
type ProtoOps[K comparable] interface {
	IfaceEnabled(iface IfaceRole) bool
	InSubnet(iface IfaceRole, key K) bool
	XmitRequest(iface IfaceRole, key K) error
	FormatKey(key K) string
}

// IfaceRole mirrors core/netio's IfaceID without importing it, keeping lls
// free to be tested without a netio dependency cycle on the struct shape
// (both packages define the same two values).
type IfaceRole uint8

const (
	RoleFront IfaceRole = iota
	RoleBack
)

// Callback is invoked once a held key's record is resolved (immediately on
// Hold, if it already is). It
// is the Go equivalent of struct lls_hold_req's lls_req_cb function
// pointer; arg is carried by the caller via a closure instead of a void*.
type Callback[K comparable] func(rec Record[K])

// RecordState is a record's position in the resolve/probe/evict lifecycle,
// the Go equivalent of the source's state ∈ {Resolved, Probed, Unresolved}.
type RecordState uint8

const (
	StateUnresolved RecordState = iota
	StateProbed
	StateResolved
)

// Record is one resolved (or pending) neighbor entry, the Go equivalent of
// struct lls_record.
type Record[K comparable] struct {
	Key     K
	MAC     [6]byte
	State   RecordState
	StaleAt clock.Ticks
}

// entry is the cache's internal bookkeeping for a key: its record plus the
// holders awaiting resolution. holders has no identity per entry (the
// source tracks requesting_core); Put removes one holder per call, which is
// enough to let the holder count reach zero and make the entry eviction
// eligible.
type entry[K comparable] struct {
	rec     Record[K]
	holders []Callback[K]
}

// Cache is a fixed-identity-space (unbounded, matching the source's
// unbounded rte_hash-backed cache) map from address to neighbor record.
// Only the owning Worker goroutine calls Hold/Put/Resolve/Scan (see
// worker.go's request mailbox); the mutex exists only because Lookup and
// the direct package tests call in from outside that goroutine.
type Cache[K comparable] struct {
	mu      sync.Mutex
	ops     ProtoOps[K]
	entries map[K]*entry[K]

	staleAfter clock.Ticks
	metrics    *metrics.Registry
}

// NewCache creates an empty Cache using ops for its per-family behavior.
// staleAfter is how long (in Ticks) a probed or resolved record is trusted
// before a scan ages it, the Go equivalent of the source's per-scan aging.
// reg may be nil, in which case hit/miss/occupancy counters are skipped.
func NewCache[K comparable](ops ProtoOps[K], staleAfter clock.Ticks, reg *metrics.Registry) *Cache[K] {
	return &Cache[K]{
		ops:        ops,
		entries:    make(map[K]*entry[K]),
		staleAfter: staleAfter,
		metrics:    reg,
	}
}

// Len reports the number of cached keys, for metrics/tests.
func (c *Cache[K]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Hold looks up key: if resolved, cb fires immediately with no request
// sent (cache hit). Otherwise cb is appended as a holder and, if no probe
// is already outstanding for key, a resolution request is transmitted and
// the record moves to Probed. The Go equivalent of hold_arp/hold_nd.
func (c *Cache[K]) Hold(iface IfaceRole, key K, now clock.Ticks, cb Callback[K]) error {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.rec.State == StateResolved {
		rec := e.rec
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.CacheHit.Inc()
		}
		cb(rec)
		return nil
	}
	if !ok {
		e = &entry[K]{rec: Record[K]{Key: key, State: StateUnresolved}}
		c.entries[key] = e
	}
	e.holders = append(e.holders, cb)
	needsProbe := e.rec.State == StateUnresolved
	if needsProbe {
		e.rec.State = StateProbed
		e.rec.StaleAt = now + c.staleAfter
	}
	occupancy := len(c.entries)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.CacheMiss.Inc()
		c.metrics.CacheOccupancy.Set(float64(occupancy))
	}
	if !needsProbe {
		return nil
	}
	return c.ops.XmitRequest(iface, key)
}

// Put removes one holder from key's entry, the Go equivalent of
// put_arp/put_nd. The entry itself is left in place — it becomes eligible
// for eviction at the next Scan once its holder count reaches zero,
// matching the source's "eligible for eviction at next scan" contract
// rather than an immediate delete.
func (c *Cache[K]) Put(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || len(e.holders) == 0 {
		return
	}
	e.holders = e.holders[:len(e.holders)-1]
}

// Resolve installs or refreshes a key's MAC address (as learned from a
// reply packet) and fires any pending holders, the Go equivalent of the
// source processing an ARP reply / ND advertisement inside process_arp /
// process_nd.
func (c *Cache[K]) Resolve(key K, mac [6]byte, now clock.Ticks) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry[K]{rec: Record[K]{Key: key}}
		c.entries[key] = e
	}
	e.rec.MAC = mac
	e.rec.State = StateResolved
	e.rec.StaleAt = now + c.staleAfter
	holders := e.holders
	e.holders = nil
	rec := e.rec
	occupancy := len(c.entries)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.CacheOccupancy.Set(float64(occupancy))
	}
	for _, cb := range holders {
		cb(rec)
	}
}

// Lookup returns the current record for key without registering a hold.
func (c *Cache[K]) Lookup(key K) (Record[K], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Record[K]{}, false
	}
	return e.rec, true
}

// Scan walks every cached entry past its StaleAt deadline: a Resolved
// record demotes to Probed and is re-requested; a Probed record that is
// still past its deadline is removed if it has no holders, or
// re-requested (holders present). The Go equivalent of lls_cache_scan.
func (c *Cache[K]) Scan(now clock.Ticks, ifaces []IfaceRole) {
	c.mu.Lock()
	type refreshJob struct {
		key   K
		iface IfaceRole
	}
	var jobs []refreshJob
	var evict []K
	for k, e := range c.entries {
		if e.rec.State == StateUnresolved || now < e.rec.StaleAt {
			continue
		}

		switch e.rec.State {
		case StateResolved:
			e.rec.State = StateProbed
			e.rec.StaleAt = now + c.staleAfter
		case StateProbed:
			if len(e.holders) == 0 {
				evict = append(evict, k)
				continue
			}
			e.rec.StaleAt = now + c.staleAfter
		}

		for _, iface := range ifaces {
			if !c.ops.IfaceEnabled(iface) {
				continue
			}
			if !c.ops.InSubnet(iface, k) {
				continue
			}
			jobs = append(jobs, refreshJob{key: k, iface: iface})
			break
		}
	}
	for _, k := range evict {
		delete(c.entries, k)
	}
	occupancy := len(c.entries)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.CacheOccupancy.Set(float64(occupancy))
	}
	for _, j := range jobs {
		_ = c.ops.XmitRequest(j.iface, j.key)
	}
}
