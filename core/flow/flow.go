// Package flow implements the canonical IP-flow key used to partition and
// look up per-flow state: a fixed-size value (address family, source,
// destination, upper-layer protocol) with byte-wise equality and an
// RSS-compatible hash, mirroring the original gatekeeper's struct ip_flow
// and rss_ip_flow_hf.
package flow

import (
	"net"

	"github.com/spaolacci/murmur3"
)

// Family identifies the IP address family carried by a Key.
type Family uint8

const (
	// IPv4 marks a key holding canonicalized 4-byte addresses.
	IPv4 Family = 1
	// IPv6 marks a key holding full 16-byte addresses.
	IPv6 Family = 2
)

// Key is the fixed-size flow identifier. Addresses are always stored in
// their 16-byte canonical form regardless of family so that two Keys are
// equal (and hash equal) iff they represent the same flow — the comparison
// is a plain struct/array comparison, the Go equivalent of the source's
// byte-wise ip_flow_cmp_eq.
type Key struct {
	Family Family
	Src    [16]byte
	Dst    [16]byte
	Proto  uint8
}

// NewV4Key builds a Key for an IPv4 flow from 4-byte addresses.
func NewV4Key(src, dst [4]byte, proto uint8) Key {
	var k Key
	k.Family = IPv4
	copy(k.Src[:4], src[:])
	copy(k.Dst[:4], dst[:])
	k.Proto = proto
	return k
}

// NewV6Key builds a Key for an IPv6 flow from 16-byte addresses.
func NewV6Key(src, dst [16]byte, proto uint8) Key {
	return Key{Family: IPv6, Src: src, Dst: dst, Proto: proto}
}

// KeyFromNetIP canonicalizes net.IP values (as returned by the stdlib and
// golang.org/x/net header parsers) into a Key.
func KeyFromNetIP(src, dst net.IP, proto uint8) Key {
	var k Key
	if v4 := src.To4(); v4 != nil && dst.To4() != nil {
		k.Family = IPv4
		copy(k.Src[:4], v4)
		copy(k.Dst[:4], dst.To4())
	} else {
		k.Family = IPv6
		copy(k.Src[:], src.To16())
		copy(k.Dst[:], dst.To16())
	}
	k.Proto = proto
	return k
}

// Equal reports whether two keys identify the same flow. Key is comparable
// (all fields are arrays/scalars) so == already implements this, but the
// method documents the byte-wise-equality contract from spec §3 explicitly.
func (k Key) Equal(o Key) bool {
	return k == o
}

// bytes renders the key into its canonical wire layout for hashing:
// family(1) || src(16) || dst(16) || proto(1) = 34 bytes.
func (k Key) bytes() [34]byte {
	var b [34]byte
	b[0] = byte(k.Family)
	copy(b[1:17], k.Src[:])
	copy(b[17:33], k.Dst[:])
	b[33] = k.Proto
	return b
}

// Hash computes the RSS-style hash of a flow key, the Go equivalent of
// rss_ip_flow_hf(flow, 0, 0) — seeded at zero, matching the source's
// hash_func_init_val. Used by the shard router (core/gk) to select the
// owning GK instance; the flow table itself relies on Go's built-in map
// hashing rather than this value (see DESIGN.md).
func Hash(k Key) uint32 {
	b := k.bytes()
	return murmur3.Sum32WithSeed(b[:], 0)
}
