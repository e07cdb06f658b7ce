package flow

import (
	"net"
	"testing"
)

func mustParseIP(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil {
		panic("bad test fixture ip: " + s)
	}
	return ip
}

func TestKeyEqual(t *testing.T) {
	a := NewV4Key([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 6)
	b := NewV4Key([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 6)
	c := NewV4Key([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 3}, 6)

	if !a.Equal(b) {
		t.Fatalf("expected a == b")
	}
	if a.Equal(c) {
		t.Fatalf("expected a != c")
	}
}

func TestHashStable(t *testing.T) {
	k := NewV4Key([4]byte{192, 168, 1, 1}, [4]byte{192, 168, 1, 2}, 17)
	h1 := Hash(k)
	h2 := Hash(k)
	if h1 != h2 {
		t.Fatalf("hash not stable across calls: %d != %d", h1, h2)
	}
}

func TestHashDistinguishesFlows(t *testing.T) {
	a := NewV4Key([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 6)
	b := NewV4Key([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 3}, 6)
	if Hash(a) == Hash(b) {
		t.Fatalf("expected distinct hashes for distinct flows (collision is permitted in general but not for this fixture)")
	}
}

func TestKeyFromNetIPv4AndV6(t *testing.T) {
	v4 := KeyFromNetIP(mustParseIP("10.0.0.1"), mustParseIP("10.0.0.2"), 6)
	if v4.Family != IPv4 {
		t.Fatalf("expected IPv4 family, got %v", v4.Family)
	}

	v6 := KeyFromNetIP(mustParseIP("fe80::1"), mustParseIP("fe80::2"), 58)
	if v6.Family != IPv6 {
		t.Fatalf("expected IPv6 family, got %v", v6.Family)
	}
}
