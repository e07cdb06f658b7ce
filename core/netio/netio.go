// Package netio provides the packet representation and I/O abstractions GK
// and LLS operate on: the Go analogue of struct ipacket/struct rte_mbuf,
// the per-interface RX/TX burst API, and the IP-in-IP encapsulation step
// used to forward a packet to its grantor.
package netio

import (
	"encoding/binary"
	"errors"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"gatekeeper/core/flow"
)

// EtherType values used by the parser and by LLS's dispatch.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeIPv6 uint16 = 0x86DD
)

// IfaceID identifies a physical interface role, mirroring the front/back
// interface split used throughout the original gatekeeper_net.h.
type IfaceID uint8

const (
	IfaceFront IfaceID = iota
	IfaceBack
)

// Packet is a single received frame plus the metadata the pipeline attaches
// to it as it is parsed, the Go equivalent of struct ipacket (an rte_mbuf
// plus a cached pointer to the IP header).
type Packet struct {
	Iface IfaceID
	Data  []byte
}

// Info is the result of parsing a Packet's headers far enough to route it:
// Ethernet addresses, EtherType, and (if IP) the flow key and payload
// length used for budget accounting.
type Info struct {
	EtherType  uint16
	SrcMAC     net.HardwareAddr
	DstMAC     net.HardwareAddr
	Flow       flow.Key
	DataLen    int
	IPPayload  []byte
	IsIP       bool
}

var (
	// ErrShortPacket is returned when a frame is too small to contain even
	// an Ethernet header.
	ErrShortPacket = errors.New("netio: packet too short")
	// ErrUnsupportedProto is returned for EtherTypes the parser does not
	// understand.
	ErrUnsupportedProto = errors.New("netio: unsupported ethertype")
)

const ethHeaderLen = 14

// ExtractInfo parses a raw Ethernet frame far enough to build a flow.Key
// and report its payload length, using golang.org/x/net/ipv4 and ipv6 for
// IP header parsing (there is no ecosystem Ethernet-frame parser in the
// pack, so the Ethernet header itself is parsed by hand via
// encoding/binary — see DESIGN.md).
func ExtractInfo(data []byte) (Info, error) {
	var info Info
	if len(data) < ethHeaderLen {
		return info, ErrShortPacket
	}

	info.DstMAC = net.HardwareAddr(data[0:6])
	info.SrcMAC = net.HardwareAddr(data[6:12])
	info.EtherType = binary.BigEndian.Uint16(data[12:14])
	payload := data[ethHeaderLen:]

	switch info.EtherType {
	case EtherTypeIPv4:
		hdr, err := ipv4.ParseHeader(payload)
		if err != nil {
			return info, err
		}
		info.IsIP = true
		info.DataLen = hdr.TotalLen
		info.IPPayload = payload[hdr.Len:]
		info.Flow = flow.KeyFromNetIP(hdr.Src, hdr.Dst, uint8(hdr.Protocol))
	case EtherTypeIPv6:
		hdr, err := ipv6.ParseHeader(payload)
		if err != nil {
			return info, err
		}
		info.IsIP = true
		info.DataLen = hdr.PayloadLen + ipv6.HeaderLen
		info.IPPayload = payload[ipv6.HeaderLen:]
		info.Flow = flow.KeyFromNetIP(hdr.Src, hdr.Dst, uint8(hdr.NextHeader))
	case EtherTypeARP:
		info.IsIP = false
	default:
		return info, ErrUnsupportedProto
	}
	return info, nil
}

// ICMPv6 constants used by IsND to classify neighbor-discovery frames.
const (
	protoICMPv6                     = 58
	icmpv6TypeNeighborSolicitation  = 135
	icmpv6TypeNeighborAdvertisement = 136
)

// IsND reports whether info describes an IPv6 neighbor-discovery frame (a
// neighbor solicitation or advertisement) that must be routed to LLS
// instead of the flow path, the Go equivalent of pkt_is_nd's protocol and
// ICMPv6-type check (lls/main.c:189). The source additionally matches the
// packet's destination address against the interface's own, link-local,
// and solicited-node-multicast addresses; Instance carries no
// interface-address table to check against (see DESIGN.md), so this
// classifies solely on EtherType, next-header, and ICMPv6 type.
func IsND(info Info) bool {
	if info.EtherType != EtherTypeIPv6 || info.Flow.Proto != protoICMPv6 {
		return false
	}
	if len(info.IPPayload) < 1 {
		return false
	}
	switch info.IPPayload[0] {
	case icmpv6TypeNeighborSolicitation, icmpv6TypeNeighborAdvertisement:
		return true
	default:
		return false
	}
}

// TunnelInfo carries the destination of an IP-in-IP (or IPv6-in-IPv6)
// encapsulation: the grantor's address, reached over a given interface (the
// DSCP priority is passed to Codec.Encapsulate separately). This is the Go
// stand-in for struct
// ipip_tunnel_info, populated (per the source's TODO) from a policy/LPM
// lookup that is out of this module's scope (see SPEC_FULL.md Non-goals).
type TunnelInfo struct {
	GrantorAddr net.IP
	OutIface    IfaceID
}

// Codec encapsulates a packet for transmission toward a grantor, stamping
// the given DSCP priority into the outer IP header. A real codec prepends
// an outer IP header and rewrites DSCP bits using golang.org/x/net/ipv4's
// TOS helpers; Encapsulate here returns the (conceptually) re-framed bytes
// for the caller's PacketSink to transmit.
type Codec interface {
	Encapsulate(pkt *Packet, priority uint8, tunnel TunnelInfo) ([]byte, error)
}

// PacketSource abstracts receiving bursts of packets from an interface, the
// Go analogue of rte_eth_rx_burst.
type PacketSource interface {
	RxBurst(max int) ([]*Packet, error)
}

// PacketSink abstracts transmitting bursts of packets, the Go analogue of
// rte_eth_tx_burst.
type PacketSink interface {
	TxBurst(pkts []*Packet) (sent int, err error)
}
