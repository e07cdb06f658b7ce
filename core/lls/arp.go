package lls

import "encoding/binary"

// ARP opcodes and the fixed Ethernet/IPv4 ARP packet layout. There is no
// ecosystem ARP parser in the pack (golang.org/x/net stops at IP), so the
// header is parsed by hand over encoding/binary, the same approach the
// source takes with its own arp.h struct arp_hdr.
const (
	arpOpRequest = 1
	arpOpReply   = 2
	arpHdrLen    = 28 // hw(2)+proto(2)+hwlen(1)+protolen(1)+op(2)+sha(6)+spa(4)+tha(6)+tpa(4)
)

type arpPacket struct {
	Op        uint16
	SenderMAC [6]byte
	SenderIP  [4]byte
	TargetMAC [6]byte
	TargetIP  [4]byte
}

// parseARP parses an ARP payload (the bytes immediately following the
// Ethernet header), the Go equivalent of process_arp's header reads.
func parseARP(b []byte) (arpPacket, bool) {
	var p arpPacket
	if len(b) < arpHdrLen {
		return p, false
	}
	p.Op = binary.BigEndian.Uint16(b[6:8])
	copy(p.SenderMAC[:], b[8:14])
	copy(p.SenderIP[:], b[14:18])
	copy(p.TargetMAC[:], b[18:24])
	copy(p.TargetIP[:], b[24:28])
	return p, true
}

// buildARPRequest renders an ARP request for targetIP, sent from srcMAC/
// srcIP, the Go equivalent of xmit_arp_req's packet construction.
func buildARPRequest(srcMAC [6]byte, srcIP [4]byte, targetIP [4]byte) []byte {
	b := make([]byte, arpHdrLen)
	binary.BigEndian.PutUint16(b[0:2], 1) // hardware type: Ethernet
	binary.BigEndian.PutUint16(b[2:4], 0x0800)
	b[4] = 6
	b[5] = 4
	binary.BigEndian.PutUint16(b[6:8], arpOpRequest)
	copy(b[8:14], srcMAC[:])
	copy(b[14:18], srcIP[:])
	copy(b[24:28], targetIP[:])
	return b
}
