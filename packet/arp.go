package packet

import (
	"encoding/binary"
)

// ARP opcodes.
const (
	ARPOpRequest uint16 = 1
	ARPOpReply   uint16 = 2
)

const (
	arpHWTypeEthernet uint16 = 1
	arpPayloadLen            = 28
)

// ARP payload offsets, relative to the start of the frame.
const (
	arpOpcode    = ethHeaderLen + 6
	arpSenderMAC = ethHeaderLen + 8
	arpSenderIP  = ethHeaderLen + 14
	arpTargetMAC = ethHeaderLen + 18
	arpTargetIP  = ethHeaderLen + 24
)

func (f *Frame) ARPOpcode() uint16 {
	return binary.BigEndian.Uint16(f.bytes[arpOpcode : arpOpcode+2])
}

func (f *Frame) ARPSenderMAC() MAC {
	var m MAC
	copy(m[:], f.bytes[arpSenderMAC:arpSenderMAC+6])
	return m
}

func (f *Frame) ARPSenderIP() IPv4 {
	var ip IPv4
	copy(ip[:], f.bytes[arpSenderIP:arpSenderIP+4])
	return ip
}

func (f *Frame) ARPTargetIP() IPv4 {
	var ip IPv4
	copy(ip[:], f.bytes[arpTargetIP:arpTargetIP+4])
	return ip
}

// ARPRequest builds a broadcast ARP request asking for targetIP, sent
// from the given sender identity.
func ARPRequest(senderMAC MAC, senderIP, targetIP IPv4) []byte {
	return buildARP(ARPOpRequest, senderMAC, senderIP, MAC{}, targetIP, BroadcastMAC)
}

// ARPReply builds a unicast ARP reply announcing senderIP is at
// senderMAC, addressed to the original requester.
func ARPReply(senderMAC MAC, senderIP IPv4, targetMAC MAC, targetIP IPv4) []byte {
	return buildARP(ARPOpReply, senderMAC, senderIP, targetMAC, targetIP, targetMAC)
}

func buildARP(op uint16, senderMAC MAC, senderIP IPv4, targetMAC MAC, targetIP IPv4, ethDst MAC) []byte {
	b := make([]byte, ethHeaderLen+arpPayloadLen)
	copy(b[0:6], ethDst[:])
	copy(b[6:12], senderMAC[:])
	binary.BigEndian.PutUint16(b[12:14], EthTypeARP)

	binary.BigEndian.PutUint16(b[14:16], arpHWTypeEthernet)
	binary.BigEndian.PutUint16(b[16:18], EthTypeIPv4)
	b[18] = 6 // MAC length
	b[19] = 4 // IPv4 length
	binary.BigEndian.PutUint16(b[arpOpcode:arpOpcode+2], op)
	copy(b[arpSenderMAC:arpSenderMAC+6], senderMAC[:])
	copy(b[arpSenderIP:arpSenderIP+4], senderIP[:])
	copy(b[arpTargetMAC:arpTargetMAC+6], targetMAC[:])
	copy(b[arpTargetIP:arpTargetIP+4], targetIP[:])
	return b
}
