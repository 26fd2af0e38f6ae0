package packet

import (
	"encoding/binary"
)

// EtherTypes and IP protocol numbers the controller cares about.
const (
	EthTypeIPv4 uint16 = 0x0800
	EthTypeARP  uint16 = 0x0806
	EthTypeIPv6 uint16 = 0x86dd

	ProtoICMP uint8 = 1
	ProtoTCP  uint8 = 6
	ProtoUDP  uint8 = 17
)

const ethHeaderLen = 14

// Frame is a read-only view over a raw Ethernet frame as delivered in
// an OpenFlow packet-in. Accessors for a given layer are only valid
// when the corresponding Is* predicate holds.
type Frame struct {
	bytes []byte
}

// NewFrame returns a Frame view over bs, or nil if bs is too short to
// hold an Ethernet header.
func NewFrame(bs []byte) *Frame {
	if len(bs) < ethHeaderLen {
		return nil
	}
	return &Frame{bytes: bs}
}

func (f *Frame) Bytes() []byte {
	return f.bytes
}

func (f *Frame) DstMAC() MAC {
	var m MAC
	copy(m[:], f.bytes[0:6])
	return m
}

func (f *Frame) SrcMAC() MAC {
	var m MAC
	copy(m[:], f.bytes[6:12])
	return m
}

func (f *Frame) EtherType() uint16 {
	return binary.BigEndian.Uint16(f.bytes[12:14])
}

func (f *Frame) IsARP() bool {
	return f.EtherType() == EthTypeARP && len(f.bytes) >= ethHeaderLen+arpPayloadLen
}

func (f *Frame) IsIPv4() bool {
	return f.EtherType() == EthTypeIPv4 && len(f.bytes) >= ethHeaderLen+20
}

func (f *Frame) IsIPv6() bool {
	return f.EtherType() == EthTypeIPv6
}

// ipHdrLen returns the IPv4 header length in bytes.
func (f *Frame) ipHdrLen() int {
	return int(f.bytes[ethHeaderLen]&0x0f) * 4
}

// l4Offset is the offset of the transport header within the frame.
func (f *Frame) l4Offset() int {
	return ethHeaderLen + f.ipHdrLen()
}

func (f *Frame) Protocol() uint8 {
	return f.bytes[ethHeaderLen+9]
}

func (f *Frame) SrcIP() IPv4 {
	var ip IPv4
	copy(ip[:], f.bytes[ethHeaderLen+12:ethHeaderLen+16])
	return ip
}

func (f *Frame) DstIP() IPv4 {
	var ip IPv4
	copy(ip[:], f.bytes[ethHeaderLen+16:ethHeaderLen+20])
	return ip
}

func (f *Frame) IsTCP() bool {
	return f.IsIPv4() && f.Protocol() == ProtoTCP && len(f.bytes) >= f.l4Offset()+20
}

func (f *Frame) IsUDP() bool {
	return f.IsIPv4() && f.Protocol() == ProtoUDP && len(f.bytes) >= f.l4Offset()+8
}

func (f *Frame) IsICMP() bool {
	return f.IsIPv4() && f.Protocol() == ProtoICMP
}

// L4SrcPort returns the TCP or UDP source port. Both protocols keep
// their ports in the first four bytes of the transport header.
func (f *Frame) L4SrcPort() uint16 {
	off := f.l4Offset()
	return binary.BigEndian.Uint16(f.bytes[off : off+2])
}

// L4DstPort returns the TCP or UDP destination port.
func (f *Frame) L4DstPort() uint16 {
	off := f.l4Offset()
	return binary.BigEndian.Uint16(f.bytes[off+2 : off+4])
}
