package openflow

import (
	"encoding/binary"

	"github.com/michaelzhou24/openflow-nat/nat"
	"github.com/michaelzhou24/openflow-nat/packet"
)

// oxm builds a single OXM TLV in the OPENFLOW_BASIC class.
func oxm(field uint8, value []byte) []byte {
	b := make([]byte, 4+len(value))
	binary.BigEndian.PutUint16(b[0:2], oxmClassBasic)
	b[2] = field << 1 // no mask
	b[3] = uint8(len(value))
	copy(b[4:], value)
	return b
}

func oxm16(field uint8, v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return oxm(field, buf[:])
}

// encodeMatch serializes a nat.Match as an OXM match structure,
// padded to a multiple of eight bytes. The ethertype term is always
// present since every rule the controller installs is an IPv4 rule.
func encodeMatch(m nat.Match) []byte {
	fields := oxm16(oxmEthType, packet.EthTypeIPv4)
	fields = append(fields, oxm(oxmIPv4Src, m.SrcIP[:])...)
	fields = append(fields, oxm(oxmIPv4Dst, m.DstIP[:])...)
	if m.Proto != 0 {
		fields = append(fields, oxm(oxmIPProto, []byte{m.Proto})...)
	}
	switch m.Proto {
	case packet.ProtoTCP:
		fields = append(fields, oxm16(oxmTCPSrc, m.SrcPort)...)
		fields = append(fields, oxm16(oxmTCPDst, m.DstPort)...)
	case packet.ProtoUDP:
		fields = append(fields, oxm16(oxmUDPSrc, m.SrcPort)...)
		fields = append(fields, oxm16(oxmUDPDst, m.DstPort)...)
	}

	length := 4 + len(fields) // excluding padding
	b := make([]byte, align8(length))
	binary.BigEndian.PutUint16(b[0:2], 1) // OFPMT_OXM
	binary.BigEndian.PutUint16(b[2:4], uint16(length))
	copy(b[4:], fields)
	return b
}

// encodeActions serializes an action list. proto picks between the
// TCP and UDP port fields for L4 rewrites.
func encodeActions(actions []nat.Action, proto uint8) []byte {
	var b []byte
	for _, a := range actions {
		switch a := a.(type) {
		case nat.ActionOutput:
			b = append(b, encodeOutput(a.Port)...)
		case nat.ActionSetEthSrc:
			b = append(b, encodeSetField(oxm(oxmEthSrc, a.MAC[:]))...)
		case nat.ActionSetEthDst:
			b = append(b, encodeSetField(oxm(oxmEthDst, a.MAC[:]))...)
		case nat.ActionSetIPv4Src:
			b = append(b, encodeSetField(oxm(oxmIPv4Src, a.IP[:]))...)
		case nat.ActionSetIPv4Dst:
			b = append(b, encodeSetField(oxm(oxmIPv4Dst, a.IP[:]))...)
		case nat.ActionSetL4Src:
			b = append(b, encodeSetField(oxm16(l4Field(proto, true), a.Port))...)
		case nat.ActionSetL4Dst:
			b = append(b, encodeSetField(oxm16(l4Field(proto, false), a.Port))...)
		case nat.ActionDecNwTTL:
			b = append(b, encodeDecNwTTL()...)
		}
	}
	return b
}

func l4Field(proto uint8, src bool) uint8 {
	if proto == packet.ProtoUDP {
		if src {
			return oxmUDPSrc
		}
		return oxmUDPDst
	}
	if src {
		return oxmTCPSrc
	}
	return oxmTCPDst
}

// encodeOutput builds an OFPAT_OUTPUT action.
func encodeOutput(port uint32) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint16(b[0:2], actionOutput)
	binary.BigEndian.PutUint16(b[2:4], 16)
	binary.BigEndian.PutUint32(b[4:8], port)
	binary.BigEndian.PutUint16(b[8:10], 0xffff) // max_len: no buffer
	return b
}

// encodeSetField wraps an OXM TLV in an OFPAT_SET_FIELD action,
// padded to a multiple of eight.
func encodeSetField(field []byte) []byte {
	length := align8(4 + len(field))
	b := make([]byte, length)
	binary.BigEndian.PutUint16(b[0:2], actionSetField)
	binary.BigEndian.PutUint16(b[2:4], uint16(length))
	copy(b[4:], field)
	return b
}

func encodeDecNwTTL() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint16(b[0:2], actionDecNwTTL)
	binary.BigEndian.PutUint16(b[2:4], 8)
	return b
}

// frameProto sniffs the IP protocol of a raw frame so packet-out
// set-field actions can pick the right L4 fields.
func frameProto(frame []byte) uint8 {
	f := packet.NewFrame(frame)
	if f == nil || !f.IsIPv4() {
		return 0
	}
	return f.Protocol()
}
