package openflow

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelzhou24/openflow-nat/nat"
	"github.com/michaelzhou24/openflow-nat/packet"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := Encode(TypeEchoRequest, 42, []byte{1, 2, 3})

	hdr, body, err := ReadMessage(bytes.NewReader(msg))
	require.NoError(t, err)
	assert.Equal(t, uint8(Version), hdr.Version)
	assert.Equal(t, TypeEchoRequest, hdr.Type)
	assert.Equal(t, uint32(42), hdr.Xid)
	assert.Equal(t, []byte{1, 2, 3}, body)
}

func TestParseFeaturesReply(t *testing.T) {
	body := make([]byte, 24)
	binary.BigEndian.PutUint64(body[0:8], 0xdeadbeef)

	dpid, err := ParseFeaturesReply(body)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), dpid)

	_, err = ParseFeaturesReply(body[:4])
	assert.Error(t, err)
}

// packetInBody builds a packet-in body whose match carries only an
// in_port OXM field.
func packetInBody(inPort uint32, frame []byte) []byte {
	oxm := make([]byte, 8)
	binary.BigEndian.PutUint16(oxm[0:2], oxmClassBasic)
	oxm[2] = oxmInPort << 1
	oxm[3] = 4
	binary.BigEndian.PutUint32(oxm[4:8], inPort)

	matchLen := 4 + len(oxm) // 12, padded to 16
	match := make([]byte, align8(matchLen))
	binary.BigEndian.PutUint16(match[0:2], 1)
	binary.BigEndian.PutUint16(match[2:4], uint16(matchLen))
	copy(match[4:], oxm)

	body := make([]byte, 16)
	binary.BigEndian.PutUint32(body[0:4], noBuffer)
	binary.BigEndian.PutUint16(body[4:6], uint16(len(frame)))
	body = append(body, match...)
	body = append(body, 0, 0) // pad
	return append(body, frame...)
}

func TestParsePacketIn(t *testing.T) {
	frame := []byte{0xde, 0xad, 0xbe, 0xef}

	inPort, data, err := ParsePacketIn(packetInBody(7, frame))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), inPort)
	assert.Equal(t, frame, data)
}

func TestParsePacketInTruncated(t *testing.T) {
	_, _, err := ParsePacketIn([]byte{1, 2, 3})
	assert.Error(t, err)

	body := packetInBody(7, []byte{1})
	_, _, err = ParsePacketIn(body[:18])
	assert.Error(t, err)
}

func TestEncodePacketOutAppendsOutput(t *testing.T) {
	frame := []byte{1, 2, 3, 4}
	body := EncodePacketOut(3, nat.PortFlood, nil, frame)

	assert.Equal(t, uint32(noBuffer), binary.BigEndian.Uint32(body[0:4]))
	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(body[4:8]))

	actsLen := int(binary.BigEndian.Uint16(body[8:10]))
	assert.Equal(t, 16, actsLen) // one output action

	acts := body[16 : 16+actsLen]
	assert.Equal(t, actionOutput, binary.BigEndian.Uint16(acts[0:2]))
	assert.Equal(t, nat.PortFlood, binary.BigEndian.Uint32(acts[4:8]))

	assert.Equal(t, frame, body[16+actsLen:])
}

func TestEncodePacketOutPortNone(t *testing.T) {
	// With PortNone the action list is emitted as-is.
	actions := []nat.Action{nat.ActionOutput{Port: 2}}
	body := EncodePacketOut(3, nat.PortNone, actions, nil)

	actsLen := int(binary.BigEndian.Uint16(body[8:10]))
	assert.Equal(t, 16, actsLen)
	acts := body[16 : 16+actsLen]
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(acts[4:8]))
}

func TestEncodeMatchTCP(t *testing.T) {
	m := nat.Match{
		Proto:   packet.ProtoTCP,
		SrcIP:   packet.IPv4{192, 168, 1, 100},
		DstIP:   packet.IPv4{8, 8, 8, 8},
		SrcPort: 5000,
		DstPort: 80,
	}
	b := encodeMatch(m)

	require.Equal(t, 0, len(b)%8)
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(b[0:2])) // OFPMT_OXM

	// Walk the OXM fields and collect which ones are present.
	length := int(binary.BigEndian.Uint16(b[2:4]))
	fields := map[uint8][]byte{}
	oxm := b[4:length]
	for len(oxm) >= 4 {
		n := int(oxm[3])
		fields[oxm[2]>>1] = oxm[4 : 4+n]
		oxm = oxm[4+n:]
	}

	assert.Equal(t, []byte{0x08, 0x00}, fields[oxmEthType])
	assert.Equal(t, m.SrcIP[:], fields[oxmIPv4Src])
	assert.Equal(t, m.DstIP[:], fields[oxmIPv4Dst])
	assert.Equal(t, []byte{packet.ProtoTCP}, fields[oxmIPProto])
	assert.Equal(t, []byte{0x13, 0x88}, fields[oxmTCPSrc])
	assert.Equal(t, []byte{0x00, 0x50}, fields[oxmTCPDst])
	assert.NotContains(t, fields, oxmUDPSrc)
}

func TestEncodeActionsSetField(t *testing.T) {
	actions := []nat.Action{
		nat.ActionDecNwTTL{},
		nat.ActionSetIPv4Src{IP: packet.IPv4{10, 0, 0, 1}},
		nat.ActionSetL4Src{Port: 3000},
	}
	b := encodeActions(actions, packet.ProtoUDP)
	require.Equal(t, 0, len(b)%8)

	// dec_nw_ttl
	assert.Equal(t, actionDecNwTTL, binary.BigEndian.Uint16(b[0:2]))
	assert.Equal(t, uint16(8), binary.BigEndian.Uint16(b[2:4]))

	// set_field ipv4_src: 4 header + 8 OXM, padded to 16
	sf := b[8:]
	assert.Equal(t, actionSetField, binary.BigEndian.Uint16(sf[0:2]))
	assert.Equal(t, uint16(16), binary.BigEndian.Uint16(sf[2:4]))
	assert.Equal(t, oxmIPv4Src, sf[6]>>1)
	assert.Equal(t, []byte{10, 0, 0, 1}, sf[8:12])

	// set_field udp_src, because the flow is UDP
	sf = b[24:]
	assert.Equal(t, actionSetField, binary.BigEndian.Uint16(sf[0:2]))
	assert.Equal(t, oxmUDPSrc, sf[6]>>1)
	assert.Equal(t, []byte{0x0b, 0xb8}, sf[8:10])
}

func TestEncodeFlowMod(t *testing.T) {
	m := nat.Match{
		Proto: packet.ProtoICMP,
		SrcIP: packet.IPv4{192, 168, 1, 100},
		DstIP: packet.IPv4{192, 168, 1, 101},
	}
	actions := []nat.Action{nat.ActionOutput{Port: 2}}
	body := EncodeFlowMod(m, actions)

	assert.Equal(t, uint8(commandAdd), body[17])
	// Zero timeouts: NAT rules never expire.
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(body[18:20]))
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(body[20:22]))
	assert.Equal(t, uint16(flowPriority), binary.BigEndian.Uint16(body[22:24]))
	assert.Equal(t, uint32(noBuffer), binary.BigEndian.Uint32(body[24:28]))
	assert.Equal(t, uint32(portAny), binary.BigEndian.Uint32(body[28:32]))
	assert.Equal(t, uint32(groupAny), binary.BigEndian.Uint32(body[32:36]))

	// The match follows the fixed part; the apply-actions instruction
	// follows the match.
	matchLen := int(binary.BigEndian.Uint16(body[42:44]))
	instr := body[40+align8(matchLen):]
	assert.Equal(t, instrApplyActions, binary.BigEndian.Uint16(instr[0:2]))
	assert.Equal(t, uint16(8+16), binary.BigEndian.Uint16(instr[2:4]))
	assert.Equal(t, actionOutput, binary.BigEndian.Uint16(instr[8:10]))
}
