// Package openflow implements the slice of OpenFlow 1.3 the NAT
// controller needs: the connection handshake, packet-in delivery, and
// packet-out/flow-mod emission. It is not a general OpenFlow library.
package openflow

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/michaelzhou24/openflow-nat/nat"
)

const Version = 0x04 // OpenFlow 1.3

// Message types.
const (
	TypeHello           uint8 = 0
	TypeError           uint8 = 1
	TypeEchoRequest     uint8 = 2
	TypeEchoReply       uint8 = 3
	TypeFeaturesRequest uint8 = 5
	TypeFeaturesReply   uint8 = 6
	TypePacketIn        uint8 = 10
	TypePacketOut       uint8 = 13
	TypeFlowMod         uint8 = 14
)

const (
	headerLen    = 8
	noBuffer     = 0xffffffff
	portAny      = 0xffffffff
	groupAny     = 0xffffffff
	commandAdd   = 0 // OFPFC_ADD
	flowPriority = 0x8000
)

// OXM header fields (class OPENFLOW_BASIC).
const (
	oxmClassBasic uint16 = 0x8000

	oxmInPort   uint8 = 0
	oxmEthSrc   uint8 = 4
	oxmEthDst   uint8 = 3
	oxmEthType  uint8 = 5
	oxmIPProto  uint8 = 10
	oxmIPv4Src  uint8 = 11
	oxmIPv4Dst  uint8 = 12
	oxmTCPSrc   uint8 = 13
	oxmTCPDst   uint8 = 14
	oxmUDPSrc   uint8 = 15
	oxmUDPDst   uint8 = 16
)

// Action and instruction types.
const (
	actionOutput   uint16 = 0
	actionDecNwTTL uint16 = 24
	actionSetField uint16 = 25

	instrApplyActions uint16 = 4
)

// Header is the fixed 8-byte OpenFlow message header.
type Header struct {
	Version uint8
	Type    uint8
	Length  uint16
	Xid     uint32
}

// ReadMessage reads one framed message from r.
func ReadMessage(r io.Reader) (Header, []byte, error) {
	var raw [headerLen]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, nil, err
	}
	hdr := Header{
		Version: raw[0],
		Type:    raw[1],
		Length:  binary.BigEndian.Uint16(raw[2:4]),
		Xid:     binary.BigEndian.Uint32(raw[4:8]),
	}
	if hdr.Length < headerLen {
		return Header{}, nil, fmt.Errorf("message length %d shorter than header", hdr.Length)
	}
	body := make([]byte, hdr.Length-headerLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Header{}, nil, err
	}
	return hdr, body, nil
}

// Encode frames a message body with the standard header.
func Encode(msgType uint8, xid uint32, body []byte) []byte {
	msg := make([]byte, headerLen+len(body))
	msg[0] = Version
	msg[1] = msgType
	binary.BigEndian.PutUint16(msg[2:4], uint16(len(msg)))
	binary.BigEndian.PutUint32(msg[4:8], xid)
	copy(msg[headerLen:], body)
	return msg
}

// ParseFeaturesReply extracts the datapath id identifying the switch.
func ParseFeaturesReply(body []byte) (uint64, error) {
	if len(body) < 8 {
		return 0, fmt.Errorf("features reply too short: %d bytes", len(body))
	}
	return binary.BigEndian.Uint64(body[0:8]), nil
}

// ParsePacketIn extracts the ingress port and the raw frame from a
// packet-in body. The ingress port is carried as an OXM in_port field
// inside the embedded match.
func ParsePacketIn(body []byte) (inPort uint32, frame []byte, err error) {
	if len(body) < 16+4 {
		return 0, nil, fmt.Errorf("packet-in too short: %d bytes", len(body))
	}
	matchLen := int(binary.BigEndian.Uint16(body[18:20]))
	matchEnd := 16 + align8(matchLen)
	if matchLen < 4 || len(body) < matchEnd+2 {
		return 0, nil, fmt.Errorf("packet-in match truncated")
	}

	// Scan the OXM fields for in_port.
	oxm := body[20 : 16+matchLen]
	for len(oxm) >= 4 {
		class := binary.BigEndian.Uint16(oxm[0:2])
		field := oxm[2] >> 1
		length := int(oxm[3])
		if len(oxm) < 4+length {
			return 0, nil, fmt.Errorf("packet-in OXM truncated")
		}
		if class == oxmClassBasic && field == oxmInPort && length == 4 {
			inPort = binary.BigEndian.Uint32(oxm[4:8])
		}
		oxm = oxm[4+length:]
	}
	if inPort == 0 {
		return 0, nil, fmt.Errorf("packet-in missing in_port")
	}

	// Two pad bytes separate the match from the frame.
	return inPort, body[matchEnd+2:], nil
}

// EncodePacketOut builds a packet-out body carrying frame with the
// given actions. outPort, unless nat.PortNone, is appended as a final
// output action.
func EncodePacketOut(ingressPort, outPort uint32, actions []nat.Action, frame []byte) []byte {
	acts := encodeActions(actions, frameProto(frame))
	if outPort != nat.PortNone {
		acts = append(acts, encodeOutput(outPort)...)
	}

	body := make([]byte, 16, 16+len(acts)+len(frame))
	binary.BigEndian.PutUint32(body[0:4], noBuffer)
	binary.BigEndian.PutUint32(body[4:8], ingressPort)
	binary.BigEndian.PutUint16(body[8:10], uint16(len(acts)))
	body = append(body, acts...)
	body = append(body, frame...)
	return body
}

// EncodeFlowMod builds a flow-mod body adding a rule that applies
// actions to frames matching match.
func EncodeFlowMod(match nat.Match, actions []nat.Action) []byte {
	m := encodeMatch(match)
	acts := encodeActions(actions, match.Proto)

	instr := make([]byte, 8, 8+len(acts))
	binary.BigEndian.PutUint16(instr[0:2], instrApplyActions)
	binary.BigEndian.PutUint16(instr[2:4], uint16(8+len(acts)))
	instr = append(instr, acts...)

	// Fixed part: cookie(8) cookie_mask(8) table_id(1) command(1)
	// idle(2) hard(2) priority(2) buffer_id(4) out_port(4)
	// out_group(4) flags(2) pad(2). Command zero is OFPFC_ADD and
	// zero timeouts mean rules never expire.
	body := make([]byte, 40, 40+len(m)+len(instr))
	binary.BigEndian.PutUint16(body[22:24], flowPriority)
	binary.BigEndian.PutUint32(body[24:28], noBuffer)
	binary.BigEndian.PutUint32(body[28:32], portAny)
	binary.BigEndian.PutUint32(body[32:36], groupAny)
	body = append(body, m...)
	body = append(body, instr...)
	return body
}

func align8(n int) int {
	return (n + 7) &^ 7
}
