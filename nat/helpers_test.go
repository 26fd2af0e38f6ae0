package nat

import (
	"encoding/binary"
	"net/netip"

	"github.com/michaelzhou24/openflow-nat/packet"
)

func mustPrefix(s string) netip.Prefix {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		panic(err)
	}
	return p
}

type sentFrame struct {
	SwitchID    uint64
	IngressPort uint32
	OutPort     uint32
	Actions     []Action
	Frame       []byte
}

type installedRule struct {
	SwitchID uint64
	Match    Match
	Actions  []Action
}

// fakeTransport records every call so tests can assert on the exact
// frames and rules the engine emits.
type fakeTransport struct {
	sent  []sentFrame
	rules []installedRule
}

func (ft *fakeTransport) SendFrame(switchID uint64, ingressPort, outPort uint32, actions []Action, frame []byte) error {
	ft.sent = append(ft.sent, sentFrame{
		SwitchID:    switchID,
		IngressPort: ingressPort,
		OutPort:     outPort,
		Actions:     actions,
		Frame:       frame,
	})
	return nil
}

func (ft *fakeTransport) InstallRule(switchID uint64, match Match, actions []Action) error {
	ft.rules = append(ft.rules, installedRule{
		SwitchID: switchID,
		Match:    match,
		Actions:  actions,
	})
	return nil
}

func buildEth(dst, src packet.MAC, ethType uint16, payload []byte) []byte {
	b := make([]byte, 14+len(payload))
	copy(b[0:6], dst[:])
	copy(b[6:12], src[:])
	binary.BigEndian.PutUint16(b[12:14], ethType)
	copy(b[14:], payload)
	return b
}

func buildIPv4(dstMAC, srcMAC packet.MAC, srcIP, dstIP packet.IPv4, proto uint8, l4 []byte) []byte {
	hdr := make([]byte, 20)
	hdr[0] = 0x45 // version 4, IHL 5
	binary.BigEndian.PutUint16(hdr[2:4], uint16(20+len(l4)))
	hdr[8] = 64 // TTL
	hdr[9] = proto
	copy(hdr[12:16], srcIP[:])
	copy(hdr[16:20], dstIP[:])
	return buildEth(dstMAC, srcMAC, packet.EthTypeIPv4, append(hdr, l4...))
}

func buildTCP(dstMAC, srcMAC packet.MAC, srcIP, dstIP packet.IPv4, srcPort, dstPort uint16) []byte {
	l4 := make([]byte, 20)
	binary.BigEndian.PutUint16(l4[0:2], srcPort)
	binary.BigEndian.PutUint16(l4[2:4], dstPort)
	l4[12] = 5 << 4 // data offset
	return buildIPv4(dstMAC, srcMAC, srcIP, dstIP, packet.ProtoTCP, l4)
}

func buildUDP(dstMAC, srcMAC packet.MAC, srcIP, dstIP packet.IPv4, srcPort, dstPort uint16) []byte {
	l4 := make([]byte, 8)
	binary.BigEndian.PutUint16(l4[0:2], srcPort)
	binary.BigEndian.PutUint16(l4[2:4], dstPort)
	binary.BigEndian.PutUint16(l4[4:6], 8)
	return buildIPv4(dstMAC, srcMAC, srcIP, dstIP, packet.ProtoUDP, l4)
}

func buildICMP(dstMAC, srcMAC packet.MAC, srcIP, dstIP packet.IPv4) []byte {
	l4 := make([]byte, 8)
	l4[0] = 8 // echo request
	return buildIPv4(dstMAC, srcMAC, srcIP, dstIP, packet.ProtoICMP, l4)
}
