package nat

import (
	"github.com/michaelzhou24/openflow-nat/packet"
)

// Reserved output ports, matching the OpenFlow reserved port numbers.
const (
	// PortFlood sends the frame out every port except the one it
	// arrived on. Used when the destination MAC has not been learned.
	PortFlood uint32 = 0xfffffffb
	// PortIngress sends the frame back out the port it arrived on.
	PortIngress uint32 = 0xfffffff8
	// PortNone means the action list already carries its own output
	// and the transport must not append one.
	PortNone uint32 = 0
)

// Match describes the exact flow a rule applies to. IPv4 is implied;
// SrcPort/DstPort are only meaningful when Proto is TCP or UDP.
type Match struct {
	Proto   uint8
	SrcIP   packet.IPv4
	DstIP   packet.IPv4
	SrcPort uint16
	DstPort uint16
}

// Action is a field rewrite or output applied to a frame before it
// leaves the switch. The same action list is used both for packet-out
// and for installed flow rules.
type Action interface {
	isAction()
}

type ActionOutput struct{ Port uint32 }

type ActionSetEthSrc struct{ MAC packet.MAC }

type ActionSetEthDst struct{ MAC packet.MAC }

type ActionSetIPv4Src struct{ IP packet.IPv4 }

type ActionSetIPv4Dst struct{ IP packet.IPv4 }

// ActionSetL4Src rewrites the TCP or UDP source port; which of the two
// is determined by the flow's IP protocol.
type ActionSetL4Src struct{ Port uint16 }

type ActionSetL4Dst struct{ Port uint16 }

type ActionDecNwTTL struct{}

func (ActionOutput) isAction()     {}
func (ActionSetEthSrc) isAction()  {}
func (ActionSetEthDst) isAction()  {}
func (ActionSetIPv4Src) isAction() {}
func (ActionSetIPv4Dst) isAction() {}
func (ActionSetL4Src) isAction()   {}
func (ActionSetL4Dst) isAction()   {}
func (ActionDecNwTTL) isAction()   {}

// hasOutput reports whether the action list already includes an output.
func hasOutput(actions []Action) bool {
	for _, a := range actions {
		if _, ok := a.(ActionOutput); ok {
			return true
		}
	}
	return false
}

// Transport is the switch-facing boundary of the engine. Both calls
// are fire and forget; the engine never consumes an acknowledgment.
type Transport interface {
	// SendFrame emits a single frame on the switch, applying actions
	// first. outPort may be a real port, PortFlood, PortIngress, or
	// PortNone when actions already carry an output.
	SendFrame(switchID uint64, ingressPort, outPort uint32, actions []Action, frame []byte) error
	// InstallRule installs a persistent rule applying actions to every
	// frame matching match.
	InstallRule(switchID uint64, match Match, actions []Action) error
}
