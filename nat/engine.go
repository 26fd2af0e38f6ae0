package nat

import (
	log "github.com/sirupsen/logrus"

	"github.com/michaelzhou24/openflow-nat/packet"
)

// Engine is the per-packet decision core of the NAT gateway. It owns
// the learning, resolution, and translation tables exclusively and is
// strictly single-threaded: the transport must deliver one packet-in
// at a time, and every table mutation happens inside that call path.
type Engine struct {
	cfg       Config
	transport Transport

	learner *AddressLearner
	arp     *ResolutionQueue
	nat     *TranslationTable
}

func NewEngine(cfg Config, transport Transport) *Engine {
	return &Engine{
		cfg:       cfg,
		transport: transport,
		learner:   NewAddressLearner(),
		arp:       NewResolutionQueue(cfg),
		nat:       NewTranslationTable(cfg.PortBase),
	}
}

// ProcessPacketIn classifies one inbound frame and runs it to
// completion or to a suspend point. Frames that cannot be classified
// are dropped silently: no rule is installed and no error surfaces.
func (e *Engine) ProcessPacketIn(switchID uint64, ingressPort uint32, frame []byte) {
	f := packet.NewFrame(frame)
	if f == nil || f.IsIPv6() {
		return
	}

	e.learner.Learn(f.SrcMAC(), ingressPort)

	switch {
	case f.IsARP():
		e.handleARP(switchID, ingressPort, f)
	case f.DstMAC() == e.cfg.ExternalMAC:
		e.handleExternal(switchID, ingressPort, f)
	default:
		e.handleInternal(switchID, ingressPort, f)
	}
}

// handleARP records the sender's resolution, resumes anything parked
// on it, re-forwards the frame so other listeners see it, and answers
// requests for the controller's own addresses.
func (e *Engine) handleARP(switchID uint64, ingressPort uint32, f *packet.Frame) {
	senderIP, senderMAC := f.ARPSenderIP(), f.ARPSenderMAC()

	drained := e.arp.Observe(senderIP, senderMAC)
	if len(drained) > 0 {
		log.Debugf("ARP for %s resolved to %s, resuming %d parked frames", senderIP, senderMAC, len(drained))
	}
	for _, req := range drained {
		e.resume(req, senderIP)
	}

	e.switchForward(switchID, ingressPort, f, nil)

	if f.ARPOpcode() == packet.ARPOpRequest {
		e.sendARPReply(switchID, ingressPort, f)
	}
}

// resume replays a parked request now that ip has resolved.
func (e *Engine) resume(req PendingRequest, ip packet.IPv4) {
	f := packet.NewFrame(req.Frame)
	if f == nil {
		return
	}
	switch req.Kind {
	case PendingRouterForward:
		e.routerForward(req.SwitchID, req.IngressPort, f, ip, req.Match, req.Actions)
	case PendingInbound:
		e.handleExternal(req.SwitchID, req.IngressPort, f)
	}
}

// sendARPReply answers an ARP request back out the ingress port if the
// target is one of the controller's own addresses. Requests for hosts
// the gateway does not own are ignored.
func (e *Engine) sendARPReply(switchID uint64, ingressPort uint32, f *packet.Frame) {
	target := f.ARPTargetIP()

	var mac packet.MAC
	switch target {
	case e.cfg.InternalIP:
		mac = e.cfg.InternalMAC
	case e.cfg.ExternalIP:
		mac = e.cfg.ExternalMAC
	default:
		return
	}

	log.Debugf("answering ARP request: %s is at %s", target, mac)
	reply := packet.ARPReply(mac, target, f.ARPSenderMAC(), f.ARPSenderIP())
	e.transport.SendFrame(switchID, ingressPort, PortIngress, nil, reply)
}

// handleExternal is the inbound-from-external path: frames addressed
// to the gateway's external MAC, translated back toward an internal
// host. Translations are only ever created by outbound traffic, so an
// unknown destination port means the frame is dropped. This is the
// NAT's default-deny.
func (e *Engine) handleExternal(switchID uint64, ingressPort uint32, f *packet.Frame) {
	if !f.IsIPv4() {
		return
	}
	if !f.IsTCP() && !f.IsUDP() {
		return
	}

	binding, ok := e.nat.ReverseLookup(f.L4DstPort())
	if !ok {
		log.Debugf("no translation for external port %d, dropping", f.L4DstPort())
		return
	}

	hostMAC, ok := e.arp.Resolve(binding.IP)
	if !ok {
		// Park until the internal host's MAC resolves; the ARP reply
		// re-runs this path, which is lookup-only and safe to repeat.
		e.arp.Request(binding.IP, PendingRequest{
			Kind:        PendingInbound,
			SwitchID:    switchID,
			IngressPort: ingressPort,
			Frame:       f.Bytes(),
		}, e.broadcaster(switchID, ingressPort))
		return
	}

	outPort := e.learner.OutputPort(hostMAC)
	match := Match{
		Proto:   f.Protocol(),
		SrcIP:   f.SrcIP(),
		DstIP:   f.DstIP(),
		SrcPort: f.L4SrcPort(),
		DstPort: f.L4DstPort(),
	}
	actions := []Action{
		ActionSetIPv4Dst{IP: binding.IP},
		ActionSetL4Dst{Port: binding.Port},
		ActionSetEthSrc{MAC: e.cfg.InternalMAC},
		ActionSetEthDst{MAC: hostMAC},
		ActionOutput{Port: outPort},
	}

	log.Debugf("external flow to port %d translated to %s:%d", match.DstPort, binding.IP, binding.Port)
	e.transport.InstallRule(switchID, match, actions)
	e.transport.SendFrame(switchID, ingressPort, PortNone, actions, f.Bytes())
}

// handleInternal covers everything originating inside the network:
// plain switching between internal hosts, and source translation for
// flows leaving toward the Internet.
func (e *Engine) handleInternal(switchID uint64, ingressPort uint32, f *packet.Frame) {
	if !f.IsIPv4() {
		return
	}

	outPort := e.learner.OutputPort(f.DstMAC())

	if e.cfg.InternalNet.Contains(f.DstIP().Addr()) {
		// Internal to internal: no rewrite, just pin the flow to the
		// learned port.
		match := Match{
			Proto: f.Protocol(),
			SrcIP: f.SrcIP(),
			DstIP: f.DstIP(),
		}
		switch {
		case f.Protocol() == packet.ProtoICMP:
		case f.IsTCP(), f.IsUDP():
			match.SrcPort = f.L4SrcPort()
			match.DstPort = f.L4DstPort()
		default:
			return
		}

		actions := []Action{ActionOutput{Port: outPort}}
		e.transport.InstallRule(switchID, match, actions)
		e.transport.SendFrame(switchID, ingressPort, PortNone, actions, f.Bytes())
		return
	}

	// Internal to external: translate the source endpoint.
	if !f.IsTCP() && !f.IsUDP() {
		return
	}

	extPort := e.nat.Allocate(f.SrcIP(), f.L4SrcPort())
	log.Debugf("translating %s:%d to external port %d", f.SrcIP(), f.L4SrcPort(), extPort)

	match := Match{
		Proto:   f.Protocol(),
		SrcIP:   f.SrcIP(),
		DstIP:   f.DstIP(),
		SrcPort: f.L4SrcPort(),
		DstPort: f.L4DstPort(),
	}
	actions := []Action{
		ActionSetIPv4Src{IP: e.cfg.ExternalIP},
		ActionSetL4Src{Port: extPort},
		ActionSetEthSrc{MAC: e.cfg.ExternalMAC},
		ActionOutput{Port: outPort},
	}

	e.transport.InstallRule(switchID, match, actions)
	e.routerForward(switchID, ingressPort, f, e.cfg.GatewayIP, &match, actions)
}

// routerForward forwards f toward nextIP with the usual router
// rewrites: TTL decrement and fresh link addresses. If nextIP has not
// resolved yet the frame is parked and a single ARP request goes out
// instead. When match is set, the matching flow rule is installed
// after the frame is sent, so the first packet of a flow always
// reaches the controller.
func (e *Engine) routerForward(switchID uint64, ingressPort uint32, f *packet.Frame, nextIP packet.IPv4, match *Match, extra []Action) {
	nextMAC, ok := e.arp.Resolve(nextIP)
	if !ok {
		e.arp.Request(nextIP, PendingRequest{
			Kind:        PendingRouterForward,
			SwitchID:    switchID,
			IngressPort: ingressPort,
			Frame:       f.Bytes(),
			Match:       match,
			Actions:     extra,
		}, e.broadcaster(switchID, ingressPort))
		return
	}

	srcMAC := e.cfg.InternalMAC
	if nextIP == e.cfg.GatewayIP {
		srcMAC = e.cfg.ExternalMAC
	}

	actions := append([]Action{
		ActionDecNwTTL{},
		ActionSetEthSrc{MAC: srcMAC},
		ActionSetEthDst{MAC: nextMAC},
	}, extra...)

	outPort := e.learner.OutputPort(f.DstMAC())
	if hasOutput(actions) {
		outPort = PortNone
	}
	e.transport.SendFrame(switchID, ingressPort, outPort, actions, f.Bytes())

	if match != nil {
		e.transport.InstallRule(switchID, *match, actions)
	}
}

// switchForward sends f out the port learned for its destination MAC,
// flooding when unknown.
func (e *Engine) switchForward(switchID uint64, ingressPort uint32, f *packet.Frame, actions []Action) {
	port := e.learner.OutputPort(f.DstMAC())
	e.transport.SendFrame(switchID, ingressPort, port, actions, f.Bytes())
}

// broadcaster floods a controller-built frame, used for ARP requests.
func (e *Engine) broadcaster(switchID uint64, ingressPort uint32) func([]byte) {
	return func(frame []byte) {
		e.transport.SendFrame(switchID, ingressPort, PortFlood, nil, frame)
	}
}
