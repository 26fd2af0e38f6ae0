package nat

import (
	log "github.com/sirupsen/logrus"

	"github.com/michaelzhou24/openflow-nat/packet"
)

// PendingKind selects how a parked request is resumed once the address
// it is waiting on resolves.
type PendingKind int

const (
	// PendingRouterForward resumes through next-hop router forwarding,
	// replaying the frame with TTL decrement and link rewrites.
	PendingRouterForward PendingKind = iota
	// PendingInbound re-runs the inbound-from-external pipeline, which
	// is lookup-only and therefore safe to repeat.
	PendingInbound
)

// PendingRequest is a frame parked while waiting for an ARP reply,
// together with everything needed to resume forwarding it.
type PendingRequest struct {
	Kind        PendingKind
	SwitchID    uint64
	IngressPort uint32
	Frame       []byte
	// Match, when set, is installed as a flow rule after the frame is
	// finally sent.
	Match   *Match
	Actions []Action
}

// ResolutionQueue maps network addresses to resolved MACs and parks
// requests that are blocked waiting on a resolution. Resolved entries
// never expire; a stale entry is an accepted limitation.
type ResolutionQueue struct {
	entries map[packet.IPv4]packet.MAC
	pending map[packet.IPv4][]PendingRequest

	internalMAC packet.MAC
	internalIP  packet.IPv4
	externalMAC packet.MAC
	externalIP  packet.IPv4
	gatewayIP   packet.IPv4
}

func NewResolutionQueue(cfg Config) *ResolutionQueue {
	return &ResolutionQueue{
		entries:     map[packet.IPv4]packet.MAC{},
		pending:     map[packet.IPv4][]PendingRequest{},
		internalMAC: cfg.InternalMAC,
		internalIP:  cfg.InternalIP,
		externalMAC: cfg.ExternalMAC,
		externalIP:  cfg.ExternalIP,
		gatewayIP:   cfg.GatewayIP,
	}
}

func (q *ResolutionQueue) Resolve(ip packet.IPv4) (packet.MAC, bool) {
	mac, ok := q.entries[ip]
	return mac, ok
}

// Request parks req until ip resolves. The first request for an
// unresolved address emits a single broadcast ARP request through
// send; later requests are appended to the existing queue without
// broadcasting again. The request is sent from the controller's
// external-side identity when ip is the next-hop gateway, and from
// the internal-side identity otherwise.
func (q *ResolutionQueue) Request(ip packet.IPv4, req PendingRequest, send func(frame []byte)) {
	if _, ok := q.pending[ip]; ok {
		q.pending[ip] = append(q.pending[ip], req)
		return
	}
	q.pending[ip] = []PendingRequest{req}

	srcMAC, srcIP := q.internalMAC, q.internalIP
	if ip == q.gatewayIP {
		srcMAC, srcIP = q.externalMAC, q.externalIP
	}
	log.Debugf("sending ARP request for %s as %s", ip, srcIP)
	send(packet.ARPRequest(srcMAC, srcIP, ip))
}

// Observe records that ip resolves to mac and returns the full queue
// of requests that were waiting on it, in submission order. The queue
// is deleted; the caller replays each request. Unsolicited replies are
// recorded the same way.
func (q *ResolutionQueue) Observe(ip packet.IPv4, mac packet.MAC) []PendingRequest {
	q.entries[ip] = mac
	reqs := q.pending[ip]
	delete(q.pending, ip)
	return reqs
}
