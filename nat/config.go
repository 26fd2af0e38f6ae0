package nat

import (
	"net/netip"

	"github.com/michaelzhou24/openflow-nat/packet"
)

// Config carries the gateway's two identities and addressing plan.
// Loaded once at startup; the engine never mutates it.
type Config struct {
	// Internal-side identity, the default gateway of internal hosts.
	InternalMAC packet.MAC
	InternalIP  packet.IPv4
	// External-side identity, the address outbound flows are
	// translated to.
	ExternalMAC packet.MAC
	ExternalIP  packet.IPv4
	// InternalNet is the internal network's address range.
	InternalNet netip.Prefix
	// GatewayIP is the external next hop toward the Internet.
	GatewayIP packet.IPv4
	// PortBase is the first external port the translation table
	// hands out.
	PortBase uint16
}
