package nat

import (
	"github.com/michaelzhou24/openflow-nat/packet"
)

// AddressLearner records which switch port each MAC address was last
// seen on. Entries are overwritten on every observation and never
// expire. The table is keyed by MAC alone: the controller assumes a
// single-switch topology.
type AddressLearner struct {
	ports map[packet.MAC]uint32
}

func NewAddressLearner() *AddressLearner {
	return &AddressLearner{
		ports: map[packet.MAC]uint32{},
	}
}

// Learn records mac as last seen on port, replacing any earlier entry.
func (l *AddressLearner) Learn(mac packet.MAC, port uint32) {
	l.ports[mac] = port
}

func (l *AddressLearner) Lookup(mac packet.MAC) (uint32, bool) {
	port, ok := l.ports[mac]
	return port, ok
}

// OutputPort returns the learned port for mac, or PortFlood when the
// address has never been seen.
func (l *AddressLearner) OutputPort(mac packet.MAC) uint32 {
	if port, ok := l.ports[mac]; ok {
		return port
	}
	return PortFlood
}
