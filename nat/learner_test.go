package nat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/michaelzhou24/openflow-nat/packet"
)

func TestLearnerOverwrites(t *testing.T) {
	l := NewAddressLearner()
	mac := packet.MAC{0, 0, 0, 0, 0, 1}

	l.Learn(mac, 1)
	assert.Equal(t, uint32(1), l.OutputPort(mac))

	// Last seen wins.
	l.Learn(mac, 7)
	assert.Equal(t, uint32(7), l.OutputPort(mac))

	port, ok := l.Lookup(mac)
	assert.True(t, ok)
	assert.Equal(t, uint32(7), port)
}

func TestLearnerFloodsUnknown(t *testing.T) {
	l := NewAddressLearner()

	assert.Equal(t, PortFlood, l.OutputPort(packet.MAC{1, 2, 3, 4, 5, 6}))

	_, ok := l.Lookup(packet.MAC{1, 2, 3, 4, 5, 6})
	assert.False(t, ok)
}
