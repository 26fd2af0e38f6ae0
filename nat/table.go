package nat

import (
	"github.com/michaelzhou24/openflow-nat/packet"
)

// Binding is the internal endpoint an allocated external port maps
// back to.
type Binding struct {
	IP   packet.IPv4
	Port uint16
}

// TranslationTable allocates external ports for outbound flows and
// maps them back to internal endpoints. Ports are handed out from a
// strictly increasing counter and are never reused or evicted; every
// Allocate call mints a fresh port even for a repeated endpoint.
type TranslationTable struct {
	next     uint16
	bindings map[uint16]Binding
}

// NewTranslationTable returns a table whose first allocation is base.
func NewTranslationTable(base uint16) *TranslationTable {
	return &TranslationTable{
		next:     base,
		bindings: map[uint16]Binding{},
	}
}

// Allocate mints the next external port for the given internal
// endpoint and records the reverse mapping.
func (t *TranslationTable) Allocate(ip packet.IPv4, port uint16) uint16 {
	ext := t.next
	t.next++
	t.bindings[ext] = Binding{IP: ip, Port: port}
	return ext
}

// ReverseLookup returns the internal endpoint behind an external port.
func (t *TranslationTable) ReverseLookup(ext uint16) (Binding, bool) {
	b, ok := t.bindings[ext]
	return b, ok
}
