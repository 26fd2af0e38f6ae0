package packet

import (
	"fmt"
	"net"
	"net/netip"
)

type (
	// MAC is a link-layer (Ethernet) address.
	MAC [6]byte
	// IPv4 is a network-layer address.
	IPv4 [4]byte
)

// BroadcastMAC is the all-ones Ethernet broadcast address.
var BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (m MAC) String() string {
	return net.HardwareAddr(m[:]).String()
}

func (m MAC) IsZero() bool {
	return m == MAC{}
}

// ParseMAC parses a textual MAC address ("aa:bb:cc:dd:ee:ff").
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, err
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("not a 48-bit MAC address: %s", s)
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}

func (ip IPv4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}

func (ip IPv4) IsZero() bool {
	return ip == IPv4{}
}

// Addr converts to a netip.Addr for prefix membership checks.
func (ip IPv4) Addr() netip.Addr {
	return netip.AddrFrom4(ip)
}

// ParseIPv4 parses a dotted-quad IPv4 address.
func ParseIPv4(s string) (IPv4, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return IPv4{}, fmt.Errorf("invalid IP address: %s", s)
	}
	if !addr.Is4() {
		return IPv4{}, fmt.Errorf("not an IPv4 address: %s", s)
	}
	return addr.As4(), nil
}
