package config

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/michaelzhou24/openflow-nat/nat"
	"github.com/michaelzhou24/openflow-nat/packet"
)

// Config is the on-disk YAML configuration of the controller.
type Config struct {
	// Listen is the address the OpenFlow listener binds to.
	Listen string `yaml:"listen"`
	// LogLevel is a logrus level name.
	LogLevel string `yaml:"log_level"`

	NAT NATConfig `yaml:"nat"`
}

// NATConfig is the gateway's addressing plan, as strings; Engine
// parses it into typed addresses.
type NATConfig struct {
	InternalMAC string `yaml:"internal_mac"`
	InternalIP  string `yaml:"internal_ip"`
	ExternalMAC string `yaml:"external_mac"`
	ExternalIP  string `yaml:"external_ip"`
	// InternalNet is the internal network range, in CIDR notation.
	InternalNet string `yaml:"internal_net"`
	// GatewayIP is the external next hop toward the Internet.
	GatewayIP string `yaml:"gateway_ip"`
	// PortBase is the first external port handed out for outbound
	// flows.
	PortBase uint16 `yaml:"port_base"`
}

func Default() *Config {
	return &Config{
		Listen:   ":6653",
		LogLevel: "info",
		NAT: NATConfig{
			InternalMAC: "00:00:00:00:01:01",
			InternalIP:  "192.168.1.1",
			ExternalMAC: "00:00:00:00:02:01",
			ExternalIP:  "10.0.0.1",
			InternalNet: "192.168.1.0/24",
			GatewayIP:   "10.0.0.2",
			PortBase:    3000,
		},
	}
}

// Load reads a YAML config file over the defaults. Unknown keys are
// rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f, yaml.Strict())
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Engine parses the addressing plan into the typed config the
// forwarding engine consumes.
func (c *Config) Engine() (nat.Config, error) {
	var (
		out nat.Config
		err error
	)

	if out.InternalMAC, err = packet.ParseMAC(c.NAT.InternalMAC); err != nil {
		return nat.Config{}, fmt.Errorf("internal_mac: %w", err)
	}
	if out.ExternalMAC, err = packet.ParseMAC(c.NAT.ExternalMAC); err != nil {
		return nat.Config{}, fmt.Errorf("external_mac: %w", err)
	}
	if out.InternalIP, err = packet.ParseIPv4(c.NAT.InternalIP); err != nil {
		return nat.Config{}, fmt.Errorf("internal_ip: %w", err)
	}
	if out.ExternalIP, err = packet.ParseIPv4(c.NAT.ExternalIP); err != nil {
		return nat.Config{}, fmt.Errorf("external_ip: %w", err)
	}
	if out.GatewayIP, err = packet.ParseIPv4(c.NAT.GatewayIP); err != nil {
		return nat.Config{}, fmt.Errorf("gateway_ip: %w", err)
	}
	if out.InternalNet, err = netip.ParsePrefix(c.NAT.InternalNet); err != nil {
		return nat.Config{}, fmt.Errorf("internal_net: %w", err)
	}
	if !out.InternalNet.Addr().Is4() {
		return nat.Config{}, fmt.Errorf("internal_net: not an IPv4 range: %s", c.NAT.InternalNet)
	}
	out.PortBase = c.NAT.PortBase

	return out, nil
}
