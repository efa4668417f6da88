package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Gateway is a fleet API endpoint found on the local network
type Gateway struct {
	// Instance is the advertised service instance name (e.g., "ward-3 gateway")
	Instance string

	// Hostname is the mDNS hostname (e.g., "gw-ward3.local.")
	Hostname string

	// IP is the address to connect to, IPv4 when one is advertised
	IP string

	// Port is the HTTP port of the API
	Port int

	// Metadata contains the TXT record data.
	// Common fields: "path=/api/v1", "version=1.4.2", "kind=simulator"
	Metadata map[string]string

	// DiscoveredAt is when the gateway answered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the gateway
func (g *Gateway) String() string {
	return fmt.Sprintf("Fleet API %q (%s) at %s", g.Instance, g.Hostname, net.JoinHostPort(g.IP, strconv.Itoa(g.Port)))
}

// BaseURL returns the URL to hand to fleetapi.NewClient. IPv6 addresses
// are bracketed.
func (g *Gateway) BaseURL() string {
	return "http://" + net.JoinHostPort(g.IP, strconv.Itoa(g.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (g *Gateway) GetMetadata(key string) string {
	if g.Metadata == nil {
		return ""
	}
	return g.Metadata[key]
}

// IsSimulator reports whether the gateway advertised itself as a simulator.
func (g *Gateway) IsSimulator() bool {
	return g.GetMetadata("kind") == "simulator"
}
