// Package discovery finds fleet API gateways on the local network with mDNS.
//
// Gateways, and the fleetsim simulator when started with --advertise,
// register the "_fleetapi._tcp" service type. TXT records carry the API
// path and version:
//
//	path=/api/v1 version=1.4.2 kind=simulator
//
// # Usage Example
//
//	gateways, err := discovery.ScanForGateways(ctx, 3*time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, gw := range gateways {
//	    fmt.Println(gw, gw.BaseURL())
//	}
//
// FindGateway stops at the first answer from a named instance:
//
//	gw, err := discovery.FindGateway(ctx, "ward-3 gateway", 5*time.Second)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Gateways must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
