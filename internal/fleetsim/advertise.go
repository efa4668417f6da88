package fleetsim

import (
	"fmt"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/fleetsync/internal/logging"
	"github.com/muurk/fleetsync/internal/urls"
	"github.com/muurk/fleetsync/internal/version"
	"go.uber.org/zap"
)

// DefaultInstance is the mDNS instance name when none is configured.
const DefaultInstance = "fleetsim"

// TXTRecords are what the simulator publishes alongside its port. The
// discovery package reads the same keys.
func TXTRecords() []string {
	return []string{
		"path=" + urls.APIPrefix,
		"version=" + version.Version,
		"kind=simulator",
	}
}

// Advertise registers the API on mDNS. Call Shutdown on the result to
// withdraw it.
func Advertise(instance string, port int) (*zeroconf.Server, error) {
	if instance == "" {
		instance = DefaultInstance
	}
	server, err := zeroconf.Register(instance, urls.MDNSService, urls.MDNSDomain, port, TXTRecords(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", urls.MDNSService, err)
	}
	logging.Info("Advertising fleet API on mDNS",
		zap.String("instance", instance),
		zap.String("service", urls.MDNSService),
		zap.Int("port", port),
	)
	return server, nil
}
