package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/fleetsync/internal/logging"
	"github.com/muurk/fleetsync/internal/urls"
	"go.uber.org/zap"
)

const (
	// DefaultScanTimeout is the default timeout for gateway discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is used when an advertisement carries no port
	DefaultPort = 8080
)

// Scanner handles mDNS gateway discovery
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration

	// Service is the DNS-SD service type to browse
	Service string
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Service: urls.MDNSService,
	}
}

// ScanForGateways collects every gateway that answers before the timeout
// or ctx ends. Duplicate answers for the same instance are merged.
func (s *Scanner) ScanForGateways(ctx context.Context) ([]*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	set := newGatewaySet()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			if gw := s.parseServiceEntry(entry); gw != nil {
				set.add(gw)
				logging.Debug("Gateway answered", zap.String("gateway", gw.String()))
			}
		}
	}()

	if err := resolver.Browse(ctx, s.Service, urls.MDNSDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	return set.list(), nil
}

// WaitForGateway returns as soon as the named instance answers.
func (s *Scanner) WaitForGateway(ctx context.Context, instance string) (*Gateway, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Gateway, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		if gw := s.match(entries, instance); gw != nil {
			found <- gw
			cancel()
		}
	}()

	if err := resolver.Browse(ctx, s.Service, urls.MDNSDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case gw := <-found:
		return gw, nil
	case <-ctx.Done():
		// found may have been filled just before cancel
		select {
		case gw := <-found:
			return gw, nil
		default:
		}
		return nil, fmt.Errorf("gateway %q not found within %v", instance, s.Timeout)
	}
}

// match reads entries until one parses to the named instance, compared
// case-insensitively. It returns nil if entries closes first.
func (s *Scanner) match(entries <-chan *zeroconf.ServiceEntry, instance string) *Gateway {
	for entry := range entries {
		gw := s.parseServiceEntry(entry)
		if gw != nil && strings.EqualFold(gw.Instance, instance) {
			return gw
		}
	}
	return nil
}

// gatewaySet keeps the latest answer per instance in first-seen order.
type gatewaySet struct {
	mu    sync.Mutex
	seen  map[string]*Gateway
	order []string
}

func newGatewaySet() *gatewaySet {
	return &gatewaySet{seen: make(map[string]*Gateway)}
}

func (g *gatewaySet) add(gw *Gateway) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[gw.Instance]; !ok {
		g.order = append(g.order, gw.Instance)
	}
	g.seen[gw.Instance] = gw
}

func (g *gatewaySet) list() []*Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Gateway, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.seen[name])
	}
	return out
}

// parseServiceEntry converts a zeroconf service entry to a Gateway.
// Returns nil if the entry has no usable address.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Gateway {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	// Prefer IPv4
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Gateway{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// ScanForGateways is a convenience function to scan with a custom timeout
func ScanForGateways(ctx context.Context, timeout time.Duration) ([]*Gateway, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForGateways(ctx)
}

// FindGateway searches for a named gateway, giving up after timeout
func FindGateway(ctx context.Context, instance string, timeout time.Duration) (*Gateway, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.WaitForGateway(ctx, instance)
}
