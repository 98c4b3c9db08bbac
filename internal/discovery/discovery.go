// Package discovery finds a media center on the local network over mDNS.
package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/grandcat/zeroconf"

	"norelock.dev/osmcremote/internal/config"
	"norelock.dev/osmcremote/internal/utils"
)

// ErrNotFound is returned when no media center answered before the timeout.
var ErrNotFound = errors.New("no media center found")

// Service is a media center found on the network. Port is the port of its
// JSON-RPC web server.
type Service struct {
	Instance string
	Host     string
	Port     int
}

// BrowseFunc browses for service instances and sends them to entries.
type BrowseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// Discoverer browses mDNS for media centers.
type Discoverer struct {
	cfg    config.Discovery
	browse BrowseFunc
	logger *utils.Logger
}

// NewDiscoverer creates a discoverer using the system resolver.
func NewDiscoverer(cfg config.Discovery, logger *utils.Logger) *Discoverer {
	return &Discoverer{
		cfg:    cfg,
		browse: browseZeroconf,
		logger: logger.Named("discovery"),
	}
}

// WithBrowser replaces how the network is browsed.
func (d *Discoverer) WithBrowser(browse BrowseFunc) *Discoverer {
	d.browse = browse
	return d
}

func browseZeroconf(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to initialize resolver: %w", err)
	}
	return resolver.Browse(ctx, service, domain, entries)
}

// Discover returns the first media center that announces itself with an
// address before the configured timeout.
func (d *Discoverer) Discover(ctx context.Context) (Service, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	d.logger.Info("Browsing for media center", "service", d.cfg.Service, "domain", d.cfg.Domain, "timeout", d.cfg.Timeout)

	entries := make(chan *zeroconf.ServiceEntry, 8)
	if err := d.browse(ctx, d.cfg.Service, d.cfg.Domain, entries); err != nil {
		return Service{}, err
	}

	for {
		select {
		case <-ctx.Done():
			return Service{}, ErrNotFound
		case entry, ok := <-entries:
			if !ok {
				return Service{}, ErrNotFound
			}
			service, ok := FromEntry(entry)
			if !ok {
				continue
			}
			d.logger.Info("Discovered media center", "instance", service.Instance, "host", service.Host, "port", service.Port)
			return service, nil
		}
	}
}

// FromEntry converts a browse result, preferring IPv4. Entries without an
// address or port are skipped.
func FromEntry(entry *zeroconf.ServiceEntry) (Service, bool) {
	if entry == nil || entry.Port <= 0 {
		return Service{}, false
	}

	var host string
	switch {
	case len(entry.AddrIPv4) > 0:
		host = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		host = entry.AddrIPv6[0].String()
	default:
		return Service{}, false
	}

	return Service{Instance: entry.Instance, Host: host, Port: entry.Port}, true
}

// Apply points mc at s. The WebSocket port is not announced and is kept.
func Apply(mc *config.MediaCenter, s Service) {
	mc.Host = s.Host
	mc.HTTPPort = s.Port
}
