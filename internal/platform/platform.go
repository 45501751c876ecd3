// Package platform implements the small set of system probes the data
// model binds as get handlers on built-in read-only properties: serial
// number, MAC address, manufacturer OUI, uptime, local/system time,
// memory, and primary IP. Probes go through gopsutil rather than
// hand-parsed /proc files.
package platform

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	netif "github.com/shirou/gopsutil/v4/net"
)

// Platform is the facade the core consumes; the core never reaches into
// gopsutil or the OS directly.
type Platform interface {
	SerialNumber() (string, error)
	MACAddress() (string, error)
	ManufacturerOUI() (string, error)
	UptimeSeconds() (uint32, error)
	SystemTimeISO() (string, error)
	LocalTimeISO() (string, error)
	MemoryKiB() (total, used, free uint32, err error)
	FirstNonLoopbackIP() (string, error)
}

const memCacheTTL = 5 * time.Second

type memSample struct {
	total, used, free uint32
	expiresAt         time.Time
}

// gopsutilPlatform is the production Platform: every probe is
// synchronous and expected to return in microseconds.
type gopsutilPlatform struct {
	mu              sync.Mutex // guards cache only, never the model
	cache           memSample
	manufacturerOUI string
}

// New returns the gopsutil-backed Platform. manufacturerOUI is injected
// because there is no portable OS probe for it; it comes from the
// agent's configuration.
func New(manufacturerOUI string) Platform {
	return &gopsutilPlatform{manufacturerOUI: manufacturerOUI}
}

func (p *gopsutilPlatform) SerialNumber() (string, error) {
	id, err := host.HostID()
	if err != nil {
		return "", fmt.Errorf("platform: host id: %w", err)
	}
	return id, nil
}

func (p *gopsutilPlatform) MACAddress() (string, error) {
	ifaces, err := netif.Interfaces()
	if err != nil {
		return "", fmt.Errorf("platform: interfaces: %w", err)
	}
	for _, ifc := range ifaces {
		if ifc.HardwareAddr == "" {
			continue
		}
		isLoopback := false
		for _, flag := range ifc.Flags {
			if flag == "loopback" {
				isLoopback = true
				break
			}
		}
		if isLoopback {
			continue
		}
		return ifc.HardwareAddr, nil
	}
	return "", fmt.Errorf("platform: no non-loopback interface with a hardware address")
}

func (p *gopsutilPlatform) ManufacturerOUI() (string, error) {
	return p.manufacturerOUI, nil
}

func (p *gopsutilPlatform) UptimeSeconds() (uint32, error) {
	up, err := host.Uptime()
	if err != nil {
		return 0, fmt.Errorf("platform: uptime: %w", err)
	}
	return uint32(up), nil
}

func (p *gopsutilPlatform) SystemTimeISO() (string, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func (p *gopsutilPlatform) LocalTimeISO() (string, error) {
	return time.Now().Format(time.RFC3339), nil
}

// MemoryKiB returns total/used/free memory in KiB, refreshing from
// gopsutil at most once every 5 seconds.
func (p *gopsutilPlatform) MemoryKiB() (total, used, free uint32, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Now().Before(p.cache.expiresAt) {
		return p.cache.total, p.cache.used, p.cache.free, nil
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("platform: virtual memory: %w", err)
	}
	p.cache = memSample{
		total:     uint32(vm.Total / 1024),
		used:      uint32(vm.Used / 1024),
		free:      uint32(vm.Available / 1024),
		expiresAt: time.Now().Add(memCacheTTL),
	}
	return p.cache.total, p.cache.used, p.cache.free, nil
}

// FirstNonLoopbackIP returns the first non-loopback IPv4 or IPv6
// address found across the host's interfaces.
func (p *gopsutilPlatform) FirstNonLoopbackIP() (string, error) {
	ifaces, err := netif.Interfaces()
	if err != nil {
		return "", fmt.Errorf("platform: interfaces: %w", err)
	}
	for _, ifc := range ifaces {
		for _, addr := range ifc.Addrs {
			host, _, err := net.ParseCIDR(addr.Addr)
			if err != nil {
				host = net.ParseIP(addr.Addr)
			}
			if host == nil || host.IsLoopback() {
				continue
			}
			return host.String(), nil
		}
	}
	return "", fmt.Errorf("platform: no non-loopback address found")
}
