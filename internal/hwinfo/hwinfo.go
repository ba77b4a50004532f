// Package hwinfo reads the kiosk's hardware identity and health sensors.
// Every probe is best-effort: on hardware without the facility it returns a
// zero value instead of an error.
package hwinfo

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/CLDWare/attendance-kiosk/config"
)

// underVoltageNow is bit 0 of the firmware throttle mask
const underVoltageNow = 0x1

// Prober reads sensors relative to Root so tests can point it at a fake
// sysfs tree.
type Prober struct {
	Root      string
	Timeout   time.Duration
	ProbeURL  string
	ProbeAddr string

	client *http.Client
	run    func(ctx context.Context, name string, args ...string) ([]byte, error)
	dial   func(ctx context.Context, network, address string) (net.Conn, error)
}

// New returns a Prober for the running system
func New(cfg config.MonitorConfig) *Prober {
	return &Prober{
		Root:      "/",
		Timeout:   cfg.ProbeTimeout,
		ProbeURL:  cfg.ProbeURL,
		ProbeAddr: cfg.ProbeAddr,
		client:    &http.Client{Timeout: cfg.ProbeTimeout},
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		dial: (&net.Dialer{Timeout: cfg.ProbeTimeout}).DialContext,
	}
}

func (p *Prober) path(parts ...string) string {
	return filepath.Join(append([]string{p.Root}, parts...)...)
}

// Serial returns the board serial from /proc/cpuinfo, or "" when absent
func (p *Prober) Serial() string {
	data, err := os.ReadFile(p.path("proc", "cpuinfo"))
	if err != nil {
		return ""
	}
	return parseCPUInfoSerial(data)
}

func parseCPUInfoSerial(data []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Serial" {
			continue
		}
		serial := strings.TrimSpace(value)
		if strings.Trim(serial, "0") == "" {
			return ""
		}
		return serial
	}
	return ""
}

// Hostname returns the system hostname or ""
func (p *Prober) Hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

// IPAddress returns the address of the interface used for outbound traffic.
// Dialing UDP sends no packets.
func (p *Prober) IPAddress() string {
	conn, err := p.dial(context.Background(), "udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}

// MACAddress returns the hardware address of the first non-loopback
// interface in name order.
func (p *Prober) MACAddress() string {
	base := p.path("sys", "class", "net")
	entries, err := os.ReadDir(base)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name() != "lo" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(base, name, "address"))
		if err != nil {
			continue
		}
		mac := strings.TrimSpace(string(data))
		if mac != "" && mac != "00:00:00:00:00:00" {
			return mac
		}
	}
	return ""
}

// CPUTemp returns the SoC temperature in °C, or nil when unavailable
func (p *Prober) CPUTemp() *float64 {
	data, err := os.ReadFile(p.path("sys", "class", "thermal", "thermal_zone0", "temp"))
	if err != nil {
		return nil
	}
	milli, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return nil
	}
	celsius := milli / 1000
	return &celsius
}

// Undervolted reports whether the firmware currently flags under-voltage
func (p *Prober) Undervolted(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	out, err := p.run(ctx, "vcgencmd", "get_throttled")
	if err != nil {
		return false
	}
	mask, ok := parseThrottled(string(out))
	return ok && mask&underVoltageNow != 0
}

// parseThrottled parses "throttled=0x50005"
func parseThrottled(out string) (uint64, bool) {
	_, value, ok := strings.Cut(strings.TrimSpace(out), "=")
	if !ok {
		return 0, false
	}
	mask, err := strconv.ParseUint(strings.TrimSpace(value), 0, 64)
	if err != nil {
		return 0, false
	}
	return mask, true
}

// Online checks internet reachability with an HTTP probe and falls back to
// a TCP connect to a public resolver.
func (p *Prober) Online(ctx context.Context) bool {
	if p.ProbeURL != "" {
		ctx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ProbeURL, nil)
		if err == nil {
			if resp, err := p.client.Do(req); err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
					return true
				}
			}
		}
	}
	if p.ProbeAddr == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	conn, err := p.dial(ctx, "tcp", p.ProbeAddr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
