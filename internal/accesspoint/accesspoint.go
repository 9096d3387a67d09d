// Package accesspoint brings up the WiFi hotspot the robot API is served on.
package accesspoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"robot_control/internal/config"
	"robot_control/internal/logger"
)

// ErrNoAddress is returned when the hotspot came up without an IPv4 address.
var ErrNoAddress = errors.New("access point has no IPv4 address")

// AccessPoint is started once before serving and stopped on shutdown.
type AccessPoint interface {
	Up(ctx context.Context) (ip string, err error)
	Down(ctx context.Context) error
}

// Config holds the hotspot identity. Credentials are fixed for the process lifetime.
type Config struct {
	Enabled        bool
	Interface      string
	SSID           string
	Passphrase     string
	ConnectionName string
}

// FromConfig maps the daemon configuration; it is validated by config.Load.
func FromConfig(c config.AccessPointConfig) Config {
	return Config{
		Enabled:        c.Enabled,
		Interface:      c.Interface,
		SSID:           c.SSID,
		Passphrase:     c.Passphrase,
		ConnectionName: c.ConnectionName,
	}
}

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands on the host.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// New returns an NMCLI access point, or Noop when the hotspot is disabled.
func New(cfg Config, log *logger.Logger) AccessPoint {
	if !cfg.Enabled {
		return Noop{}
	}
	return &NMCLI{cfg: cfg, run: ExecRunner, log: log}
}

// NMCLI manages the hotspot through NetworkManager.
type NMCLI struct {
	cfg Config
	run Runner
	log *logger.Logger
}

// WithRunner replaces the command runner.
func (n *NMCLI) WithRunner(r Runner) *NMCLI {
	n.run = r
	return n
}

// Up creates or reactivates the hotspot and returns its address without the
// prefix length, e.g. "10.42.0.1".
func (n *NMCLI) Up(ctx context.Context) (string, error) {
	if _, err := n.run(ctx, "nmcli", "device", "wifi", "hotspot",
		"ifname", n.cfg.Interface,
		"con-name", n.cfg.ConnectionName,
		"ssid", n.cfg.SSID,
		"password", n.cfg.Passphrase,
	); err != nil {
		return "", fmt.Errorf("hotspot up: %w", err)
	}

	out, err := n.run(ctx, "nmcli", "-g", "IP4.ADDRESS", "connection", "show", n.cfg.ConnectionName)
	if err != nil {
		return "", fmt.Errorf("hotspot address: %w", err)
	}
	ip, err := parseAddress(string(out))
	if err != nil {
		return "", err
	}
	if n.log != nil {
		n.log.Infow("access_point_up", "ssid", n.cfg.SSID, "ip", ip, "ifname", n.cfg.Interface)
	}
	return ip, nil
}

// Down deactivates the hotspot connection.
func (n *NMCLI) Down(ctx context.Context) error {
	if _, err := n.run(ctx, "nmcli", "connection", "down", n.cfg.ConnectionName); err != nil {
		return fmt.Errorf("hotspot down: %w", err)
	}
	if n.log != nil {
		n.log.Infow("access_point_down", "connection", n.cfg.ConnectionName)
	}
	return nil
}

// parseAddress takes the first entry of nmcli's IP4.ADDRESS output, which may
// list several addresses separated by " | ".
func parseAddress(out string) (string, error) {
	first, _, _ := strings.Cut(strings.TrimSpace(out), "|")
	first = strings.TrimSpace(first)
	ip, _, _ := strings.Cut(first, "/")
	if ip == "" {
		return "", ErrNoAddress
	}
	return ip, nil
}

// Noop is used when the host network is managed elsewhere.
type Noop struct{}

func (Noop) Up(context.Context) (string, error) { return "", nil }
func (Noop) Down(context.Context) error         { return nil }
