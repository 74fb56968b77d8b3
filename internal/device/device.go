// Package device models the terminal fleet the listener polls.
package device

import (
	"fmt"

	"github.com/SanyakornPFP/pfp-timestamp-attendance/pkg/config"
)

// Terminal is one ZKTeco device in the fleet.
type Terminal struct {
	IP   string
	Port int
}

// Addr returns the terminal's dial address.
func (t Terminal) Addr() string {
	return fmt.Sprintf("%s:%d", t.IP, t.Port)
}

// Inventory builds the terminal list from configuration.
func Inventory(cfg *config.DeviceConfig) []Terminal {
	terminals := make([]Terminal, 0, len(cfg.IPs))
	for _, ip := range cfg.IPs {
		terminals = append(terminals, Terminal{IP: ip, Port: cfg.Port})
	}
	return terminals
}
