package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bartgrantham/si4703"
	"github.com/bartgrantham/si4703/internal/config"
)

// gpioSetting is one -gpio n=mode argument.
type gpioSetting struct {
	n    int
	mode si4703.GPIOMode
}

// gpioFlags collects repeated -gpio flags.
type gpioFlags []gpioSetting

var gpioModes = map[string]si4703.GPIOMode{
	"high-z":    si4703.GPIOHighZ,
	"hiz":       si4703.GPIOHighZ,
	"indicator": si4703.GPIOIndicator,
	"low":       si4703.GPIOLow,
	"high":      si4703.GPIOHigh,
}

func (g *gpioFlags) String() string {
	parts := make([]string, 0, len(*g))
	for _, s := range *g {
		parts = append(parts, fmt.Sprintf("%d=%s", s.n, s.mode))
	}
	return strings.Join(parts, ",")
}

func (g *gpioFlags) Set(v string) error {
	i := strings.IndexByte(v, '=')
	if i < 0 {
		return fmt.Errorf("want n=mode, got %q", v)
	}
	n, err := strconv.Atoi(v[:i])
	if err != nil || n < 1 || n > 3 {
		return fmt.Errorf("GPIO must be 1, 2 or 3, got %q", v[:i])
	}
	mode, ok := gpioModes[strings.ToLower(v[i+1:])]
	if !ok {
		return fmt.Errorf("unknown GPIO mode %q, want high-z, indicator, low or high", v[i+1:])
	}
	*g = append(*g, gpioSetting{n: n, mode: mode})
	return nil
}

// parseDirection parses the -seek argument.
func parseDirection(s string) (si4703.Direction, error) {
	switch strings.ToLower(s) {
	case "up", "u", "+":
		return si4703.SeekUp, nil
	case "down", "d", "-":
		return si4703.SeekDown, nil
	}
	return 0, fmt.Errorf("seek direction must be up or down, got %q", s)
}

// setRDSWait applies -rds: a positive wait enables the station name read with
// that timeout, zero turns it off.
func setRDSWait(cfg *config.Config, wait time.Duration) {
	cfg.RDS.Enabled = wait > 0
	if wait > 0 {
		cfg.RDS.Timeout = int(wait / time.Millisecond)
	}
}
