package main

import (
	"fmt"
	"time"

	"github.com/couchcryptid/seismic-sentinel/internal/config"
)

// applyServeFlags overrides environment settings with non-empty flag values.
func applyServeFlags(cfg *config.Config, addr, interval string) error {
	if addr != "" {
		cfg.HTTPAddr = addr
	}
	if interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid --interval %q", interval)
		}
		cfg.RunInterval = d
	}
	return nil
}
