// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"

	"github.com/Thermoquad/debugcast/pkg/debugchan"
)

// Highest RF channel offset a radio accepts (2524 MHz)
const maxRFFrequency = 124

// Validate checks configuration correctness.
// It does not mutate the configuration.
func Validate(cfg *Config) error {
	ch := cfg.Channel

	if ch.Capacity < 0 || ch.Capacity > debugchan.MaxFields {
		return fmt.Errorf("channel.capacity %d out of range 0..%d", ch.Capacity, debugchan.MaxFields)
	}
	if ch.RFFrequency > maxRFFrequency {
		return fmt.Errorf("channel.rf_frequency %d above %d", ch.RFFrequency, maxRFFrequency)
	}
	if ch.Period == 0 {
		return fmt.Errorf("channel.period must be non-zero")
	}

	// Every configured key takes a registry slot
	seen := make(map[uint8]string)
	claim := func(key uint8, owner string) error {
		if key == debugchan.FieldInvalid {
			return fmt.Errorf("%s: key %d is reserved", owner, key)
		}
		if prev, exists := seen[key]; exists {
			return fmt.Errorf("key %d used by both %s and %s", key, prev, owner)
		}
		seen[key] = owner
		return nil
	}

	for i, f := range cfg.Fields {
		if err := claim(f.Key, fmt.Sprintf("fields[%d]", i)); err != nil {
			return err
		}
	}
	if cfg.Heartbeat.Key != nil {
		if err := claim(*cfg.Heartbeat.Key, "heartbeat"); err != nil {
			return err
		}
	}

	capacity := ch.Capacity
	if capacity == 0 {
		capacity = debugchan.DefaultCapacity
	}
	if len(seen) > capacity {
		return fmt.Errorf("%d configured fields exceed channel.capacity %d", len(seen), capacity)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be debug, info, warn or error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", cfg.Log.Format)
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 {
		return fmt.Errorf("log rotation limits must not be negative")
	}

	if cfg.Snapshot.Path != "" && cfg.Snapshot.IntervalMs <= 0 {
		return fmt.Errorf("snapshot.interval_ms must be > 0 when snapshot.path is set")
	}

	return nil
}
