// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the debugcast YAML configuration
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/debugcast/pkg/debugchan"
)

type Config struct {
	Channel   ChannelConfig   `yaml:"channel"`
	Fields    []FieldConfig   `yaml:"fields"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Log       LogConfig       `yaml:"log"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Recorder  RecorderConfig  `yaml:"recorder"`
}

// ---- CHANNEL ----

type ChannelConfig struct {
	Capacity         int    `yaml:"capacity"` // 0 = debugchan.DefaultCapacity
	Network          uint8  `yaml:"network"`
	RFFrequency      uint8  `yaml:"rf_frequency"`
	Period           uint16 `yaml:"period"` // 1/32768 s
	DeviceType       uint8  `yaml:"device_type"`
	TransmissionType uint8  `yaml:"transmission_type"`
	DeviceNumber     uint16 `yaml:"device_number"`
	FastByte         uint8  `yaml:"fast_byte"`
}

// ---- FIELDS ----

type FieldConfig struct {
	Key   uint8  `yaml:"key"`
	Value uint16 `yaml:"value"`
	Name  string `yaml:"name"` // display only
}

// HeartbeatConfig makes the broadcaster increment a field once per period
type HeartbeatConfig struct {
	Key *uint8 `yaml:"key"` // nil = disabled
}

// ---- LOGGING ----

type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text, json
	File       string `yaml:"file"`   // empty = stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// ---- OUTPUTS ----

type SnapshotConfig struct {
	Path       string `yaml:"path"` // empty = disabled
	IntervalMs int    `yaml:"interval_ms"`
}

type RecorderConfig struct {
	Path string `yaml:"path"` // SQLite database, empty = disabled
}

// Default returns the configuration used when no file is given
func Default() *Config {
	p := debugchan.DefaultChannelParams()
	return &Config{
		Channel: ChannelConfig{
			Capacity:         debugchan.DefaultCapacity,
			Network:          p.Network,
			RFFrequency:      p.RFFrequency,
			Period:           p.Period,
			DeviceType:       p.DeviceType,
			TransmissionType: p.TransmissionType,
			DeviceNumber:     p.DeviceNumber,
			FastByte:         debugchan.DefaultFastByte,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Snapshot: SnapshotConfig{
			IntervalMs: 1000,
		},
	}
}

// Load reads path on top of Default. Unknown keys are rejected.
// An empty file yields the defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Params returns the channel parameters described by the config
func (c *Config) Params() debugchan.ChannelParams {
	return debugchan.ChannelParams{
		Network:          c.Channel.Network,
		RFFrequency:      c.Channel.RFFrequency,
		Period:           c.Channel.Period,
		DeviceType:       c.Channel.DeviceType,
		TransmissionType: c.Channel.TransmissionType,
		DeviceNumber:     c.Channel.DeviceNumber,
	}
}

// FieldName returns the configured display name for key, if any
func (c *Config) FieldName(key uint8) string {
	for _, f := range c.Fields {
		if f.Key == key {
			return f.Name
		}
	}
	if c.Heartbeat.Key != nil && *c.Heartbeat.Key == key {
		return "heartbeat"
	}
	return ""
}
