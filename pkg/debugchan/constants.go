// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package debugchan implements the ANT debug channel: a bounded registry of
// 16-bit debug fields that is cycled, two fields per page, into a periodic
// broadcast, plus the filter commands a receiver uses to narrow the cycle down
// to the fields it cares about.
//
// The Channel type ties the pieces together and is driven by transport events
// (transmit opportunities and received messages). Registry, Scheduler and the
// command/page codecs are usable on their own.
package debugchan

// Page layout
const (
	PageSize      = 8
	PageTagIndex  = 0
	FastByteIndex = 1
	Key0Index     = 2
	PairSize      = 3 // key + little-endian uint16 value
	PairsPerPage  = 2
)

// PageDebug tags every debug channel message, in both directions
const PageDebug = 0xF9

// Reserved values
const (
	FieldInvalid     = 0xFF   // Key that is never registered; "skip" in filter commands
	ReservedByte     = 0xFF   // Fill for pages without data
	DefaultFastByte  = 0xFF
	PlaceholderValue = 0xFFFF // Value given to fields registered by a filter command
)

// Registry sizing
const (
	KeySpace        = 256
	MaxFields       = 255 // Keys 0..254; slot 0xFF is the lookup sentinel
	DefaultCapacity = MaxFields
	noSlot          = 0xFF
)

// Control message layout: [F9][command][sub-command][key x5]
const (
	CommandIndex    = 1
	SubCommandIndex = 2
	FilterKeysIndex = 3
	FilterKeyCount  = 5
)

// Commands
const (
	CommandFilter = 0x03
)

// Filter sub-commands
const (
	SubCommandFilterAdd   = 0x01
	SubCommandFilterClear = 0x02
)

// Error report field tags
const (
	FieldFileName  = 0xFB
	FieldErrorLine = 0xFC
)

// Channel defaults for the debug channel
const (
	DefaultNetwork          = 0
	DefaultRFFrequency      = 66   // 2466 MHz
	DefaultPeriod           = 8192 // 32768/8192 = 4 Hz
	DefaultDeviceType       = 8
	DefaultTransmissionType = 1
	PeriodTicksPerSecond    = 32768
)
