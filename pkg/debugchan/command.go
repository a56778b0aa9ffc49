// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package debugchan

import "fmt"

// CommandKind identifies a decoded control message
type CommandKind int

// Command kinds
const (
	CommandUnknown CommandKind = iota
	CommandFilterAdd
	CommandFilterClear
)

// String returns the human-readable command name
func (k CommandKind) String() string {
	switch k {
	case CommandFilterAdd:
		return "FILTER_ADD"
	case CommandFilterClear:
		return "FILTER_CLEAR"
	default:
		return "UNKNOWN"
	}
}

// Command is a decoded control message.
//
// Wire format:
//
//	[F9][command][sub-command][key1][key2][key3][key4][key5]
//
// Filter add (command 3, sub-command 1) turns selective mode on and includes
// every key that is not 0xFF. Filter clear (command 3, sub-command 2) turns
// selective mode off. Anything else decodes as CommandUnknown and is ignored.
type Command struct {
	Kind       CommandKind
	Command    uint8
	SubCommand uint8
	Keys       []uint8 // Keys to include, in message order (FilterAdd only)
}

// ParseCommand decodes a control message received on the debug channel.
// Only messages that are too short or not tagged PageDebug are rejected.
func ParseCommand(data []byte) (Command, error) {
	if len(data) < PageSize {
		return Command{}, fmt.Errorf("%w: %d bytes", ErrShortMessage, len(data))
	}
	if data[PageTagIndex] != PageDebug {
		return Command{}, fmt.Errorf("%w: tag 0x%02X", ErrNotDebugPage, data[PageTagIndex])
	}

	cmd := Command{
		Command:    data[CommandIndex],
		SubCommand: data[SubCommandIndex],
	}
	if cmd.Command != CommandFilter {
		return cmd, nil
	}

	switch cmd.SubCommand {
	case SubCommandFilterAdd:
		cmd.Kind = CommandFilterAdd
		for _, key := range data[FilterKeysIndex : FilterKeysIndex+FilterKeyCount] {
			if key != FieldInvalid {
				cmd.Keys = append(cmd.Keys, key)
			}
		}
	case SubCommandFilterClear:
		cmd.Kind = CommandFilterClear
	}
	return cmd, nil
}

// Apply executes the command against r. Filter add registers unknown keys,
// so it fails with ErrCapacityExceeded when r runs out of slots; keys
// handled before that point stay included.
func (c Command) Apply(r *Registry) error {
	switch c.Kind {
	case CommandFilterAdd:
		r.SetSelective(true)
		for _, key := range c.Keys {
			if err := r.Include(key); err != nil {
				return fmt.Errorf("filter add key %d: %w", key, err)
			}
		}
	case CommandFilterClear:
		r.ClearFilter()
	}
	return nil
}

// NewFilterAdd builds the filter add messages that include keys.
// Keys are packed five per message; with no keys a single message switches
// selective mode on with nothing included.
func NewFilterAdd(keys ...uint8) [][PageSize]byte {
	var msgs [][PageSize]byte
	for len(msgs) == 0 || len(keys) > 0 {
		msg := [PageSize]byte{PageDebug, CommandFilter, SubCommandFilterAdd}
		for i := 0; i < FilterKeyCount; i++ {
			msg[FilterKeysIndex+i] = FieldInvalid
			if i < len(keys) {
				msg[FilterKeysIndex+i] = keys[i]
			}
		}
		if len(keys) > FilterKeyCount {
			keys = keys[FilterKeyCount:]
		} else {
			keys = nil
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// NewFilterClear builds the filter clear message
func NewFilterClear() [PageSize]byte {
	return [PageSize]byte{
		PageDebug, CommandFilter, SubCommandFilterClear,
		ReservedByte, ReservedByte, ReservedByte, ReservedByte, ReservedByte,
	}
}
