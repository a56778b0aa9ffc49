// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package antlink

import (
	"encoding/binary"
	"time"
)

// Frame is one ANT-style message carried over the link
type Frame struct {
	MsgID     uint8
	Channel   uint8
	Payload   []byte
	CRC       uint16
	Timestamp time.Time
	Raw       []byte // Wire bytes from START to END, set by the decoder
}

// NewBroadcastFrame creates a broadcast data frame for the given channel
func NewBroadcastFrame(channel uint8, payload []byte) Frame {
	return Frame{MsgID: MsgBroadcastData, Channel: channel, Payload: payload}
}

// NewAcknowledgedFrame creates an acknowledged data frame for the given channel.
// Receivers send filter commands this way.
func NewAcknowledgedFrame(channel uint8, payload []byte) Frame {
	return Frame{MsgID: MsgAcknowledgedData, Channel: channel, Payload: payload}
}

// NewEventFrame creates a channel event frame carrying a single event code
func NewEventFrame(channel uint8, event uint8) Frame {
	return Frame{MsgID: MsgChannelEvent, Channel: channel, Payload: []byte{event}}
}

// ChannelSetup is the channel configuration carried by a MsgOpenChannel frame
type ChannelSetup struct {
	Network          uint8
	RFFrequency      uint8
	Period           uint16
	DeviceType       uint8
	TransmissionType uint8
	DeviceNumber     uint16
}

// NewOpenChannelFrame creates the frame asking a bridge to open a channel
func NewOpenChannelFrame(channel uint8, s ChannelSetup) Frame {
	payload := make([]byte, OpenChannelSize)
	payload[0] = s.Network
	payload[1] = s.RFFrequency
	binary.LittleEndian.PutUint16(payload[2:], s.Period)
	payload[4] = s.DeviceType
	payload[5] = s.TransmissionType
	binary.LittleEndian.PutUint16(payload[6:], s.DeviceNumber)
	return Frame{MsgID: MsgOpenChannel, Channel: channel, Payload: payload}
}

// ChannelSetup decodes the payload of a MsgOpenChannel frame
func (f Frame) ChannelSetup() (ChannelSetup, bool) {
	if f.MsgID != MsgOpenChannel || len(f.Payload) < OpenChannelSize {
		return ChannelSetup{}, false
	}
	return ChannelSetup{
		Network:          f.Payload[0],
		RFFrequency:      f.Payload[1],
		Period:           binary.LittleEndian.Uint16(f.Payload[2:]),
		DeviceType:       f.Payload[4],
		TransmissionType: f.Payload[5],
		DeviceNumber:     binary.LittleEndian.Uint16(f.Payload[6:]),
	}, true
}

// IsData returns true for broadcast and acknowledged data frames
func (f Frame) IsData() bool {
	return f.MsgID == MsgBroadcastData || f.MsgID == MsgAcknowledgedData
}

// IsAcknowledged returns true for acknowledged data frames
func (f Frame) IsAcknowledged() bool {
	return f.MsgID == MsgAcknowledgedData
}

// Event returns the event code of a channel event frame
func (f Frame) Event() (uint8, bool) {
	if f.MsgID != MsgChannelEvent || len(f.Payload) == 0 {
		return 0, false
	}
	return f.Payload[0], true
}
