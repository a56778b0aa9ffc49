// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package antlink carries ANT-style channel messages over a byte stream.
//
// A debug device on the bench rarely has a radio gateway nearby, so debugcast
// tunnels the 8-byte broadcast payloads over a UART (or a WebSocket bridge) using
// a small framing: START, byte-stuffed {length, message id, channel, payload, CRC},
// END. This package provides the frame encoder, the byte-at-a-time decoder and
// CRC validation.
package antlink

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Frame size limits
const (
	MaxPayloadSize = 32
	HeaderSize     = 3 // length, message id, channel
	MaxFrameSize   = HeaderSize + MaxPayloadSize + 2
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Message IDs, numbered as on the ANT serial interface
const (
	MsgChannelEvent     = 0x40
	MsgOpenChannel      = 0x4B
	MsgBroadcastData    = 0x4E
	MsgAcknowledgedData = 0x4F
)

// OpenChannelSize is the payload length of a MsgOpenChannel frame:
// network, RF frequency, period (LE), device type, transmission type,
// device number (LE)
const OpenChannelSize = 8

// Channel event codes carried in MsgChannelEvent frames.
// A bridge reports link-layer events with these so the device side can
// drive its transmit schedule from the radio instead of a local ticker.
const (
	EventTx               = 0x03
	EventRxFailed         = 0x02
	EventTransferTxFailed = 0x06
	EventChannelCollision = 0x09
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	stateMsgID
	stateChannel
	statePayload
	stateCRC1
	stateCRC2
	stateEnd
)
