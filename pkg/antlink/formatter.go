// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package antlink

import (
	"fmt"
	"strings"
)

// FormatMessageType returns the human-readable name for a message id
func FormatMessageType(msgID uint8) string {
	switch msgID {
	case MsgChannelEvent:
		return "CHANNEL_EVENT"
	case MsgOpenChannel:
		return "OPEN_CHANNEL"
	case MsgBroadcastData:
		return "BROADCAST_DATA"
	case MsgAcknowledgedData:
		return "ACKNOWLEDGED_DATA"
	default:
		return "UNKNOWN"
	}
}

// FormatEvent returns the human-readable name for a channel event code
func FormatEvent(code uint8) string {
	switch code {
	case EventTx:
		return "EVENT_TX"
	case EventRxFailed:
		return "EVENT_RX_FAILED"
	case EventTransferTxFailed:
		return "EVENT_TRANSFER_TX_FAILED"
	case EventChannelCollision:
		return "EVENT_CHANNEL_COLLISION"
	default:
		return fmt.Sprintf("EVENT_0x%02X", code)
	}
}

// FormatFrame formats a frame header and hex payload on one line
func FormatFrame(f Frame) string {
	timestamp := f.Timestamp.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X) ch=%d len=%d", timestamp, FormatMessageType(f.MsgID), f.MsgID, f.Channel, len(f.Payload))

	if code, ok := f.Event(); ok {
		return result + " " + FormatEvent(code)
	}
	if s, ok := f.ChannelSetup(); ok {
		return result + fmt.Sprintf(" net=%d rf=%d period=%d type=%d/%d dev=%d",
			s.Network, s.RFFrequency, s.Period, s.DeviceType, s.TransmissionType, s.DeviceNumber)
	}
	if len(f.Payload) > 0 {
		result += " " + FormatHex(f.Payload)
	}
	return result
}

// FormatHex renders bytes as space separated upper-case hex
func FormatHex(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
