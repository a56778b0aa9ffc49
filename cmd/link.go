// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/debugcast/pkg/antlink"
	"github.com/Thermoquad/debugcast/pkg/debugchan"
)

// linkTransport sends debug channel messages as antlink frames.
// Writes are serialized since the ticker, the reader and the UI all send.
type linkTransport struct {
	mu      sync.Mutex
	conn    io.Writer
	channel uint8
}

func newLinkTransport(conn io.Writer, channel uint8) *linkTransport {
	return &linkTransport{conn: conn, channel: channel}
}

// Open asks the bridge to open the debug channel
func (l *linkTransport) Open(p debugchan.ChannelParams) error {
	l.channel = p.Number
	return l.write(antlink.NewOpenChannelFrame(p.Number, antlink.ChannelSetup{
		Network:          p.Network,
		RFFrequency:      p.RFFrequency,
		Period:           p.Period,
		DeviceType:       p.DeviceType,
		TransmissionType: p.TransmissionType,
		DeviceNumber:     p.DeviceNumber,
	}))
}

// Broadcast sends one page as broadcast data
func (l *linkTransport) Broadcast(page []byte) error {
	return l.write(antlink.NewBroadcastFrame(l.channel, page))
}

// Send sends a control message as acknowledged data
func (l *linkTransport) Send(msg []byte) error {
	return l.write(antlink.NewAcknowledgedFrame(l.channel, msg))
}

func (l *linkTransport) write(f antlink.Frame) error {
	wire, err := antlink.Encode(f)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.conn.Write(wire); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", antlink.FormatMessageType(f.MsgID), err)
	}
	return nil
}

// linkEvent maps a bridge channel event to a debug channel event
func linkEvent(code uint8) (debugchan.EventKind, bool) {
	switch code {
	case antlink.EventTx:
		return debugchan.EventTx, true
	case antlink.EventTransferTxFailed:
		return debugchan.EventTransferTxFailed, true
	case antlink.EventChannelCollision:
		return debugchan.EventChannelCollision, true
	default:
		return debugchan.EventNone, false
	}
}

// frameHandler receives decoded frames and decode errors from readFrames.
// Both callbacks run on the reading goroutine.
type frameHandler struct {
	onFrame func(antlink.Frame)
	onError func(error)
}

// readFrames decodes conn until ctx is done or the connection closes.
// Transient read errors (serial) are retried after a short pause.
func readFrames(ctx context.Context, conn io.Reader, h frameHandler) error {
	decoder := antlink.NewDecoder()
	buf := make([]byte, 128)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
				return ErrConnectionClosed
			}
			logger.Debug("[link] read error", "error", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		for _, f := range decoder.Decode(buf[:n], h.onError) {
			if h.onFrame != nil {
				h.onFrame(f)
			}
		}
	}
}
