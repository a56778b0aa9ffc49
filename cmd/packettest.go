// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/debugcast/pkg/antlink"
	"github.com/Thermoquad/debugcast/pkg/debugchan"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid frame",
	Long: `Wait for a valid antlink frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
frame. It ignores invalid bytes and waits for a complete, valid frame (passing
CRC check).

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing connectivity to a debug channel bridge.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(packetTestTimeout) * time.Second
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Debugcast - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid frame...\n\n")

	frameChan := make(chan antlink.Frame, 1)
	errChan := make(chan error, 1)

	go func() {
		invalid := 0
		readCtx, stopRead := context.WithCancel(ctx)
		defer stopRead()

		err := readFrames(readCtx, conn, frameHandler{
			onFrame: func(f antlink.Frame) {
				if invalid > 0 {
					fmt.Printf("(skipped %d decode errors before sync)\n", invalid)
				}
				select {
				case frameChan <- f:
				default:
				}
				stopRead()
			},
			onError: func(error) { invalid++ },
		})
		if err != nil {
			errChan <- err
		}
	}()

	select {
	case f := <-frameChan:
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s (0x%02X)\n", antlink.FormatMessageType(f.MsgID), f.MsgID)
		fmt.Printf("  Channel: %d\n", f.Channel)
		fmt.Printf("  Length: %d bytes\n", len(f.Payload))
		fmt.Printf("  CRC: 0x%04X\n", f.CRC)
		if f.IsData() {
			fmt.Printf("  Message: %s\n", debugchan.FormatMessage(f.Payload, f.IsAcknowledged()))
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-ctx.Done():
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
