// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/debugcast/pkg/antlink"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display every antlink frame as it arrives.

Each frame is shown with timestamp, message type, channel and payload,
followed by its bytes as received (stuffed, with framing). Data
frames are also decoded as debug channel messages (pages, filter commands and
error reports).

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Debugcast - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	err = readFrames(ctx, conn, frameHandler{
		onFrame: func(f antlink.Frame) {
			fmt.Println(antlink.FormatFrame(f))
			fmt.Printf("  wire: %s\n", antlink.FormatHex(f.Raw))
			if f.IsData() {
				fmt.Printf("  %s\n", describeMessage(f.Payload, f.IsAcknowledged()))
			}
		},
		onError: func(err error) {
			fmt.Printf("[ERROR] %v\n", err)
		},
	})
	if err == ErrConnectionClosed {
		logger.Info("[raw_log] connection closed")
		return nil
	}
	return err
}
