// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/debugcast/pkg/antlink"
	"github.com/Thermoquad/debugcast/pkg/debugchan"
	"github.com/spf13/cobra"
)

var filterChannel uint8

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Send debug channel filter commands",
	Long: `Send a one-shot filter command to a debug channel device.

  filter add KEY...   only cycle the given keys (added to any current filter)
  filter clear        cycle every registered field again

Keys are decimal or 0x-prefixed hex, 0..254. A device registers unknown keys
with a placeholder value so they show up in the cycle.`,
}

var filterAddCmd = &cobra.Command{
	Use:   "add KEY...",
	Short: "Add keys to the device filter",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := parseKeyList(strings.Join(args, " "))
		if err != nil {
			return err
		}
		msgs := debugchan.NewFilterAdd(keys...)
		payloads := make([][]byte, len(msgs))
		for i := range msgs {
			payloads[i] = msgs[i][:]
		}
		return sendControl(cmd, payloads)
	},
}

var filterClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the device filter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		msg := debugchan.NewFilterClear()
		return sendControl(cmd, [][]byte{msg[:]})
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)
	filterCmd.AddCommand(filterAddCmd, filterClearCmd)
	filterCmd.PersistentFlags().Uint8Var(&filterChannel, "channel", 0, "Channel number on the bridge")
}

// sendControl sends control messages as acknowledged data frames
func sendControl(cmd *cobra.Command, msgs [][]byte) error {
	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", connInfo)
	transport := newLinkTransport(conn, filterChannel)
	for _, msg := range msgs {
		if err := transport.Send(msg); err != nil {
			return err
		}
		fmt.Printf("Sent %s [%s]\n", debugchan.FormatMessage(msg, true), antlink.FormatHex(msg))
	}
	return nil
}
