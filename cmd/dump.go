// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/debugcast/pkg/debugchan"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Print a debug channel state snapshot",
	Long: `Print a CBOR state snapshot written by 'broadcast --snapshot'.

Shows the registry capacity, filter mode, fast byte and scan cursor, followed
by every registered field in slot order. Fields included by the filter are
marked with '*'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}
		snap, err := debugchan.UnmarshalSnapshot(data)
		if err != nil {
			return err
		}
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

// printSnapshot writes a human-readable snapshot listing
func printSnapshot(w io.Writer, s debugchan.Snapshot) {
	mode := "all fields"
	if s.Selective {
		mode = "selective"
	}

	fmt.Fprintf(w, "Snapshot taken %s\n", time.UnixMilli(s.TakenMs).Format("2006-01-02 15:04:05.000"))
	fmt.Fprintf(w, "Fields: %d/%d   Mode: %s   Fast byte: 0x%02X   Cursor: %d\n",
		len(s.Fields), s.Capacity, mode, s.FastByte, s.Cursor)
	fmt.Fprintln(w)

	for slot, f := range s.Fields {
		mark := " "
		if f.Included {
			mark = "*"
		}
		name := ""
		if cfg != nil {
			name = cfg.FieldName(f.Key)
		}
		fmt.Fprintf(w, "%s slot %3d  key %3d  %5d (0x%04X)  %s\n", mark, slot, f.Key, f.Value, f.Value, name)
	}
}
