// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Thermoquad/debugcast/internal/recorder"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history DATABASE KEY...",
	Short: "Print recorded values of debug fields",
	Long: `Print the most recent values of one or more fields from a database
written by 'monitor --record'. Samples from every recorded session are
included, oldest first.

Keys may be given in decimal or hex, separately or comma separated:
  debugcast history pages.db 1 2 0x11`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("failed to open recorder database: %w", err)
		}
		keys, err := parseKeyList(strings.Join(args[1:], ","))
		if err != nil {
			return err
		}

		rec, err := recorder.Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer rec.Close()

		for _, key := range keys {
			samples, err := rec.History(cmd.Context(), key, historyLimit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), key, samples)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Samples per field")
}

// printHistory writes the samples of one field
func printHistory(w io.Writer, key uint8, samples []recorder.Sample) {
	header := fmt.Sprintf("Field %d", key)
	if name := cfg.FieldName(key); name != "" {
		header += " (" + name + ")"
	}
	fmt.Fprintf(w, "%s: %d samples\n", header, len(samples))
	for _, s := range samples {
		fmt.Fprintf(w, "  %s  %5d (0x%04X)\n", s.Time.Format("2006-01-02 15:04:05.000"), s.Value, s.Value)
	}
}
