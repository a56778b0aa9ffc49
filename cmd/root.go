// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Thermoquad/debugcast/internal/config"
	"github.com/Thermoquad/debugcast/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Configuration and logging flags
	configPath string
	logLevel   string
	logFormat  string
	logFile    string

	// Loaded before every command runs
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "debugcast",
	Short: "ANT Debug Channel Broadcaster and Monitor",
	Long: `Debugcast - A CLI tool for broadcasting and monitoring ANT debug channel pages.

A device registers 16-bit debug fields which are cycled, two per page, onto a
periodic broadcast. A receiver decodes the pages and can narrow the cycle down
to the fields it cares about with filter commands.

Pages travel over an ANT serial bridge, either on a local UART or through a
WebSocket bridge.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the DEBUGCAST_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Configuration and logging flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to a rotating file instead of stderr")
}

// loadRuntime loads the configuration, applies flag overrides and builds the logger
func loadRuntime(cmd *cobra.Command, args []string) error {
	loaded := config.Default()
	if configPath != "" {
		var err error
		loaded, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") || configPath == "" {
		loaded.Log.Level = logLevel
	}
	if flags.Changed("log-format") || configPath == "" {
		loaded.Log.Format = logFormat
	}
	if flags.Changed("log-file") {
		loaded.Log.File = logFile
	}

	if err := config.Validate(loaded); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	l, closer, err := logging.New(logging.Options{
		Level:      loaded.Log.Level,
		Format:     loaded.Log.Format,
		File:       loaded.Log.File,
		MaxSizeMB:  loaded.Log.MaxSizeMB,
		MaxBackups: loaded.Log.MaxBackups,
	})
	if err != nil {
		return err
	}

	cfg, logger, logCloser = loaded, l, closer
	slog.SetDefault(logger)
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
