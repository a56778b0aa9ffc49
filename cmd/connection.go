// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// passwordEnv names the environment variable holding the bridge password
const passwordEnv = "DEBUGCAST_PASSWORD"

const (
	// serialReadTimeout bounds a serial read so readers notice cancellation
	serialReadTimeout = 100 * time.Millisecond
	dialTimeout       = 15 * time.Second
)

// ErrConnectionClosed is returned once the link to the bridge is gone
var ErrConnectionClosed = errors.New("connection closed")

// Connection carries the raw antlink byte stream, from a serial port or a WebSocket bridge
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// OpenSerialConnection opens portName as 8N1 at baudRate. Reads return
// (0, nil) after serialReadTimeout without data.
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to configure serial port %s: %w", portName, err)
	}
	return port, nil
}

// bridgeConn streams the binary messages of a WebSocket bridge as one byte
// stream. Each binary message holds one or more antlink frames; text
// messages (bridge status) are skipped.
type bridgeConn struct {
	ws      *websocket.Conn
	message io.Reader // Binary message being read, nil between messages
	err     error     // Sticky read error
}

func (b *bridgeConn) Read(p []byte) (int, error) {
	for b.err == nil {
		if b.message == nil {
			kind, r, err := b.ws.NextReader()
			if err != nil {
				// Read errors on a WebSocket are permanent
				b.err = fmt.Errorf("%w: %v", ErrConnectionClosed, err)
				break
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			b.message = r
		}

		n, err := b.message.Read(p)
		if errors.Is(err, io.EOF) {
			b.message = nil
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
	return 0, b.err
}

func (b *bridgeConn) Write(p []byte) (int, error) {
	if err := b.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
		return 0, err
	}
	return len(p), nil
}

func (b *bridgeConn) Close() error {
	return b.ws.Close()
}

// OpenWebSocketConnection dials a WebSocket bridge. A non-empty username
// sends HTTP Basic credentials.
func OpenWebSocketConnection(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported URL scheme %q (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	}

	header := http.Header{}
	if username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		header.Set("Authorization", "Basic "+token)
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	ws, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection to %s failed (HTTP %d): %w", u.Host, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection to %s failed: %w", u.Host, err)
	}
	return &bridgeConn{ws: ws}, nil
}

// readPassword returns the bridge password from passwordEnv, or asks for it
// on the terminal. Piped input is read as one line.
func readPassword(in *os.File, prompt io.Writer) (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(prompt, "Password: ")
	defer fmt.Fprintln(prompt)

	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// OpenConnection opens the link selected by --url or --port. The returned
// description is shown in command headers.
func OpenConnection(ctx context.Context) (Connection, string, error) {
	switch {
	case wsURL != "":
		var password string
		if wsUsername != "" {
			var err error
			if password, err = readPassword(os.Stdin, os.Stderr); err != nil {
				return nil, "", err
			}
		}
		conn, err := OpenWebSocketConnection(ctx, wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		logger.Debug("[connection] websocket open", "url", wsURL, "user", wsUsername)
		return conn, "WebSocket: " + wsURL, nil

	case portName != "":
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return nil, "", err
		}
		logger.Debug("[connection] serial open", "port", portName, "baud", baudRate)
		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}
	return nil, "", errors.New("either --port or --url must be specified")
}
