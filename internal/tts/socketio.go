package tts

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Engine.IO v4 packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO v5 packet types, carried inside Engine.IO messages.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioAck          = '3'
	sioConnectError = '4'
)

const defaultWriteTimeout = 10 * time.Second

// ErrConnectRejected signals the server refused the namespace connection.
var ErrConnectRejected = errors.New("socket.io connect rejected")

// EventHandler receives inbound events on the client's read goroutine.
type EventHandler func(event string, data json.RawMessage)

// DialOptions tune the WebSocket connection.
type DialOptions struct {
	// InsecureSkipVerify disables TLS certificate checks.
	InsecureSkipVerify bool
	HandshakeTimeout   time.Duration
	Header             http.Header
}

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// SocketClient is a minimal Socket.IO client over the WebSocket transport.
// It joins the default namespace, answers pings, and dispatches events.
type SocketClient struct {
	logger  *slog.Logger
	conn    *websocket.Conn
	handler EventHandler
	sid     string

	pingWindow time.Duration

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Dial connects to serverURL (http, https, ws, or wss) and joins the
// default namespace. handler is invoked for every inbound event.
func Dial(ctx context.Context, logger *slog.Logger, serverURL string, handler EventHandler, opts DialOptions) (*SocketClient, error) {
	wsURL, err := BuildSocketURL(serverURL)
	if err != nil {
		return nil, err
	}

	handshake := opts.HandshakeTimeout
	if handshake == 0 {
		handshake = 30 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: handshake,
		ReadBufferSize:   64 * 1024,
		WriteBufferSize:  16 * 1024,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, opts.Header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("socket.io dial failed: %s (status: %d)", err.Error(), resp.StatusCode)
		}
		return nil, fmt.Errorf("socket.io dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &SocketClient{
		logger:  logger,
		conn:    conn,
		handler: handler,
		done:    make(chan struct{}),
	}

	deadline := time.Now().Add(handshake)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.handshake(deadline); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("connected to TTS server", slog.String("url", wsURL), slog.String("sid", c.sid))
	go c.readLoop()
	return c, nil
}

// BuildSocketURL maps a service URL to its Engine.IO WebSocket endpoint.
func BuildSocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *SocketClient) handshake(deadline time.Time) error {
	c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})

	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read open packet: %w", err)
	}
	if len(raw) == 0 || raw[0] != eioOpen {
		return fmt.Errorf("unexpected first packet %q", truncate(raw, 64))
	}
	var open openPacket
	if err := json.Unmarshal(raw[1:], &open); err != nil {
		return fmt.Errorf("decode open packet: %w", err)
	}
	c.sid = open.SID
	c.pingWindow = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond

	if err := c.write(string([]byte{eioMessage, sioConnect})); err != nil {
		return fmt.Errorf("send namespace connect: %w", err)
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("await namespace connect: %w", err)
		}
		switch {
		case len(raw) == 1 && raw[0] == eioPing:
			if err := c.write(string(eioPong)); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		case len(raw) >= 2 && raw[0] == eioMessage && raw[1] == sioConnect:
			return nil
		case len(raw) >= 2 && raw[0] == eioMessage && raw[1] == sioConnectError:
			return fmt.Errorf("%w: %s", ErrConnectRejected, raw[2:])
		default:
			c.logger.Debug("ignoring packet before connect", slog.String("packet", truncate(raw, 64)))
		}
	}
}

func (c *SocketClient) readLoop() {
	for {
		if c.pingWindow > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.pingWindow))
		}
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.finish(fmt.Errorf("read: %w", err))
			return
		}
		if len(raw) == 0 {
			continue
		}

		switch raw[0] {
		case eioPing:
			if err := c.write(string(eioPong)); err != nil {
				c.finish(fmt.Errorf("send pong: %w", err))
				return
			}
		case eioClose:
			c.finish(errors.New("server closed the session"))
			return
		case eioMessage:
			if c.dispatch(raw[1:]) {
				return
			}
		}
	}
}

// dispatch handles one Socket.IO packet and reports whether the session ended.
func (c *SocketClient) dispatch(packet []byte) bool {
	if len(packet) == 0 {
		return false
	}
	switch packet[0] {
	case sioEvent:
		event, data, err := decodeEvent(packet[1:])
		if err != nil {
			c.logger.Warn("malformed event packet", slog.String("error", err.Error()))
			return false
		}
		c.handler(event, data)
	case sioDisconnect:
		c.logger.Info("disconnected from server")
		c.finish(errors.New("server disconnected the namespace"))
		return true
	case sioConnectError:
		c.finish(fmt.Errorf("%w: %s", ErrConnectRejected, packet[1:]))
		return true
	case sioAck, sioConnect:
	}
	return false
}

// decodeEvent parses `[ackid]["event", data]` for the default namespace.
func decodeEvent(body []byte) (string, json.RawMessage, error) {
	if len(body) > 0 && body[0] == '/' {
		comma := strings.IndexByte(string(body), ',')
		if comma == -1 {
			return "", nil, errors.New("namespace without payload")
		}
		body = body[comma+1:]
	}
	for len(body) > 0 && body[0] >= '0' && body[0] <= '9' {
		body = body[1:]
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return "", nil, fmt.Errorf("decode event: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, errors.New("empty event")
	}
	var event string
	if err := json.Unmarshal(parts[0], &event); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	var data json.RawMessage
	if len(parts) > 1 {
		data = parts[1]
	}
	return event, data, nil
}

// Emit sends an event to the default namespace.
func (c *SocketClient) Emit(ctx context.Context, event string, payload any) error {
	body, err := json.Marshal([]any{event, payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	select {
	case <-c.done:
		return fmt.Errorf("emit %s: %w", event, c.Err())
	default:
	}

	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return c.writeWithDeadline(string([]byte{eioMessage, sioEvent})+string(body), deadline)
}

// Done is closed once the connection is gone.
func (c *SocketClient) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended.
func (c *SocketClient) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close leaves the namespace, closes the socket, and waits for the reader.
func (c *SocketClient) Close() error {
	select {
	case <-c.done:
	default:
		_ = c.write(string([]byte{eioMessage, sioDisconnect}))
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
	}
	err := c.conn.Close()
	<-c.done
	c.logger.Info("disconnected from TTS server")
	return err
}

func (c *SocketClient) finish(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.done)
	})
}

func (c *SocketClient) write(msg string) error {
	return c.writeWithDeadline(msg, time.Now().Add(defaultWriteTimeout))
}

func (c *SocketClient) writeWithDeadline(msg string, deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "…"
}
