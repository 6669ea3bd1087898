package netsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/opendungeons/keeper/internal/dispatcher"
	"github.com/opendungeons/keeper/internal/session"
)

// Client receives frames from a host and dispatches them as CommandSeatFrame.
type Client struct {
	conn   *ws.Conn
	dec    *zstd.Decoder
	d      *dispatcher.Dispatcher
	logger *slog.Logger

	applied atomic.Uint64
	stale   atomic.Uint64
}

// Dial connects to the host at url. d must have a handler for CommandSeatFrame.
func Dial(ctx context.Context, url string, d *dispatcher.Dispatcher, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !d.HasHandler(CommandSeatFrame) {
		return nil, fmt.Errorf("no handler for %s", CommandSeatFrame)
	}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("Connected to host", "url", url)
	return &Client{conn: conn, dec: dec, d: d, logger: logger}, nil
}

// Applied returns the number of frames applied so far.
func (c *Client) Applied() uint64 { return c.applied.Load() }

// Stale returns the number of frames skipped as stale.
func (c *Client) Stale() uint64 { return c.stale.Load() }

// Run reads frames until ctx is done or the session ends. Stale frames are
// skipped. Any other failure to apply a frame closes the connection and is
// returned wrapped in ErrSessionEnded, as is the host closing the connection.
func (c *Client) Run(ctx context.Context) error {
	defer c.dec.Close()

	stop := context.AfterFunc(ctx, func() {
		c.closeWith(ws.CloseNormalClosure, "")
	})
	defer stop()

	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			_ = c.conn.Close()
			var ce *ws.CloseError
			if errors.As(err, &ce) {
				return fmt.Errorf("%w: host closed connection (%d %s)", ErrSessionEnded, ce.Code, ce.Text)
			}
			return fmt.Errorf("%w: %w", ErrSessionEnded, err)
		}
		if kind != ws.BinaryMessage {
			c.logger.Debug("Ignoring non-binary message", "type", kind)
			continue
		}

		frame, err := decodeMessage(c.dec, msg)
		if err == nil {
			_, err = c.d.Dispatch(dispatcher.Event{
				Command:   CommandSeatFrame,
				Payload:   frame,
				Timestamp: time.Now(),
			})
		}
		switch {
		case err == nil:
			c.applied.Add(1)
		case errors.Is(err, session.ErrStaleFrame):
			c.stale.Add(1)
			c.logger.Debug("Skipping stale frame", "error", err)
		default:
			c.logger.Error("Failed to apply frame", "error", err)
			c.closeWith(ws.CloseProtocolError, "bad frame")
			return fmt.Errorf("%w: %w", ErrSessionEnded, err)
		}
	}
}

// Close closes the connection. Run returns once the read fails.
func (c *Client) Close() error {
	return c.closeWith(ws.CloseNormalClosure, "")
}

func (c *Client) closeWith(code int, text string) error {
	_ = c.conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(code, text), time.Now().Add(closeWait))
	return c.conn.Close()
}
