// Package netsync carries seat frames from the host to mirror clients over
// websocket. Each frame is one binary message, zstd-compressed when enabled.
package netsync

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
)

// CommandSeatFrame is dispatched by the client for every received frame. The
// event payload is the decompressed frame.
const CommandSeatFrame = ":SEAT:FRAME:"

// ErrSessionEnded is returned by Client.Run when the connection is over,
// whether the host closed it or a frame could not be applied.
var ErrSessionEnded = errors.New("netsync: session ended")

const (
	writeWait      = 10 * time.Second
	closeWait      = time.Second
	maxMessageSize = 4 << 20
	defaultQueue   = 16
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// decodeMessage returns the frame carried by a binary message.
func decodeMessage(dec *zstd.Decoder, msg []byte) ([]byte, error) {
	if !bytes.HasPrefix(msg, zstdMagic) {
		return msg, nil
	}
	out, err := dec.DecodeAll(msg, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing frame: %w", err)
	}
	return out, nil
}
