package session

import (
	"fmt"

	"github.com/opendungeons/keeper/internal/seat"
	"google.golang.org/protobuf/encoding/protowire"
)

// FrameVersion is bumped whenever the seat record layout changes.
const FrameVersion = 1

const (
	frameFieldVersion  protowire.Number = 1
	frameFieldSequence protowire.Number = 2
	frameFieldSeat     protowire.Number = 3
)

// Frame is one decoded network tick.
type Frame struct {
	Sequence uint64
	Seats    []*seat.Seat
}

// AppendFrame appends a frame holding one record per seat, in the given order.
func AppendFrame(b []byte, seq uint64, seats []*seat.Seat) []byte {
	b = protowire.AppendTag(b, frameFieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, FrameVersion)
	b = protowire.AppendTag(b, frameFieldSequence, protowire.VarintType)
	b = protowire.AppendVarint(b, seq)

	var rec []byte
	for _, s := range seats {
		rec = s.AppendPacket(rec[:0])
		b = protowire.AppendTag(b, frameFieldSeat, protowire.BytesType)
		b = protowire.AppendBytes(b, rec)
	}
	return b
}

// DecodeFrame decodes a whole frame. Any error wraps seat.ErrProtocolMismatch
// or seat.ErrTruncatedFrame.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame

	version, b, err := consumeVarintField(b, frameFieldVersion)
	if err != nil {
		return f, fmt.Errorf("frame version: %w", err)
	}
	if version != FrameVersion {
		return f, fmt.Errorf("%w: frame version %d, want %d", seat.ErrProtocolMismatch, version, FrameVersion)
	}
	f.Sequence, b, err = consumeVarintField(b, frameFieldSequence)
	if err != nil {
		return f, fmt.Errorf("frame sequence: %w", err)
	}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return f, fmt.Errorf("%w: frame seat tag", seat.ErrTruncatedFrame)
		}
		if num != frameFieldSeat || typ != protowire.BytesType {
			return f, fmt.Errorf("%w: unexpected frame field %d", seat.ErrProtocolMismatch, num)
		}
		b = b[n:]
		rec, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return f, fmt.Errorf("%w: frame seat record", seat.ErrTruncatedFrame)
		}
		b = b[n:]
		s, err := seat.ReadPacket(rec)
		if err != nil {
			return f, fmt.Errorf("frame seat %d: %w", len(f.Seats), err)
		}
		f.Seats = append(f.Seats, s)
	}
	return f, nil
}

func consumeVarintField(b []byte, want protowire.Number) (uint64, []byte, error) {
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return 0, b, seat.ErrTruncatedFrame
	}
	if num != want || typ != protowire.VarintType {
		return 0, b, fmt.Errorf("%w: field %d/%d, want %d", seat.ErrProtocolMismatch, num, typ, want)
	}
	b = b[n:]
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, b, seat.ErrTruncatedFrame
	}
	return v, b[n:], nil
}
