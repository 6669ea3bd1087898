package session

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/opendungeons/keeper/internal/seat"
)

// Mirror is a client's copy of the host's seats, refreshed from frames.
type Mirror struct {
	seats   []*seat.Seat
	byID    map[int]*seat.Seat
	lastSeq uint64
	applied bool
	logger  *slog.Logger
}

// NewMirror builds a mirror over seats loaded from the same level as the host.
func NewMirror(deps Dependencies, seats []*seat.Seat) (*Mirror, error) {
	registered, byID, err := register(deps, seats)
	if err != nil {
		return nil, err
	}
	return &Mirror{seats: registered, byID: byID, logger: deps.logger()}, nil
}

// Seat returns the seat with the given id, or nil.
func (m *Mirror) Seat(id int) *seat.Seat { return m.byID[id] }

// Seats returns the seats ordered by id.
func (m *Mirror) Seats() []*seat.Seat { return slices.Clone(m.seats) }

// Sequence returns the sequence of the last applied frame.
func (m *Mirror) Sequence() uint64 { return m.lastSeq }

// ApplyFrame decodes a frame and refreshes every seat it carries. The frame
// is applied whole or not at all: a frame that does not decode, or names a
// seat this mirror does not have, changes nothing and the error should end
// the connection. Frames not newer than the last applied one return
// ErrStaleFrame and can be skipped.
func (m *Mirror) ApplyFrame(b []byte) error {
	f, err := DecodeFrame(b)
	if err != nil {
		return err
	}
	if m.applied && f.Sequence <= m.lastSeq {
		return fmt.Errorf("%w: sequence %d, last applied %d", ErrStaleFrame, f.Sequence, m.lastSeq)
	}

	targets := make([]*seat.Seat, len(f.Seats))
	for i, src := range f.Seats {
		dst := m.byID[src.ID()]
		if dst == nil {
			return fmt.Errorf("%w: %d", ErrUnknownSeat, src.ID())
		}
		targets[i] = dst
	}

	for i, src := range f.Seats {
		targets[i].RefreshFromSeat(src)
	}
	m.lastSeq = f.Sequence
	m.applied = true
	m.logger.Debug("Frame applied", "sequence", f.Sequence, "seats", len(f.Seats))
	return nil
}
