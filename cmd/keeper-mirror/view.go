package main

import (
	"log/slog"
	"sync"

	"github.com/opendungeons/keeper/internal/session"
	"github.com/opendungeons/keeper/internal/worker"
)

var _ worker.FrameApplier = (*view)(nil)

// view guards a mirror shared by the receive loop, which applies frames, and
// the polling loop, which reads and acknowledges goal flags.
type view struct {
	mu     sync.Mutex
	mirror *session.Mirror
	seen   uint64
	logger *slog.Logger
}

func newView(mirror *session.Mirror, logger *slog.Logger) *view {
	return &view{mirror: mirror, logger: logger}
}

func (v *view) ApplyFrame(b []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mirror.ApplyFrame(b)
}

// poll reports the seats whose goals changed in the frame applied since the
// last poll and clears their flags. Each frame is looked at once.
func (v *view) poll() []int {
	v.mu.Lock()
	defer v.mu.Unlock()

	seq := v.mirror.Sequence()
	if seq == v.seen {
		return nil
	}
	v.seen = seq

	var changed []int
	for _, s := range v.mirror.Seats() {
		if !s.HasGoalsChanged() {
			continue
		}
		changed = append(changed, s.ID())
		v.logger.Info("Goals changed", "turn", seq, "seatId", s.ID(), "teamId", s.TeamID(),
			"gold", s.Gold(), "claimedTiles", s.NumClaimedTiles())
		s.ResetGoalsChanged()
	}
	return changed
}
