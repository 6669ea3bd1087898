package worker

import (
	"fmt"

	"github.com/opendungeons/keeper/internal/dispatcher"
	"github.com/opendungeons/keeper/internal/netsync"
	"github.com/opendungeons/keeper/internal/session"
)

// Host commands. Both carry a session.TurnReport payload.
const (
	CommandTurnSnapshot = ":TURN:SNAPSHOT:"
	CommandTurnMetrics  = ":TURN:METRICS:"
)

// RegisterHandlers registers the host event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Turn history - buffered, never dropped
	d.Register(CommandTurnSnapshot, m.handleTurnSnapshot, dispatcher.Buffered(256), dispatcher.Blocking(), dispatcher.Logged())

	// Metrics - buffered, dropped when the writer falls behind
	if m.deps.Metrics != nil {
		d.Register(CommandTurnMetrics, m.handleTurnMetrics, dispatcher.Buffered(256), dispatcher.Logged())
	}
}

func (m *Manager) handleTurnSnapshot(e dispatcher.Event) (any, error) {
	report, ok := e.Payload.(session.TurnReport)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %T", e.Command, ErrBadPayload, e.Payload)
	}
	if err := m.backend.RecordTurn(report.Turn, report.Snapshots); err != nil {
		return nil, fmt.Errorf("failed to record turn %d: %w", report.Turn, err)
	}
	return nil, nil
}

func (m *Manager) handleTurnMetrics(e dispatcher.Event) (any, error) {
	report, ok := e.Payload.(session.TurnReport)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %T", e.Command, ErrBadPayload, e.Payload)
	}
	if err := m.deps.Metrics.WriteTurn(m.deps.SessionName, report.Turn, report.Snapshots, e.Timestamp); err != nil {
		return nil, fmt.Errorf("failed to write metrics for turn %d: %w", report.Turn, err)
	}
	return nil, nil
}

// FrameApplier applies a received frame. *session.Mirror implements it.
type FrameApplier interface {
	ApplyFrame(b []byte) error
}

// RegisterMirrorHandlers registers the client event handlers. Frames are
// applied synchronously so the receive loop sees apply errors.
func RegisterMirrorHandlers(d *dispatcher.Dispatcher, mirror FrameApplier) {
	d.Register(netsync.CommandSeatFrame, func(e dispatcher.Event) (any, error) {
		frame, ok := e.Payload.([]byte)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %T", e.Command, ErrBadPayload, e.Payload)
		}
		return nil, mirror.ApplyFrame(frame)
	})
}
