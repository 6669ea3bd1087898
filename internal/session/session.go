// Package session holds the authoritative seats of a running game and the
// mirror copy kept by clients.
//
// Neither Session nor Mirror lock: the turn loop owns a Session, the receive
// loop owns a Mirror.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/opendungeons/keeper/internal/ruleset"
	"github.com/opendungeons/keeper/internal/seat"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrDuplicateSeat = errors.New("session: duplicate seat id")
	ErrUnknownSeat   = errors.New("session: unknown seat")
	ErrStaleFrame    = errors.New("session: stale frame")
)

// Simulation advances the game mechanics of one seat by one turn. It gets a
// Ledger, not the seat, so it can only touch the turn-updated fields.
type Simulation interface {
	Step(turn int64, l seat.Ledger)
}

// SimulationFunc adapts a function to Simulation.
type SimulationFunc func(turn int64, l seat.Ledger)

func (f SimulationFunc) Step(turn int64, l seat.Ledger) { f(turn, l) }

// IdleSimulation changes nothing. Goals are still evaluated every turn.
type IdleSimulation struct{}

func (IdleSimulation) Step(int64, seat.Ledger) {}

// Dependencies holds the collaborators of a Session or Mirror.
type Dependencies struct {
	Logger  *slog.Logger
	Ruleset *ruleset.Ruleset
}

func (d Dependencies) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Transition counts the goals of one seat that changed bucket in a turn.
type Transition struct {
	SeatID  int
	Settled int // uncomplete goals that completed or failed
	Demoted int // completed goals back to uncomplete
}

// TurnReport describes one AdvanceTurn call.
type TurnReport struct {
	Turn        int64
	Transitions []Transition
	Snapshots   []seat.Snapshot
}

// Moved returns the number of goals that changed bucket across all seats.
func (r TurnReport) Moved() int {
	n := 0
	for _, t := range r.Transitions {
		n += t.Settled + t.Demoted
	}
	return n
}

// Session is the authoritative set of seats.
type Session struct {
	seats  []*seat.Seat // sorted by id
	byID   map[int]*seat.Seat
	turn   int64
	logger *slog.Logger

	transitions metric.Int64Counter
}

// New registers seats by id and wires them to the ruleset and logger.
func New(deps Dependencies, seats []*seat.Seat) (*Session, error) {
	logger := deps.logger()
	registered, byID, err := register(deps, seats)
	if err != nil {
		return nil, err
	}

	s := &Session{
		seats:  registered,
		byID:   byID,
		logger: logger,
	}
	s.transitions, err = meter().Int64Counter(
		"session.goal.transitions",
		metric.WithDescription("Goals that changed bucket"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}
	return s, nil
}

func register(deps Dependencies, seats []*seat.Seat) ([]*seat.Seat, map[int]*seat.Seat, error) {
	logger := deps.logger()
	byID := make(map[int]*seat.Seat, len(seats))
	for _, st := range seats {
		if !st.HasID() {
			return nil, nil, fmt.Errorf("%w: seat without id", ErrUnknownSeat)
		}
		if _, dup := byID[st.ID()]; dup {
			return nil, nil, fmt.Errorf("%w: %d", ErrDuplicateSeat, st.ID())
		}
		byID[st.ID()] = st
		st.Configure(seat.WithLogger(logger.With("seatId", st.ID())))
		if deps.Ruleset != nil && !deps.Ruleset.Apply(st) {
			logger.Warn("Seat colour not in palette", "seatId", st.ID(), "colorId", st.ColorID())
		}
	}
	sorted := slices.Clone(seats)
	seat.SortSeats(sorted)
	return sorted, byID, nil
}

// Seat returns the seat with the given id, or nil.
func (s *Session) Seat(id int) *seat.Seat { return s.byID[id] }

// Seats returns the seats ordered by id.
func (s *Session) Seats() []*seat.Seat { return slices.Clone(s.seats) }

func (s *Session) Len() int { return len(s.seats) }

// Turn returns the number of completed turns.
func (s *Session) Turn() int64 { return s.turn }

// Snapshots copies the value state of every seat, in id order.
func (s *Session) Snapshots() []seat.Snapshot {
	out := make([]seat.Snapshot, len(s.seats))
	for i, st := range s.seats {
		out[i] = st.Snapshot()
	}
	return out
}

// AdvanceTurn runs one turn: sim updates every seat's ledger in id order,
// then every seat's goals are evaluated.
func (s *Session) AdvanceTurn(ctx context.Context, sim Simulation) TurnReport {
	if sim == nil {
		sim = IdleSimulation{}
	}
	s.turn++

	for _, st := range s.seats {
		sim.Step(s.turn, st)
	}

	report := TurnReport{Turn: s.turn}
	for _, st := range s.seats {
		settled := st.CheckAllGoals()
		demoted := st.CheckAllCompletedGoals()
		if settled == 0 && demoted == 0 {
			continue
		}
		report.Transitions = append(report.Transitions, Transition{SeatID: st.ID(), Settled: settled, Demoted: demoted})
		s.transitions.Add(ctx, int64(settled+demoted), metric.WithAttributes(attribute.Int("seat_id", st.ID())))
		s.logger.Debug("Goals changed",
			"turn", s.turn,
			"seatId", st.ID(),
			"settled", settled,
			"demoted", demoted,
			"uncomplete", st.NumUncompleteGoals(),
			"completed", st.NumCompletedGoals(),
			"failed", st.NumFailedGoals())
	}
	report.Snapshots = s.Snapshots()
	return report
}

// Winners returns the seats whose goals are all completed, in id order. A seat
// without goals never wins.
func (s *Session) Winners() []*seat.Seat {
	var out []*seat.Seat
	for _, st := range s.seats {
		if st.NumUncompleteGoals() == 0 && st.NumFailedGoals() == 0 && st.NumCompletedGoals() > 0 {
			out = append(out, st)
		}
	}
	return out
}

// AcknowledgeGoals clears every seat's goals-changed flag, once the change
// has been broadcast.
func (s *Session) AcknowledgeGoals() {
	for _, st := range s.seats {
		st.ResetGoalsChanged()
	}
}

// EncodeFrame encodes every seat into a frame whose sequence is the turn.
func (s *Session) EncodeFrame() []byte {
	return AppendFrame(nil, uint64(s.turn), s.seats)
}
