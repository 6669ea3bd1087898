package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/opendungeons/keeper/internal/dispatcher"
	"github.com/opendungeons/keeper/internal/seat"
	"github.com/opendungeons/keeper/internal/session"
	"github.com/opendungeons/keeper/internal/worker"
)

// Broadcaster sends an encoded frame to every connected mirror.
type Broadcaster interface {
	Broadcast(frame []byte) int
}

// incomeSimulation stands in for the game mechanics: every seat earns a
// fixed amount of gold and claims one tile per turn.
type incomeSimulation struct {
	gold int
}

func (s incomeSimulation) Step(_ int64, l seat.Ledger) {
	e := l.Economy()
	e.Gold += s.gold
	e.GoldMined += s.gold
	l.SetEconomy(e)
	l.IncrementNumClaimedTiles()
}

// host drives the turn loop of one session.
type host struct {
	logger  *slog.Logger
	session *session.Session
	events  *dispatcher.Dispatcher
	sync    Broadcaster
	sim     session.Simulation

	turn    atomic.Int64
	winners map[int]bool
}

func newHost(logger *slog.Logger, s *session.Session, events *dispatcher.Dispatcher, sync Broadcaster, sim session.Simulation) *host {
	return &host{
		logger:  logger,
		session: s,
		events:  events,
		sync:    sync,
		sim:     sim,
		winners: make(map[int]bool),
	}
}

// Turn is safe to call from any goroutine; log records use it.
func (h *host) Turn() int64 { return h.turn.Load() }

// run advances a turn every interval until ctx is done.
func (h *host) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.tick(ctx); err != nil {
				h.logger.Error("Turn failed", "error", err)
			}
		}
	}
}

// tick advances one turn, hands the report to the workers and broadcasts
// the frame. Goal flags are acknowledged after the broadcast so mirrors see
// them once.
func (h *host) tick(ctx context.Context) error {
	report := h.session.AdvanceTurn(ctx, h.sim)
	h.turn.Store(report.Turn)
	now := time.Now()

	var errs []error
	if _, err := h.events.Dispatch(dispatcher.Event{
		Command:   worker.CommandTurnSnapshot,
		Payload:   report,
		Timestamp: now,
	}); err != nil {
		errs = append(errs, err)
	}
	if h.events.HasHandler(worker.CommandTurnMetrics) {
		if _, err := h.events.Dispatch(dispatcher.Event{
			Command:   worker.CommandTurnMetrics,
			Payload:   report,
			Timestamp: now,
		}); err != nil {
			errs = append(errs, err)
		}
	}

	sent := h.sync.Broadcast(h.session.EncodeFrame())
	h.session.AcknowledgeGoals()
	h.logger.Debug("Turn advanced", "turn", report.Turn, "mirrors", sent, "goalsMoved", report.Moved())

	for _, w := range h.session.Winners() {
		if h.winners[w.ID()] {
			continue
		}
		h.winners[w.ID()] = true
		h.logger.Info("Seat completed all goals", "seatId", w.ID(), "teamId", w.TeamID(), "turn", report.Turn)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("turn %d: %w", report.Turn, err)
	}
	return nil
}
