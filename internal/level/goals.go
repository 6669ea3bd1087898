package level

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/opendungeons/keeper/internal/seat"
)

// Stat is a seat counter a threshold goal watches.
type Stat string

const (
	StatGold         Stat = "gold"
	StatGoldMined    Stat = "gold_mined"
	StatMana         Stat = "mana"
	StatCreatures    Stat = "creatures"
	StatClaimedTiles Stat = "claimed_tiles"
)

var stats = map[Stat]func(*seat.Seat) float64{
	StatGold:         func(s *seat.Seat) float64 { return float64(s.Gold()) },
	StatGoldMined:    func(s *seat.Seat) float64 { return float64(s.GoldMined()) },
	StatMana:         func(s *seat.Seat) float64 { return s.Mana() },
	StatCreatures:    func(s *seat.Seat) float64 { return float64(s.NumCreaturesControlled()) },
	StatClaimedTiles: func(s *seat.Seat) float64 { return float64(s.NumClaimedTiles()) },
}

// ThresholdGoal is met while a seat stat is at or above Target and becomes
// unmet when it drops below. When Floor is set, falling under it fails the
// goal for good.
//
// A goal belongs to the level; every seat listed in Seats holds the same
// pointer.
type ThresholdGoal struct {
	Stat   Stat
	Target float64
	Floor  *float64
	Seats  []int
}

var _ seat.Goal = (*ThresholdGoal)(nil)

func (g *ThresholdGoal) Name() string {
	return fmt.Sprintf("%s>=%s", g.Stat, formatNumber(g.Target))
}

func (g *ThresholdGoal) value(s *seat.Seat) float64 { return stats[g.Stat](s) }

func (g *ThresholdGoal) IsMet(s *seat.Seat) bool   { return g.value(s) >= g.Target }
func (g *ThresholdGoal) IsUnmet(s *seat.Seat) bool { return g.value(s) < g.Target }

func (g *ThresholdGoal) IsFailed(s *seat.Seat) bool {
	return g.Floor != nil && g.value(s) < *g.Floor
}

// parseGoalLine reads `seatIds stat target [floor]`, seatIds being a comma
// separated list.
func parseGoalLine(line string) (*ThresholdGoal, error) {
	toks := strings.Fields(line)
	if len(toks) < 3 || len(toks) > 4 {
		return nil, fmt.Errorf("want 3 or 4 fields, got %d", len(toks))
	}

	g := &ThresholdGoal{Stat: Stat(toks[1])}
	for _, idTok := range strings.Split(toks[0], ",") {
		id, err := strconv.Atoi(idTok)
		if err != nil {
			return nil, fmt.Errorf("seat id %q: %w", idTok, err)
		}
		if !slices.Contains(g.Seats, id) {
			g.Seats = append(g.Seats, id)
		}
	}
	if _, ok := stats[g.Stat]; !ok {
		return nil, fmt.Errorf("unknown stat %q", toks[1])
	}
	target, err := strconv.ParseFloat(toks[2], 64)
	if err != nil {
		return nil, fmt.Errorf("target %q: %w", toks[2], err)
	}
	g.Target = target
	if len(toks) == 4 {
		floor, err := strconv.ParseFloat(toks[3], 64)
		if err != nil {
			return nil, fmt.Errorf("floor %q: %w", toks[3], err)
		}
		g.Floor = &floor
	}
	return g, nil
}

func (g *ThresholdGoal) line() string {
	ids := make([]string, len(g.Seats))
	for i, id := range g.Seats {
		ids[i] = strconv.Itoa(id)
	}
	out := strings.Join(ids, ",") + "\t" + string(g.Stat) + "\t" + formatNumber(g.Target)
	if g.Floor != nil {
		out += "\t" + formatNumber(*g.Floor)
	}
	return out
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
