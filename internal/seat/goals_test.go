package seat

import (
	"bytes"
	"log/slog"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flagGoal is a goal whose predicates are plain switches.
type flagGoal struct {
	name   string
	met    bool
	failed bool
	unmet  bool
	panics bool
}

func (g *flagGoal) Name() string { return g.name }

func (g *flagGoal) IsMet(*Seat) bool {
	if g.panics {
		panic("boom")
	}
	return g.met
}

func (g *flagGoal) IsFailed(*Seat) bool {
	if g.panics {
		panic("boom")
	}
	return g.failed
}

func (g *flagGoal) IsUnmet(*Seat) bool {
	if g.panics {
		panic("boom")
	}
	return g.unmet
}

func goalNames(n int, at func(int) Goal) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = at(i).Name()
	}
	return out
}

func TestAddGoal(t *testing.T) {
	s := New(1)
	g := &flagGoal{name: "g"}

	assert.True(t, s.AddGoal(g))
	assert.False(t, s.AddGoal(g), "duplicate goal must be rejected")
	assert.False(t, s.AddGoal(nil))
	assert.Equal(t, 1, s.NumUncompleteGoals())
	assert.True(t, s.HasGoalsChanged())
}

func TestCheckAllGoals_MetGoalMovesToCompleted(t *testing.T) {
	s := New(1)
	g := &flagGoal{name: "hoard gold"}
	require.True(t, s.AddGoal(g))
	s.ResetGoalsChanged()

	assert.Equal(t, 0, s.CheckAllGoals())
	assert.False(t, s.HasGoalsChanged())

	g.met = true
	assert.Equal(t, 1, s.CheckAllGoals())
	assert.Equal(t, 0, s.NumUncompleteGoals())
	require.Equal(t, 1, s.NumCompletedGoals())
	assert.Same(t, g, s.CompletedGoal(0))
	assert.True(t, s.HasGoalsChanged())

	s.ResetGoalsChanged()
	assert.False(t, s.HasGoalsChanged())
	assert.Equal(t, 0, s.CheckAllGoals())
	assert.False(t, s.HasGoalsChanged(), "flag stays clear until the next transition")
}

func TestCheckAllGoals_FailedTakesPrecedence(t *testing.T) {
	s := New(1)
	g := &flagGoal{name: "g", met: true, failed: true}
	s.AddGoal(g)

	assert.Equal(t, 1, s.CheckAllGoals())
	assert.Equal(t, 1, s.NumFailedGoals())
	assert.Equal(t, 0, s.NumCompletedGoals())
}

func TestCheckAllGoals_Idempotent(t *testing.T) {
	s := New(1)
	s.AddGoal(&flagGoal{name: "a", met: true})
	s.AddGoal(&flagGoal{name: "b"})
	s.AddGoal(&flagGoal{name: "c", failed: true})

	assert.Equal(t, 2, s.CheckAllGoals())
	assert.Equal(t, 0, s.CheckAllGoals())
}

func TestCheckAllGoals_PreservesOrder(t *testing.T) {
	s := New(1)
	goals := []*flagGoal{
		{name: "a"}, {name: "b", met: true}, {name: "c"}, {name: "d", met: true}, {name: "e"},
	}
	for _, g := range goals {
		s.AddGoal(g)
	}

	assert.Equal(t, 2, s.CheckAllGoals())
	assert.Equal(t, []string{"a", "c", "e"}, goalNames(s.NumUncompleteGoals(), s.UncompleteGoal))
	assert.Equal(t, []string{"b", "d"}, goalNames(s.NumCompletedGoals(), s.CompletedGoal))

	goals[3].unmet = true
	assert.Equal(t, 1, s.CheckAllCompletedGoals())
	assert.Equal(t, []string{"a", "c", "e", "d"}, goalNames(s.NumUncompleteGoals(), s.UncompleteGoal))
	assert.Equal(t, []string{"b"}, goalNames(s.NumCompletedGoals(), s.CompletedGoal))
}

func TestCheckAllCompletedGoals_Demotes(t *testing.T) {
	s := New(1)
	g := &flagGoal{name: "hold 10 tiles", met: true}
	s.AddGoal(g)
	require.Equal(t, 1, s.CheckAllGoals())
	s.ResetGoalsChanged()

	assert.Equal(t, 0, s.CheckAllCompletedGoals())
	assert.False(t, s.HasGoalsChanged())

	g.met, g.unmet = false, true
	assert.Equal(t, 1, s.CheckAllCompletedGoals())
	assert.Equal(t, 1, s.NumUncompleteGoals())
	assert.Equal(t, 0, s.NumCompletedGoals())
	assert.True(t, s.HasGoalsChanged())
}

func TestFailedIsTerminal(t *testing.T) {
	s := New(1)
	g := &flagGoal{name: "g", failed: true}
	s.AddGoal(g)
	require.Equal(t, 1, s.CheckAllGoals())

	g.failed, g.met, g.unmet = false, true, true
	for range 5 {
		s.CheckAllGoals()
		s.CheckAllCompletedGoals()
	}
	assert.Equal(t, 1, s.NumFailedGoals())
	assert.Equal(t, 0, s.NumUncompleteGoals())
	assert.Equal(t, 0, s.NumCompletedGoals())
	assert.False(t, s.AddGoal(g), "failed goal is still held")
}

func TestCheckAllGoals_PanickingPredicate(t *testing.T) {
	var buf bytes.Buffer
	s := New(7, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	bad := &flagGoal{name: "bad", panics: true}
	good := &flagGoal{name: "good", met: true}
	s.AddGoal(bad)
	s.AddGoal(good)

	assert.Equal(t, 1, s.CheckAllGoals())
	assert.Equal(t, []string{"bad"}, goalNames(s.NumUncompleteGoals(), s.UncompleteGoal))
	assert.Equal(t, []string{"good"}, goalNames(s.NumCompletedGoals(), s.CompletedGoal))
	assert.Contains(t, buf.String(), "Goal predicate failed")
	assert.Contains(t, buf.String(), "seatId=7")

	good.unmet = true
	bad.panics = false
	assert.Equal(t, 1, s.CheckAllCompletedGoals())
	assert.Equal(t, 2, s.NumGoals())
}

func TestBucketSumInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	s := New(1, WithLogger(slog.New(slog.DiscardHandler)))
	var goals []*flagGoal
	for i := range 40 {
		g := &flagGoal{name: string(rune('A' + i%26))}
		goals = append(goals, g)
		require.True(t, s.AddGoal(g))
	}

	failed := map[*flagGoal]bool{}
	for range 200 {
		for _, g := range goals {
			g.met = rng.IntN(3) == 0
			g.unmet = rng.IntN(3) == 0
			g.failed = rng.IntN(20) == 0
			g.panics = rng.IntN(30) == 0
		}
		if rng.IntN(2) == 0 {
			s.CheckAllGoals()
		} else {
			s.CheckAllCompletedGoals()
		}
		require.Equal(t, len(goals), s.NumGoals())

		for i := range s.NumFailedGoals() {
			failed[s.FailedGoal(i).(*flagGoal)] = true
		}
		for i := range s.NumUncompleteGoals() {
			require.False(t, failed[s.UncompleteGoal(i).(*flagGoal)], "failed goal re-entered uncomplete")
		}
		for i := range s.NumCompletedGoals() {
			require.False(t, failed[s.CompletedGoal(i).(*flagGoal)], "failed goal re-entered completed")
		}
	}
}

func TestGoalIndexOutOfRangePanics(t *testing.T) {
	s := New(1)
	s.AddGoal(&flagGoal{name: "g"})

	assert.NotPanics(t, func() { s.UncompleteGoal(0) })
	assert.Panics(t, func() { s.UncompleteGoal(1) })
	assert.Panics(t, func() { s.UncompleteGoal(-1) })
	assert.Panics(t, func() { s.CompletedGoal(0) })
	assert.Panics(t, func() { s.FailedGoal(0) })
}

func TestGoalChecksOnlyAgainstOwner(t *testing.T) {
	seatType := reflect.TypeOf(&Seat{})
	for _, name := range []string{"CheckAll", "CheckAllCompleted"} {
		_, ok := seatType.MethodByName(name)
		assert.False(t, ok, "%s would take another seat as the owner", name)
	}
	for _, name := range []string{"CheckAllGoals", "CheckAllCompletedGoals"} {
		_, ok := seatType.MethodByName(name)
		assert.True(t, ok, name)
	}
}

func TestClearGoals(t *testing.T) {
	s := New(1)
	s.AddGoal(&flagGoal{name: "a", met: true})
	s.AddGoal(&flagGoal{name: "b"})
	s.AddGoal(&flagGoal{name: "c", failed: true})
	s.CheckAllGoals()
	s.ResetGoalsChanged()

	s.ClearUncompleteGoals()
	assert.Equal(t, 0, s.NumUncompleteGoals())
	assert.Equal(t, 1, s.NumCompletedGoals())
	assert.Equal(t, 1, s.NumFailedGoals())
	assert.True(t, s.HasGoalsChanged())

	s.ResetGoalsChanged()
	s.ClearUncompleteGoals()
	assert.False(t, s.HasGoalsChanged(), "clearing an empty bucket is not a change")

	s.ClearCompletedGoals()
	assert.Equal(t, 0, s.NumCompletedGoals())
	assert.Equal(t, 1, s.NumFailedGoals())
}

func TestFuncGoal(t *testing.T) {
	rich := &FuncGoal{
		Label: "rich",
		Met:   func(s *Seat) bool { return s.Gold() >= 100 },
		Unmet: func(s *Seat) bool { return s.Gold() < 100 },
	}
	s := New(1, WithStartingGold(50))
	s.AddGoal(rich)

	assert.Equal(t, 0, s.CheckAllGoals())
	s.SetEconomy(Economy{Gold: 150})
	assert.Equal(t, 1, s.CheckAllGoals())
	assert.False(t, rich.IsFailed(s), "nil predicate reports false")
	assert.Equal(t, "rich", rich.Name())
}
