package seat

import "fmt"

// Goal is an objective evaluated against a seat once per turn.
//
// Goals are owned by the level definition and shared read-only; a seat only
// holds references. Implementations must be comparable (pointer types) so a
// tracker can tell whether it already holds a goal.
type Goal interface {
	Name() string
	// IsMet reports whether the goal is satisfied right now.
	IsMet(s *Seat) bool
	// IsFailed reports whether the goal can no longer be met.
	IsFailed(s *Seat) bool
	// IsUnmet reports whether a completed goal stopped being satisfied.
	IsUnmet(s *Seat) bool
}

// GoalTracker keeps a seat's goals in three buckets. Every goal is in exactly
// one bucket. Failed is terminal; completed goals may fall back to uncomplete.
type GoalTracker struct {
	uncomplete []Goal
	completed  []Goal
	failed     []Goal
	changed    bool
}

// AddGoal appends a goal to the uncomplete bucket. It returns false when the
// goal is nil or already tracked in any bucket.
func (t *GoalTracker) AddGoal(g Goal) bool {
	if g == nil || t.holds(g) {
		return false
	}
	t.uncomplete = append(t.uncomplete, g)
	t.changed = true
	return true
}

func (t *GoalTracker) holds(g Goal) bool {
	for _, bucket := range [][]Goal{t.uncomplete, t.completed, t.failed} {
		for _, held := range bucket {
			if held == g {
				return true
			}
		}
	}
	return false
}

func (t *GoalTracker) NumUncompleteGoals() int { return len(t.uncomplete) }
func (t *GoalTracker) NumCompletedGoals() int  { return len(t.completed) }
func (t *GoalTracker) NumFailedGoals() int     { return len(t.failed) }

// NumGoals returns the total across all three buckets.
func (t *GoalTracker) NumGoals() int {
	return len(t.uncomplete) + len(t.completed) + len(t.failed)
}

// UncompleteGoal returns the i-th uncomplete goal. It panics if i is out of range.
func (t *GoalTracker) UncompleteGoal(i int) Goal { return goalAt(t.uncomplete, i, "uncomplete") }

// CompletedGoal returns the i-th completed goal. It panics if i is out of range.
func (t *GoalTracker) CompletedGoal(i int) Goal { return goalAt(t.completed, i, "completed") }

// FailedGoal returns the i-th failed goal. It panics if i is out of range.
func (t *GoalTracker) FailedGoal(i int) Goal { return goalAt(t.failed, i, "failed") }

func goalAt(bucket []Goal, i int, name string) Goal {
	if i < 0 || i >= len(bucket) {
		panic(fmt.Sprintf("seat: %s goal index %d out of range [0,%d)", name, i, len(bucket)))
	}
	return bucket[i]
}

// ClearUncompleteGoals empties the uncomplete bucket.
func (t *GoalTracker) ClearUncompleteGoals() {
	if len(t.uncomplete) > 0 {
		t.changed = true
	}
	t.uncomplete = nil
}

// ClearCompletedGoals empties the completed bucket.
func (t *GoalTracker) ClearCompletedGoals() {
	if len(t.completed) > 0 {
		t.changed = true
	}
	t.completed = nil
}

// HasGoalsChanged reports whether the buckets changed since the last
// ResetGoalsChanged. Meant to be polled once per frame by a UI.
func (t *GoalTracker) HasGoalsChanged() bool { return t.changed }

// ResetGoalsChanged acknowledges the current bucket contents.
func (t *GoalTracker) ResetGoalsChanged() { t.changed = false }

type verdict int

const (
	stay verdict = iota
	toCompleted
	toFailed
	toUncomplete
)

// checkAll evaluates every uncomplete goal in stored order against owner,
// moving failed goals to failed and met goals to completed. It returns the
// number of goals that changed bucket.
func (t *GoalTracker) checkAll(owner *Seat) int {
	kept := t.uncomplete[:0]
	moved := 0
	for _, g := range t.uncomplete {
		switch evaluate(owner, g, classifyUncomplete) {
		case toFailed:
			t.failed = append(t.failed, g)
			moved++
		case toCompleted:
			t.completed = append(t.completed, g)
			moved++
		default:
			kept = append(kept, g)
		}
	}
	clear(t.uncomplete[len(kept):])
	t.uncomplete = kept
	if moved > 0 {
		t.changed = true
	}
	return moved
}

// checkAllCompleted moves completed goals that are no longer satisfied back to
// the end of the uncomplete bucket. It returns the number moved.
func (t *GoalTracker) checkAllCompleted(owner *Seat) int {
	kept := t.completed[:0]
	moved := 0
	for _, g := range t.completed {
		if evaluate(owner, g, classifyCompleted) == toUncomplete {
			t.uncomplete = append(t.uncomplete, g)
			moved++
			continue
		}
		kept = append(kept, g)
	}
	clear(t.completed[len(kept):])
	t.completed = kept
	if moved > 0 {
		t.changed = true
	}
	return moved
}

func classifyUncomplete(owner *Seat, g Goal) verdict {
	if g.IsFailed(owner) {
		return toFailed
	}
	if g.IsMet(owner) {
		return toCompleted
	}
	return stay
}

func classifyCompleted(owner *Seat, g Goal) verdict {
	if g.IsUnmet(owner) {
		return toUncomplete
	}
	return stay
}

// evaluate runs a classifier and turns a panicking predicate into "stay" so a
// single broken goal cannot lose or duplicate goals for the rest of the pass.
func evaluate(owner *Seat, g Goal, classify func(*Seat, Goal) verdict) (v verdict) {
	defer func() {
		if r := recover(); r != nil {
			owner.logger().Error("Goal predicate failed, transition skipped",
				"seatId", owner.ID(),
				"goal", fmt.Sprintf("%T", g),
				"panic", r)
			v = stay
		}
	}()
	return classify(owner, g)
}

// CheckAllGoals evaluates the uncomplete goals against this seat.
func (s *Seat) CheckAllGoals() int { return s.GoalTracker.checkAll(s) }

// CheckAllCompletedGoals re-evaluates the completed goals against this seat.
func (s *Seat) CheckAllCompletedGoals() int { return s.GoalTracker.checkAllCompleted(s) }

// FuncGoal adapts plain predicates to the Goal interface. Nil predicates
// report false.
type FuncGoal struct {
	Label  string
	Met    func(*Seat) bool
	Failed func(*Seat) bool
	Unmet  func(*Seat) bool
}

var _ Goal = (*FuncGoal)(nil)

func (g *FuncGoal) Name() string { return g.Label }

func (g *FuncGoal) IsMet(s *Seat) bool    { return g.Met != nil && g.Met(s) }
func (g *FuncGoal) IsFailed(s *Seat) bool { return g.Failed != nil && g.Failed(s) }
func (g *FuncGoal) IsUnmet(s *Seat) bool  { return g.Unmet != nil && g.Unmet(s) }
