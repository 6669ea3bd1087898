package seat

import (
	"fmt"
	"strings"
)

// Action is a gameplay action performed by one seat on assets owned by another.
type Action uint8

const (
	ActionPickUpCreature Action = iota
	ActionClaimTile
	ActionUseRoom
	ActionDestroyRoom
	ActionDestroyTrap

	numActions
)

var actionNames = [numActions]string{
	ActionPickUpCreature: "pick_up_creature",
	ActionClaimTile:      "claim_tile",
	ActionUseRoom:        "use_room",
	ActionDestroyRoom:    "destroy_room",
	ActionDestroyTrap:    "destroy_trap",
}

// Actions returns every action kind in declaration order.
func Actions() []Action {
	out := make([]Action, numActions)
	for i := range out {
		out[i] = Action(i)
	}
	return out
}

func (a Action) String() string {
	if a < numActions {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseAction maps a ruleset name such as "claim_tile" to its Action.
func ParseAction(name string) (Action, error) {
	for i, n := range actionNames {
		if strings.EqualFold(n, name) {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// Allowance says which non-owning seats may perform an action.
type Allowance struct {
	Ally     bool
	Stranger bool
}

// Diplomacy is the per-action truth table for allied and stranger seats.
// The owner of an asset is always allowed. The zero value denies every action
// to everyone but the owner.
type Diplomacy struct {
	table [numActions]Allowance
}

// NewDiplomacy builds a truth table. Actions missing from rules are denied.
func NewDiplomacy(rules map[Action]Allowance) *Diplomacy {
	d := &Diplomacy{}
	for a, allow := range rules {
		if a < numActions {
			d.table[a] = allow
		}
	}
	return d
}

// Allowance returns the table row for an action.
func (d *Diplomacy) Allowance(a Action) Allowance {
	if d == nil || a >= numActions {
		return Allowance{}
	}
	return d.table[a]
}

// Allows decides whether requester may perform action on an asset of owner.
// It has no side effects and depends only on its arguments, so hosts and
// mirrors reach the same answer without a round trip.
func (d *Diplomacy) Allows(a Action, owner, requester *Seat) bool {
	if owner == nil || requester == nil {
		return false
	}
	if owner.sameSeat(requester) {
		return true
	}
	allow := d.Allowance(a)
	if owner.IsAlliedSeat(requester) {
		return allow.Ally
	}
	return allow.Stranger
}

func (s *Seat) sameSeat(other *Seat) bool {
	if s == other {
		return true
	}
	return s.hasID && other.hasID && s.id == other.id
}

// IsAlliedSeat reports whether other is this seat or shares its team.
func (s *Seat) IsAlliedSeat(other *Seat) bool {
	if other == nil {
		return false
	}
	return s.sameSeat(other) || s.teamID == other.teamID
}

// Diplomacy returns the truth table attached to this seat, possibly nil.
func (s *Seat) Diplomacy() *Diplomacy { return s.diplomacy }

// Can reports whether requester may perform action on this seat's assets.
func (s *Seat) Can(a Action, requester *Seat) bool {
	return s.diplomacy.Allows(a, s, requester)
}

func (s *Seat) CanOwnedCreatureBePickedUpBy(requester *Seat) bool {
	return s.Can(ActionPickUpCreature, requester)
}

func (s *Seat) CanOwnedTileBeClaimedBy(requester *Seat) bool {
	return s.Can(ActionClaimTile, requester)
}

func (s *Seat) CanOwnedCreatureUseRoomFrom(requester *Seat) bool {
	return s.Can(ActionUseRoom, requester)
}

func (s *Seat) CanRoomBeDestroyedBy(requester *Seat) bool {
	return s.Can(ActionDestroyRoom, requester)
}

func (s *Seat) CanTrapBeDestroyedBy(requester *Seat) bool {
	return s.Can(ActionDestroyTrap, requester)
}
