package seat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAlliedSeat(t *testing.T) {
	s1 := New(1, WithTeam(1))
	s2 := New(2, WithTeam(1))
	s3 := New(3, WithTeam(2))

	assert.True(t, s1.IsAlliedSeat(s1))
	assert.True(t, s1.IsAlliedSeat(s2))
	assert.True(t, s2.IsAlliedSeat(s1))
	assert.False(t, s1.IsAlliedSeat(s3))
	assert.False(t, s3.IsAlliedSeat(s1))
	assert.False(t, s1.IsAlliedSeat(nil))
}

func TestIsAlliedSeat_SameIDDifferentInstance(t *testing.T) {
	host := New(4, WithTeam(1))
	mirror := New(4, WithTeam(9))

	assert.True(t, host.IsAlliedSeat(mirror))
}

func TestDiplomacy_TruthTable(t *testing.T) {
	d := NewDiplomacy(map[Action]Allowance{
		ActionPickUpCreature: {},
		ActionClaimTile:      {Stranger: true},
		ActionUseRoom:        {Ally: true},
	})
	owner := New(1, WithTeam(1), WithDiplomacy(d))
	ally := New(2, WithTeam(1))
	stranger := New(3, WithTeam(2))

	tests := []struct {
		name     string
		check    func(*Seat) bool
		owner    bool
		ally     bool
		stranger bool
	}{
		{"pick up creature", owner.CanOwnedCreatureBePickedUpBy, true, false, false},
		{"claim tile", owner.CanOwnedTileBeClaimedBy, true, false, true},
		{"use room", owner.CanOwnedCreatureUseRoomFrom, true, true, false},
		{"destroy room", owner.CanRoomBeDestroyedBy, true, false, false},
		{"destroy trap", owner.CanTrapBeDestroyedBy, true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.owner, tt.check(owner), "owner")
			assert.Equal(t, tt.ally, tt.check(ally), "ally")
			assert.Equal(t, tt.stranger, tt.check(stranger), "stranger")
			assert.False(t, tt.check(nil), "nil requester")
		})
	}
}

func TestDiplomacy_ZeroValueDeniesNonOwners(t *testing.T) {
	owner := New(1, WithTeam(1))
	ally := New(2, WithTeam(1))

	for _, a := range Actions() {
		assert.True(t, owner.Can(a, owner), a.String())
		assert.False(t, owner.Can(a, ally), a.String())
	}
	assert.Equal(t, Allowance{}, (*Diplomacy)(nil).Allowance(ActionClaimTile))
}

func TestDiplomacy_Pure(t *testing.T) {
	d := NewDiplomacy(map[Action]Allowance{ActionUseRoom: {Ally: true}})
	owner := New(1, WithTeam(1))
	ally := New(2, WithTeam(1))
	before := ally.Snapshot()

	for range 3 {
		assert.True(t, d.Allows(ActionUseRoom, owner, ally))
	}
	assert.Equal(t, before, ally.Snapshot())
	assert.False(t, d.Allows(ActionUseRoom, nil, ally))
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions() {
		got, err := ParseAction(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	got, err := ParseAction("CLAIM_TILE")
	require.NoError(t, err)
	assert.Equal(t, ActionClaimTile, got)

	_, err = ParseAction("bribe_imp")
	assert.Error(t, err)
	assert.Equal(t, "action(200)", Action(200).String())
}
