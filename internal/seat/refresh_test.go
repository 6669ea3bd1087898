package seat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefreshFromSeat(t *testing.T) {
	src := sampleSeat()
	src.AddGoal(&flagGoal{name: "g"})

	dst := New(8, WithTeam(5), WithFaction("Mirror"), WithStartingGold(1))
	dst.RefreshFromSeat(src)

	assert.Equal(t, 8, dst.ID(), "id never changes")
	assert.Equal(t, 5, dst.TeamID())
	assert.Equal(t, "Mirror", dst.Faction())
	assert.Equal(t, 1, dst.StartingGold())

	assert.Equal(t, src.Economy(), dst.Economy())
	assert.Equal(t, src.SpawnPool(), dst.SpawnPool())
	assert.Equal(t, src.HasGoalsChanged(), dst.HasGoalsChanged())
	assert.Equal(t, 0, dst.NumGoals(), "goal buckets are not value fields")
}

func TestRefreshFromSeat_DetachesSpawnPool(t *testing.T) {
	src := sampleSeat()
	dst := New(3)
	dst.RefreshFromSeat(src)

	src.AddSpawnableCreature("Dragon")
	assert.Equal(t, []string{"Imp", "Troll"}, dst.SpawnPool())

	src.ResetSpawnPool()
	dst.RefreshFromSeat(src)
	assert.Empty(t, dst.SpawnPool())
}

func TestRefreshFromSeat_LastWriteWins(t *testing.T) {
	dst := New(3)
	first := sampleSeat()
	second := sampleSeat()
	second.SetEconomy(Economy{Gold: 1})
	second.ResetGoalsChanged()

	dst.RefreshFromSeat(first)
	dst.RefreshFromSeat(second)
	assert.Equal(t, second.Economy(), dst.Economy())
	assert.False(t, dst.HasGoalsChanged())
}

func TestRefreshFromSeat_NilAndSelf(t *testing.T) {
	s := sampleSeat()
	before := s.Snapshot()

	s.RefreshFromSeat(nil)
	s.RefreshFromSeat(s)
	assert.Equal(t, before, s.Snapshot())
}
