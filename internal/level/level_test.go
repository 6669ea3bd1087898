package level

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opendungeons/keeper/internal/seat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLevel = `# sample map
[Level]
name "Lair of the Horned One"
[/Level]
[Tiles]
0 0 rock
1 0 dirt
[/Tiles]
[Seats]
# seatId	teamId	faction	startingX	startingY	colorId	startingGold
3	2	Keeper	40	40	blue	3000
1	1	Keeper	10	12	red	5000
2	1	Keeper	12	10	green	5000
[/Seats]
[Goals]
1,2	claimed_tiles	100
3	gold	10000	500
[/Goals]
`

func newTestLoader(buf *bytes.Buffer) *Loader {
	return NewLoader(slog.New(slog.NewTextHandler(buf, nil)))
}

func TestLoad(t *testing.T) {
	var logs bytes.Buffer
	lvl, err := newTestLoader(&logs).Load(strings.NewReader(sampleLevel))
	require.NoError(t, err)

	assert.Equal(t, "Lair of the Horned One", lvl.Name)
	require.Len(t, lvl.Seats, 3)
	assert.Equal(t, 3, lvl.Seats[0].ID(), "file order is kept")
	assert.Equal(t, 5000, lvl.Seat(1).Gold())
	assert.Nil(t, lvl.Seat(9))

	require.Len(t, lvl.Other, 1)
	assert.Equal(t, "Tiles", lvl.Other[0].Name)
	assert.Equal(t, []string{"0 0 rock", "1 0 dirt"}, lvl.Other[0].Lines)

	require.Len(t, lvl.Goals, 2)
	shared := lvl.Goals[0]
	assert.Equal(t, 1, lvl.Seat(1).NumUncompleteGoals())
	assert.Same(t, shared, lvl.Seat(1).UncompleteGoal(0))
	assert.Same(t, shared, lvl.Seat(2).UncompleteGoal(0), "goals are shared, not copied")
	assert.Empty(t, logs.String())
}

func TestLoad_BadLinesDoNotAbort(t *testing.T) {
	input := `[Seats]
1	1	Keeper	10	12	red	5000
x	1	Keeper	10	12	red	5000
2	one	Keeper	12	10	green	5000
1	3	Keeper	0	0	blue	100
4	2
[/Seats]
[Goals]
9	gold	100
1	fame	100
[/Goals]
stray line
`
	var logs bytes.Buffer
	lvl, err := newTestLoader(&logs).Load(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, lvl.Seats, 3)
	assert.Equal(t, []int{1, 2, 4}, []int{lvl.Seats[0].ID(), lvl.Seats[1].ID(), lvl.Seats[2].ID()})
	assert.Equal(t, 0, lvl.Seat(2).TeamID(), "bad field keeps its default")
	assert.Equal(t, 1, lvl.Seat(1).TeamID(), "first duplicate wins")

	out := logs.String()
	assert.Contains(t, out, "Skipping seat line without a valid id")
	assert.Contains(t, out, "line=3")
	assert.Contains(t, out, "field=teamId")
	assert.Contains(t, out, "Skipping duplicate seat id")
	assert.Contains(t, out, "field=startingX")
	assert.Contains(t, out, "Goal refers to unknown seat")
	assert.Contains(t, out, "Skipping goal line")
	assert.Contains(t, out, "Ignoring line outside of any section")
}

func TestLoad_SeatOptions(t *testing.T) {
	d := seat.NewDiplomacy(map[seat.Action]seat.Allowance{seat.ActionClaimTile: {Stranger: true}})
	lvl, err := NewLoader(nil, seat.WithDiplomacy(d)).Load(strings.NewReader(sampleLevel))
	require.NoError(t, err)

	assert.True(t, lvl.Seat(1).CanOwnedTileBeClaimedBy(lvl.Seat(3)))
}

func TestLoad_UnclosedSection(t *testing.T) {
	var logs bytes.Buffer
	lvl, err := newTestLoader(&logs).Load(strings.NewReader("[Seats]\n1\t1\tKeeper\t0\t0\tred\t0\n"))
	require.NoError(t, err)

	assert.Len(t, lvl.Seats, 1)
	assert.Contains(t, logs.String(), "Section not closed")
}

func TestWrite_SortedAndStable(t *testing.T) {
	lvl, err := NewLoader(nil).Load(strings.NewReader(sampleLevel))
	require.NoError(t, err)

	var first bytes.Buffer
	require.NoError(t, Write(&first, lvl))
	assert.Equal(t, 3, lvl.Seats[0].ID(), "Write does not reorder the level")

	out := first.String()
	assert.Less(t, strings.Index(out, "\n1\t1\t"), strings.Index(out, "\n2\t1\t"))
	assert.Less(t, strings.Index(out, "\n2\t1\t"), strings.Index(out, "\n3\t2\t"))
	assert.Contains(t, out, seat.Format())
	assert.Contains(t, out, "[Tiles]\n0 0 rock\n1 0 dirt\n[/Tiles]\n")
	assert.Contains(t, out, "3\tgold\t10000\t500\n")

	reloaded, err := NewLoader(nil).Load(strings.NewReader(out))
	require.NoError(t, err)
	var second bytes.Buffer
	require.NoError(t, Write(&second, reloaded))
	assert.Equal(t, out, second.String())
}

func TestWrite_ValuesMustReadBack(t *testing.T) {
	unreadable := map[string]*seat.Seat{
		"hash colour":     seat.New(1, seat.WithColor("#c0201c"), seat.WithStartingGold(500)),
		"quoted faction":  seat.New(1, seat.WithFaction(`"Keeper"`)),
		"dash faction":    seat.New(1, seat.WithFaction("-")),
		"dash spawn pool": spawning(seat.New(1, seat.WithFaction("Keeper")), "-"),
		"hash spawn pool": spawning(seat.New(1, seat.WithFaction("Keeper")), "Imp#2"),
	}
	for name, s := range unreadable {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Error(t, Write(&buf, &Level{Seats: []*seat.Seat{s}}))
		})
	}

	t.Run("plain values", func(t *testing.T) {
		src := spawning(seat.New(1, seat.WithTeam(2), seat.WithFaction("Keeper"), seat.WithColor("red"), seat.WithStartingGold(500)), "Imp")
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, &Level{Seats: []*seat.Seat{src}}))

		lvl, err := NewLoader(nil).Load(&buf)
		require.NoError(t, err)
		require.Len(t, lvl.Seats, 1)
		got := lvl.Seats[0]
		assert.Equal(t, "red", got.ColorID())
		assert.Equal(t, "Keeper", got.Faction())
		assert.Equal(t, 500, got.StartingGold())
		assert.Equal(t, []string{"Imp"}, got.SpawnPool())
	})
}

func spawning(s *seat.Seat, creatures ...string) *seat.Seat {
	for _, c := range creatures {
		s.AddSpawnableCreature(c)
	}
	return s
}

func TestSaveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "save.level")

	s := seat.New(1, seat.WithTeam(1), seat.WithFaction("Keeper"), seat.WithColor("red"), seat.WithStartingGold(100))
	s.SetEconomy(seat.Economy{Gold: 42, Mana: 12.5})
	require.NoError(t, SaveFile(path, &Level{Name: "saved", Seats: []*seat.Seat{s}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is gone")

	lvl, err := NewLoader(nil).LoadFile(path)
	require.NoError(t, err)
	require.Len(t, lvl.Seats, 1)
	assert.Equal(t, "saved", lvl.Name)
	assert.Equal(t, s.Economy(), lvl.Seats[0].Economy())

	_, err = NewLoader(nil).LoadFile(filepath.Join(dir, "missing.level"))
	assert.Error(t, err)
}

func TestThresholdGoal(t *testing.T) {
	g, err := parseGoalLine("1,2,1\tmana\t50\t10")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, g.Seats)
	assert.Equal(t, "mana>=50", g.Name())

	s := seat.New(1)
	s.SetEconomy(seat.Economy{Mana: 60})
	assert.True(t, g.IsMet(s))
	assert.False(t, g.IsUnmet(s))
	assert.False(t, g.IsFailed(s))

	s.SetEconomy(seat.Economy{Mana: 5})
	assert.True(t, g.IsUnmet(s))
	assert.True(t, g.IsFailed(s))

	for _, bad := range []string{"1 gold", "a gold 1", "1 fame 1", "1 gold x", "1 gold 1 x", "1 gold 1 2 3"} {
		_, err := parseGoalLine(bad)
		assert.Error(t, err, bad)
	}
}
