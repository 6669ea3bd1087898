package session

import (
	"context"
	"testing"

	"github.com/opendungeons/keeper/internal/seat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func newHostAndMirror(t *testing.T) (*Session, *Mirror) {
	t.Helper()
	host, err := New(Dependencies{}, newSeats())
	require.NoError(t, err)
	mirror, err := NewMirror(Dependencies{}, newSeats())
	require.NoError(t, err)
	return host, mirror
}

func earn(gold int) Simulation {
	return SimulationFunc(func(_ int64, l seat.Ledger) {
		e := l.Economy()
		e.Gold += gold
		e.Mana += 0.5
		l.SetEconomy(e)
		l.AddSpawnableCreature("Imp")
	})
}

func TestFrameRoundTrip(t *testing.T) {
	host, _ := newHostAndMirror(t)
	host.AdvanceTurn(context.Background(), earn(5))

	f, err := DecodeFrame(host.EncodeFrame())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Sequence)
	require.Len(t, f.Seats, 3)
	for i, st := range host.Seats() {
		assert.Equal(t, st.ID(), f.Seats[i].ID())
		assert.Equal(t, st.Economy(), f.Seats[i].Economy())
		assert.Equal(t, st.SpawnPool(), f.Seats[i].SpawnPool())
	}
}

func TestMirror_ApplyFrame(t *testing.T) {
	host, mirror := newHostAndMirror(t)
	host.Seat(2).AddGoal(&seat.FuncGoal{Label: "noop"})

	host.AdvanceTurn(context.Background(), earn(7))
	require.NoError(t, mirror.ApplyFrame(host.EncodeFrame()))

	assert.Equal(t, uint64(1), mirror.Sequence())
	for _, st := range host.Seats() {
		m := mirror.Seat(st.ID())
		assert.Equal(t, st.Economy(), m.Economy())
		assert.Equal(t, st.SpawnPool(), m.SpawnPool())
		assert.Equal(t, st.HasGoalsChanged(), m.HasGoalsChanged())
	}
	assert.True(t, mirror.Seat(2).HasGoalsChanged())
	assert.Equal(t, 0, mirror.Seat(2).NumGoals(), "buckets stay local")
}

func TestMirror_StaleFrame(t *testing.T) {
	host, mirror := newHostAndMirror(t)

	host.AdvanceTurn(context.Background(), earn(1))
	old := host.EncodeFrame()
	host.AdvanceTurn(context.Background(), earn(1))
	require.NoError(t, mirror.ApplyFrame(host.EncodeFrame()))

	assert.ErrorIs(t, mirror.ApplyFrame(old), ErrStaleFrame)
	assert.ErrorIs(t, mirror.ApplyFrame(host.EncodeFrame()), ErrStaleFrame, "replay of the same sequence")
	assert.Equal(t, 2, mirror.Seat(1).Gold())
}

func TestMirror_RejectsWholeFrame(t *testing.T) {
	host, mirror := newHostAndMirror(t)
	host.AdvanceTurn(context.Background(), earn(9))
	before := mirror.Seat(1).Snapshot()

	stranger := seat.New(42)
	frame := AppendFrame(nil, 5, append(host.Seats(), stranger))
	assert.ErrorIs(t, mirror.ApplyFrame(frame), ErrUnknownSeat)
	assert.Equal(t, before, mirror.Seat(1).Snapshot(), "no partial reconciliation")

	good := host.EncodeFrame()
	assert.ErrorIs(t, mirror.ApplyFrame(good[:len(good)-3]), seat.ErrTruncatedFrame)
	assert.Equal(t, before, mirror.Seat(1).Snapshot())
	assert.Equal(t, uint64(0), mirror.Sequence())
}

func TestDecodeFrame_Mismatch(t *testing.T) {
	wrongVersion := protowire.AppendVarint(protowire.AppendTag(nil, frameFieldVersion, protowire.VarintType), 2)
	_, err := DecodeFrame(wrongVersion)
	assert.ErrorIs(t, err, seat.ErrProtocolMismatch)

	noVersion := protowire.AppendVarint(protowire.AppendTag(nil, frameFieldSequence, protowire.VarintType), 1)
	_, err = DecodeFrame(noVersion)
	assert.ErrorIs(t, err, seat.ErrProtocolMismatch)

	extra := AppendFrame(nil, 1, nil)
	extra = protowire.AppendVarint(protowire.AppendTag(extra, 9, protowire.VarintType), 1)
	_, err = DecodeFrame(extra)
	assert.ErrorIs(t, err, seat.ErrProtocolMismatch)

	_, err = DecodeFrame(nil)
	assert.ErrorIs(t, err, seat.ErrTruncatedFrame)
}
