// Package convert provides functions to convert between GORM models and seat snapshots
package convert

import (
	"encoding/json"
	"time"

	"github.com/opendungeons/keeper/internal/model"
	"github.com/opendungeons/keeper/internal/seat"
	"gorm.io/datatypes"
)

// spawnPoolToJSON converts a spawn pool to datatypes.JSON for DB storage.
func spawnPoolToJSON(pool []string) datatypes.JSON {
	if len(pool) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(pool)
	return datatypes.JSON(data)
}

// SnapshotToSeat converts the static fields of a snapshot to a model.Seat.
func SnapshotToSeat(sessionID uint, snap seat.Snapshot) model.Seat {
	return model.Seat{
		SessionID:    sessionID,
		SeatID:       snap.ID,
		TeamID:       snap.TeamID,
		Faction:      snap.Faction,
		StartingX:    snap.StartingX,
		StartingY:    snap.StartingY,
		StartingGold: snap.StartingGold,
		ColorID:      snap.ColorID,
	}
}

// SeatState converts a snapshot taken at the end of turn to a model.SeatState.
func SeatState(sessionID uint, turn int64, snap seat.Snapshot) model.SeatState {
	return model.SeatState{
		Time:                   time.Now(),
		SessionID:              sessionID,
		Turn:                   turn,
		SeatID:                 snap.ID,
		TeamID:                 snap.TeamID,
		Faction:                snap.Faction,
		Gold:                   snap.Gold,
		GoldMined:              snap.GoldMined,
		Mana:                   snap.Mana,
		ManaDelta:              snap.ManaDelta,
		HP:                     snap.HP,
		NumCreaturesControlled: snap.NumCreaturesControlled,
		NumClaimedTiles:        snap.NumClaimedTiles,
		SpawnPool:              spawnPoolToJSON(snap.SpawnPool),
		UncompleteGoals:        snap.UncompleteGoals,
		CompletedGoals:         snap.CompletedGoals,
		FailedGoals:            snap.FailedGoals,
		GoalsChanged:           snap.GoalsChanged,
	}
}

// SeatStateToSnapshot converts a stored row back to a snapshot. Fields not
// stored per turn (starting position and gold, colour) are left zero.
func SeatStateToSnapshot(s model.SeatState) (seat.Snapshot, error) {
	var pool []string
	if len(s.SpawnPool) > 0 {
		if err := json.Unmarshal(s.SpawnPool, &pool); err != nil {
			return seat.Snapshot{}, err
		}
	}
	if len(pool) == 0 {
		pool = nil
	}
	return seat.Snapshot{
		ID:      s.SeatID,
		TeamID:  s.TeamID,
		Faction: s.Faction,
		Economy: seat.Economy{
			Gold:                   s.Gold,
			GoldMined:              s.GoldMined,
			Mana:                   s.Mana,
			ManaDelta:              s.ManaDelta,
			HP:                     s.HP,
			NumCreaturesControlled: s.NumCreaturesControlled,
			NumClaimedTiles:        s.NumClaimedTiles,
		},
		SpawnPool:       pool,
		UncompleteGoals: s.UncompleteGoals,
		CompletedGoals:  s.CompletedGoals,
		FailedGoals:     s.FailedGoals,
		GoalsChanged:    s.GoalsChanged,
	}, nil
}
