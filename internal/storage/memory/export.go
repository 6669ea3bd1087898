package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/opendungeons/keeper/internal/level"
	"github.com/opendungeons/keeper/internal/seat"
)

// HistoryExport is the root JSON structure of the turn history file
type HistoryExport struct {
	SessionName string            `json:"sessionName"`
	LevelName   string            `json:"levelName"`
	Ruleset     string            `json:"ruleset"`
	StartedAt   string            `json:"startedAt"`
	EndTurn     int64             `json:"endTurn"`
	Seats       []SeatHistoryJSON `json:"seats"`
}

// SeatHistoryJSON is one seat with its per-turn values.
type SeatHistoryJSON struct {
	ID      int    `json:"id"`
	TeamID  int    `json:"teamId"`
	Faction string `json:"faction"`
	ColorID string `json:"colorId"`
	// Turns rows are [turn, gold, goldMined, mana, manaDelta, hp, creatures, claimedTiles, uncomplete, completed, failed].
	// A NaN or infinite mana, manaDelta or hp is written as null.
	Turns [][]any `json:"turns"`
}

// export writes the save file and the history file.
func (b *Backend) export() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	base := b.baseName()
	ext := ""
	if b.cfg.CompressOutput {
		ext = ".gz"
	}

	savePath := filepath.Join(b.cfg.OutputDir, base+".level"+ext)
	if err := b.writeFile(savePath, b.writeSave); err != nil {
		return err
	}
	historyPath := filepath.Join(b.cfg.OutputDir, base+"_history.json"+ext)
	if err := b.writeFile(historyPath, b.writeHistory); err != nil {
		return err
	}

	b.lastExportPath = savePath
	b.lastHistoryPath = historyPath
	return nil
}

func (b *Backend) baseName() string {
	name := b.session.Name
	if name == "" {
		name = b.session.LevelName
	}
	if name == "" {
		name = "session"
	}
	name = strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_").Replace(name)
	return fmt.Sprintf("%s_%s", name, b.session.StartedAt.Format("20060102_150405"))
}

func (b *Backend) writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if !b.cfg.CompressOutput {
		if err := write(f); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	}

	gzWriter := gzip.NewWriter(f)
	if err := write(gzWriter); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return gzWriter.Close()
}

// writeSave writes the latest state of every seat in level format.
func (b *Backend) writeSave(w io.Writer) error {
	save := &level.Level{Name: b.session.LevelName}
	if b.lvl != nil {
		save.Goals = b.lvl.Goals
		save.Other = b.lvl.Other
	}
	for _, id := range b.order {
		rec := b.seats[id]
		latest := rec.Initial
		if n := len(rec.Turns); n > 0 {
			latest = rec.Turns[n-1].Snapshot
			latest.StartingX, latest.StartingY = rec.Initial.StartingX, rec.Initial.StartingY
			latest.StartingGold = rec.Initial.StartingGold
			latest.ColorID = rec.Initial.ColorID
		}
		save.Seats = append(save.Seats, seat.FromSnapshot(latest))
	}
	return level.Write(w, save)
}

func (b *Backend) writeHistory(w io.Writer) error {
	out := HistoryExport{
		SessionName: b.session.Name,
		LevelName:   b.session.LevelName,
		Ruleset:     b.session.Ruleset,
		StartedAt:   b.session.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
		EndTurn:     b.lastTurn,
		Seats:       make([]SeatHistoryJSON, 0, len(b.order)),
	}
	for _, id := range b.order {
		rec := b.seats[id]
		sh := SeatHistoryJSON{
			ID:      id,
			TeamID:  rec.Initial.TeamID,
			Faction: rec.Initial.Faction,
			ColorID: rec.Initial.ColorID,
			Turns:   make([][]any, 0, len(rec.Turns)),
		}
		for _, ts := range rec.Turns {
			sh.Turns = append(sh.Turns, []any{
				ts.Turn,
				ts.Gold,
				ts.GoldMined,
				jsonFloat(ts.Mana),
				jsonFloat(ts.ManaDelta),
				jsonFloat(ts.HP),
				ts.NumCreaturesControlled,
				ts.NumClaimedTiles,
				ts.UncompleteGoals,
				ts.CompletedGoals,
				ts.FailedGoals,
			})
		}
		out.Seats = append(out.Seats, sh)
	}
	return json.NewEncoder(w).Encode(out)
}

// jsonFloat turns values JSON cannot carry into null.
func jsonFloat(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
