package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"text/tabwriter"

	"github.com/opendungeons/keeper/internal/database"
	"github.com/opendungeons/keeper/internal/level"
	"github.com/opendungeons/keeper/internal/model/convert"
	"github.com/opendungeons/keeper/internal/ruleset"
	"github.com/opendungeons/keeper/internal/seat"
	"github.com/opendungeons/keeper/internal/storage/gormstore"
	"github.com/spf13/pflag"
)

// problemHandler counts the warnings and errors passing through it.
type problemHandler struct {
	slog.Handler
	n *atomic.Int64
}

func newProblemHandler(w io.Writer) problemHandler {
	return problemHandler{
		Handler: slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelWarn,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if len(groups) == 0 && a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return a
			},
		}),
		n: new(atomic.Int64),
	}
}

func (h problemHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		h.n.Add(1)
	}
	return h.Handler.Handle(ctx, r)
}

func (h problemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return problemHandler{Handler: h.Handler.WithAttrs(attrs), n: h.n}
}

func (h problemHandler) WithGroup(name string) slog.Handler {
	return problemHandler{Handler: h.Handler.WithGroup(name), n: h.n}
}

func (h problemHandler) count() int64 { return h.n.Load() }

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(stderr)
	return flags
}

func loadRuleset(path string) (*ruleset.Ruleset, error) {
	if path == "" {
		return ruleset.Default(), nil
	}
	return ruleset.Load(path)
}

func checkCmd(args []string, stdout, stderr io.Writer) error {
	flags := newFlagSet("check", stderr)
	rulesetFile := flags.String("ruleset", "", "ruleset used to resolve seat colours (default: built-in)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("expected one level file")
	}
	path := flags.Arg(0)

	rules, err := loadRuleset(*rulesetFile)
	if err != nil {
		return err
	}

	problems := newProblemHandler(stdout)
	logger := slog.New(problems)
	lvl, err := level.NewLoader(logger).LoadFile(path)
	if err != nil {
		return err
	}
	for _, s := range lvl.Seats {
		if !rules.Apply(s) {
			logger.Warn("Seat colour not in palette", "seatId", s.ID(), "colorId", s.ColorID(), "ruleset", rules.Name)
		}
	}
	if len(lvl.Seats) == 0 {
		logger.Warn("Level has no seats")
	}

	n := problems.count()
	fmt.Fprintf(stdout, "%s: %d seats, %d goals, %d problems\n", path, len(lvl.Seats), len(lvl.Goals), n)
	if n > 0 {
		return fmt.Errorf("%d problems in %s", n, path)
	}
	return nil
}

func formatCmd(stdout io.Writer) error {
	fmt.Fprintln(stdout, seat.Format())
	fmt.Fprintf(stdout, "# the first %d fields are required\n", seat.RequiredTextFields())
	return nil
}

func sortCmd(args []string, stdout, stderr io.Writer) error {
	flags := newFlagSet("sort", stderr)
	out := flags.StringP("output", "o", "", "write here instead of rewriting the level in place")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("expected one level file")
	}
	path := flags.Arg(0)
	if *out == "" {
		*out = path
	}

	problems := newProblemHandler(stderr)
	lvl, err := level.NewLoader(slog.New(problems)).LoadFile(path)
	if err != nil {
		return err
	}
	if err := level.SaveFile(*out, lvl); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d seats to %s\n", len(lvl.Seats), *out)
	if n := problems.count(); n > 0 {
		fmt.Fprintf(stderr, "%d lines were skipped or loaded with defaults\n", n)
	}
	return nil
}

// historyRow is one recorded turn in --json output.
type historyRow struct {
	Turn            int64    `json:"turn"`
	Gold            int      `json:"gold"`
	GoldMined       int      `json:"goldMined"`
	Mana            float64  `json:"mana"`
	ManaDelta       float64  `json:"manaDelta"`
	HP              float64  `json:"hp"`
	Creatures       int      `json:"creatures"`
	ClaimedTiles    int      `json:"claimedTiles"`
	SpawnPool       []string `json:"spawnPool"`
	UncompleteGoals int      `json:"uncompleteGoals"`
	CompletedGoals  int      `json:"completedGoals"`
	FailedGoals     int      `json:"failedGoals"`
}

func newHistoryRow(turn int64, s seat.Snapshot) historyRow {
	return historyRow{
		Turn:            turn,
		Gold:            s.Gold,
		GoldMined:       s.GoldMined,
		Mana:            s.Mana,
		ManaDelta:       s.ManaDelta,
		HP:              s.HP,
		Creatures:       s.NumCreaturesControlled,
		ClaimedTiles:    s.NumClaimedTiles,
		SpawnPool:       s.SpawnPool,
		UncompleteGoals: s.UncompleteGoals,
		CompletedGoals:  s.CompletedGoals,
		FailedGoals:     s.FailedGoals,
	}
}

func historyCmd(args []string, stdout, stderr io.Writer) error {
	flags := newFlagSet("history", stderr)
	sessionID := flags.Uint("session", 0, "session id (default: the latest session)")
	asJSON := flags.Bool("json", false, "print JSON instead of a table")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 2 {
		return errors.New("expected a database file and a seat id")
	}
	path := flags.Arg(0)
	seatID, err := strconv.Atoi(flags.Arg(1))
	if err != nil {
		return fmt.Errorf("invalid seat id %q: %w", flags.Arg(1), err)
	}

	if _, err := os.Stat(path); err != nil {
		return err
	}
	db, err := database.OpenSQLite(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	states, err := gormstore.SeatHistory(db, *sessionID, seatID)
	if err != nil {
		return err
	}
	rows := make([]historyRow, 0, len(states))
	for _, st := range states {
		snap, err := convert.SeatStateToSnapshot(st)
		if err != nil {
			return fmt.Errorf("turn %d: %w", st.Turn, err)
		}
		rows = append(rows, newHistoryRow(st.Turn, snap))
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintf(stdout, "no turns recorded for seat %d\n", seatID)
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TURN\tGOLD\tMINED\tMANA\tHP\tCREATURES\tTILES\tGOALS U/C/F\tSPAWN POOL")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%g\t%g\t%d\t%d\t%d/%d/%d\t%s\n",
			r.Turn, r.Gold, r.GoldMined, r.Mana, r.HP, r.Creatures, r.ClaimedTiles,
			r.UncompleteGoals, r.CompletedGoals, r.FailedGoals, strings.Join(r.SpawnPool, ","))
	}
	return tw.Flush()
}

func dumpsCmd(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("expected a directory")
	}
	paths, err := database.BackupDBPaths(args[0])
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(stdout, p)
	}
	return nil
}
