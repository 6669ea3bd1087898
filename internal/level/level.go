// Package level reads and writes the sectioned level and save files.
//
// A file is a sequence of sections:
//
//	[Level]
//	name "Lair of the Horned One"
//	[/Level]
//	[Seats]
//	# seatId	teamId	faction	...
//	1	1	Keeper	10	12	red	5000
//	[/Seats]
//	[Goals]
//	1,2	claimed_tiles	120
//	[/Goals]
//
// Other sections (tiles, rooms, creatures) belong to other subsystems; they
// are kept verbatim so a save round trip does not lose them.
package level

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/opendungeons/keeper/internal/seat"
	"github.com/opendungeons/keeper/internal/util"
)

const (
	sectionLevel = "Level"
	sectionSeats = "Seats"
	sectionGoals = "Goals"
)

// Level is the content of a level or save file.
type Level struct {
	Name  string
	Seats []*seat.Seat
	Goals []*ThresholdGoal
	Other []Section
}

// Section is a section this package does not interpret.
type Section struct {
	Name  string
	Lines []string
}

// Seat returns the seat with the given id, or nil.
func (l *Level) Seat(id int) *seat.Seat {
	for _, s := range l.Seats {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

// Loader parses level files. Problems with single lines are logged and the
// line is skipped or loaded with defaults; only I/O errors stop a load.
type Loader struct {
	logger *slog.Logger
	opts   []seat.Option
}

// NewLoader returns a loader. opts are applied to every loaded seat.
func NewLoader(logger *slog.Logger, opts ...seat.Option) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, opts: opts}
}

// LoadFile opens and parses path.
func (l *Loader) LoadFile(path string) (*Level, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lvl, err := l.Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lvl, nil
}

// Load parses a level file.
func (l *Loader) Load(r io.Reader) (*Level, error) {
	lvl := &Level{}
	seen := make(map[int]int)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	current := ""
	var other *Section
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()

		if name, closing, ok := util.ParseSection(raw); ok {
			switch {
			case closing && name != current:
				l.logger.Warn("Closing section does not match", "line", lineNo, "section", name, "open", current)
			case closing:
				current, other = "", nil
			default:
				if current != "" {
					l.logger.Warn("Section opened before previous was closed", "line", lineNo, "section", name, "open", current)
				}
				current, other = name, nil
				if name != sectionLevel && name != sectionSeats && name != sectionGoals {
					lvl.Other = append(lvl.Other, Section{Name: name})
					other = &lvl.Other[len(lvl.Other)-1]
				}
			}
			continue
		}

		if other != nil {
			other.Lines = append(other.Lines, raw)
			continue
		}

		line := util.StripComment(raw)
		if line == "" {
			continue
		}
		switch current {
		case sectionLevel:
			if key, value := util.SplitKeyValue(line); key == "name" {
				lvl.Name = value
			}
		case sectionSeats:
			l.loadSeat(lvl, seen, line, lineNo)
		case sectionGoals:
			g, err := parseGoalLine(line)
			if err != nil {
				l.logger.Warn("Skipping goal line", "line", lineNo, "error", err)
				continue
			}
			lvl.Goals = append(lvl.Goals, g)
		default:
			l.logger.Warn("Ignoring line outside of any section", "line", lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read level: %w", err)
	}
	if current != "" {
		l.logger.Warn("Section not closed at end of file", "section", current)
	}

	l.attachGoals(lvl)
	return lvl, nil
}

func (l *Loader) loadSeat(lvl *Level, seen map[int]int, line string, lineNo int) {
	s := &seat.Seat{}
	err := seat.LoadFromLine(line, s)
	if !s.HasID() {
		l.logger.Error("Skipping seat line without a valid id", "line", lineNo, "error", err)
		return
	}
	var lineErr *seat.LineError
	if errors.As(err, &lineErr) {
		for _, fe := range lineErr.Fields {
			l.logger.Warn("Seat field invalid, keeping default",
				"line", lineNo,
				"seatId", s.ID(),
				"field", fe.Field,
				"value", fe.Value,
				"error", fe.Err)
		}
	}
	if first, dup := seen[s.ID()]; dup {
		l.logger.Warn("Skipping duplicate seat id", "line", lineNo, "seatId", s.ID(), "firstLine", first)
		return
	}
	seen[s.ID()] = lineNo
	s.Configure(l.opts...)
	lvl.Seats = append(lvl.Seats, s)
}

func (l *Loader) attachGoals(lvl *Level) {
	for _, g := range lvl.Goals {
		for _, id := range g.Seats {
			s := lvl.Seat(id)
			if s == nil {
				l.logger.Warn("Goal refers to unknown seat", "goal", g.Name(), "seatId", id)
				continue
			}
			s.AddGoal(g)
		}
	}
}

// Write writes lvl with its seats ordered for a byte-stable save. The seat
// slice of lvl is not reordered.
func Write(w io.Writer, lvl *Level) error {
	bw := bufio.NewWriter(w)

	if lvl.Name != "" {
		fmt.Fprintf(bw, "[%s]\nname\t\"%s\"\n[/%s]\n", sectionLevel, lvl.Name, sectionLevel)
	}

	seats := append([]*seat.Seat(nil), lvl.Seats...)
	seat.SortSeats(seats)
	fmt.Fprintf(bw, "[%s]\n%s\n", sectionSeats, seat.Format())
	for _, s := range seats {
		line, err := s.MarshalText()
		if err != nil {
			return fmt.Errorf("write level: %w", err)
		}
		bw.Write(line)
		bw.WriteByte('\n')
	}
	fmt.Fprintf(bw, "[/%s]\n", sectionSeats)

	if len(lvl.Goals) > 0 {
		fmt.Fprintf(bw, "[%s]\n", sectionGoals)
		for _, g := range lvl.Goals {
			bw.WriteString(g.line())
			bw.WriteByte('\n')
		}
		fmt.Fprintf(bw, "[/%s]\n", sectionGoals)
	}

	for _, sec := range lvl.Other {
		fmt.Fprintf(bw, "[%s]\n", sec.Name)
		if len(sec.Lines) > 0 {
			bw.WriteString(strings.Join(sec.Lines, "\n"))
			bw.WriteByte('\n')
		}
		fmt.Fprintf(bw, "[/%s]\n", sec.Name)
	}

	return bw.Flush()
}

// SaveFile writes lvl to path through a temporary file in the same directory,
// so readers never see a half-written save.
func SaveFile(path string, lvl *Level) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("save level: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, lvl); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save level: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save level: %w", err)
	}
	return nil
}
