// Package seat implements the per-player Seat: its goal buckets, its
// diplomacy checks against other seats, and the text and packet forms used
// to persist it and to keep network mirrors in agreement with the host.
//
// A Seat has no internal locking. Exactly one execution context may own a
// Seat at a time (the turn loop on the host, the receive loop on a mirror).
package seat

import (
	"fmt"
	"image/color"
	"log/slog"
	"slices"
)

// Seat is the state of one player or faction in a session.
// The zero value is a valid, unassigned seat that LoadFromLine can fill in.
type Seat struct {
	id    int
	hasID bool

	teamID  int
	faction string

	startingX    int
	startingY    int
	startingGold int

	mana      float64
	manaDelta float64
	hp        float64

	gold                   int
	goldMined              int
	numCreaturesControlled int
	numClaimedTiles        int

	spawnPool []string

	colorID    string
	colorValue color.RGBA

	GoalTracker

	diplomacy *Diplomacy
	log       *slog.Logger
}

// Option configures a Seat at creation or load time.
type Option func(*Seat)

// WithTeam sets the team id. Seats sharing a team are allied.
func WithTeam(teamID int) Option {
	return func(s *Seat) { s.teamID = teamID }
}

// WithFaction sets the faction name.
func WithFaction(faction string) Option {
	return func(s *Seat) { s.faction = faction }
}

// WithStart sets the starting tile.
func WithStart(x, y int) Option {
	return func(s *Seat) {
		s.startingX = x
		s.startingY = y
	}
}

// WithStartingGold sets the starting treasury and the current gold.
func WithStartingGold(gold int) Option {
	return func(s *Seat) {
		s.startingGold = gold
		s.gold = gold
	}
}

// WithColor sets the colour id. The colour value is resolved separately.
func WithColor(colorID string) Option {
	return func(s *Seat) { s.colorID = colorID }
}

// WithDiplomacy attaches the ruleset truth table used by the permission checks.
func WithDiplomacy(d *Diplomacy) Option {
	return func(s *Seat) { s.diplomacy = d }
}

// WithLogger sets the logger used for goal evaluation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Seat) { s.log = l }
}

// New creates a seat with the given id.
func New(id int, opts ...Option) *Seat {
	s := &Seat{id: id, hasID: true}
	s.Configure(opts...)
	return s
}

// Configure applies options to an existing seat, typically right after it was
// loaded from a level line.
func (s *Seat) Configure(opts ...Option) {
	for _, opt := range opts {
		opt(s)
	}
}

func (s *Seat) logger() *slog.Logger {
	if s == nil || s.log == nil {
		return slog.Default()
	}
	return s.log
}

// assignID sets the id of an unassigned seat. Assigned ids never change.
func (s *Seat) assignID(id int) error {
	if s.hasID && s.id != id {
		return fmt.Errorf("seat id is %d, refusing to change it to %d", s.id, id)
	}
	s.id = id
	s.hasID = true
	return nil
}

// ID returns the seat id, the only field other entities may reference.
func (s *Seat) ID() int { return s.id }

// HasID reports whether the seat has been assigned an id.
func (s *Seat) HasID() bool { return s.hasID }

func (s *Seat) TeamID() int            { return s.teamID }
func (s *Seat) Faction() string        { return s.faction }
func (s *Seat) StartingX() int         { return s.startingX }
func (s *Seat) StartingY() int         { return s.startingY }
func (s *Seat) StartingGold() int      { return s.startingGold }
func (s *Seat) ColorID() string        { return s.colorID }
func (s *Seat) ColorValue() color.RGBA { return s.colorValue }

// SetColorValue stores the display colour resolved from the colour id.
func (s *Seat) SetColorValue(c color.RGBA) { s.colorValue = c }

func (s *Seat) Gold() int                   { return s.gold }
func (s *Seat) GoldMined() int              { return s.goldMined }
func (s *Seat) Mana() float64               { return s.mana }
func (s *Seat) ManaDelta() float64          { return s.manaDelta }
func (s *Seat) HP() float64                 { return s.hp }
func (s *Seat) NumCreaturesControlled() int { return s.numCreaturesControlled }
func (s *Seat) NumClaimedTiles() int        { return s.numClaimedTiles }

// SpawnPool returns a copy of the creature types this seat may spawn, in order.
func (s *Seat) SpawnPool() []string { return slices.Clone(s.spawnPool) }

// AddSpawnableCreature appends a creature type to the spawn pool.
func (s *Seat) AddSpawnableCreature(name string) {
	s.spawnPool = append(s.spawnPool, name)
}

// ResetSpawnPool empties the spawn pool.
func (s *Seat) ResetSpawnPool() { s.spawnPool = nil }

// SetNumClaimedTiles sets the number of claimed tiles.
func (s *Seat) SetNumClaimedTiles(n int) { s.numClaimedTiles = n }

// IncrementNumClaimedTiles increments the number of claimed tiles by 1.
func (s *Seat) IncrementNumClaimedTiles() { s.numClaimedTiles++ }

// Economy is the block of turn-updated value fields.
type Economy struct {
	Gold                   int
	GoldMined              int
	Mana                   float64
	ManaDelta              float64
	HP                     float64
	NumCreaturesControlled int
	NumClaimedTiles        int
}

// Economy returns the current turn values.
func (s *Seat) Economy() Economy {
	return Economy{
		Gold:                   s.gold,
		GoldMined:              s.goldMined,
		Mana:                   s.mana,
		ManaDelta:              s.manaDelta,
		HP:                     s.hp,
		NumCreaturesControlled: s.numCreaturesControlled,
		NumClaimedTiles:        s.numClaimedTiles,
	}
}

// SetEconomy replaces the turn values.
func (s *Seat) SetEconomy(e Economy) {
	s.gold = e.Gold
	s.goldMined = e.GoldMined
	s.mana = e.Mana
	s.manaDelta = e.ManaDelta
	s.hp = e.HP
	s.numCreaturesControlled = e.NumCreaturesControlled
	s.numClaimedTiles = e.NumClaimedTiles
}

// Ledger is the mutation surface handed to the simulation once per turn.
// It covers the economy, territory and spawn roster and nothing else.
type Ledger interface {
	ID() int
	Economy() Economy
	SetEconomy(Economy)
	SetNumClaimedTiles(n int)
	IncrementNumClaimedTiles()
	AddSpawnableCreature(name string)
	ResetSpawnPool()
	SpawnPool() []string
}

var _ Ledger = (*Seat)(nil)

// Snapshot is a detached copy of a seat's value state, safe to hand to other
// goroutines (storage, metrics).
type Snapshot struct {
	ID           int
	TeamID       int
	Faction      string
	StartingX    int
	StartingY    int
	StartingGold int
	ColorID      string
	Economy
	SpawnPool []string

	UncompleteGoals int
	CompletedGoals  int
	FailedGoals     int
	GoalsChanged    bool
}

// Snapshot copies the seat's value state.
func (s *Seat) Snapshot() Snapshot {
	return Snapshot{
		ID:              s.id,
		TeamID:          s.teamID,
		Faction:         s.faction,
		StartingX:       s.startingX,
		StartingY:       s.startingY,
		StartingGold:    s.startingGold,
		ColorID:         s.colorID,
		Economy:         s.Economy(),
		SpawnPool:       slices.Clone(s.spawnPool),
		UncompleteGoals: s.NumUncompleteGoals(),
		CompletedGoals:  s.NumCompletedGoals(),
		FailedGoals:     s.NumFailedGoals(),
		GoalsChanged:    s.changed,
	}
}

// FromSnapshot rebuilds a seat holding the snapshot's value fields.
// Goal buckets are runtime state and come back empty.
func FromSnapshot(snap Snapshot, opts ...Option) *Seat {
	s := New(snap.ID,
		WithTeam(snap.TeamID),
		WithFaction(snap.Faction),
		WithStart(snap.StartingX, snap.StartingY),
		WithStartingGold(snap.StartingGold),
		WithColor(snap.ColorID),
	)
	s.SetEconomy(snap.Economy)
	s.spawnPool = slices.Clone(snap.SpawnPool)
	s.Configure(opts...)
	return s
}

// String implements fmt.Stringer for log output.
func (s *Seat) String() string {
	return fmt.Sprintf("seat(%d team=%d faction=%s)", s.id, s.teamID, s.faction)
}
