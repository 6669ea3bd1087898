package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Seat{},
	&SeatState{},
}

////////////////////////
// SESSION MODELS
////////////////////////

// Session is one run of a level on a host.
type Session struct {
	gorm.Model
	Name      string       `json:"name" gorm:"size:127"`
	LevelName string       `json:"levelName" gorm:"size:127;index:idx_session_level"`
	Ruleset   string       `json:"ruleset" gorm:"size:64;default:default"`
	StartedAt time.Time    `json:"startedAt" gorm:"index:idx_session_start"`
	EndedAt   sql.NullTime `json:"endedAt"`
	Turns     int64        `json:"turns"`
	Seats     []Seat
}

func (*Session) TableName() string {
	return "sessions"
}

// Seat holds the per-session fields of a seat that never change after load.
type Seat struct {
	ID           uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID    uint   `json:"sessionId" gorm:"uniqueIndex:idx_seat_session_seat"`
	SeatID       int    `json:"seatId" gorm:"uniqueIndex:idx_seat_session_seat"`
	TeamID       int    `json:"teamId"`
	Faction      string `json:"faction" gorm:"size:64"`
	StartingX    int    `json:"startingX"`
	StartingY    int    `json:"startingY"`
	StartingGold int    `json:"startingGold"`
	ColorID      string `json:"colorId" gorm:"size:32"`
}

func (*Seat) TableName() string {
	return "seats"
}

////////////////////////
// TURN MODELS
////////////////////////

// SeatState is the value state of one seat at the end of one turn.
type SeatState struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_seatstate_session_turn;index:idx_seatstate_session_seat"`
	Turn      int64     `json:"turn" gorm:"index:idx_seatstate_session_turn"`
	SeatID    int       `json:"seatId" gorm:"index:idx_seatstate_session_seat"`
	TeamID    int       `json:"teamId"`
	Faction   string    `json:"faction" gorm:"size:64"`

	Gold                   int            `json:"gold"`
	GoldMined              int            `json:"goldMined"`
	Mana                   float64        `json:"mana"`
	ManaDelta              float64        `json:"manaDelta"`
	HP                     float64        `json:"hp"`
	NumCreaturesControlled int            `json:"numCreaturesControlled"`
	NumClaimedTiles        int            `json:"numClaimedTiles"`
	SpawnPool              datatypes.JSON `json:"spawnPool"`

	UncompleteGoals int  `json:"uncompleteGoals"`
	CompletedGoals  int  `json:"completedGoals"`
	FailedGoals     int  `json:"failedGoals"`
	GoalsChanged    bool `json:"goalsChanged"`
}

func (*SeatState) TableName() string {
	return "seat_states"
}
