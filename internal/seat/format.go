package seat

import "strings"

type form uint8

const (
	formText form = 1 << iota
	formPacket

	formBoth = formText | formPacket
)

// field is one entry of the seat layout shared by the text codec, the packet
// codec and RefreshFromSeat. ref returns a pointer to the value inside s:
// *int, *float64, *string, *[]string or *bool.
type field struct {
	name     string
	forms    form
	required bool // text lines without it are malformed
	mutable  bool // overwritten by RefreshFromSeat
	ref      func(s *Seat) any
}

const fieldSeatID = "seatId"

// fields is the canonical layout. Appending keeps old files readable;
// reordering breaks every save file and every peer.
var fields = []field{
	{name: fieldSeatID, forms: formBoth, required: true, ref: func(s *Seat) any { return &s.id }},
	{name: "teamId", forms: formBoth, required: true, ref: func(s *Seat) any { return &s.teamID }},
	{name: "faction", forms: formBoth, required: true, ref: func(s *Seat) any { return &s.faction }},
	{name: "startingX", forms: formBoth, required: true, ref: func(s *Seat) any { return &s.startingX }},
	{name: "startingY", forms: formBoth, required: true, ref: func(s *Seat) any { return &s.startingY }},
	{name: "colorId", forms: formBoth, required: true, ref: func(s *Seat) any { return &s.colorID }},
	{name: "startingGold", forms: formBoth, required: true, ref: func(s *Seat) any { return &s.startingGold }},
	{name: "gold", forms: formBoth, mutable: true, ref: func(s *Seat) any { return &s.gold }},
	{name: "goldMined", forms: formBoth, mutable: true, ref: func(s *Seat) any { return &s.goldMined }},
	{name: "mana", forms: formBoth, mutable: true, ref: func(s *Seat) any { return &s.mana }},
	{name: "manaDelta", forms: formBoth, mutable: true, ref: func(s *Seat) any { return &s.manaDelta }},
	{name: "hp", forms: formBoth, mutable: true, ref: func(s *Seat) any { return &s.hp }},
	{name: "creatures", forms: formBoth, mutable: true, ref: func(s *Seat) any { return &s.numCreaturesControlled }},
	{name: "claimedTiles", forms: formBoth, mutable: true, ref: func(s *Seat) any { return &s.numClaimedTiles }},
	{name: "spawnPool", forms: formBoth, mutable: true, ref: func(s *Seat) any { return &s.spawnPool }},
	{name: "goalsChanged", forms: formPacket, mutable: true, ref: func(s *Seat) any { return &s.changed }},
}

var (
	textFields   = fieldsIn(formText)
	packetFields = fieldsIn(formPacket)
)

func fieldsIn(f form) []field {
	var out []field
	for _, fd := range fields {
		if fd.forms&f != 0 {
			out = append(out, fd)
		}
	}
	return out
}

// Format returns the header comment written above the seat lines of a level
// file. It lists the text fields in order.
func Format() string {
	return "# " + strings.Join(FieldNames(), "\t")
}

// FieldNames returns the text field names in order.
func FieldNames() []string {
	names := make([]string, len(textFields))
	for i, f := range textFields {
		names[i] = f.name
	}
	return names
}

// RequiredTextFields is the number of leading text fields every line must carry.
func RequiredTextFields() int {
	n := 0
	for _, f := range textFields {
		if f.required {
			n++
		}
	}
	return n
}
