// Package ruleset loads the diplomacy truth table and colour palette a
// session plays under.
package ruleset

import (
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"sort"

	"github.com/opendungeons/keeper/internal/seat"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

//go:embed ruleset.schema.json
var schemaJSON string

const schemaURL = "ruleset.schema.json"

var schema = jsonschema.MustCompileString(schemaURL, schemaJSON)

// Ruleset is a validated ruleset file.
type Ruleset struct {
	Name      string
	Diplomacy *seat.Diplomacy
	Palette   map[string]color.RGBA
}

type document struct {
	Name      string                  `yaml:"name"`
	Diplomacy map[string]allowanceDoc `yaml:"diplomacy"`
	Colors    map[string]string       `yaml:"colors"`
}

type allowanceDoc struct {
	Ally     bool `yaml:"ally"`
	Stranger bool `yaml:"stranger"`
}

// Load reads and validates a ruleset file.
func Load(path string) (*Ruleset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Default returns the ruleset shipped with the binary.
func Default() *Ruleset {
	r, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("ruleset: embedded default is invalid: %v", err))
	}
	return r
}

// Parse validates YAML ruleset data against the schema and builds the ruleset.
func Parse(raw []byte) (*Ruleset, error) {
	if err := validate(raw); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("ruleset: %w", err)
	}

	rules := make(map[seat.Action]seat.Allowance, len(doc.Diplomacy))
	for name, a := range doc.Diplomacy {
		action, err := seat.ParseAction(name)
		if err != nil {
			return nil, fmt.Errorf("ruleset: diplomacy: %w", err)
		}
		rules[action] = seat.Allowance{Ally: a.Ally, Stranger: a.Stranger}
	}
	for _, a := range seat.Actions() {
		if _, ok := rules[a]; !ok {
			return nil, fmt.Errorf("ruleset: diplomacy: no entry for %s", a)
		}
	}

	palette := make(map[string]color.RGBA, len(doc.Colors))
	for id, hexColor := range doc.Colors {
		c, err := parseColor(hexColor)
		if err != nil {
			return nil, fmt.Errorf("ruleset: color %s: %w", id, err)
		}
		palette[id] = c
	}

	return &Ruleset{
		Name:      doc.Name,
		Diplomacy: seat.NewDiplomacy(rules),
		Palette:   palette,
	}, nil
}

// validate runs the JSON schema over the YAML document. The schema validator
// works on JSON values, so the document goes through encoding/json first.
func validate(raw []byte) error {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("ruleset: %w", err)
	}
	js, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ruleset: %w", err)
	}
	var doc any
	if err := json.Unmarshal(js, &doc); err != nil {
		return fmt.Errorf("ruleset: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("ruleset: %w", err)
	}
	return nil
}

func parseColor(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("%q is not #rrggbb", s)
	}
	b, err := hex.DecodeString(s[1:])
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%q: %w", s, err)
	}
	return color.RGBA{R: b[0], G: b[1], B: b[2], A: 0xff}, nil
}

// Color resolves a seat colour id.
func (r *Ruleset) Color(id string) (color.RGBA, bool) {
	c, ok := r.Palette[id]
	return c, ok
}

// ColorIDs returns the palette ids in sorted order.
func (r *Ruleset) ColorIDs() []string {
	ids := make([]string, 0, len(r.Palette))
	for id := range r.Palette {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Apply attaches the diplomacy table to s and resolves its colour. It reports
// whether the colour id was found in the palette.
func (r *Ruleset) Apply(s *seat.Seat) bool {
	s.Configure(seat.WithDiplomacy(r.Diplomacy))
	c, ok := r.Color(s.ColorID())
	if ok {
		s.SetColorValue(c)
	}
	return ok
}
