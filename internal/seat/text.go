package seat

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// emptyToken stands for an empty string or an empty spawn pool in a line.
const emptyToken = "-"

// ErrMissingField is wrapped by a FieldError for a required field absent from a line.
var ErrMissingField = errors.New("missing field")

// FieldError describes one field of a seat line that could not be applied.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// LineError collects the field problems of one seat line. Fields not listed
// were applied; listed fields kept their previous values.
type LineError struct {
	Line   string
	Fields []*FieldError
}

func (e *LineError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("seat line: %d bad field(s): %s", len(e.Fields), strings.Join(msgs, "; "))
}

func (e *LineError) Unwrap() []error {
	errs := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		errs[i] = f
	}
	return errs
}

// MarshalText encodes the seat as one level-file line in Format order.
func (s *Seat) MarshalText() ([]byte, error) {
	var b strings.Builder
	for i, f := range textFields {
		tok, err := encodeText(f.ref(s))
		if err != nil {
			return nil, fmt.Errorf("seat %d: %s: %w", s.id, f.name, err)
		}
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(tok)
	}
	return []byte(b.String()), nil
}

// UnmarshalText is LoadFromLine for encoding.TextUnmarshaler callers.
func (s *Seat) UnmarshalText(text []byte) error {
	return LoadFromLine(string(text), s)
}

// LoadFromLine parses one level-file line into s in place. s may be a zero
// Seat. Fields that fail to parse keep their previous values and are reported
// in a *LineError; the caller decides whether the seat is still usable (it is
// not when HasID is false afterwards).
//
// Lines written before the economy columns existed stop after startingGold;
// gold then starts at startingGold.
func LoadFromLine(line string, s *Seat) error {
	toks := splitLine(line)
	lineErr := &LineError{Line: line}
	fail := func(name, value string, err error) {
		lineErr.Fields = append(lineErr.Fields, &FieldError{Field: name, Value: value, Err: err})
	}

	goldSeen := false
	for i, f := range textFields {
		if i >= len(toks) {
			if f.required {
				fail(f.name, "", ErrMissingField)
			}
			continue
		}
		tok := toks[i]
		if f.name == fieldSeatID {
			var id int
			if err := decodeText(tok, &id); err != nil {
				fail(f.name, tok, err)
				continue
			}
			if err := s.assignID(id); err != nil {
				fail(f.name, tok, err)
			}
			continue
		}
		if f.name == "gold" {
			goldSeen = true
		}
		if err := decodeText(tok, f.ref(s)); err != nil {
			fail(f.name, tok, err)
			continue
		}
	}
	if !goldSeen {
		s.gold = s.startingGold
	}
	if extra := len(toks) - len(textFields); extra > 0 {
		fail("line", strings.Join(toks[len(textFields):], "\t"), fmt.Errorf("%d unexpected trailing field(s)", extra))
	}

	if len(lineErr.Fields) > 0 {
		return lineErr
	}
	return nil
}

// splitLine splits on tabs. Hand-edited files that use spaces only are split
// on runs of whitespace instead.
func splitLine(line string) []string {
	line = strings.TrimRight(line, "\r\n")
	if strings.Contains(line, "\t") {
		return strings.Split(line, "\t")
	}
	return strings.Fields(line)
}

func encodeText(v any) (string, error) {
	switch p := v.(type) {
	case *int:
		return strconv.Itoa(*p), nil
	case *float64:
		return strconv.FormatFloat(*p, 'g', -1, 64), nil
	case *string:
		return encodeTextString(*p)
	case *[]string:
		if len(*p) == 0 {
			return emptyToken, nil
		}
		for _, item := range *p {
			if item == "" || item == emptyToken || strings.ContainsAny(item, ",\t\r\n #\"") {
				return "", fmt.Errorf("spawn pool entry %q cannot be written", item)
			}
		}
		return strings.Join(*p, ","), nil
	default:
		return "", fmt.Errorf("unsupported text field type %T", v)
	}
}

func encodeTextString(v string) (string, error) {
	if v == "" {
		return emptyToken, nil
	}
	if v == emptyToken {
		return "", fmt.Errorf("value %q reads back as empty", v)
	}
	if strings.ContainsAny(v, "\t\r\n ") {
		return "", fmt.Errorf("value %q contains whitespace", v)
	}
	if strings.ContainsAny(v, "#\"") {
		return "", fmt.Errorf("value %q contains a comment or quote character", v)
	}
	return v, nil
}

// decodeText parses tok into dst and leaves dst untouched on error.
func decodeText(tok string, dst any) error {
	switch p := dst.(type) {
	case *int:
		v, err := strconv.Atoi(tok)
		if err != nil {
			return err
		}
		*p = v
	case *float64:
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return err
		}
		*p = v
	case *string:
		if tok == emptyToken {
			*p = ""
		} else {
			*p = tok
		}
	case *[]string:
		if tok == emptyToken || tok == "" {
			*p = nil
			return nil
		}
		items := strings.Split(tok, ",")
		if slices.Contains(items, "") {
			return errors.New("empty spawn pool entry")
		}
		*p = items
	default:
		return fmt.Errorf("unsupported text field type %T", dst)
	}
	return nil
}

// SortForMapSave is the strict weak ordering used before writing seats: by id.
func SortForMapSave(a, b *Seat) bool {
	return a.id < b.id
}

// CompareForMapSave is SortForMapSave in cmp form.
func CompareForMapSave(a, b *Seat) int {
	return cmp.Compare(a.id, b.id)
}

// SortSeats orders seats for a byte-stable save.
func SortSeats(seats []*Seat) {
	slices.SortStableFunc(seats, CompareForMapSave)
}
