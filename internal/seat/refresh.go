package seat

import "slices"

// RefreshFromSeat overwrites every mutable value field of s with the values
// of src: the economy, territory, spawn pool and the goals-changed flag. The
// id and the level-defined fields are left alone. Last write wins.
func (s *Seat) RefreshFromSeat(src *Seat) {
	if src == nil || src == s {
		return
	}
	for _, f := range fields {
		if f.mutable {
			copyValue(f.ref(s), f.ref(src))
		}
	}
}

func copyValue(dst, src any) {
	switch d := dst.(type) {
	case *int:
		*d = *src.(*int)
	case *float64:
		*d = *src.(*float64)
	case *string:
		*d = *src.(*string)
	case *[]string:
		*d = slices.Clone(*src.(*[]string))
	case *bool:
		*d = *src.(*bool)
	}
}
