package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SeatRange is a quantity band within one currency/tier, e.g. 1-5 seats.
// It is comparable so it can sit inside composite map keys. Open means no
// upper bound; Max is meaningless while Open is set. The canonical string
// forms are "N", "N-M", "N+".
type SeatRange struct {
	Min  int
	Max  int
	Open bool
}

// String renders the canonical form.
func (r SeatRange) String() string {
	if r.Open {
		return fmt.Sprintf("%d+", r.Min)
	}
	if r.Max == r.Min {
		return strconv.Itoa(r.Min)
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// ParseSeatRange parses the canonical forms "N", "N-M", "N+".
func ParseSeatRange(s string) (SeatRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SeatRange{}, fmt.Errorf("empty seat range")
	}
	if strings.HasSuffix(s, "+") {
		min, err := strconv.Atoi(strings.TrimSuffix(s, "+"))
		if err != nil {
			return SeatRange{}, fmt.Errorf("invalid seat range %q: %w", s, err)
		}
		return SeatRange{Min: min, Open: true}, nil
	}
	if lo, hi, found := strings.Cut(s, "-"); found {
		min, err := strconv.Atoi(lo)
		if err != nil {
			return SeatRange{}, fmt.Errorf("invalid seat range %q: %w", s, err)
		}
		max, err := strconv.Atoi(hi)
		if err != nil {
			return SeatRange{}, fmt.Errorf("invalid seat range %q: %w", s, err)
		}
		return SeatRange{Min: min, Max: max}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return SeatRange{}, fmt.Errorf("invalid seat range %q: %w", s, err)
	}
	return SeatRange{Min: n, Max: n}, nil
}

// MarshalJSON renders the canonical string form on the wire.
func (r SeatRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON parses the canonical string form.
func (r *SeatRange) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSeatRange(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// CompareSeatRanges orders ranges numerically by their minimum bound. Equal
// minimums tie-break on the upper bound, bounded before open-ended, so the
// order is total and stable run to run.
func CompareSeatRanges(a, b SeatRange) int {
	switch {
	case a.Min < b.Min:
		return -1
	case a.Min > b.Min:
		return 1
	case a.Open && b.Open:
		return 0
	case a.Open:
		return 1
	case b.Open:
		return -1
	case a.Max < b.Max:
		return -1
	case a.Max > b.Max:
		return 1
	default:
		return 0
	}
}
