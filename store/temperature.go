package store

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeTemperature normalizes a temperature value to its canonical
// string form: a number in [0.0, 2.0] formatted with up to 3 decimals and
// trailing zeros (and a trailing dot) stripped. An empty input is valid and
// means "unset"; it normalizes to "". Comma decimal separators are
// accepted. Non-numeric or out-of-range values are rejected.
func NormalizeTemperature(value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", nil
	}
	v = strings.ReplaceAll(v, ",", ".")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return "", ErrInvalidTemperature
	}
	if f < 0.0 || f > 2.0 {
		return "", ErrInvalidTemperature
	}
	s := strings.TrimRight(fmt.Sprintf("%.3f", f), "0")
	s = strings.TrimRight(s, ".")
	if s == "" {
		s = "0"
	}
	return s, nil
}

// ParseTemperature parses a canonical temperature string back into a float.
// Returns (0, false) for the unset form "".
func ParseTemperature(canonical string) (float64, bool) {
	if canonical == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(canonical, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
