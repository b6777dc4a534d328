// Package rollrange compacts roll numbers into printable ranges such as "1 to 3, 5".
// Every layer that displays roll ranges (room summaries, CSV/PDF/XLSX exports) goes through Format.
package rollrange

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Suffix returns the numeric part of a roll. "<prefix>-<digits>" yields the digits after the
// last dash; a bare numeric roll yields the whole value.
func Suffix(roll string) (int, bool) {
	roll = strings.TrimSpace(roll)
	digits := roll
	if idx := strings.LastIndex(roll, "-"); idx >= 0 {
		digits = roll[idx+1:]
	}
	if !allDigits(digits) {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Format sorts rolls lexically, merges strictly consecutive suffixes into "start to end" spans,
// keeps singletons as bare numbers and joins everything with ", ".
// Rolls without a numeric suffix are emitted verbatim.
func Format(rolls []string) string {
	if len(rolls) == 0 {
		return ""
	}
	sorted := append([]string(nil), rolls...)
	sort.Strings(sorted)

	parts := make([]string, 0, len(sorted))
	var (
		start, end int
		open       bool
	)
	flush := func() {
		if !open {
			return
		}
		parts = append(parts, span(start, end))
		open = false
	}

	for _, roll := range sorted {
		n, ok := Suffix(roll)
		if !ok {
			flush()
			parts = append(parts, strings.TrimSpace(roll))
			continue
		}
		if open && n == end+1 {
			end = n
			continue
		}
		flush()
		start, end, open = n, n, true
	}
	flush()
	return strings.Join(parts, ", ")
}

func span(start, end int) string {
	if start == end {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d to %d", start, end)
}

func allDigits(raw string) bool {
	if raw == "" {
		return false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
