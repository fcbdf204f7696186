package registry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Reference numbers follow {PREFIX}/{IN|OUT}/{year}/{NNNN} with a 4-digit
// zero-padded sequence, unique and monotonically increasing per
// (direction, year) scope.

const refNoDigits = 4

var refNoSanitizer = regexp.MustCompile(`[^A-Za-z0-9\-_]`)

func directionTag(d Direction) string {
	if d == DirectionOutgoing {
		return "OUT"
	}
	return "IN"
}

// RefPrefix builds the scope prefix, trailing slash included.
func RefPrefix(prefix string, d Direction, year int) string {
	return fmt.Sprintf("%s/%s/%d/", prefix, directionTag(d), year)
}

// NextRefNo computes the next reference number in scope: one past the
// largest numeric suffix among existing refs with the prefix. Suffixes that
// do not parse as integers are skipped rather than aborting the allocation,
// so one malformed backfilled row cannot wedge intake. An empty scope
// starts at 0001.
func NextRefNo(prefix string, d Direction, year int, existing []string) string {
	scope := RefPrefix(prefix, d, year)
	max := 0
	for _, ref := range existing {
		if !strings.HasPrefix(ref, scope) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(ref, scope))
		if err != nil || n <= 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%0*d", scope, refNoDigits, max+1)
}

// SanitizeRefNo maps a reference number onto the filename-safe alphabet:
// every character outside [A-Za-z0-9-_] becomes a dash.
func SanitizeRefNo(ref string) string {
	return refNoSanitizer.ReplaceAllString(ref, "-")
}

// FilePathFor derives the deterministic blob path for a letter's scan:
// letters/{year}/{sanitized_ref_no}.{ext}. Replacing a scan overwrites the
// previous object at the same path on purpose.
func FilePathFor(year int, refNo, ext string) string {
	return fmt.Sprintf("letters/%d/%s.%s", year, SanitizeRefNo(refNo), ext)
}

// refNoYear extracts the year segment from a well-formed reference number.
func refNoYear(ref string) (int, bool) {
	parts := strings.Split(ref, "/")
	if len(parts) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(parts[2])
	if err != nil || y < 1900 || y > 9999 {
		return 0, false
	}
	return y, true
}
