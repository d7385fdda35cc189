// Package release compares the installed driver version with the latest
// published one.
package release

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned for version strings that are not three
// dot-separated non-negative integers.
var ErrMalformed = errors.New("malformed version")

// Triple is a major.minor.patch version. Pre-release and build metadata are
// not modelled.
type Triple struct {
	Major int
	Minor int
	Patch int
}

func (t Triple) String() string {
	return fmt.Sprintf("%d.%d.%d", t.Major, t.Minor, t.Patch)
}

// Parse reads "major.minor.patch". Surrounding whitespace is ignored.
func Parse(s string) (Triple, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Triple{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	var numbers [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || strings.HasPrefix(part, "+") {
			return Triple{}, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		numbers[i] = n
	}
	return Triple{Major: numbers[0], Minor: numbers[1], Patch: numbers[2]}, nil
}

// IsNewer reports whether remote is newer than local using the published
// comparison: a larger major wins, and on equal majors "minor.patch" is read
// as one decimal number.
//
// The decimal reading is not a semantic version order: 1.2.10 reads as 2.1
// and compares older than 1.2.9. Use IsNewerStrict for a correct order.
// The decimal is built from the parsed integers, so zero-padded parts lose
// their padding: 3.0.05 reads as 0.5 and 3.0.10 does not compare newer.
func IsNewer(remote, local Triple) bool {
	if remote.Major > local.Major {
		return true
	}
	if remote.Major != local.Major {
		return false
	}
	return minorPatchDecimal(remote) > minorPatchDecimal(local)
}

func minorPatchDecimal(t Triple) float64 {
	// Both parts are non-negative integers, so this always parses.
	value, _ := strconv.ParseFloat(strconv.Itoa(t.Minor)+"."+strconv.Itoa(t.Patch), 64)
	return value
}

// IsNewerStrict orders versions component by component.
func IsNewerStrict(remote, local Triple) bool {
	if remote.Major != local.Major {
		return remote.Major > local.Major
	}
	if remote.Minor != local.Minor {
		return remote.Minor > local.Minor
	}
	return remote.Patch > local.Patch
}

// Comparator returns IsNewerStrict when strict is set and IsNewer otherwise.
func Comparator(strict bool) func(remote, local Triple) bool {
	if strict {
		return IsNewerStrict
	}
	return IsNewer
}
