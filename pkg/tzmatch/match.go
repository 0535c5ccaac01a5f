// Package tzmatch finds the zones where it is currently 4:20 PM and picks a
// city in one of them.
package tzmatch

import (
	"slices"
	"time"

	"github.com/codeGROOVE-dev/fourtwenty/pkg/tzconvert"
)

// Local wall-clock target.
const (
	TargetHour   = 16
	TargetMinute = 20
)

// Rand is the subset of *math/rand/v2.Rand the selection code uses.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
	IntN(n int) int
}

// Matches reports whether local reads 4:20 PM. Loose mode accepts any minute of
// the 4 PM hour. Seconds are never checked.
func Matches(local time.Time, strict bool) bool {
	if local.Hour() != TargetHour {
		return false
	}
	return !strict || local.Minute() == TargetMinute
}

// FindMatchingZone returns a zone, chosen uniformly among those where now reads
// 4:20 PM, or false when none does. zones is not modified.
//
// The whole candidate list is permuted before scanning, so taking the first hit
// is a uniform choice among every matching zone.
func FindMatchingZone(rng Rand, conv tzconvert.Converter, zones []string, now time.Time, strict bool) (string, bool) {
	order := slices.Clone(zones)
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	for _, zone := range order {
		local, err := conv.Local(zone, now)
		if err != nil {
			continue
		}
		if Matches(local, strict) {
			return zone, true
		}
	}
	return "", false
}

// Matching returns every zone where now reads 4:20 PM, in input order.
func Matching(conv tzconvert.Converter, zones []string, now time.Time, strict bool) []string {
	var out []string
	for _, zone := range zones {
		local, err := conv.Local(zone, now)
		if err != nil {
			continue
		}
		if Matches(local, strict) {
			out = append(out, zone)
		}
	}
	return out
}
