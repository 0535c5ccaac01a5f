// Package compose renders the 4:20 announcement for a place.
package compose

import (
	"fmt"

	"github.com/codeGROOVE-dev/fourtwenty/pkg/tzmatch"
)

// Glyphs is the number of decoration glyphs a message needs.
const Glyphs = 7

// InsufficientDecorationsError reports a glyph list too short to fill a layout.
type InsufficientDecorationsError struct {
	Have int
	Need int
}

func (e *InsufficientDecorationsError) Error() string {
	return fmt.Sprintf("need %d decoration glyphs, have %d", e.Need, e.Have)
}

// Composer formats announcements. Places in RegionCountry are named with their
// first-level subdivision ("Boston, MA") instead of a glyph.
type Composer struct {
	RegionCountry string
}

// Default uses the US region layout.
var Default = Composer{RegionCountry: "US"}

// Compose formats p with the default Composer.
func Compose(p tzmatch.Place, glyphs []rune) (string, error) {
	return Default.Compose(p, glyphs)
}

// Compose formats p, consuming glyphs by position. The region layout skips
// glyph 4; the default layout skips glyph 5. Glyph 6 always closes the line.
func (c Composer) Compose(p tzmatch.Place, glyphs []rune) (string, error) {
	if len(glyphs) < Glyphs {
		return "", &InsufficientDecorationsError{Have: len(glyphs), Need: Glyphs}
	}
	g := func(i int) string { return string(glyphs[i]) }

	if c.RegionCountry != "" && p.CountryCode == c.RegionCountry {
		return fmt.Sprintf("%s It's %s 4:20 %s in %s %s, %s %s %s %s",
			g(0), g(1), g(2), g(3), p.City, p.Admin1Code, g(5), p.CountryName, g(6)), nil
	}
	return fmt.Sprintf("%s It's %s 4:20 %s in %s %s %s %s %s",
		g(0), g(1), g(2), g(3), p.City, g(4), p.CountryName, g(6)), nil
}
