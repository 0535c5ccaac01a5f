package tzmatch

import (
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/fourtwenty/pkg/geo"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/tzconvert"
)

// Place is the city chosen for a run.
type Place struct {
	City        string `json:"city"`
	CountryName string `json:"country_name"`
	CountryCode string `json:"country_code"`
	Admin1Code  string `json:"admin1_code"`
	Zone        string `json:"zone"`
}

// Selector picks a city somewhere it is 4:20 PM.
type Selector struct {
	index *geo.Index
	conv  tzconvert.Converter
	rng   Rand
}

// NewSelector returns a Selector over idx.
func NewSelector(idx *geo.Index, conv tzconvert.Converter, rng Rand) *Selector {
	return &Selector{index: idx, conv: conv, rng: rng}
}

// Select returns a place whose zone reads 4:20 PM at now. The boolean is false
// when no indexed zone matches, which is an ordinary outcome, not an error.
// Both the zone and the city within it are drawn uniformly.
func (s *Selector) Select(now time.Time, strict bool) (Place, bool, error) {
	zone, ok := FindMatchingZone(s.rng, s.conv, s.index.Zones(), now, strict)
	if !ok {
		return Place{}, false, nil
	}

	cities := s.index.Cities(zone)
	if len(cities) == 0 {
		// Zones() only lists zones with cities.
		return Place{}, false, fmt.Errorf("zone %s matched but has no cities", zone)
	}
	city := cities[s.rng.IntN(len(cities))]

	country, err := s.index.CountryName(city)
	if err != nil {
		return Place{}, false, err
	}

	return Place{
		City:        city.Name,
		CountryName: country,
		CountryCode: city.CountryCode,
		Admin1Code:  city.Admin1Code,
		Zone:        city.Zone,
	}, true, nil
}
