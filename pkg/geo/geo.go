// Package geo indexes the GeoNames gazetteer by time zone.
//
// An Index is built once from the cities file and the country table and is
// read-only afterwards, so it can be shared freely.
package geo

import (
	"fmt"
	"slices"
)

// City is one gazetteer row.
type City struct {
	Name        string
	CountryCode string
	Admin1Code  string // first-level subdivision, e.g. "NY"
	Zone        string // IANA zone identifier
}

// Country is one row of the country table.
type Country struct {
	Code string
	Name string
}

// CountryNotFoundError reports a city whose country code has no row in the
// country table. The two GeoNames files are published together, so this means
// the reference data is corrupt or mismatched.
type CountryNotFoundError struct {
	Code string
	City string
}

func (e *CountryNotFoundError) Error() string {
	if e.City == "" {
		return fmt.Sprintf("country code %q not found in country table", e.Code)
	}
	return fmt.Sprintf("country code %q of city %q not found in country table", e.Code, e.City)
}

// Index maps zone identifiers to the cities observed in them.
type Index struct {
	byZone    map[string][]City
	countries map[string]Country
	zones     []string
	cities    int
	dropped   int
}

// Zones returns the zones that have at least one city, sorted.
// The slice is shared; callers must not modify it.
func (idx *Index) Zones() []string {
	return idx.zones
}

// Cities returns the cities in zone in gazetteer order.
// The slice is shared; callers must not modify it.
func (idx *Index) Cities(zone string) []City {
	return idx.byZone[zone]
}

// Country looks up a country by ISO code.
func (idx *Index) Country(code string) (Country, bool) {
	c, ok := idx.countries[code]
	return c, ok
}

// CountryName resolves the display name for city's country.
func (idx *Index) CountryName(city City) (string, error) {
	c, ok := idx.countries[city.CountryCode]
	if !ok || c.Name == "" {
		return "", &CountryNotFoundError{Code: city.CountryCode, City: city.Name}
	}
	return c.Name, nil
}

// Len is the number of indexed cities.
func (idx *Index) Len() int { return idx.cities }

// Dropped is the number of gazetteer rows skipped for an unrecognized zone.
func (idx *Index) Dropped() int { return idx.dropped }

// Verify checks that every indexed city resolves to a named country.
// It reports the first offending city in zone order.
func (idx *Index) Verify() error {
	for _, zone := range idx.zones {
		for _, city := range idx.byZone[zone] {
			if _, err := idx.CountryName(city); err != nil {
				return err
			}
		}
	}
	return nil
}

func (idx *Index) add(city City) {
	if _, ok := idx.byZone[city.Zone]; !ok {
		idx.zones = append(idx.zones, city.Zone)
	}
	idx.byZone[city.Zone] = append(idx.byZone[city.Zone], city)
	idx.cities++
}

func (idx *Index) finish() {
	slices.Sort(idx.zones)
}
