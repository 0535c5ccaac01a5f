// Package tzconvert turns an instant into local wall-clock time for a named zone.
package tzconvert

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // embedded zone rules
)

// Converter answers the two questions the matcher and the gazetteer loader ask
// about a zone identifier.
type Converter interface {
	// Known reports whether the identifier names a zone this converter can resolve.
	Known(zone string) bool
	// Local returns t as wall-clock time in zone.
	Local(zone string, t time.Time) (time.Time, error)
}

// System resolves zones through the Go time zone database (the host's zoneinfo
// or the embedded time/tzdata copy). Lookups are memoized, including misses.
type System struct {
	locs map[string]*time.Location
	bad  map[string]error
	mu   sync.RWMutex
}

// NewSystem returns a Converter backed by time.LoadLocation.
func NewSystem() *System {
	return &System{
		locs: make(map[string]*time.Location),
		bad:  make(map[string]error),
	}
}

func (s *System) location(zone string) (*time.Location, error) {
	s.mu.RLock()
	loc, ok := s.locs[zone]
	err := s.bad[zone]
	s.mu.RUnlock()
	if ok {
		return loc, nil
	}
	if err != nil {
		return nil, err
	}

	// "" and "Local" load successfully but are not real place names.
	if zone == "" || zone == "Local" {
		err = fmt.Errorf("zone %q is not a location identifier", zone)
	} else {
		loc, err = time.LoadLocation(zone)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.bad[zone] = err
		return nil, err
	}
	s.locs[zone] = loc
	return loc, nil
}

// Known reports whether zone loads from the time zone database.
func (s *System) Known(zone string) bool {
	_, err := s.location(zone)
	return err == nil
}

// Local converts t to wall-clock time in zone.
func (s *System) Local(zone string, t time.Time) (time.Time, error) {
	loc, err := s.location(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading zone %s: %w", zone, err)
	}
	return t.In(loc), nil
}

// Fixed is a Converter over constant UTC offsets, in seconds east of UTC.
// Zones missing from the map are unknown.
type Fixed map[string]int

// Known reports whether zone has an offset in the table.
func (f Fixed) Known(zone string) bool {
	_, ok := f[zone]
	return ok
}

// Local converts t using the zone's fixed offset.
func (f Fixed) Local(zone string, t time.Time) (time.Time, error) {
	offset, ok := f[zone]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown zone %q", zone)
	}
	return t.In(time.FixedZone(zone, offset)), nil
}

// UTCOffset formats the offset in effect for local as "UTC+5:30", "UTC-4" or "UTC".
func UTCOffset(local time.Time) string {
	_, offset := local.Zone()
	if offset == 0 {
		return "UTC"
	}
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	minutes := (offset % 3600) / 60
	if minutes == 0 {
		return fmt.Sprintf("UTC%s%d", sign, hours)
	}
	return fmt.Sprintf("UTC%s%d:%02d", sign, hours, minutes)
}
