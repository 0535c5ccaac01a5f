package geo

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/codeGROOVE-dev/fourtwenty/pkg/dataset"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/tzconvert"
)

// Gazetteer columns (0-indexed) in the GeoNames cities files.
const (
	colCityName    = 2
	colCountryCode = 8
	colAdmin1Code  = 10
	colTimezone    = 17
)

// Country table columns in countryInfo.txt.
const (
	colISO         = 0
	colCountryName = 4
)

// maxLine bounds a single gazetteer row; the alternate-names column of large
// cities runs to tens of kilobytes.
const maxLine = 1 << 20

// Option configures loading.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report dropped rows.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Load reads the gazetteer and country table from disk and builds an Index.
// citiesPath may point at the GeoNames zip archive or the extracted text file.
// Rows whose zone conv does not recognize are dropped.
func Load(citiesPath, countriesPath string, conv tzconvert.Converter, opts ...Option) (*Index, error) {
	cities, err := dataset.Open(dataset.Cities, citiesPath)
	if err != nil {
		return nil, err
	}
	defer cities.Close() //nolint:errcheck // read-only

	countries, err := dataset.Open(dataset.Countries, countriesPath)
	if err != nil {
		return nil, err
	}
	defer countries.Close() //nolint:errcheck // read-only

	return build(cities, countries, citiesPath, countriesPath, conv, opts)
}

// LoadReaders builds an Index from already-open sources.
func LoadReaders(cities, countries io.Reader, conv tzconvert.Converter, opts ...Option) (*Index, error) {
	return build(cities, countries, "", "", conv, opts)
}

func build(cities, countries io.Reader, citiesPath, countriesPath string, conv tzconvert.Converter, opts []Option) (*Index, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	idx := &Index{
		byZone:    make(map[string][]City),
		countries: make(map[string]Country),
	}
	if err := idx.readCountries(countries, countriesPath); err != nil {
		return nil, err
	}
	if err := idx.readCities(cities, citiesPath, conv, o.logger); err != nil {
		return nil, err
	}
	idx.finish()

	o.logger.Debug("gazetteer indexed",
		"cities", idx.cities,
		"zones", len(idx.zones),
		"countries", len(idx.countries),
		"dropped", idx.dropped)
	return idx, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	return scanner
}

func (idx *Index) readCities(r io.Reader, path string, conv tzconvert.Converter, logger *slog.Logger) error {
	dropped := make(map[string]int)
	scanner := newScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) <= colTimezone {
			return &dataset.ResourceLoadError{
				Resource: dataset.Cities,
				Path:     path,
				Line:     line,
				Err:      fmt.Errorf("%w: %d columns, want at least %d", dataset.ErrMalformed, len(fields), colTimezone+1),
			}
		}

		zone := fields[colTimezone]
		if !conv.Known(zone) {
			dropped[zone]++
			idx.dropped++
			continue
		}
		idx.add(City{
			Name:        fields[colCityName],
			CountryCode: fields[colCountryCode],
			Admin1Code:  fields[colAdmin1Code],
			Zone:        zone,
		})
	}
	if err := scanner.Err(); err != nil {
		return &dataset.ResourceLoadError{Resource: dataset.Cities, Path: path, Line: line + 1, Err: err}
	}
	if line == 0 {
		return &dataset.ResourceLoadError{Resource: dataset.Cities, Path: path, Err: fmt.Errorf("%w: file is empty", dataset.ErrMalformed)}
	}

	for zone, n := range dropped {
		logger.Debug("dropped cities in unrecognized zone", "zone", zone, "rows", n)
	}
	return nil
}

func (idx *Index) readCountries(r io.Reader, path string) error {
	scanner := newScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) <= colCountryName {
			return &dataset.ResourceLoadError{
				Resource: dataset.Countries,
				Path:     path,
				Line:     line,
				Err:      fmt.Errorf("%w: %d columns, want at least %d", dataset.ErrMalformed, len(fields), colCountryName+1),
			}
		}
		code := fields[colISO]
		// First row for a code wins.
		if _, seen := idx.countries[code]; seen {
			continue
		}
		idx.countries[code] = Country{Code: code, Name: fields[colCountryName]}
	}
	if err := scanner.Err(); err != nil {
		return &dataset.ResourceLoadError{Resource: dataset.Countries, Path: path, Line: line + 1, Err: err}
	}
	if len(idx.countries) == 0 {
		return &dataset.ResourceLoadError{Resource: dataset.Countries, Path: path, Err: fmt.Errorf("%w: no country rows", dataset.ErrMalformed)}
	}
	return nil
}
