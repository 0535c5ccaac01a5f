// Package dataset opens the static reference files the bot runs on (the GeoNames
// gazetteer, the country table and the decoration glyphs) and downloads fresh
// copies of the GeoNames files.
package dataset

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Resource names used in errors and logs.
const (
	Cities      = "cities"
	Countries   = "countries"
	Decorations = "decorations"
)

// ResourceLoadError reports a reference file that is missing or malformed.
// Line is 1-based and zero when the problem is not tied to a line.
type ResourceLoadError struct {
	Err      error
	Resource string
	Path     string
	Line     int
}

func (e *ResourceLoadError) Error() string {
	var b strings.Builder
	b.WriteString("loading ")
	b.WriteString(e.Resource)
	if e.Path != "" {
		b.WriteString(" from ")
		b.WriteString(e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ResourceLoadError) Unwrap() error { return e.Err }

// ErrMalformed marks a row that does not have the columns the loader needs.
var ErrMalformed = errors.New("malformed row")

// Open opens a reference file for reading. A .zip path is read through its first
// .txt entry, which is how GeoNames publishes cities15000.
func Open(resource, path string) (io.ReadCloser, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return openZipEntry(resource, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &ResourceLoadError{Resource: resource, Path: path, Err: err}
	}
	return f, nil
}

// zipEntry closes the entry and then the archive.
type zipEntry struct {
	io.ReadCloser
	archive *zip.ReadCloser
}

func (z *zipEntry) Close() error {
	err := z.ReadCloser.Close()
	if cerr := z.archive.Close(); err == nil {
		err = cerr
	}
	return err
}

func openZipEntry(resource, path string) (io.ReadCloser, error) {
	rz, err := zip.OpenReader(path)
	if err != nil {
		return nil, &ResourceLoadError{Resource: resource, Path: path, Err: fmt.Errorf("opening zip file: %w", err)}
	}
	for _, f := range rz.File {
		if !strings.EqualFold(filepath.Ext(f.Name), ".txt") || strings.HasPrefix(filepath.Base(f.Name), "readme") {
			continue
		}
		fi, err := f.Open()
		if err != nil {
			_ = rz.Close() //nolint:errcheck // already returning the open error
			return nil, &ResourceLoadError{Resource: resource, Path: path, Err: fmt.Errorf("opening %s in zip: %w", f.Name, err)}
		}
		return &zipEntry{ReadCloser: fi, archive: rz}, nil
	}
	_ = rz.Close() //nolint:errcheck // nothing useful to report past the missing entry
	return nil, &ResourceLoadError{Resource: resource, Path: path, Err: errors.New("zip archive has no .txt entry")}
}
