// Package decor holds the glyphs sprinkled through a 4:20 announcement.
package decor

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/codeGROOVE-dev/fourtwenty/pkg/dataset"
)

//go:embed decoration.txt
var defaultGlyphs string

// Rand is the subset of *math/rand/v2.Rand a Pool draws with.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
}

// Pool is an ordered set of single code point glyphs. It is never modified
// after loading.
type Pool struct {
	glyphs []rune
}

// Load reads a glyph file from disk.
func Load(path string) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dataset.ResourceLoadError{Resource: dataset.Decorations, Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck // read-only

	p, err := Parse(f)
	if err != nil {
		var rle *dataset.ResourceLoadError
		if errors.As(err, &rle) {
			rle.Path = path
		}
		return nil, err
	}
	return p, nil
}

// Parse builds a Pool from r. Each line is trimmed of surrounding whitespace,
// the lines are joined, and every code point of the result is one glyph.
func Parse(r io.Reader) (*Pool, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		b.WriteString(strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, &dataset.ResourceLoadError{Resource: dataset.Decorations, Err: fmt.Errorf("reading glyphs: %w", err)}
	}

	glyphs := []rune(b.String())
	if len(glyphs) == 0 {
		return nil, &dataset.ResourceLoadError{Resource: dataset.Decorations, Err: errors.New("no glyphs")}
	}
	return &Pool{glyphs: glyphs}, nil
}

// Default returns the glyphs built into the binary.
func Default() *Pool {
	p, err := Parse(strings.NewReader(defaultGlyphs))
	if err != nil {
		panic(fmt.Sprintf("embedded decoration file: %v", err))
	}
	return p
}

// Len is the number of glyphs in the pool.
func (p *Pool) Len() int { return len(p.glyphs) }

// Glyphs returns a copy of the pool in file order.
func (p *Pool) Glyphs() []rune { return slices.Clone(p.glyphs) }

// Draw returns the first n glyphs of a freshly shuffled copy of the pool, or
// the whole shuffled copy when the pool holds fewer than n.
func (p *Pool) Draw(rng Rand, n int) []rune {
	out := slices.Clone(p.glyphs)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	if n < len(out) {
		out = out[:max(n, 0)]
	}
	return out
}
