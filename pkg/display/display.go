// Package display renders run results and zone listings for the terminal.
package display

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/codeGROOVE-dev/fourtwenty/pkg/fourtwenty"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/tzconvert"
)

var (
	label = color.New(color.FgHiBlack)
	green = color.New(color.FgGreen, color.Bold)
	muted = color.New(color.FgYellow)
)

// PrintResult writes a short human summary of a run.
func PrintResult(w io.Writer, res fourtwenty.Result) {
	if !res.Matched {
		muted.Fprintf(w, "🕓 Nowhere reads 4:20 at %s UTC.\n", res.At.UTC().Format("15:04"))
		return
	}

	p := res.Place
	row := func(k, v string) {
		if v == "" {
			return
		}
		label.Fprintf(w, "%-9s", k)
		fmt.Fprintln(w, v)
	}
	row("City", p.City)
	row("Region", p.Admin1Code)
	row("Country", fmt.Sprintf("%s (%s)", p.CountryName, p.CountryCode))
	if !res.Local.IsZero() {
		row("Zone", fmt.Sprintf("%s, %s %s", p.Zone, res.Local.Format("15:04"), tzconvert.UTCOffset(res.Local)))
	} else {
		row("Zone", p.Zone)
	}
	row("Image", res.ImagePath)
	row("Alt text", res.AltText)
	if res.Status != nil {
		row("Posted", res.Status.URL)
	}
	fmt.Fprintln(w)
	green.Fprintln(w, res.Message)
}

// ZoneRow is one line of the zone table.
type ZoneRow struct {
	Zone    string
	Local   time.Time
	Cities  int
	Matches bool // reads 4:20 under the requested mode
}

// ZoneTable renders rows as a table.
func ZoneTable(w io.Writer, rows []ZoneRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Zone", "Local", "Offset", "Cities", "4:20"})
	for _, r := range rows {
		mark := ""
		if r.Matches {
			mark = green.Sprint("✓")
		}
		t.AppendRow(table.Row{r.Zone, r.Local.Format("15:04"), tzconvert.UTCOffset(r.Local), r.Cities, mark})
	}
	t.AppendFooter(table.Row{"", "", "", "", fmt.Sprintf("%d zones", len(rows))})
	t.Render()
}
