package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/fourtwenty/pkg/display"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/geo"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/tzconvert"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/tzmatch"
)

func newZonesCmd(a *app) *cobra.Command {
	var histogram bool
	cmd := &cobra.Command{
		Use:   "zones",
		Short: "List the zones currently in the 4 PM hour",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			conv := tzconvert.NewSystem()
			idx, err := a.loadIndex(conv)
			if err != nil {
				return err
			}
			now := time.Now()
			display.ZoneTable(os.Stdout, zoneRows(idx, conv, now, a.cfg.Run.Strict))
			if histogram {
				display.HourHistogram(os.Stdout, hourCounts(idx, conv, now))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&histogram, "histogram", false, "also chart every zone by local hour")
	return cmd
}

// zoneRows lists every zone in the 4 PM hour, marking those that match under
// the requested mode.
func zoneRows(idx *geo.Index, conv tzconvert.Converter, now time.Time, strict bool) []display.ZoneRow {
	var rows []display.ZoneRow
	for _, zone := range tzmatch.Matching(conv, idx.Zones(), now, false) {
		local, err := conv.Local(zone, now)
		if err != nil {
			continue
		}
		rows = append(rows, display.ZoneRow{
			Zone:    zone,
			Local:   local,
			Cities:  len(idx.Cities(zone)),
			Matches: tzmatch.Matches(local, strict),
		})
	}
	return rows
}

func hourCounts(idx *geo.Index, conv tzconvert.Converter, now time.Time) [24]int {
	var counts [24]int
	for _, zone := range idx.Zones() {
		if local, err := conv.Local(zone, now); err == nil {
			counts[local.Hour()]++
		}
	}
	return counts
}
