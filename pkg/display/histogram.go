package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const barWidth = 40

// HourHistogram draws how many zones sit in each local hour. The 4 PM row is
// highlighted.
func HourHistogram(w io.Writer, counts [24]int) {
	peak := 0
	for _, n := range counts {
		peak = max(peak, n)
	}
	fmt.Fprintln(w, "🕓 Zones by local hour")
	fmt.Fprintln(w, strings.Repeat("─", barWidth+14))
	if peak == 0 {
		fmt.Fprintln(w, "no zones")
		return
	}

	for hour, n := range counts {
		c := color.New(color.FgHiBlack)
		if hour == 16 {
			c = color.New(color.FgGreen, color.Bold)
		}
		width := n * barWidth / peak
		if n > 0 && width == 0 {
			width = 1
		}
		c.Fprintf(w, "%02d:00 %s", hour, strings.Repeat("█", width))
		fmt.Fprintf(w, " %d\n", n)
	}
}
