package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/talgya/stalk-market/internal/market"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Render writes pred as a pattern summary followed by a per-phase range
// table of the patterns still plausible.
func Render(w io.Writer, pred market.Prediction) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", titleStyle.Render(fmt.Sprintf("Buy price %d", pred.Buy)))
	if n := pred.Observed.Known(); n > 0 {
		fmt.Fprintf(&b, "%s\n", mutedStyle.Render(fmt.Sprintf("%d observed: %s", n, observedLine(pred.Observed))))
	}
	b.WriteString("\n")

	var plausible []market.PatternPrediction
	pruned := 0
	for _, pp := range pred.Patterns {
		pruned += pp.Pruned
		l := LabelFor(pp.Pattern)
		if !pp.Plausible() {
			fmt.Fprintf(&b, "%s  %-12s %s\n", l.Key, l.Name, mutedStyle.Render("ruled out"))
			continue
		}
		plausible = append(plausible, pp)
		fmt.Fprintf(&b, "%s  %-12s %s of %s combinations, %d..%d  %s\n",
			l.Key, l.Name,
			humanize.Comma(int64(len(pp.Possible))),
			humanize.Comma(int64(len(pp.Possible)+pp.Pruned)),
			pp.Forecast.Guarantee.Min, pp.Forecast.Guarantee.Max,
			mutedStyle.Render(l.Description),
		)
	}

	if len(plausible) == 0 {
		b.WriteString("\nNo pattern matches these prices.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("\n")
	b.WriteString(rangeTable(plausible).String())
	b.WriteString("\n")
	if pruned > 0 {
		fmt.Fprintf(&b, "%s\n", mutedStyle.Render(fmt.Sprintf("%s combinations ruled out", humanize.Comma(int64(pruned)))))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func rangeTable(plausible []market.PatternPrediction) *table.Table {
	headers := []string{"Phase"}
	for _, pp := range plausible {
		headers = append(headers, LabelFor(pp.Pattern).Name)
	}

	rows := make([][]string, market.Phases)
	for phase := range rows {
		row := []string{PhaseName(phase)}
		for _, pp := range plausible {
			f := pp.Forecast.Phases[phase]
			row = append(row, fmt.Sprintf("%d-%d", f.Lower, f.Upper))
		}
		rows[phase] = row
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func observedLine(o market.Observed) string {
	var parts []string
	for i, p := range o {
		if p == 0 {
			continue
		}
		parts = append(parts, PhaseName(i)+" "+strconv.Itoa(p))
	}
	return strings.Join(parts, ", ")
}
