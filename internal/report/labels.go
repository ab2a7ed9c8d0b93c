// Package report turns predictions into text for people.
package report

import (
	"fmt"

	"github.com/talgya/stalk-market/internal/market"
)

const keycap = "⃣"

// Label is the display name of a pattern.
type Label struct {
	Pattern     int    `json:"pattern"` // -1 for Unknown
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Unknown labels a week whose previous pattern the player cannot recall.
var Unknown = Label{
	Pattern:     -1,
	Key:         "❔",
	Name:        "unknown",
	Description: "if you don't know or don't remember your previous pattern",
}

var labels = [market.PatternCount]Label{
	{Key: "0" + keycap, Description: "high, decreasing, high, decreasing, high (fluctuating)"},
	{Key: "1" + keycap, Description: "decreasing middle, high spike, random low"},
	{Key: "2" + keycap, Description: "consistently decreasing"},
	{Key: "3" + keycap, Description: "decreasing, spike, decreasing (small spike)"},
}

// LabelFor returns the label of p, or Unknown when p is not a pattern.
func LabelFor(p market.Pattern) Label {
	if !p.Valid() {
		return Unknown
	}
	l := labels[p]
	l.Pattern = int(p)
	l.Name = p.String()
	return l
}

// Labels lists every pattern label followed by Unknown.
func Labels() []Label {
	out := make([]Label, 0, market.PatternCount+1)
	for _, p := range market.Patterns {
		out = append(out, LabelFor(p))
	}
	return append(out, Unknown)
}

var days = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// PhaseName names a half-day phase, e.g. "Mon AM" for 0 and "Sat PM" for 11.
func PhaseName(phase int) string {
	if phase < 0 || phase >= market.Phases {
		return fmt.Sprintf("phase(%d)", phase)
	}
	half := "AM"
	if phase%2 == 1 {
		half = "PM"
	}
	return days[phase/2] + " " + half
}
