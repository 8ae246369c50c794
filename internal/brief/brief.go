// Package brief renders the human-readable summary of one decision cycle.
package brief

import (
	"strings"

	"github.com/sawpanic/corepipe/internal/action"
)

// MaxReasons is the number of reasons printed per line
const MaxReasons = 3

// SectionOrder is the fixed order of sections in the brief
var SectionOrder = []action.Action{action.Exit, action.MoveStop, action.Enter, action.Hold}

// Render groups decisions by action in SectionOrder. Empty sections are
// omitted together with their header. Output is deterministic for a given
// input: decisions keep their input order within a section.
func Render(asOf string, decisions []action.Decision) string {
	groups := make(map[action.Action][]action.Decision, len(SectionOrder))
	for _, d := range decisions {
		groups[d.Action] = append(groups[d.Action], d)
	}

	var b strings.Builder
	b.WriteString("# CORE BRIEF ")
	b.WriteString(asOf)
	b.WriteString("\n")

	for _, a := range SectionOrder {
		group := groups[a]
		if len(group) == 0 {
			continue
		}
		b.WriteString("\n## ")
		b.WriteString(string(a))
		b.WriteString("\n")
		for _, d := range group {
			writeLine(&b, d)
		}
	}
	return b.String()
}

func writeLine(b *strings.Builder, d action.Decision) {
	b.WriteString("- [")
	b.WriteString(string(d.Action))
	b.WriteString("] ")
	b.WriteString(d.Symbol)
	reasons := d.Reasons
	if len(reasons) > MaxReasons {
		reasons = reasons[:MaxReasons]
	}
	if len(reasons) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(reasons, ", "))
	}
	b.WriteString("\n")
}
