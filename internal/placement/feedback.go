package placement

import (
	"fmt"
	"strings"
)

const skippedNotice = "Placement test skipped. You have been placed at the Beginner level by default."

// ComposeFeedback renders the deterministic summary stored with a result.
func ComposeFeedback(ev Evaluation, modules []Module) string {
	var b strings.Builder
	if ev.Skipped {
		b.WriteString(skippedNotice)
		b.WriteByte(' ')
	}

	scores := make([]string, 0, tierCount)
	for _, t := range Tiers() {
		scores = append(scores, fmt.Sprintf("%s: %s", t.Label(), ev.Tallies.Get(t).Fraction()))
	}
	b.WriteString(strings.Join(scores, ", "))
	b.WriteString(". ")

	fmt.Fprintf(&b, "Assigned level: %s. ", ev.Level.Label())
	b.WriteString(moduleSentence(modules))
	return b.String()
}

func moduleSentence(modules []Module) string {
	switch len(modules) {
	case 0:
		return "No modules are assigned for this level yet."
	case 1:
		return fmt.Sprintf("Start with %s.", modules[0].Title)
	default:
		return fmt.Sprintf("Start with %s - %s.", modules[0].Title, modules[len(modules)-1].Title)
	}
}
