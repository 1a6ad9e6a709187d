package diag

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)
)

// Render formats problems for a terminal, one per line, sorted.
func Render(problems []Problem) string {
	if len(problems) == 0 {
		return successStyle.Render("no problems")
	}

	var b strings.Builder
	var errs, warns int
	for _, p := range Sorted(problems) {
		label := warningStyle.Render("warning")
		if p.Severity == SeverityError {
			label = errorStyle.Render("error")
			errs++
		} else {
			warns++
		}

		loc := p.Unit
		if p.Class != "" {
			loc = strings.TrimPrefix(loc+" "+p.Class, " ")
			if p.Member != "" {
				loc += "." + p.Member
			}
		}
		if loc != "" {
			b.WriteString(locationStyle.Render(loc))
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%s [%s] %s\n", label, p.Kind, p.Message)
	}
	fmt.Fprintf(&b, "%d error(s), %d warning(s)", errs, warns)
	return b.String()
}
