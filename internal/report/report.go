// Package report formats run results as markdown for terminal output.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/orchestrator"
)

// Markdown builds the run report.
func Markdown(status domain.RunStatus, summary orchestrator.FreeEnergySummary) string {
	var b strings.Builder

	b.WriteString("# Free Energy Report\n\n")
	fmt.Fprintf(&b, "- Schedule: `%s`\n", status.Schedule)
	fmt.Fprintf(&b, "- Temperature: %.2f K\n\n", status.Temperature)

	b.WriteString("## Equilibrium Sampling\n\n")
	b.WriteString("| End-state | Samples |\n|---|---|\n")
	for _, e := range []string{"0", "1"} {
		fmt.Fprintf(&b, "| %s | %d |\n", e, status.Equilibrium[e])
	}
	b.WriteString("\n")

	b.WriteString("## Estimates (kT)\n\n")
	b.WriteString("| Method | Value | Uncertainty | Samples |\n|---|---|---|---|\n")
	for _, d := range []domain.Direction{domain.DirectionForward, domain.DirectionReverse} {
		est, ok := summary.Directions[d]
		if !ok {
			continue
		}
		samples := 0
		if ds := status.Directions[d]; ds != nil {
			samples = ds.Particles
		}
		fmt.Fprintf(&b, "| EXP %s | %.4f | %.4f | %d |\n", d, est.Value, est.Uncertainty, samples)
	}
	if summary.Bidirectional != nil {
		total := 0
		for _, ds := range status.Directions {
			total += ds.Particles
		}
		fmt.Fprintf(&b, "| BAR | %.4f | %.4f | %d |\n",
			summary.Bidirectional.Value, summary.Bidirectional.Uncertainty, total)
	}

	failures := 0
	for _, ds := range status.Directions {
		failures += ds.Failures
	}
	if failures > 0 {
		fmt.Fprintf(&b, "\n**%d particle(s) failed and were dropped from the estimate.**\n", failures)
	}
	return b.String()
}

// NewRenderer returns a function that renders markdown for the terminal.
func NewRenderer() func(string) (string, error) {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}
