package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/svallory/hypergen/pkg/engine"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// printSummary renders the run outcome tree and the file report.
func printSummary(result *engine.ExecutionResult) {
	fmt.Println()
	printOutcomes(result.Steps, 0)
	fmt.Println()

	counts := fmt.Sprintf("%d steps: %d completed, %d skipped, %d failed",
		result.TotalSteps, result.Completed, result.Skipped, result.Failed)
	if result.Success {
		fmt.Printf("%s %s %s\n", okStyle.Render("✓"), result.Recipe, dimStyle.Render("("+counts+")"))
	} else {
		fmt.Printf("%s %s %s\n", failStyle.Render("✗"), result.Recipe, dimStyle.Render("("+counts+")"))
	}

	for _, f := range result.FilesCreated {
		fmt.Printf("  %s %s\n", okStyle.Render("+"), f)
	}
	for _, f := range result.FilesModified {
		fmt.Printf("  %s %s\n", okStyle.Render("~"), f)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  %s %s\n", skipStyle.Render("⚠"), w)
	}
	for _, e := range result.Errors {
		fmt.Printf("  %s %s\n", failStyle.Render("✗"), e)
	}
}

func printOutcomes(outcomes []*engine.StepOutcome, indent int) {
	for _, o := range outcomes {
		name := o.Name
		if name == "" {
			name = o.Tool
		}
		pad := strings.Repeat("  ", indent)
		label := pad + padName(name, 32-len(pad))

		switch o.Status {
		case engine.StatusCompleted:
			fmt.Printf("  %s %s %s\n", okStyle.Render("✓"), label, dimStyle.Render(o.Duration.Round(time.Millisecond).String()))
		case engine.StatusSkipped:
			fmt.Printf("  %s %s %s\n", skipStyle.Render("○"), label, skipStyle.Render(o.SkipReason))
		case engine.StatusFailed:
			fmt.Printf("  %s %s %s\n", failStyle.Render("✗"), label, failStyle.Render(o.Error))
		}
		printOutcomes(o.Children, indent+1)
	}
}

// padName pads to a fixed display width so durations line up even with
// wide runes in step names.
func padName(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
