package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/svallory/hypergen/pkg/recipe"
)

// runInfo renders a recipe overview as terminal markdown.
func runInfo(cmd *cobra.Command, args []string) error {
	rc, err := recipe.LoadFile(args[0])
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", rc.Name)
	if rc.Version != "" {
		fmt.Fprintf(&b, "Version: `%s`\n\n", rc.Version)
	}
	if rc.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", rc.Description)
	}

	if len(rc.Variables) > 0 {
		b.WriteString("## Variables\n\n")
		b.WriteString("| Name | Type | Required | Default | Description |\n")
		b.WriteString("|------|------|----------|---------|-------------|\n")
		for _, name := range rc.VariableOrder() {
			spec := rc.Variables[name]
			typ := spec.Type
			if typ == "" {
				typ = "string"
			}
			def := ""
			if spec.Default != nil {
				def = fmt.Sprintf("`%v`", spec.Default)
			}
			required := ""
			if spec.Required {
				required = "yes"
			}
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s | %s |\n", name, typ, required, def, spec.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Steps\n\n")
	writeStepList(&b, rc.Steps, 0)

	out, err := glamour.Render(b.String(), "auto")
	if err != nil {
		// Fall back to the raw markdown when the terminal renderer fails.
		fmt.Print(b.String())
		return nil
	}
	fmt.Print(out)
	return nil
}

func writeStepList(b *strings.Builder, steps []recipe.Step, indent int) {
	pad := strings.Repeat("  ", indent)
	for _, step := range steps {
		name := step.Name
		if name == "" {
			name = "(unnamed)"
		}
		line := fmt.Sprintf("%s- **%s** (%s)", pad, name, step.Tool)
		if step.When != "" {
			line += fmt.Sprintf(" (when `%s`)", step.When)
		}
		b.WriteString(line + "\n")
		writeStepList(b, step.Steps, indent+1)
		writeStepList(b, step.Then, indent+1)
		writeStepList(b, step.Else, indent+1)
	}
}
