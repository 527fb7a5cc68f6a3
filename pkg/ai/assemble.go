package ai

import (
	"fmt"
	"strings"
)

// AssembleOptions controls prompt assembly.
type AssembleOptions struct {
	// OriginalCommand is the invocation that produced this prompt, used in
	// the callback instruction so an external agent can re-run it.
	OriginalCommand string
	// AnswersPath is where the callback instruction tells the agent to
	// write the answers JSON. Defaults to ".hypergen/answers.json".
	AnswersPath string
	// IncludeCallback adds the re-invocation instruction. Set for stdout
	// and command delivery; API delivery resolves in-process and omits it.
	IncludeCallback bool
}

// DefaultAnswersPath is used when AssembleOptions.AnswersPath is empty.
const DefaultAnswersPath = ".hypergen/answers.json"

// Assemble converts a populated collector into one self-contained prompt.
// Output is deterministic: given the same collector contents and options,
// the result is byte-identical. Entries appear in collection order.
func Assemble(c *Collector, opts AssembleOptions) string {
	answersPath := opts.AnswersPath
	if answersPath == "" {
		answersPath = DefaultAnswersPath
	}

	var b strings.Builder
	b.WriteString("You are resolving open questions for a code-generation recipe.\n")
	b.WriteString("Answer every question below. Answers become literal substitutions in generated files.\n")

	if globals := c.GlobalContexts(); len(globals) > 0 {
		b.WriteString("\n## Shared Context\n\n")
		for _, g := range globals {
			b.WriteString(g)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n## Questions\n")
	keys := make([]string, 0)
	for _, entry := range c.Entries() {
		keys = append(keys, entry.Key)
		fmt.Fprintf(&b, "\n### %s\n\n", entry.Key)
		if entry.SourceFile != "" {
			fmt.Fprintf(&b, "Source: %s\n", entry.SourceFile)
		}
		for _, ctx := range entry.Contexts {
			fmt.Fprintf(&b, "Context: %s\n", ctx)
		}
		fmt.Fprintf(&b, "Question: %s\n", entry.Prompt)
		if entry.OutputDescription != "" {
			fmt.Fprintf(&b, "Expected output: %s\n", entry.OutputDescription)
		}
	}

	b.WriteString("\n## Response Format\n\n")
	b.WriteString("Respond with exactly one JSON object. Its keys MUST be exactly:\n\n")
	for _, key := range keys {
		fmt.Fprintf(&b, "  - %s\n", key)
	}
	b.WriteString("\nEach value is the literal content to substitute for that key ")
	b.WriteString("(a string, or structured JSON when the expected output says so).\n")
	b.WriteString("Do not wrap the object in a code fence. Do not add keys. Do not omit keys.\n")

	if opts.IncludeCallback {
		b.WriteString("\n## Applying Your Answers\n\n")
		fmt.Fprintf(&b, "Write the JSON object to %s, then re-run:\n\n", answersPath)
		command := opts.OriginalCommand
		if command == "" {
			command = "hypergen run <recipe>"
		}
		fmt.Fprintf(&b, "  %s --answers %s\n", command, answersPath)
	}

	return b.String()
}

// assembleBlockPrompt builds the standalone prompt for a single entry,
// used by per-block command delivery.
func assembleBlockPrompt(globals []string, entry *Entry) string {
	var b strings.Builder
	for _, g := range globals {
		b.WriteString(g)
		b.WriteString("\n")
	}
	for _, ctx := range entry.Contexts {
		b.WriteString(ctx)
		b.WriteString("\n")
	}
	b.WriteString(entry.Prompt)
	b.WriteString("\n")
	if entry.OutputDescription != "" {
		fmt.Fprintf(&b, "\nOutput format: %s\n", entry.OutputDescription)
	}
	b.WriteString("\nRespond with the raw output only, no explanation, no code fence.\n")
	return b.String()
}
