package ai

import (
	"strings"
	"testing"
)

func populatedCollector(t *testing.T) *Collector {
	t.Helper()
	c := NewCollector()
	c.AddGlobalContext("TypeScript project, strict mode")
	if err := c.AddEntry("description", []string{"package.json for a CLI"}, "Write a one-line description", "plain text, no quotes", "package.json.tpl"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddEntry("readme_intro", nil, "Write the README intro paragraph", "", "README.md.tpl"); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestAssembleIsDeterministic(t *testing.T) {
	opts := AssembleOptions{OriginalCommand: "hypergen run web.yml", IncludeCallback: true}
	first := Assemble(populatedCollector(t), opts)
	second := Assemble(populatedCollector(t), opts)
	if first != second {
		t.Error("Assemble output differs across identical inputs")
	}
}

func TestAssembleSections(t *testing.T) {
	prompt := Assemble(populatedCollector(t), AssembleOptions{
		OriginalCommand: "hypergen run web.yml --var name=shop",
		IncludeCallback: true,
	})

	for _, want := range []string{
		"## Shared Context",
		"TypeScript project, strict mode",
		"### description",
		"Source: package.json.tpl",
		"Context: package.json for a CLI",
		"Question: Write a one-line description",
		"Expected output: plain text, no quotes",
		"### readme_intro",
		"## Response Format",
		"  - description",
		"  - readme_intro",
		"## Applying Your Answers",
		"hypergen run web.yml --var name=shop --answers .hypergen/answers.json",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("assembled prompt missing %q\n---\n%s", want, prompt)
		}
	}

	// Questions appear in collection order.
	if strings.Index(prompt, "### description") > strings.Index(prompt, "### readme_intro") {
		t.Error("questions out of collection order")
	}
}

func TestAssembleOmitsCallbackForInProcessDelivery(t *testing.T) {
	prompt := Assemble(populatedCollector(t), AssembleOptions{})
	if strings.Contains(prompt, "## Applying Your Answers") {
		t.Error("callback section present without IncludeCallback")
	}
}

func TestAssembleBlockPrompt(t *testing.T) {
	entry := &Entry{
		Key:               "slug",
		Contexts:          []string{"URL-safe"},
		Prompt:            "Choose a slug",
		OutputDescription: "lowercase kebab-case",
	}
	prompt := assembleBlockPrompt([]string{"project: shop"}, entry)
	for _, want := range []string{"project: shop", "URL-safe", "Choose a slug", "Output format: lowercase kebab-case"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("block prompt missing %q", want)
		}
	}
}
