package render

import (
	"strings"
	"testing"
	"text/template"

	"github.com/svallory/hypergen/pkg/ai"
)

func TestRenderPlainContentPassesThrough(t *testing.T) {
	r := NewGoTemplateRenderer(nil)
	out, err := r.Render("no markers here", &Context{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "no markers here" {
		t.Errorf("out = %q", out)
	}
}

func TestRenderVariables(t *testing.T) {
	r := NewGoTemplateRenderer(nil)
	out, err := r.Render("package {{ .name | lower }}", &Context{Vars: map[string]any{"name": "Shop"}})
	if err != nil {
		t.Fatal(err)
	}
	if out != "package shop" {
		t.Errorf("out = %q", out)
	}
}

func TestRenderMissingVariableFails(t *testing.T) {
	r := NewGoTemplateRenderer(nil)
	if _, err := r.Render("{{ .missing }}", &Context{Vars: map[string]any{}}); err == nil {
		t.Error("expected error for unresolved variable reference")
	}
}

func TestCaseHelpers(t *testing.T) {
	r := NewGoTemplateRenderer(nil)
	cases := []struct{ tmpl, want string }{
		{`{{ pascalCase "user_profile" }}`, "UserProfile"},
		{`{{ camelCase "user-profile" }}`, "userProfile"},
		{`{{ snakeCase "UserProfile" }}`, "user_profile"},
		{`{{ kebabCase "userProfile" }}`, "user-profile"},
	}
	for _, tc := range cases {
		out, err := r.Render(tc.tmpl, &Context{Vars: map[string]any{}})
		if err != nil {
			t.Fatalf("%s: %v", tc.tmpl, err)
		}
		if out != tc.want {
			t.Errorf("%s = %q, want %q", tc.tmpl, out, tc.want)
		}
	}
}

func TestAIBlockCollectMode(t *testing.T) {
	r := NewGoTemplateRenderer(nil)
	collector := ai.NewCollector()
	tmpl := `{{ aiContext "react project" }}Intro: {{ ai "intro" "Write an intro" "one paragraph" }}`

	out, err := r.Render(tmpl, &Context{
		Vars:        map[string]any{},
		CollectMode: true,
		Collector:   collector,
		SourceFile:  "README.tpl",
	})
	if err != nil {
		t.Fatal(err)
	}
	// AI blocks render to an empty placeholder during collection.
	if out != "Intro: " {
		t.Errorf("out = %q", out)
	}

	entries := collector.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Key != "intro" || e.Prompt != "Write an intro" || e.OutputDescription != "one paragraph" {
		t.Errorf("entry = %+v", e)
	}
	if e.SourceFile != "README.tpl" {
		t.Errorf("SourceFile = %q", e.SourceFile)
	}
	if len(e.Contexts) != 1 || e.Contexts[0] != "react project" {
		t.Errorf("Contexts = %v, want the preceding aiContext", e.Contexts)
	}
}

func TestAIBlockAnswerMode(t *testing.T) {
	r := NewGoTemplateRenderer(nil)
	out, err := r.Render(`Intro: {{ ai "intro" "Write an intro" }}`, &Context{
		Vars:    map[string]any{},
		Answers: map[string]any{"intro": "Welcome to the project."},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Intro: Welcome to the project." {
		t.Errorf("out = %q", out)
	}
}

func TestAIBlockMissingAnswerFails(t *testing.T) {
	r := NewGoTemplateRenderer(nil)
	_, err := r.Render(`{{ ai "intro" "q" }}`, &Context{
		Vars:    map[string]any{},
		Answers: map[string]any{},
	})
	if err == nil || !strings.Contains(err.Error(), "intro") {
		t.Errorf("err = %v, want missing-answer error naming the key", err)
	}
}

func TestAIBlockDuplicateKeySurfacesBothSources(t *testing.T) {
	r := NewGoTemplateRenderer(nil)
	collector := ai.NewCollector()
	rctx := func(src string) *Context {
		return &Context{Vars: map[string]any{}, CollectMode: true, Collector: collector, SourceFile: src}
	}

	if _, err := r.Render(`{{ ai "k" "q" }}`, rctx("a.tpl")); err != nil {
		t.Fatal(err)
	}
	_, err := r.Render(`{{ ai "k" "q" }}`, rctx("b.tpl"))
	if err == nil || !strings.Contains(err.Error(), "a.tpl") || !strings.Contains(err.Error(), "b.tpl") {
		t.Errorf("err = %v, want both source files named", err)
	}
}

func TestOnReadyRegistersHelpers(t *testing.T) {
	r := NewGoTemplateRenderer(nil)
	r.OnReady(template.FuncMap{
		"shout": func(s string) string { return strings.ToUpper(s) + "!" },
	}, "project-config")

	out, err := r.Render(`{{ shout "hi" }}`, &Context{Vars: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if out != "HI!" {
		t.Errorf("out = %q", out)
	}
	if src, ok := r.HelperSource("shout"); !ok || src != "project-config" {
		t.Errorf("HelperSource = %q, %v", src, ok)
	}
}
