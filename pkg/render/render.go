// Package render evaluates Go text/template content against resolved
// variables and implements the two-pass AI block protocol at the template
// function level.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"unicode"

	"github.com/svallory/hypergen/pkg/ai"
)

// Context carries per-render state. The same template is rendered up to
// twice: once with CollectMode set to gather AI blocks, and once with
// Answers populated to substitute them.
type Context struct {
	Vars        map[string]any
	CollectMode bool
	Answers     map[string]any
	Collector   *ai.Collector
	// SourceFile labels AI entries for duplicate-key diagnostics. Empty for
	// inline template content.
	SourceFile string
}

// Renderer is the template evaluation boundary. The engine and tools depend
// on this interface so tests can substitute a recording fake.
type Renderer interface {
	Render(tmpl string, rctx *Context) (string, error)
}

// GoTemplateRenderer renders with text/template, missingkey=error.
type GoTemplateRenderer struct {
	mu      sync.RWMutex
	extra   template.FuncMap
	sources map[string]string
}

// NewGoTemplateRenderer creates a renderer. extra adds project-registered
// helper functions on top of the built-in set and may be nil.
func NewGoTemplateRenderer(extra template.FuncMap) *GoTemplateRenderer {
	r := &GoTemplateRenderer{extra: template.FuncMap{}, sources: map[string]string{}}
	r.OnReady(extra, "init")
	return r
}

// OnReady merges helper functions registered by a lower layer (project
// config, plugins) once they become available. Later sources shadow
// earlier ones; the source label is kept for diagnostics.
func (g *GoTemplateRenderer) OnReady(helpers template.FuncMap, sourceLabel string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, fn := range helpers {
		g.extra[name] = fn
		g.sources[name] = sourceLabel
	}
}

// HelperSource reports which source registered a helper.
func (g *GoTemplateRenderer) HelperSource(name string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	src, ok := g.sources[name]
	return src, ok
}

// Render parses and executes tmpl against rctx.Vars. Content without any
// template markers is returned as-is.
func (g *GoTemplateRenderer) Render(tmpl string, rctx *Context) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	funcs := template.FuncMap{}
	for name, fn := range baseFuncMap {
		funcs[name] = fn
	}
	g.mu.RLock()
	for name, fn := range g.extra {
		funcs[name] = fn
	}
	g.mu.RUnlock()
	// ai and aiContext close over the render context; aiContext lines apply
	// to every ai block that follows them in the same template.
	var localContexts []string
	funcs["aiContext"] = func(text string) (string, error) {
		if rctx.CollectMode {
			localContexts = append(localContexts, text)
		}
		return "", nil
	}
	funcs["ai"] = func(key, prompt string, extras ...string) (string, error) {
		if rctx.CollectMode {
			if rctx.Collector == nil {
				return "", fmt.Errorf("ai %q: no collector attached to render context", key)
			}
			outputDesc := ""
			if len(extras) > 0 {
				outputDesc = extras[0]
			}
			contexts := append([]string(nil), localContexts...)
			if len(extras) > 1 {
				contexts = append(contexts, extras[1:]...)
			}
			if err := rctx.Collector.AddEntry(key, contexts, prompt, outputDesc, rctx.SourceFile); err != nil {
				return "", err
			}
			return "", nil
		}
		answer, ok := rctx.Answers[key]
		if !ok {
			return "", fmt.Errorf("ai %q: no answer available for this key", key)
		}
		return fmt.Sprint(answer), nil
	}

	t, err := template.New("render").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, rctx.Vars); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// baseFuncMap supplements the built-in Go template functions with string
// helpers and the case conversions code generation templates lean on.
var baseFuncMap = template.FuncMap{
	"hasPrefix":  strings.HasPrefix,
	"hasSuffix":  strings.HasSuffix,
	"contains":   strings.Contains,
	"lower":      strings.ToLower,
	"upper":      strings.ToUpper,
	"split":      strings.Split,
	"join":       strings.Join,
	"replace":    strings.ReplaceAll,
	"trim":       strings.TrimSpace,
	"trimPrefix": strings.TrimPrefix,
	"trimSuffix": strings.TrimSuffix,
	"list":       func(args ...string) []string { return args },
	"has": func(item string, list []string) bool {
		for _, v := range list {
			if v == item {
				return true
			}
		}
		return false
	},
	"camelCase":  camelCase,
	"pascalCase": pascalCase,
	"snakeCase":  func(s string) string { return strings.Join(words(s), "_") },
	"kebabCase":  func(s string) string { return strings.Join(words(s), "-") },
}

// words splits an identifier on case boundaries and separators, lowercased.
func words(s string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	var prev rune
	for _, r := range s {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
		prev = r
	}
	flush()
	return out
}

func pascalCase(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		b.WriteString(strings.ToUpper(w[:1]) + w[1:])
	}
	return b.String()
}

func camelCase(s string) string {
	p := pascalCase(s)
	if p == "" {
		return ""
	}
	return strings.ToLower(p[:1]) + p[1:]
}
