package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.Mode != "stdout" {
		t.Errorf("AI.Mode = %q, want stdout", cfg.AI.Mode)
	}
	if cfg.DefaultMode != "me" {
		t.Errorf("DefaultMode = %q, want me", cfg.DefaultMode)
	}
	if cfg.AnswersPath != ".hypergen/answers.json" {
		t.Errorf("AnswersPath = %q", cfg.AnswersPath)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	doc := `ai:
  mode: command
  command:
    template: "claude -p {prompt}"
    payload: per-block
default_mode: nobody
`
	if err := os.WriteFile(filepath.Join(dir, "hypergen.yml"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.Mode != "command" {
		t.Errorf("AI.Mode = %q", cfg.AI.Mode)
	}
	if cfg.AI.Command.Template != "claude -p {prompt}" {
		t.Errorf("Command.Template = %q", cfg.AI.Command.Template)
	}
	if cfg.AI.Command.Payload != "per-block" {
		t.Errorf("Command.Payload = %q", cfg.AI.Command.Payload)
	}
	if cfg.DefaultMode != "nobody" {
		t.Errorf("DefaultMode = %q", cfg.DefaultMode)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HYPERGEN_AI_MODE", "api")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.Mode != "api" {
		t.Errorf("AI.Mode = %q, want env override api", cfg.AI.Mode)
	}
}

func TestEnvOverridesNestedAIKeys(t *testing.T) {
	t.Setenv("HYPERGEN_AI_MODE", "command")
	t.Setenv("HYPERGEN_AI_COMMAND_TEMPLATE", "claude -p {prompt}")
	t.Setenv("HYPERGEN_AI_COMMAND_PAYLOAD", "per-block")
	t.Setenv("HYPERGEN_AI_API_MODEL", "gpt-4o")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.Command.Template != "claude -p {prompt}" {
		t.Errorf("Command.Template = %q", cfg.AI.Command.Template)
	}
	if cfg.AI.Command.Payload != "per-block" {
		t.Errorf("Command.Payload = %q", cfg.AI.Command.Payload)
	}
	if cfg.AI.API.Model != "gpt-4o" {
		t.Errorf("API.Model = %q", cfg.AI.API.Model)
	}
}
