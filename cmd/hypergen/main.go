package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/svallory/hypergen/pkg/ai"
	"github.com/svallory/hypergen/pkg/config"
	"github.com/svallory/hypergen/pkg/engine"
	"github.com/svallory/hypergen/pkg/recipe"
	"github.com/svallory/hypergen/pkg/tools"
	"github.com/svallory/hypergen/pkg/vars"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hypergen",
	Short: "Template-driven code generation with recipes",
	Long:  "hypergen is a recipe engine for code generation: templates, shell steps, codemods, and AI-assisted variable resolution.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hypergen %s (%s)\n", version, commit)
	},
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [recipe.yml]",
	Short: "Validate a recipe file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	rc, issues := recipe.ValidateFile(args[0])

	var errs, warnings []*recipe.ValidationError
	for _, issue := range issues {
		if issue.Severity == "warning" {
			warnings = append(warnings, issue)
		} else {
			errs = append(errs, issue)
		}
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
		if w.Path != "" {
			fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
		}
	}
	if len(errs) > 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(errs))
		for i, e := range errs {
			fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(errs))
	}
	fmt.Printf("✓ %s is valid (%d steps)\n", rc.Name, len(rc.Steps))
	return nil
}

// --- run ---

var (
	runAsk        string
	runNoDefaults bool
	runAnswers    string
	runVars       []string
	runCwd        string
	runVerbose    bool
)

var runCmd = &cobra.Command{
	Use:   "run [recipe.yml]",
	Short: "Execute a recipe",
	Long: `Execute a recipe. Unresolved variables are filled according to --ask:
  me      prompt interactively (default)
  ai      ask the configured AI transport
  nobody  fail on any missing required variable

When templates contain ai blocks and no AI transport is configured, the
assembled prompt is printed and the process exits with code 2. Re-run with
--answers pointing at a JSON file of answers to finish the generation.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	recipePath := args[0]

	cwd := runCwd
	if cwd == "" {
		var err error
		if cwd, err = os.Getwd(); err != nil {
			return err
		}
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return err
	}

	modeStr := runAsk
	if modeStr == "" {
		modeStr = cfg.DefaultMode
	}
	mode, err := vars.ParseMode(modeStr)
	if err != nil {
		return err
	}

	provided := make(map[string]any, len(runVars))
	for _, v := range runVars {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid --var %q: expected key=value", v)
		}
		provided[parts[0]] = parts[1]
	}

	var answers map[string]any
	if runAnswers != "" {
		raw, err := os.ReadFile(runAnswers)
		if err != nil {
			return fmt.Errorf("read answers file: %w", err)
		}
		if err := json.Unmarshal(raw, &answers); err != nil {
			return fmt.Errorf("parse answers file %s: %w", runAnswers, err)
		}
	}

	transport, err := ai.ResolveTransport(cfg.AI)
	if err != nil {
		return err
	}

	log := zap.NewNop()
	if runVerbose {
		if log, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer log.Sync()
	}

	eng := engine.New(engine.Config{
		Transport: transport,
		Prompter:  &vars.ReadlinePrompter{},
		Runner:    &tools.ExecCommandRunner{Dir: cwd},
		Log:       log,
	})

	result, err := eng.Run(cmd.Context(), engine.RunOptions{
		RecipePath:      recipePath,
		Cwd:             cwd,
		Mode:            mode,
		NoDefaults:      runNoDefaults,
		Provided:        provided,
		Answers:         answers,
		OriginalCommand: originalCommand(),
		AnswersPath:     cfg.AnswersPath,
	})
	if err != nil {
		return err
	}

	if result.NeedsAnswers() {
		fmt.Println(result.PendingPrompt)
		os.Exit(2)
	}

	printSummary(result)
	if !result.Success {
		return fmt.Errorf("recipe %s failed", filepath.Base(recipePath))
	}
	return nil
}

// originalCommand reconstructs the invocation for the prompt's
// re-invocation footer, minus any stale --answers flag.
func originalCommand() string {
	args := make([]string, 0, len(os.Args))
	skip := false
	for i, a := range os.Args {
		if skip {
			skip = false
			continue
		}
		if a == "--answers" {
			skip = true
			continue
		}
		if strings.HasPrefix(a, "--answers=") {
			continue
		}
		if i == 0 {
			a = filepath.Base(a)
		}
		args = append(args, a)
	}
	return strings.Join(args, " ")
}

// --- info ---

var infoCmd = &cobra.Command{
	Use:   "info [recipe.yml]",
	Short: "Show a recipe's description, variables, and steps",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the recipe JSON Schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := recipe.GenerateJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runAsk, "ask", "", "who answers unresolved variables: me, ai, or nobody")
	runCmd.Flags().BoolVar(&runNoDefaults, "no-defaults", false, "ignore declared defaults; offer them as prompts instead")
	runCmd.Flags().StringVar(&runAnswers, "answers", "", "JSON file with answers for collected ai blocks")
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "set a variable (key=value, repeatable)")
	runCmd.Flags().StringVar(&runCwd, "cwd", "", "directory output paths resolve against")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "verbose engine logging")

	rootCmd.AddCommand(versionCmd, validateCmd, runCmd, infoCmd, schemaCmd)
}
