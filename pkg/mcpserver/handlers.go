package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/svallory/hypergen/pkg/engine"
	"github.com/svallory/hypergen/pkg/recipe"
	"github.com/svallory/hypergen/pkg/vars"
)

// HandleValidate implements the hypergen/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	rc, issues := recipe.ValidateFile(path)
	if recipe.HasErrors(issues) {
		return errorResult(formatErrors(issues)), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid (%d steps)", rc.Name, len(rc.Steps))), nil
}

// HandleSchema implements the hypergen/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := recipe.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleRun implements the hypergen/run MCP tool. Runs are always
// non-interactive: variable resolution uses nobody mode, and collected AI
// blocks without answers come back as the assembled prompt so the agent
// can answer them and call again.
func HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	cwd, _ := args["cwd"].(string)
	if cwd == "" {
		cwd = filepath.Dir(path)
	}

	provided, _ := args["vars"].(map[string]any)
	answers, _ := args["answers"].(map[string]any)

	eng := engine.New(engine.Config{})
	result, err := eng.Run(ctx, engine.RunOptions{
		RecipePath: path,
		Cwd:        cwd,
		Mode:       vars.ModeNobody,
		Provided:   provided,
		Answers:    answers,
	})
	if err != nil {
		return errorResult(err.Error()), nil
	}

	if result.NeedsAnswers() {
		response := map[string]any{
			"status":      "needs_answers",
			"prompt":      result.PendingPrompt,
			"answer_keys": result.AnswerKeys,
		}
		data, _ := json.MarshalIndent(response, "", "  ")
		return textResult(string(data)), nil
	}

	response := map[string]any{
		"run_id":    result.RunID,
		"recipe":    result.Recipe,
		"success":   result.Success,
		"completed": result.Completed,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
		"duration":  result.Duration.String(),
	}
	if len(result.FilesCreated) > 0 {
		response["files_created"] = result.FilesCreated
	}
	if len(result.FilesModified) > 0 {
		response["files_modified"] = result.FilesModified
	}
	if len(result.Errors) > 0 {
		response["errors"] = result.Errors
	}

	data, _ := json.MarshalIndent(response, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: !result.Success,
	}, nil
}

func formatErrors(issues []*recipe.ValidationError) string {
	var msgs []string
	for _, issue := range issues {
		if issue.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", issue.Phase, issue.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
