package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common daytask workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("daily_planning").
		Description("Plan the day from the current task list: pick the top priorities and tidy up what is left.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return userPrompt("Daily Planning Session", `Help me plan my day. Please:

1. Read my open tasks from the daytask://tasks/active resource
2. Read the counts from the daytask://stats resource

Based on this:
- Pick the 3 tasks I should focus on first
- Point out tasks whose priority or category looks wrong
- Suggest tasks that are vague enough to need rewording

Use task.edit to apply changes I agree with and task.toggle to mark finished work.`), nil
		})

	srv.Prompt("task_breakdown").
		Description("Break a large task into small tasks that fit in one day.").
		Argument("task_description", "Description of the task to break down", true).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			taskDesc := args["task_description"]
			if taskDesc == "" {
				taskDesc = "[Please describe the task you want to break down]"
			}

			return userPrompt("Task Breakdown Assistant", fmt.Sprintf(`Help me break down this task into smaller, actionable steps:

**Task:** %s

Please:
1. Split it into 3 to 7 steps that can each be done today
2. Give each step a short, action-oriented text
3. Suggest a priority (high, medium, low) and a category for each

Once I approve, add each step with the task.add tool.`, taskDesc)), nil
		})

	srv.Prompt("quick_capture").
		Description("Turn free-form notes into tasks.").
		Argument("content", "Notes to turn into tasks", true).
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			content := args["content"]
			if content == "" {
				content = "[Paste your notes here]"
			}

			return userPrompt("Quick Capture", fmt.Sprintf(`Turn these notes into tasks:

%s

For each task, choose a priority and one of the categories personal, work,
shopping, health, education, finance, home or travel. Keep anything that is
not an action in the notes field. Check auth.status first: without an
account only a few tasks can be added.`, content)), nil
		})

	return nil
}

func userPrompt(description, text string) *mcp.PromptResult {
	return &mcp.PromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role: string(mcp.RoleUser),
				Content: mcp.TextContent{
					Type: "text",
					Text: text,
				},
			},
		},
	}
}
