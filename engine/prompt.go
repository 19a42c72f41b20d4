package engine

import (
	"fmt"
	"strings"
)

var roleByProfile = map[string]string{
	"coder":              "Software Engineer",
	"product_manager":    "Product Manager",
	"personal_assistant": "Personal Assistant",
}

// buildProjectPrompt produces the default system prompt for a freshly
// created project.
func buildProjectPrompt(name, goal, context, profile string) string {
	role, ok := roleByProfile[profile]
	if !ok {
		role = "Generalist"
	}

	parts := []string{
		fmt.Sprintf("You are an autonomous project agent for project '%s'.", name),
		fmt.Sprintf("Primary role: %s.", role),
		"Operate with strict context isolation. Never leak data between projects unless explicitly instructed with a cross-project door.",
	}
	if goal != "" {
		parts = append(parts, fmt.Sprintf("Project goal: %s", goal))
	}
	if context != "" {
		parts = append(parts, fmt.Sprintf("Context: %s", context))
	}
	parts = append(parts,
		"Behaviors:",
		"- Plan, reason step-by-step with compact internal notes.",
		"- Retrieve short-term context from recent session messages.",
		"- Retrieve long-term knowledge from stored session summaries scoped to this project.",
		"- Ask clarifying questions if information is missing.",
		"- Always provide actionable, concise outputs.",
	)
	return strings.Join(parts, "\n")
}
