package loop

// ToolCall is one action requested by the agent.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is what the action produced.
type ToolResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Verdict is what the agent sees after verification. Feedback is set when
// Passed is false.
type Verdict struct {
	Passed   bool   `json:"passed"`
	Feedback string `json:"feedback,omitempty"`
}
