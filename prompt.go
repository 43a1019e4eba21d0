package reprompt

import (
	"fmt"
	"strings"
)

// System prompts sent to the model by the proxy.
const (
	ChatSystemPrompt = "You are a helpful assistant. Respond to user prompts naturally."

	ImprovementSystemPrompt = `You are a prompt engineering expert specializing in prompt structure optimization. Analyze the user's original prompt and restructure it into a systematic format that produces better AI results.

Structure the improved prompt with exactly these section headers, in this order:
Task: a clear, specific instruction of what to generate
Rules: constraints and guidelines that shape the output
Examples: sample outputs or reference points that anchor the style

Reply with a single JSON object and nothing else.`
)

// Prompt is the structured user message for an improvement call.
// Render lays it out the same way for every request.
type Prompt struct {
	Task        string   // Required: what the model should do
	Input       string   // Required: the user's original prompt
	Feedback    string   // Required: what the user disliked about the result
	Schema      string   // Required: JSON schema for the response
	Constraints []string // Rules the response must follow
}

// Render converts the structured prompt to a string for the model.
func (p *Prompt) Render() string {
	var sections []string

	// Task is always first
	if p.Task != "" {
		sections = append(sections, "Task: "+p.Task)
	}

	if p.Input != "" {
		sections = append(sections, fmt.Sprintf("Original prompt: %q", p.Input))
	}

	if p.Feedback != "" {
		sections = append(sections, fmt.Sprintf("User feedback: %q", p.Feedback))
	}

	if p.Schema != "" {
		sections = append(sections, "Return JSON:\n"+p.Schema)
	}

	// Constraints - always last
	if len(p.Constraints) > 0 {
		con := "Constraints:\n"
		for _, c := range p.Constraints {
			con += "- " + c + "\n"
		}
		sections = append(sections, strings.TrimSpace(con))
	}

	return strings.Join(sections, "\n\n")
}

// Validate checks if the prompt has required fields.
func (p *Prompt) Validate() error {
	if p.Task == "" {
		return fmt.Errorf("prompt missing required Task field")
	}
	if p.Input == "" || p.Feedback == "" {
		return fmt.Errorf("prompt missing required Input or Feedback field")
	}
	if p.Schema == "" {
		return fmt.Errorf("prompt missing required Schema field")
	}
	return nil
}

// NewImprovementPrompt builds the user message for req.
func NewImprovementPrompt(req ImprovementRequest) *Prompt {
	req = req.Normalized()
	return &Prompt{
		Task:     "Restructure the original prompt using the Task/Rules/Examples framework, addressing the user's feedback.",
		Input:    req.OriginalPrompt,
		Feedback: req.UserFeedback,
		Schema:   ImprovementSchema(),
		Constraints: []string{
			"improvedPrompt must contain the headers Task:, Rules: and Examples:",
			"mapping must have an entry for every sentence of the original prompt, quoting it exactly as originalSentence",
			"each mapping entry must list at least one improved section",
			"explanations must have exactly one entry each for Task, Rules and Examples",
			"each tooltip is 2-3 plain sentences explaining why the section helps",
		},
	}
}

// ImprovementMessages returns the full conversation for an improvement call.
func ImprovementMessages(req ImprovementRequest) []Message {
	return []Message{
		{Role: RoleSystem, Content: ImprovementSystemPrompt},
		{Role: RoleUser, Content: NewImprovementPrompt(req).Render()},
	}
}

// ChatMessages returns the full conversation for a chat call.
func ChatMessages(prompt string) []Message {
	return []Message{
		{Role: RoleSystem, Content: ChatSystemPrompt},
		{Role: RoleUser, Content: prompt},
	}
}
