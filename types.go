package reprompt

import (
	"encoding/json"
	"strings"
)

// Section names one of the three structural blocks of an improved prompt.
type Section string

// Canonical section names.
const (
	SectionTask     Section = "Task"
	SectionRules    Section = "Rules"
	SectionExamples Section = "Examples"
)

// Sections returns the canonical section set in canonical order.
// Producers may emit explanations in any order; only the set is enforced.
func Sections() []Section {
	return []Section{SectionTask, SectionRules, SectionExamples}
}

// ImprovementRequest is the payload sent to the proxy's improve route.
type ImprovementRequest struct {
	OriginalPrompt string `json:"originalPrompt"`
	UserFeedback   string `json:"userFeedback"`
}

// Normalized returns a copy with both fields trimmed.
func (r ImprovementRequest) Normalized() ImprovementRequest {
	return ImprovementRequest{
		OriginalPrompt: strings.TrimSpace(r.OriginalPrompt),
		UserFeedback:   strings.TrimSpace(r.UserFeedback),
	}
}

// Validate reports a MISSING_FIELDS error when either field is blank.
func (r ImprovementRequest) Validate() error {
	if strings.TrimSpace(r.OriginalPrompt) == "" {
		return &Error{Code: CodeMissingFields, Details: "original prompt is required"}
	}
	if strings.TrimSpace(r.UserFeedback) == "" {
		return &Error{Code: CodeMissingFields, Details: "user feedback is required"}
	}
	return nil
}

// ImprovementResponse is the validated rewrite returned by the proxy.
type ImprovementResponse struct {
	ImprovedPrompt string             `json:"improvedPrompt" desc:"The rewritten prompt using Task:, Rules: and Examples: sections"`
	Mapping        []MappingEntry     `json:"mapping" desc:"Which improved sections each original sentence influenced"`
	Explanations   []ExplanationEntry `json:"explanations" desc:"Exactly one tooltip for each of Task, Rules and Examples"`
}

// MappingEntry links a fragment of the original prompt to the sections it shaped.
type MappingEntry struct {
	OriginalSentence string   `json:"originalSentence"`
	ImprovedSections []string `json:"improvedSections"`
}

// ExplanationEntry is the tooltip shown next to one section.
type ExplanationEntry struct {
	Section Section `json:"section"`
	Tooltip string  `json:"tooltip"`
}

// Envelope is the outer wrapper around every proxy response.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *EnvelopeError  `json:"error,omitempty"`
}

// EnvelopeError is the failure half of an Envelope.
type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ChatRequest is the payload sent to the proxy's chat route.
type ChatRequest struct {
	Prompt string `json:"prompt"`
}

// ChatReply is the data carried by a successful chat envelope.
type ChatReply struct {
	Message string `json:"message"`
}
