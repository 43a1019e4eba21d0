package reprompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValidateEnvelope checks a raw proxy response body and returns the typed
// improvement it carries.
//
// A failure envelope yields an *Error with the upstream code (or
// WORKER_UNAVAILABLE when none is reported). Any other problem, including a
// body that is not JSON, yields an *Error with CodeInvalidResponse.
func ValidateEnvelope(raw []byte) (*ImprovementResponse, error) {
	root, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	if err := checkEnvelope(root); err != nil {
		return nil, err
	}

	data, ok := root["data"].(map[string]any)
	if !ok {
		return nil, invalid("missing or invalid data")
	}
	return validateData(data)
}

// ValidatePayload checks bare model output, with no envelope around it.
// The proxy runs this before anything is returned to a client.
func ValidatePayload(raw []byte) (*ImprovementResponse, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	return validateData(data)
}

// openEnvelope checks a success envelope and returns its data member.
func openEnvelope(raw []byte) (json.RawMessage, error) {
	root, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	if err := checkEnvelope(root); err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &Error{Code: CodeInvalidResponse, Details: "malformed JSON", Err: err}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, invalid("missing or invalid data")
	}
	return env.Data, nil
}

func invalid(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidResponse, Details: fmt.Sprintf(format, args...)}
}

func decodeObject(raw []byte) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, invalid("empty body")
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &Error{Code: CodeInvalidResponse, Details: "malformed JSON", Err: err}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, invalid("expected a JSON object")
	}
	return obj, nil
}

func checkEnvelope(root map[string]any) error {
	success, _ := root["success"].(bool)
	errObj, hasErr := root["error"].(map[string]any)
	if success && !hasErr {
		return nil
	}

	code := CodeWorkerUnavailable
	var details string
	if hasErr {
		if c, ok := errObj["code"].(string); ok && c != "" {
			code = ErrorCode(c)
		}
		if d, ok := errObj["details"].(string); ok && d != "" {
			details = d
		} else if m, ok := errObj["message"].(string); ok {
			details = m
		}
	}
	if details == "" {
		details = "proxy reported failure"
	}
	return &Error{Code: code, Details: details}
}

// validateData applies the payload rules in order; the first failure wins.
func validateData(data map[string]any) (*ImprovementResponse, error) {
	improved, ok := data["improvedPrompt"].(string)
	if !ok {
		return nil, invalid("missing or invalid improvedPrompt")
	}
	if strings.TrimSpace(improved) == "" {
		return nil, invalid("improvedPrompt is empty")
	}

	rawMapping, ok := data["mapping"].([]any)
	if !ok {
		return nil, invalid("missing or invalid mapping")
	}
	if len(rawMapping) == 0 {
		return nil, invalid("mapping array is empty")
	}

	mapping := make([]MappingEntry, len(rawMapping))
	for i, item := range rawMapping {
		entry, _ := item.(map[string]any)

		sentence, ok := entry["originalSentence"].(string)
		if !ok || sentence == "" {
			return nil, invalid("mapping[%d] missing originalSentence", i)
		}

		rawSections, ok := entry["improvedSections"].([]any)
		if !ok {
			return nil, invalid("mapping[%d] missing improvedSections", i)
		}
		if len(rawSections) == 0 {
			return nil, invalid("mapping[%d].improvedSections is empty", i)
		}

		sections := make([]string, len(rawSections))
		for j, s := range rawSections {
			name, ok := s.(string)
			if !ok {
				return nil, invalid("mapping[%d].improvedSections[%d] is not a string", i, j)
			}
			sections[j] = name
		}

		mapping[i] = MappingEntry{OriginalSentence: sentence, ImprovedSections: sections}
	}

	rawExplanations, ok := data["explanations"].([]any)
	if !ok {
		return nil, invalid("missing or invalid explanations")
	}
	if len(rawExplanations) != len(Sections()) {
		return nil, invalid("expected exactly %d explanations (Task, Rules, Examples), got %d",
			len(Sections()), len(rawExplanations))
	}

	explanations := make([]ExplanationEntry, len(rawExplanations))
	seen := make(map[Section]bool, len(rawExplanations))
	for i, item := range rawExplanations {
		entry, _ := item.(map[string]any)

		section, ok := entry["section"].(string)
		if !ok || section == "" {
			return nil, invalid("explanations[%d] missing section", i)
		}

		tooltip, ok := entry["tooltip"].(string)
		if !ok || strings.TrimSpace(tooltip) == "" {
			return nil, invalid("explanations[%d] missing tooltip", i)
		}

		seen[Section(section)] = true
		explanations[i] = ExplanationEntry{Section: Section(section), Tooltip: tooltip}
	}

	for _, required := range Sections() {
		if !seen[required] {
			return nil, invalid("missing explanation for %s section", required)
		}
	}

	return &ImprovementResponse{
		ImprovedPrompt: improved,
		Mapping:        mapping,
		Explanations:   explanations,
	}, nil
}
