package reprompt

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

const validPayload = `{
	"improvedPrompt": "Task: write a poem\n\nRules: rhyme\n\nExamples: roses are red",
	"mapping": [
		{"originalSentence": "write a poem.", "improvedSections": ["Task", "Rules"]}
	],
	"explanations": [
		{"section": "Rules", "tooltip": "Rules keep the poem consistent."},
		{"section": "Task", "tooltip": "The task is stated up front."},
		{"section": "Examples", "tooltip": "An example shows the tone."}
	]
}`

func envelopeOf(data string) []byte {
	return []byte(`{"success": true, "data": ` + data + `}`)
}

// expectInvalid fails unless err is an *Error with code and details containing want.
func expectInvalid(t *testing.T, err error, code ErrorCode, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error containing %q, got nil", code, want)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("Expected *Error, got %T: %v", err, err)
	}
	if e.Code != code {
		t.Errorf("Expected code %s, got %s (%v)", code, e.Code, err)
	}
	if !strings.Contains(e.Details, want) {
		t.Errorf("Expected details containing %q, got %q", want, e.Details)
	}
}

func TestValidateEnvelope(t *testing.T) {
	t.Run("valid payload returned unchanged", func(t *testing.T) {
		resp, err := ValidateEnvelope(envelopeOf(validPayload))
		if err != nil {
			t.Fatalf("Expected valid payload, got %v", err)
		}

		var want ImprovementResponse
		if err := json.Unmarshal([]byte(validPayload), &want); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(*resp, want) {
			t.Errorf("Expected payload unchanged\nwant %+v\ngot  %+v", want, *resp)
		}
	})

	t.Run("explanation order is free", func(t *testing.T) {
		resp, err := ValidateEnvelope(envelopeOf(validPayload))
		if err != nil {
			t.Fatal(err)
		}
		if resp.Explanations[0].Section != SectionRules {
			t.Errorf("Expected producer order kept, got %s first", resp.Explanations[0].Section)
		}
	})

	t.Run("failure envelope with code", func(t *testing.T) {
		raw := `{"success": false, "error": {"code": "RATE_LIMIT_EXCEEDED", "message": "slow down"}}`
		_, err := ValidateEnvelope([]byte(raw))
		expectInvalid(t, err, CodeRateLimitExceeded, "slow down")
	})

	t.Run("failure envelope details win over message", func(t *testing.T) {
		raw := `{"success": false, "error": {"code": "API_TIMEOUT", "message": "m", "details": "d"}}`
		_, err := ValidateEnvelope([]byte(raw))
		expectInvalid(t, err, CodeAPITimeout, "d")
	})

	t.Run("failure envelope without code", func(t *testing.T) {
		_, err := ValidateEnvelope([]byte(`{"success": false}`))
		expectInvalid(t, err, CodeWorkerUnavailable, "proxy reported failure")
	})

	t.Run("error object beside success flag", func(t *testing.T) {
		raw := `{"success": true, "data": ` + validPayload + `, "error": {"code": "UNKNOWN"}}`
		_, err := ValidateEnvelope([]byte(raw))
		expectInvalid(t, err, CodeUnknown, "")
	})

	t.Run("missing success flag", func(t *testing.T) {
		_, err := ValidateEnvelope([]byte(`{"data": ` + validPayload + `}`))
		expectInvalid(t, err, CodeWorkerUnavailable, "")
	})

	t.Run("missing data", func(t *testing.T) {
		_, err := ValidateEnvelope([]byte(`{"success": true}`))
		expectInvalid(t, err, CodeInvalidResponse, "missing or invalid data")
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := ValidateEnvelope([]byte(`{"success": tru`))
		expectInvalid(t, err, CodeInvalidResponse, "malformed JSON")
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := ValidateEnvelope([]byte("  "))
		expectInvalid(t, err, CodeInvalidResponse, "empty body")
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := ValidateEnvelope([]byte(`[1, 2]`))
		expectInvalid(t, err, CodeInvalidResponse, "expected a JSON object")
	})
}

func TestValidatePayloadRules(t *testing.T) {
	explanations := `[
		{"section": "Task", "tooltip": "a"},
		{"section": "Rules", "tooltip": "b"},
		{"section": "Examples", "tooltip": "c"}
	]`
	mapping := `[{"originalSentence": "x.", "improvedSections": ["Task"]}]`

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "improvedPrompt missing",
			payload: `{"mapping": ` + mapping + `, "explanations": ` + explanations + `}`,
			want:    "missing or invalid improvedPrompt",
		},
		{
			name:    "improvedPrompt not a string",
			payload: `{"improvedPrompt": 3, "mapping": ` + mapping + `, "explanations": ` + explanations + `}`,
			want:    "missing or invalid improvedPrompt",
		},
		{
			name:    "improvedPrompt blank",
			payload: `{"improvedPrompt": "  \n", "mapping": ` + mapping + `, "explanations": ` + explanations + `}`,
			want:    "improvedPrompt is empty",
		},
		{
			name:    "mapping missing",
			payload: `{"improvedPrompt": "Task: x", "explanations": ` + explanations + `}`,
			want:    "missing or invalid mapping",
		},
		{
			name:    "mapping not a sequence",
			payload: `{"improvedPrompt": "Task: x", "mapping": {}, "explanations": ` + explanations + `}`,
			want:    "missing or invalid mapping",
		},
		{
			name:    "mapping empty",
			payload: `{"improvedPrompt": "Task: x", "mapping": [], "explanations": ` + explanations + `}`,
			want:    "mapping array is empty",
		},
		{
			name: "mapping entry missing sentence",
			payload: `{"improvedPrompt": "Task: x", "mapping": [` +
				`{"originalSentence": "a", "improvedSections": ["Task"]},` +
				`{"improvedSections": ["Task"]}], "explanations": ` + explanations + `}`,
			want: "mapping[1] missing originalSentence",
		},
		{
			name:    "mapping entry missing sections",
			payload: `{"improvedPrompt": "Task: x", "mapping": [{"originalSentence": "a"}], "explanations": ` + explanations + `}`,
			want:    "mapping[0] missing improvedSections",
		},
		{
			name:    "mapping entry empty sections",
			payload: `{"improvedPrompt": "Task: x", "mapping": [{"originalSentence": "a", "improvedSections": []}], "explanations": ` + explanations + `}`,
			want:    "mapping[0].improvedSections is empty",
		},
		{
			name:    "explanations missing",
			payload: `{"improvedPrompt": "Task: x", "mapping": ` + mapping + `}`,
			want:    "missing or invalid explanations",
		},
		{
			name: "explanations length two",
			payload: `{"improvedPrompt": "Task: x", "mapping": ` + mapping + `, "explanations": [` +
				`{"section": "Task", "tooltip": "a"}, {"section": "Rules", "tooltip": "b"}]}`,
			want: "expected exactly 3 explanations",
		},
		{
			name: "explanation missing tooltip",
			payload: `{"improvedPrompt": "Task: x", "mapping": ` + mapping + `, "explanations": [` +
				`{"section": "Task", "tooltip": "a"}, {"section": "Rules", "tooltip": " "}, {"section": "Examples", "tooltip": "c"}]}`,
			want: "explanations[1] missing tooltip",
		},
		{
			name: "explanation missing section",
			payload: `{"improvedPrompt": "Task: x", "mapping": ` + mapping + `, "explanations": [` +
				`{"tooltip": "a"}, {"section": "Rules", "tooltip": "b"}, {"section": "Examples", "tooltip": "c"}]}`,
			want: "explanations[0] missing section",
		},
		{
			name: "duplicate section",
			payload: `{"improvedPrompt": "Task: x", "mapping": ` + mapping + `, "explanations": [` +
				`{"section": "Task", "tooltip": "a"}, {"section": "Task", "tooltip": "b"}, {"section": "Examples", "tooltip": "c"}]}`,
			want: "missing explanation for Rules section",
		},
		{
			name: "unknown section",
			payload: `{"improvedPrompt": "Task: x", "mapping": ` + mapping + `, "explanations": [` +
				`{"section": "Task", "tooltip": "a"}, {"section": "Rules", "tooltip": "b"}, {"section": "Notes", "tooltip": "c"}]}`,
			want: "missing explanation for Examples section",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidatePayload([]byte(tt.payload))
			expectInvalid(t, err, CodeInvalidResponse, tt.want)

			// The envelope path applies the same rules.
			_, err = ValidateEnvelope(envelopeOf(tt.payload))
			expectInvalid(t, err, CodeInvalidResponse, tt.want)
		})
	}
}

func TestValidatePayloadFirstFailureWins(t *testing.T) {
	// Both mapping and explanations are broken; mapping is checked first.
	_, err := ValidatePayload([]byte(`{"improvedPrompt": "Task: x", "mapping": [], "explanations": []}`))
	expectInvalid(t, err, CodeInvalidResponse, "mapping array is empty")
}

func TestValidateMockImprovement(t *testing.T) {
	raw, err := json.Marshal(MockImprovement("One. Two? Three!"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ValidatePayload(raw)
	if err != nil {
		t.Fatalf("Expected mock improvement to validate, got %v", err)
	}
	if len(resp.Mapping) != 3 {
		t.Errorf("Expected 3 mapping entries, got %d", len(resp.Mapping))
	}
}

func TestOpenEnvelope(t *testing.T) {
	data, err := openEnvelope([]byte(`{"success": true, "data": {"message": "hi"}}`))
	if err != nil {
		t.Fatalf("openEnvelope failed: %v", err)
	}
	if string(data) != `{"message": "hi"}` {
		t.Errorf("Unexpected data %s", data)
	}

	_, err = openEnvelope([]byte(`{"success": true, "data": null}`))
	expectInvalid(t, err, CodeInvalidResponse, "missing or invalid data")
}
