package decision

import (
	"encoding/json"
	"strings"

	"github.com/opsmind-ai/crewd/pkg/models"
)

// stripFences removes a surrounding markdown code fence, if present.
// Models frequently wrap JSON replies in ```json ... ``` despite being
// asked not to.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// ParseDecision decodes a model reply into a Decision. Malformed output is
// recoverable by contract: anything that does not parse becomes a
// final_answer decision carrying the raw text.
func ParseDecision(text string) Decision {
	cleaned := stripFences(text)

	var d Decision
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return Decision{
			Thought:     "Failed to parse model response as JSON.",
			Action:      models.ActionFinalAnswer,
			FinalAnswer: cleaned,
		}
	}
	if d.Action == "" {
		d.Action = models.ActionFinalAnswer
		if d.FinalAnswer == "" {
			d.FinalAnswer = cleaned
		}
	}
	return d
}

// ParseDecomposition decodes a decomposition reply. Malformed output yields
// a not-complex plan with no direct agent, which callers route generically.
func ParseDecomposition(text string) Decomposition {
	cleaned := stripFences(text)

	var d Decomposition
	if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
		return Decomposition{
			IsComplex: false,
			Reasoning: "Failed to parse decomposition response; routing directly.",
		}
	}
	return d
}

// ParseSummary extracts the summary string from a summarization reply,
// accepting either {"summary": ...} or {"final_answer": ...}. Falls back to
// the raw text.
func ParseSummary(text string) string {
	cleaned := stripFences(text)

	var payload struct {
		Summary     string `json:"summary"`
		FinalAnswer string `json:"final_answer"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil {
		if payload.Summary != "" {
			return payload.Summary
		}
		if payload.FinalAnswer != "" {
			return payload.FinalAnswer
		}
	}
	return cleaned
}
