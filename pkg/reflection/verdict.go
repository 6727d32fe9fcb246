package reflection

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnparsedMarker separates the candidate reply from the raw reflection output
// when that output could not be parsed.
const UnparsedMarker = "\n\n🧠 Reflection (unparsed):\n"

type IssueKind string

const (
	MissingRequirement IssueKind = "missing_requirement"
	ExtraContent       IssueKind = "extra_content"
	OrderViolation     IssueKind = "order_violation"
	Misinterpretation  IssueKind = "misinterpretation"
)

type Issue struct {
	Kind        IssueKind `json:"type" validate:"oneof=missing_requirement extra_content order_violation misinterpretation"`
	Description string    `json:"description"`
}

// Result is either a Verdict or Degraded.
type Result interface {
	// Response is the text to show the user for this turn.
	Response(candidate string) string
	isResult()
}

// Verdict is a parsed reflection. FinalResponse is only meaningful when
// HasFinalResponse is set.
type Verdict struct {
	AdherenceScore   int     `json:"adherence_score" validate:"gte=0,lte=100"`
	Issues           []Issue `json:"issues" validate:"dive"`
	FinalResponse    string  `json:"final_response"`
	HasFinalResponse bool    `json:"-"`
}

func (Verdict) isResult() {}

// Response trusts the service's final_response verbatim and falls back to the
// candidate only when the key was absent.
func (v Verdict) Response(candidate string) string {
	if !v.HasFinalResponse {
		return candidate
	}
	return v.FinalResponse
}

// Degraded carries reflection output that was not a JSON object.
type Degraded struct {
	Raw string
	Err error
}

func (Degraded) isResult() {}

func (d Degraded) Response(candidate string) string {
	return candidate + UnparsedMarker + d.Raw
}

// Parse turns raw reflection output into a Result. Any JSON object is a
// Verdict; fields of the wrong type are reported in the returned problems and
// left at their zero value. Everything else is Degraded.
func Parse(raw string) (Result, []string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &fields); err != nil || fields == nil {
		if err == nil {
			err = fmt.Errorf("reflection output is null")
		}
		return Degraded{Raw: raw, Err: err}, nil
	}

	var v Verdict
	var problems []string

	if data, ok := fields["adherence_score"]; ok {
		var score float64
		if err := json.Unmarshal(data, &score); err != nil {
			problems = append(problems, fmt.Sprintf("adherence_score: %v", err))
		} else {
			v.AdherenceScore = clampScore(score)
			if score < 0 || score > 100 {
				problems = append(problems, fmt.Sprintf("adherence_score: %v out of range, clamped to %d", score, v.AdherenceScore))
			}
		}
	} else {
		problems = append(problems, "adherence_score: missing")
	}

	if data, ok := fields["issues"]; ok {
		if err := json.Unmarshal(data, &v.Issues); err != nil {
			problems = append(problems, fmt.Sprintf("issues: %v", err))
		}
	}

	if data, ok := fields["final_response"]; ok && string(data) != "null" {
		if err := json.Unmarshal(data, &v.FinalResponse); err != nil {
			problems = append(problems, fmt.Sprintf("final_response: %v", err))
		} else {
			v.HasFinalResponse = true
		}
	} else {
		problems = append(problems, "final_response: missing")
	}

	return v, problems
}

// clampScore converts a decoded score to 0..100 before the int conversion,
// which is undefined for values outside the int range.
func clampScore(score float64) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return int(score)
}

// stripCodeFence removes a single surrounding markdown code block, which
// models tend to add around JSON despite instructions.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}
