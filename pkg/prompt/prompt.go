// Package prompt composes the system prompt for each turn and the instruction
// text for the reflection pass.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Placeholder tokens recognised inside a custom override. Built-in templates
// use text/template fields instead.
const (
	TokenReadings     = "{readings}"
	TokenCurrentDate  = "{current_date}"
	TokenCustomPrompt = "{custom_prompt_block}"
)

// RevisionThreshold is the adherence score at or above which the reflection
// pass is told to keep the original reply.
const RevisionThreshold = 90

// IssueTypes lists the deviation kinds the reflection pass may report.
var IssueTypes = []string{
	"missing_requirement",
	"extra_content",
	"order_violation",
	"misinterpretation",
}

// Fields is the closed set of values substituted into a prompt.
type Fields struct {
	Readings     string
	CurrentDate  string
	CustomPrompt string
}

type reflectionData struct {
	Persona      string
	CustomPrompt string
	Candidate    string
	IssueTypes   string
	Threshold    int
}

var (
	persona    = template.Must(template.New("persona").Option("missingkey=error").Parse(personaTemplate))
	reflection = template.Must(template.New("reflection").Option("missingkey=error").Parse(reflectionTemplate))
)

// Date formats t as an ISO calendar date.
func Date(t time.Time) string {
	return t.Format(time.DateOnly)
}

// Persona renders the default persona template, including the custom block in
// its override section.
func Persona(f Fields) string {
	return mustExecute(persona, f)
}

// Compose returns the single active system prompt for a turn: the custom
// override when it is non-blank, otherwise the default persona.
func Compose(f Fields) string {
	f.CustomPrompt = strings.TrimSpace(f.CustomPrompt)
	if f.CustomPrompt == "" {
		return Persona(f)
	}
	return substitute(f.CustomPrompt, f)
}

// Reflection renders the instruction block for the reflection pass over the
// candidate reply.
func Reflection(f Fields, candidate string) string {
	f.CustomPrompt = strings.TrimSpace(f.CustomPrompt)
	return mustExecute(reflection, reflectionData{
		Persona:      Persona(f),
		CustomPrompt: f.CustomPrompt,
		Candidate:    candidate,
		IssueTypes:   strings.Join(IssueTypes, "|"),
		Threshold:    RevisionThreshold,
	})
}

// substitute replaces the placeholder tokens in one pass, so text inserted for
// one token is never scanned for another. The override re-inserted for
// {custom_prompt_block} is itself substituted first, minus its own token.
func substitute(text string, f Fields) string {
	block := strings.NewReplacer(
		TokenReadings, f.Readings,
		TokenCurrentDate, f.CurrentDate,
		TokenCustomPrompt, "",
	).Replace(f.CustomPrompt)

	r := strings.NewReplacer(
		TokenReadings, f.Readings,
		TokenCurrentDate, f.CurrentDate,
		TokenCustomPrompt, block,
	)
	return r.Replace(text)
}

// mustExecute panics on failure. Both templates are package constants over
// fixed struct types, so an error here is a programming bug.
func mustExecute(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		panic(fmt.Sprintf("prompt: execute %s template: %v", t.Name(), err))
	}
	return buf.String()
}
