// Package reflection runs the second completion pass that audits a candidate
// reply against the active prompt rules.
package reflection

import (
	"context"
	"fmt"

	"fyuchan/pkg/llm"
	"fyuchan/pkg/prompt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const systemInstruction = "You are an agent that critically reflects on the AI's prior response."

type CompletionClient interface {
	ChatCompletion(ctx context.Context, messages []llm.Message) (string, error)
}

type Input struct {
	UserInput string
	Candidate string
	Fields    prompt.Fields
}

type Evaluator struct {
	client   CompletionClient
	validate *validator.Validate
	logger   *zap.Logger
}

func NewEvaluator(client CompletionClient, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		client:   client,
		validate: validator.New(),
		logger:   logger,
	}
}

// Messages builds the standalone reflection conversation. It never touches a
// session's history.
func Messages(in Input) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: "User said: " + in.UserInput},
		{Role: "assistant", Content: "AI responded: " + in.Candidate},
		{Role: "user", Content: prompt.Reflection(in.Fields, in.Candidate)},
	}
}

// Evaluate asks the service to score and possibly revise the candidate. Output
// that cannot be parsed comes back as Degraded, not as an error; only a failed
// service call returns an error.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (Result, error) {
	raw, err := e.client.ChatCompletion(ctx, Messages(in))
	if err != nil {
		return nil, fmt.Errorf("reflection failed: %w", err)
	}

	result, problems := Parse(raw)
	switch r := result.(type) {
	case Degraded:
		e.logger.Warn("reflection output not parseable", zap.Error(r.Err), zap.Int("raw_length", len(r.Raw)))
	case Verdict:
		if err := e.validate.Struct(r); err != nil {
			problems = append(problems, err.Error())
		}
		if len(problems) > 0 {
			e.logger.Warn("reflection verdict has unexpected fields", zap.Strings("problems", problems))
		}
		e.logger.Info("reflection verdict",
			zap.Int("adherence_score", r.AdherenceScore),
			zap.Int("issues", len(r.Issues)),
			zap.Bool("revised", r.HasFinalResponse && r.FinalResponse != in.Candidate),
		)
	}
	return result, nil
}
