// Package fyu sequences one conversational turn: compose the system prompt,
// complete against the session history, then optionally reflect.
package fyu

import (
	"context"
	"time"

	"fyuchan/pkg/prompt"
	"fyuchan/pkg/reflection"
	"fyuchan/pkg/session"

	"go.uber.org/zap"
)

type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history *session.History, userMessage string) (string, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, in reflection.Input) (reflection.Result, error)
}

// Turn is one user message. CustomPrompt is the session's override text, if
// any; Reflect toggles the second pass.
type Turn struct {
	SessionID    string
	Input        string
	CustomPrompt string
	Reflect      bool
}

type Orchestrator struct {
	sessions  *session.Store
	completer Completer
	evaluator Evaluator
	readings  string
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Orchestrator)

// WithClock overrides the time source used for the prompt date.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func NewOrchestrator(sessions *session.Store, completer Completer, evaluator Evaluator, readings string, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:  sessions,
		completer: completer,
		evaluator: evaluator,
		readings:  readings,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) fields(customPrompt string) prompt.Fields {
	return prompt.Fields{
		Readings:     o.readings,
		CurrentDate:  prompt.Date(o.now()),
		CustomPrompt: customPrompt,
	}
}

// EffectivePrompt is the system prompt a turn would use right now with the
// given override.
func (o *Orchestrator) EffectivePrompt(customPrompt string) string {
	return prompt.Compose(o.fields(customPrompt))
}

// HandleTurn returns the text to show for the turn. Completion and reflection
// service failures are returned; unparseable reflection output is not an
// error.
func (o *Orchestrator) HandleTurn(ctx context.Context, turn Turn) (string, error) {
	fields := o.fields(turn.CustomPrompt)
	history := o.sessions.GetOrCreate(turn.SessionID)

	candidate, err := o.completer.Complete(ctx, prompt.Compose(fields), history, turn.Input)
	if err != nil {
		return "", err
	}

	if !turn.Reflect || o.evaluator == nil {
		return candidate, nil
	}

	result, err := o.evaluator.Evaluate(ctx, reflection.Input{
		UserInput: turn.Input,
		Candidate: candidate,
		Fields:    fields,
	})
	if err != nil {
		return "", err
	}

	o.logger.Debug("turn complete",
		zap.String("session", turn.SessionID),
		zap.Int("history_length", history.Len()),
		zap.Bool("custom_prompt", fields.CustomPrompt != ""),
	)
	return result.Response(candidate), nil
}
