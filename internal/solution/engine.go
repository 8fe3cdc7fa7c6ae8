package solution

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianshen/aksmigrate/internal/provider"
	"github.com/julianshen/aksmigrate/internal/state"
	"github.com/rs/zerolog"
)

// ErrNoIncidents is returned when a solution is requested for nothing.
var ErrNoIncidents = errors.New("no incidents selected")

// StartError wraps failures that happen before the request reaches the
// model, as opposed to failures while receiving the reply.
type StartError struct{ Err error }

func (e *StartError) Error() string { return e.Err.Error() }
func (e *StartError) Unwrap() error { return e.Err }

// Engine requests solutions from an LLM provider.
type Engine struct {
	llm       provider.LLMProvider
	model     string
	maxTokens int
	root      string
	log       zerolog.Logger
}

// NewEngine creates an Engine. root resolves relative paths in replies.
func NewEngine(llm provider.LLMProvider, model string, maxTokens int, root string, log zerolog.Logger) *Engine {
	return &Engine{llm: llm, model: model, maxTokens: maxTokens, root: root, log: log}
}

// Result is one completed solution request.
type Result struct {
	Reply string
	Data  state.SolutionData
}

// Solve asks for fixes for incidents. onDelta sees reply text as it
// streams; sent is called once the request has been accepted.
func (e *Engine) Solve(ctx context.Context, incidents []state.EnhancedIncident, effort string, sent func(), onDelta func(string)) (Result, error) {
	if len(incidents) == 0 {
		return Result{}, &StartError{Err: ErrNoIncidents}
	}
	files, readErrs := ReadFiles(ctx, incidents)
	return e.complete(ctx, BuildPrompt(incidents, effort, files), files, readErrs, sent, onDelta)
}

// SolveWithContext asks for a fix for a single incident, adding the code
// around it to the prompt.
func (e *Engine) SolveWithContext(ctx context.Context, inc state.EnhancedIncident, effort string, sent func(), onDelta func(string)) (Result, error) {
	files, readErrs := ReadFiles(ctx, []state.EnhancedIncident{inc})
	var content string
	for _, c := range files {
		content = c
	}
	return e.complete(ctx, BuildContextPrompt(inc, effort, content), files, readErrs, sent, onDelta)
}

func (e *Engine) complete(ctx context.Context, prompt string, files map[string]string, readErrs []string, sent func(), onDelta func(string)) (Result, error) {
	if e.llm == nil {
		return Result{}, &StartError{Err: errors.New("no model provider configured")}
	}

	ch, err := e.llm.Stream(ctx, provider.CompletionRequest{
		Model:     e.model,
		System:    systemPrompt,
		Messages:  []provider.Message{provider.NewUserMessage(prompt)},
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		return Result{}, &StartError{Err: fmt.Errorf("request solution: %w", err)}
	}
	if sent != nil {
		sent()
	}

	reply, err := provider.Collect(ch, onDelta)
	if err != nil {
		return Result{Reply: reply}, fmt.Errorf("receive solution: %w", err)
	}

	changes, rejected := ParseChanges(reply, e.root, files)
	for _, r := range rejected {
		e.log.Warn().Str("reason", r).Msg("dropping proposed change")
	}
	e.log.Info().Int("files", len(changes)).Int("read_errors", len(readErrs)).Msg("solution received")
	if changes == nil {
		changes = []state.FileChange{}
	}
	return Result{
		Reply: reply,
		Data:  state.SolutionData{Changes: changes, EncounteredErrors: append(readErrs, rejected...)},
	}, nil
}
