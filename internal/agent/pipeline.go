package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/ibexai/internal/llm"
)

// ErrInvalidPipeline is returned when a pipeline fails static validation.
var ErrInvalidPipeline = errors.New("agent: invalid pipeline")

// Stage is one (persona, task) step of a pipeline.
type Stage struct {
	Task *TaskTemplate
	// Requires lists the run input keys the stage needs.
	Requires []string
	// Consumes lists earlier persona keys whose outputs are added as context.
	Consumes []string
}

// Key returns the persona key that addresses this stage's output.
func (s Stage) Key() string { return s.Task.Persona.Key }

// Pipeline is a fixed, strictly sequential list of stages.
type Pipeline struct {
	Name   string
	Stages []Stage
}

// Validate checks the pipeline against the input keys a caller will supply.
func (p Pipeline) Validate(inputKeys []string) error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("%w: %s has no stages", ErrInvalidPipeline, p.Name)
	}
	inputs := make(map[string]bool, len(inputKeys))
	for _, k := range inputKeys {
		inputs[k] = true
	}

	earlier := make(map[string]bool)
	for i, st := range p.Stages {
		if st.Task == nil || st.Task.Persona == nil {
			return fmt.Errorf("%w: %s stage %d has no task or persona", ErrInvalidPipeline, p.Name, i)
		}
		if st.Task.Persona.AllowDelegation {
			return fmt.Errorf("%w: persona %s allows delegation", ErrInvalidPipeline, st.Key())
		}
		if st.Task.Persona.Provider == nil {
			return fmt.Errorf("%w: persona %s has no backend", ErrInvalidPipeline, st.Key())
		}
		for _, k := range st.Requires {
			if !inputs[k] {
				return fmt.Errorf("%w: stage %s requires missing input %q", ErrInvalidPipeline, st.Task.Name, k)
			}
		}
		for _, k := range st.Consumes {
			if !earlier[k] {
				return fmt.Errorf("%w: stage %s consumes %q which is not an earlier stage", ErrInvalidPipeline, st.Task.Name, k)
			}
		}
		for _, k := range st.Task.Placeholders() {
			if !inputs[k] && !earlier[k] {
				return fmt.Errorf("%w: stage %s placeholder %q cannot be resolved", ErrInvalidPipeline, st.Task.Name, k)
			}
		}
		earlier[st.Key()] = true
	}
	return nil
}

// StageOutput is the recorded result of one stage.
type StageOutput struct {
	Task     string        `json:"task"`
	Persona  string        `json:"persona"`
	Output   string        `json:"output"`
	Tokens   int           `json:"tokens"`
	Duration time.Duration `json:"duration"`
}

// RunResult is the outcome of a pipeline run. Output is the last stage's text.
type RunResult struct {
	Pipeline string        `json:"pipeline"`
	Output   string        `json:"output"`
	Stages   []StageOutput `json:"stages"`
}

// StageError reports the stage that aborted a run.
type StageError struct {
	Pipeline string
	Task     string
	Index    int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline %s: stage %d (%s): %v", e.Pipeline, e.Index, e.Task, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageEvent is delivered to observers after every stage, successful or not.
type StageEvent struct {
	Pipeline string
	Task     string
	Persona  string
	Index    int
	Duration time.Duration
	Tokens   int
	Err      error
}

// Observer receives stage events.
type Observer interface {
	ObserveStage(ev StageEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(StageEvent)

func (f ObserverFunc) ObserveStage(ev StageEvent) { f(ev) }

// Engine executes pipelines. It never retries and never delegates.
type Engine struct {
	logger    zerolog.Logger
	observers []Observer
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithObserver registers a stage observer.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// NewEngine creates a pipeline engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the stages of p in order. Each stage sees the run inputs plus
// every earlier output addressed by persona key; the immediately preceding
// output and any consumed outputs are appended to its instructions. The first
// failing stage aborts the run with a *StageError.
func (e *Engine) Run(ctx context.Context, p Pipeline, inputs map[string]string) (*RunResult, error) {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	if err := p.Validate(keys); err != nil {
		return nil, err
	}

	data := make(map[string]string, len(inputs)+len(p.Stages))
	for k, v := range inputs {
		data[k] = v
	}

	result := &RunResult{Pipeline: p.Name, Stages: make([]StageOutput, 0, len(p.Stages))}
	var prev *StageOutput

	for i, st := range p.Stages {
		start := time.Now()
		out, tokens, err := e.runStage(ctx, st, data, prev, result.Stages)
		ev := StageEvent{
			Pipeline: p.Name,
			Task:     st.Task.Name,
			Persona:  st.Key(),
			Index:    i,
			Duration: time.Since(start),
			Tokens:   tokens,
			Err:      err,
		}
		e.notify(ev)

		if err != nil {
			e.logger.Warn().Err(err).Str("pipeline", p.Name).Str("task", st.Task.Name).Int("stage", i).Msg("pipeline stage failed")
			return nil, &StageError{Pipeline: p.Name, Task: st.Task.Name, Index: i, Err: err}
		}
		e.logger.Debug().Str("pipeline", p.Name).Str("task", st.Task.Name).Int("tokens", tokens).Dur("took", ev.Duration).Msg("pipeline stage done")

		so := StageOutput{
			Task:     st.Task.Name,
			Persona:  st.Key(),
			Output:   out,
			Tokens:   tokens,
			Duration: ev.Duration,
		}
		result.Stages = append(result.Stages, so)
		data[st.Key()] = out
		prev = &result.Stages[len(result.Stages)-1]
	}

	result.Output = result.Stages[len(result.Stages)-1].Output
	return result, nil
}

func (e *Engine) runStage(ctx context.Context, st Stage, data map[string]string, prev *StageOutput, done []StageOutput) (string, int, error) {
	instructions, err := st.Task.Render(data)
	if err != nil {
		return "", 0, err
	}
	prompt := buildPrompt(st, instructions, prev, done)

	persona := st.Task.Persona
	msgs := []llm.Message{
		llm.SystemMessage(persona.SystemPrompt()),
		llm.UserMessage(prompt),
	}
	resp, err := persona.Provider.Chat(ctx, msgs, persona.Options)
	if err != nil {
		return "", 0, err
	}
	return strings.TrimSpace(resp.Content), resp.Usage.TotalTokens, nil
}

// buildPrompt appends the context blocks and the expected output hint.
func buildPrompt(st Stage, instructions string, prev *StageOutput, done []StageOutput) string {
	var b strings.Builder
	b.WriteString(instructions)

	included := make(map[string]bool)
	for _, key := range st.Consumes {
		for _, so := range done {
			if so.Persona == key && (prev == nil || so.Persona != prev.Persona) {
				writeContext(&b, so)
				included[key] = true
			}
		}
	}
	if prev != nil && !included[prev.Persona] {
		writeContext(&b, *prev)
	}

	if st.Task.ExpectedOutput != "" {
		b.WriteString("\n\nResultado esperado: ")
		b.WriteString(st.Task.ExpectedOutput)
	}
	return b.String()
}

func writeContext(b *strings.Builder, so StageOutput) {
	fmt.Fprintf(b, "\n\n--- Contexto (%s) ---\n%s", so.Persona, so.Output)
}

func (e *Engine) notify(ev StageEvent) {
	for _, o := range e.observers {
		o.ObserveStage(ev)
	}
}
