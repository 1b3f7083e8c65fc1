// Package agent implements the persona/task pipeline engine used by the
// IBEX AI advisor: role-specialised personas, instruction templates, a
// strictly sequential Engine and the fixed report and chat pipelines.
package agent

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/seenimoa/ibexai/internal/agent/prompts"
	"github.com/seenimoa/ibexai/internal/llm"
)

// ── Persona ──

// Persona is an immutable agent definition bound to an LLM backend.
// Delegation is never allowed; the Engine refuses pipelines whose personas
// claim otherwise.
type Persona struct {
	Key             string
	Role            string
	Goal            string
	Backstory       string
	AllowDelegation bool
	Verbose         bool

	Provider llm.LLMProvider
	Options  *llm.ChatOptions
}

// SystemPrompt builds the system message sent with every task of this persona.
func (p *Persona) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Eres %s. %s\n", p.Role, p.Backstory)
	fmt.Fprintf(&b, "Tu objetivo personal es: %s\n", p.Goal)
	b.WriteString(prompts.SpanishMarketPromptSuffix())
	return b.String()
}

// ── TaskTemplate ──

var placeholderRe = regexp.MustCompile(`\{\{\s*\.(\w+)\s*\}\}`)

// TaskTemplate is an instruction template with named placeholders, bound to
// the persona that executes it.
type TaskTemplate struct {
	Name           string
	Instructions   string
	ExpectedOutput string
	Persona        *Persona

	tmpl *template.Template
}

// NewTaskTemplate parses the instruction template. Missing keys are render errors.
func NewTaskTemplate(name, instructions, expectedOutput string, persona *Persona) (*TaskTemplate, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(instructions)
	if err != nil {
		return nil, fmt.Errorf("parse task %s: %w", name, err)
	}
	return &TaskTemplate{
		Name:           name,
		Instructions:   instructions,
		ExpectedOutput: expectedOutput,
		Persona:        persona,
		tmpl:           tmpl,
	}, nil
}

// Placeholders returns the sorted, unique keys referenced by the template.
func (t *TaskTemplate) Placeholders() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range placeholderRe.FindAllStringSubmatch(t.Instructions, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	sort.Strings(keys)
	return keys
}

// Render executes the template against data.
func (t *TaskTemplate) Render(data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render task %s: %w", t.Name, err)
	}
	return buf.String(), nil
}

// ── Registry ──

// Registry holds the personas and tasks built once at startup.
type Registry struct {
	mu       sync.RWMutex
	personas map[string]*Persona
	tasks    map[string]*TaskTemplate
}

// NewRegistry builds every persona and task from the prompts package, all
// bound to the same backend.
func NewRegistry(provider llm.LLMProvider, opts *llm.ChatOptions) (*Registry, error) {
	r := &Registry{
		personas: make(map[string]*Persona, len(prompts.Personas)),
		tasks:    make(map[string]*TaskTemplate, len(prompts.Tasks)),
	}
	for key, text := range prompts.Personas {
		r.personas[key] = &Persona{
			Key:       key,
			Role:      text.Role,
			Goal:      text.Goal,
			Backstory: text.Backstory,
			Verbose:   true,
			Provider:  provider,
			Options:   opts,
		}
	}
	for name, text := range prompts.Tasks {
		persona, ok := r.personas[text.Agent]
		if !ok {
			return nil, fmt.Errorf("task %s: unknown persona %q", name, text.Agent)
		}
		task, err := NewTaskTemplate(name, text.Instructions, text.ExpectedOutput, persona)
		if err != nil {
			return nil, err
		}
		r.tasks[name] = task
	}
	return r, nil
}

// Persona retrieves a persona by key.
func (r *Registry) Persona(key string) (*Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[key]
	return p, ok
}

// Task retrieves a task template by name.
func (r *Registry) Task(name string) (*TaskTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	return t, ok
}

// Names returns the sorted persona keys.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.personas))
	for name := range r.personas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered personas.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.personas)
}
