// Package runner provides code execution as a pluggable capability keyed by
// language tag. Execution is best effort: a language without a registered
// runner yields an explicit unsupported outcome rather than a silent no-op.
package runner

import (
	"context"
	"sync"

	"github.com/pairpad/backend/internal/model"
)

// OutputKind classifies a line of program output.
type OutputKind string

const (
	OutputLog   OutputKind = "log"
	OutputError OutputKind = "error"
)

// OutputEvent is one line of output produced while running code.
type OutputEvent struct {
	Kind OutputKind `json:"kind"`
	Text string     `json:"text"`
}

// Runner executes code and streams output events through emit. Run returns
// once execution finishes or ctx expires.
type Runner interface {
	Run(ctx context.Context, code string, emit func(OutputEvent)) error
}

// Registry maps language tags to runners.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

// NewRegistry creates an empty runner registry.
func NewRegistry() *Registry {
	return &Registry{
		runners: make(map[string]Runner),
	}
}

// Register binds a runner to a language tag, replacing any previous binding.
func (r *Registry) Register(language string, runner Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[language] = runner
}

// Supports reports whether a runner is registered for the language.
func (r *Registry) Supports(language string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.runners[language]
	return ok
}

// Languages returns the registered language tags.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	languages := make([]string, 0, len(r.runners))
	for language := range r.runners {
		languages = append(languages, language)
	}
	return languages
}

// Run executes code with the runner registered for language. It returns
// model.ErrUnsupportedLanguage if no runner is registered.
func (r *Registry) Run(ctx context.Context, language, code string, emit func(OutputEvent)) error {
	r.mu.RLock()
	runner, ok := r.runners[language]
	r.mu.RUnlock()

	if !ok {
		return model.ErrUnsupportedLanguage
	}
	return runner.Run(ctx, code, emit)
}
