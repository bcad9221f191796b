// Package runtime drives an agent definition against a chat model: system
// prompt assembly, persisted conversation history, the multi-turn tool-call
// loop, token budgeting, and run events.
package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/observability"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/agents"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/events"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/history"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/logger"
)

var (
	// ErrNilModel rejects construction without a model client.
	ErrNilModel = errors.New("nil model")
	// ErrMaxTurns marks a run that stopped because the turn limit was hit
	// while the model still wanted tool calls.
	ErrMaxTurns = errors.New("max turns reached")
	// ErrEmptyInput rejects a run with nothing to ask.
	ErrEmptyInput = errors.New("empty input")
)

// Defaults applied when options leave a knob unset.
const (
	DefaultMaxTurns    = 10
	DefaultMaxTokens   = 4096
	DefaultToolTimeout = 2 * time.Minute
)

// ToolExecutor runs one named tool call and returns the text fed back to
// the model. mcptools.ToolSet implements it for MCP servers.
type ToolExecutor interface {
	CallTool(ctx context.Context, name string, arguments map[string]any) (string, error)
}

// Runner executes conversations for one agent definition.
type Runner struct {
	def   agents.AgentDefinition
	model llms.Model

	log          utils.ExtendedLogger
	tracers      []observability.Tracer
	listeners    []events.Listener
	store        history.Store
	tools        []llms.Tool
	executor     ToolExecutor
	maxTurns     int
	maxTokens    int
	temperature  float64
	tokenBudget  int
	toolTimeout  time.Duration
	sessionID    string
	counter      *TokenCounter
	systemPrompt string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(log utils.ExtendedLogger) Option {
	return func(r *Runner) { r.log = log }
}

// WithTracers attaches observability tracers that receive run spans.
func WithTracers(tracers ...observability.Tracer) Option {
	return func(r *Runner) { r.tracers = append(r.tracers, tracers...) }
}

// WithListeners attaches event listeners that receive the run event stream.
func WithListeners(listeners ...events.Listener) Option {
	return func(r *Runner) { r.listeners = append(r.listeners, listeners...) }
}

// WithHistoryStore persists messages and run events to the given store.
func WithHistoryStore(store history.Store) Option {
	return func(r *Runner) { r.store = store }
}

// WithTools exposes the given tool definitions to the model.
func WithTools(tools []llms.Tool) Option {
	return func(r *Runner) { r.tools = tools }
}

// WithToolExecutor sets the executor that serves the model's tool calls.
func WithToolExecutor(exec ToolExecutor) Option {
	return func(r *Runner) { r.executor = exec }
}

// WithMaxTurns caps the number of model rounds in one run.
func WithMaxTurns(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithMaxTokens caps the completion size requested per model call.
func WithMaxTokens(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxTokens = n
		}
	}
}

// WithTemperature overrides the definition's sampling temperature.
func WithTemperature(t float64) Option {
	return func(r *Runner) { r.temperature = t }
}

// WithTokenBudget trims loaded history so the conversation sent to the
// model stays under n tokens. Zero disables trimming.
func WithTokenBudget(n int) Option {
	return func(r *Runner) { r.tokenBudget = n }
}

// WithToolTimeout bounds each tool call.
func WithToolTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.toolTimeout = d
		}
	}
}

// WithSessionID pins the session ID stamped on run events, letting servers
// correlate the stream with a polling session. Unset, each run gets a
// fresh one.
func WithSessionID(id string) Option {
	return func(r *Runner) { r.sessionID = id }
}

// New builds a runner for the given definition and model client.
func New(def agents.AgentDefinition, model llms.Model, opts ...Option) (*Runner, error) {
	if model == nil {
		return nil, ErrNilModel
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		def:         def,
		model:       model,
		maxTurns:    DefaultMaxTurns,
		maxTokens:   DefaultMaxTokens,
		temperature: def.Temperature,
		toolTimeout: DefaultToolTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.log == nil {
		r.log = logger.Discard()
	}
	if len(r.tracers) == 0 {
		r.tracers = []observability.Tracer{observability.NoopTracer{}}
	}
	r.counter = NewTokenCounter(def.EffectiveModel("gpt-4o"))
	r.systemPrompt = BuildSystemPrompt(def, r.tools)

	return r, nil
}

// Definition returns the agent definition the runner was built from.
func (r *Runner) Definition() agents.AgentDefinition { return r.def }

// SystemPrompt returns the assembled system prompt.
func (r *Runner) SystemPrompt() string { return r.systemPrompt }
