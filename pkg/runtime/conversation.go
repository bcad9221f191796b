package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/observability"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/events"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/history"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/mcptools"
)

// Ask runs one exchange with the agent and returns the final assistant
// text. With a history store attached, threadID names the thread whose
// messages seed the conversation; the user message is persisted before the
// first model call and the assistant reply after the last one. An empty
// threadID, or no store, runs the exchange without persistence.
func (r *Runner) Ask(ctx context.Context, threadID, userText string) (string, error) {
	if strings.TrimSpace(userText) == "" {
		return "", ErrEmptyInput
	}

	sessionID := r.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	persist := r.store != nil && threadID != ""
	start := time.Now()

	trace := r.startTrace(map[string]any{
		"agent":     r.def.Name,
		"variant":   string(r.def.Variant),
		"thread_id": threadID,
		"tools":     len(r.tools),
	})

	r.emit(ctx, threadID, sessionID, events.New(events.RunStart).
		With("question", userText).
		With("tools", len(r.tools)).
		With("max_turns", r.maxTurns))
	r.emit(ctx, threadID, sessionID, events.New(events.SystemPrompt).
		With("length", len(r.systemPrompt)))

	msgs, err := r.seedMessages(ctx, threadID, persist, userText)
	if err != nil {
		r.fail(ctx, threadID, sessionID, trace, err, time.Since(start))
		return "", err
	}
	r.emit(ctx, threadID, sessionID, events.New(events.UserMessage).
		With("content", userText))

	if r.tokenBudget > 0 {
		before := len(msgs)
		msgs = r.counter.TrimToBudget(msgs, r.tokenBudget)
		if dropped := before - len(msgs); dropped > 0 {
			r.log.WithFields(logrus.Fields{
				"thread_id": threadID,
				"dropped":   dropped,
				"budget":    r.tokenBudget,
			}).Debug("trimmed history to token budget")
			r.emit(ctx, threadID, sessionID, events.New(events.TokenLimitExceeded).
				With("dropped_messages", dropped).
				With("budget", r.tokenBudget))
		}
	}

	var lastText string
	for turn := 1; turn <= r.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			err = fmt.Errorf("run cancelled: %w", err)
			r.fail(ctx, threadID, sessionID, trace, err, time.Since(start))
			return "", err
		}

		r.emit(ctx, threadID, sessionID, events.New(events.RunTurn).
			With("turn", turn).
			With("messages", len(msgs)))

		choice, err := r.generate(ctx, threadID, sessionID, turn, msgs)
		if err != nil {
			r.fail(ctx, threadID, sessionID, trace, err, time.Since(start))
			return "", err
		}
		if choice.Content != "" {
			lastText = choice.Content
		}

		if len(choice.ToolCalls) == 0 {
			if persist {
				if err := r.appendAssistant(ctx, threadID, choice.Content); err != nil {
					r.fail(ctx, threadID, sessionID, trace, err, time.Since(start))
					return "", err
				}
			}
			r.emit(ctx, threadID, sessionID, events.New(events.AssistantMessage).
				With("content", choice.Content))
			r.emit(ctx, threadID, sessionID, events.New(events.RunEnd).
				With("turns", turn).
				With("duration_ms", time.Since(start).Milliseconds()))
			trace.end(map[string]any{"turns": turn, "status": "completed"})
			return choice.Content, nil
		}

		msgs = append(msgs, assistantToolCallMessage(choice))
		for _, tc := range choice.ToolCalls {
			msgs = append(msgs, r.runToolCall(ctx, threadID, sessionID, turn, tc))
		}
	}

	// The model still wanted tools when the turn limit hit. Keep whatever
	// text the last round produced and report the truncation.
	r.emit(ctx, threadID, sessionID, events.New(events.MaxTurnsReached).
		With("max_turns", r.maxTurns))
	if persist && lastText != "" {
		if err := r.appendAssistant(ctx, threadID, lastText); err != nil {
			r.fail(ctx, threadID, sessionID, trace, err, time.Since(start))
			return "", err
		}
	}
	r.emit(ctx, threadID, sessionID, events.New(events.RunEnd).
		With("turns", r.maxTurns).
		With("status", "max_turns").
		With("duration_ms", time.Since(start).Milliseconds()))
	trace.end(map[string]any{"turns": r.maxTurns, "status": "max_turns"})

	return lastText, fmt.Errorf("agent %s stopped after %d turns: %w", r.def.Name, r.maxTurns, ErrMaxTurns)
}

// seedMessages builds the conversation sent to the model: system prompt,
// persisted history, then the new user message. When persisting, the user
// message is stored before any model call so a failed run still leaves the
// question in the thread.
func (r *Runner) seedMessages(ctx context.Context, threadID string, persist bool, userText string) ([]llms.MessageContent, error) {
	var past []*history.Message
	if persist {
		if _, err := r.store.GetThread(ctx, threadID); err != nil {
			return nil, fmt.Errorf("load thread %s: %w", threadID, err)
		}
		var err error
		past, err = r.store.ListMessages(ctx, threadID)
		if err != nil {
			return nil, fmt.Errorf("load messages for thread %s: %w", threadID, err)
		}
		if _, err := r.store.AppendMessage(ctx, &history.AppendMessageRequest{
			ThreadID: threadID,
			Role:     history.RoleUser,
			Content:  userText,
		}); err != nil {
			return nil, fmt.Errorf("persist user message: %w", err)
		}
	}

	msgs := make([]llms.MessageContent, 0, len(past)+2)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, r.systemPrompt))
	for _, m := range past {
		role, ok := chatRole(m.Role)
		if !ok {
			continue
		}
		msgs = append(msgs, llms.TextParts(role, m.Content))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, userText))
	return msgs, nil
}

// chatRole maps a stored history role onto the chat role the providers
// understand. Tool transcripts are internal to the run that produced them
// and do not replay.
func chatRole(role string) (llms.ChatMessageType, bool) {
	switch role {
	case history.RoleUser:
		return llms.ChatMessageTypeHuman, true
	case history.RoleAssistant:
		return llms.ChatMessageTypeAI, true
	case history.RoleSystem:
		return llms.ChatMessageTypeSystem, true
	}
	return "", false
}

// generate performs one model call and returns its first choice.
func (r *Runner) generate(ctx context.Context, threadID, sessionID string, turn int, msgs []llms.MessageContent) (*llms.ContentChoice, error) {
	opts := []llms.CallOption{
		llms.WithTemperature(r.temperature),
		llms.WithMaxTokens(r.maxTokens),
	}
	if len(r.tools) > 0 {
		opts = append(opts, llms.WithTools(r.tools))
	}

	r.emit(ctx, threadID, sessionID, events.New(events.LLMGenerationStart).
		With("turn", turn).
		With("messages", len(msgs)))

	started := time.Now()
	resp, err := r.model.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		r.emit(ctx, threadID, sessionID, events.New(events.LLMGenerationError).
			With("turn", turn).
			With("error", err.Error()))
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		err := fmt.Errorf("model returned no choices")
		r.emit(ctx, threadID, sessionID, events.New(events.LLMGenerationError).
			With("turn", turn).
			With("error", err.Error()))
		return nil, err
	}

	choice := resp.Choices[0]
	r.emit(ctx, threadID, sessionID, events.New(events.LLMGenerationEnd).
		With("turn", turn).
		With("content_length", len(choice.Content)).
		With("tool_calls", len(choice.ToolCalls)).
		With("duration_ms", time.Since(started).Milliseconds()))
	return choice, nil
}

// assistantToolCallMessage rebuilds the assistant turn that requested the
// tool calls so the providers see the calls and their results adjacent.
func assistantToolCallMessage(choice *llms.ContentChoice) llms.MessageContent {
	parts := make([]llms.ContentPart, 0, len(choice.ToolCalls)+1)
	if choice.Content != "" {
		parts = append(parts, llms.TextContent{Text: choice.Content})
	}
	for _, tc := range choice.ToolCalls {
		parts = append(parts, tc)
	}
	return llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts}
}

// runToolCall executes one tool call and returns the tool response fed back
// into the conversation. Failures become model-visible feedback rather than
// run failures, so the model can correct itself and continue.
func (r *Runner) runToolCall(ctx context.Context, threadID, sessionID string, turn int, tc llms.ToolCall) llms.MessageContent {
	var name, argsJSON string
	if tc.FunctionCall != nil {
		name = tc.FunctionCall.Name
		argsJSON = tc.FunctionCall.Arguments
	}

	reply := func(content string) llms.MessageContent {
		return llms.MessageContent{
			Role:  llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{ToolCallID: tc.ID, Name: name, Content: content}},
		}
	}
	toolError := func(err error) llms.MessageContent {
		r.emit(ctx, threadID, sessionID, events.New(events.ToolCallError).
			With("turn", turn).
			With("tool", name).
			With("error", err.Error()))
		r.log.WithError(err).WithField("tool", name).Warn("tool call failed")
		return reply(fmt.Sprintf("Tool execution failed - %v. Adjust the call and try again, or answer from what you already have.", err))
	}

	if name == "" {
		return toolError(fmt.Errorf("tool call without a name; pick one of the tools listed in the system prompt"))
	}
	if r.executor == nil {
		return toolError(fmt.Errorf("no tool executor attached for %s", name))
	}

	r.emit(ctx, threadID, sessionID, events.New(events.ToolCallStart).
		With("turn", turn).
		With("tool", name).
		With("arguments", argsJSON))

	args, err := mcptools.ParseToolArguments(argsJSON)
	if err != nil {
		return toolError(err)
	}

	toolCtx, cancel := context.WithTimeout(ctx, r.toolTimeout)
	defer cancel()

	started := time.Now()
	result, err := r.executor.CallTool(toolCtx, name, args)
	duration := time.Since(started)
	if toolCtx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("tool %s timed out after %s", name, r.toolTimeout)
	}
	if err != nil {
		return toolError(err)
	}

	r.emit(ctx, threadID, sessionID, events.New(events.ToolCallEnd).
		With("turn", turn).
		With("tool", name).
		With("result_length", len(result)).
		With("duration_ms", duration.Milliseconds()))
	return reply(result)
}

// appendAssistant persists the assistant reply to the thread.
func (r *Runner) appendAssistant(ctx context.Context, threadID, content string) error {
	if content == "" {
		return nil
	}
	if _, err := r.store.AppendMessage(ctx, &history.AppendMessageRequest{
		ThreadID: threadID,
		Role:     history.RoleAssistant,
		Content:  content,
	}); err != nil {
		return fmt.Errorf("persist assistant message: %w", err)
	}
	return nil
}

// fail records a run failure on the event stream and the tracers.
func (r *Runner) fail(ctx context.Context, threadID, sessionID string, trace *runTrace, err error, elapsed time.Duration) {
	ev := events.New(events.RunError).With("duration_ms", elapsed.Milliseconds())
	ev.Error = err.Error()
	r.emit(ctx, threadID, sessionID, ev)
	trace.end(map[string]any{"status": "error", "error": err.Error()})
}

// emit stamps run identity onto an event, fans it out to the listeners,
// and persists it when the run has a thread. The event must not be mutated
// after the fan-out: listeners hand the pointer to concurrent readers.
func (r *Runner) emit(ctx context.Context, threadID, sessionID string, ev *events.Event) {
	ev.ThreadID = threadID
	ev.SessionID = sessionID
	ev.AgentName = r.def.Name
	ev.Variant = string(r.def.Variant)
	if ev.Error != "" {
		ev.With("error", ev.Error)
	}

	for _, l := range r.listeners {
		if err := l.HandleEvent(ctx, ev); err != nil {
			r.log.WithError(err).WithField("listener", l.Name()).Warn("event listener failed")
		}
	}

	if r.store == nil || threadID == "" {
		return
	}
	payload := ""
	if len(ev.Payload) > 0 {
		if data, err := json.Marshal(ev.Payload); err == nil {
			payload = string(data)
		}
	}
	record := &history.RunEvent{
		ID:        ev.ID,
		ThreadID:  threadID,
		SessionID: sessionID,
		Type:      string(ev.Type),
		Payload:   payload,
		CreatedAt: ev.Timestamp,
	}
	if err := r.store.StoreRunEvent(ctx, record); err != nil {
		r.log.WithError(err).WithField("event_type", ev.Type).Warn("store run event")
	}
}

// runTrace fans one run's spans out to every tracer.
type runTrace struct {
	tracers []observability.Tracer
	ids     []observability.TraceID
}

func (r *Runner) startTrace(metadata map[string]any) *runTrace {
	t := &runTrace{tracers: r.tracers, ids: make([]observability.TraceID, len(r.tracers))}
	for i, tracer := range r.tracers {
		t.ids[i] = tracer.StartTrace("agent_run", metadata)
	}
	return t
}

func (t *runTrace) end(metadata map[string]any) {
	for i, tracer := range t.tracers {
		tracer.EndTrace(t.ids[i], metadata)
	}
}
