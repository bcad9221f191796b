package runtime

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
)

var (
	encoderCache   = make(map[string]*tiktoken.Tiktoken)
	encoderCacheMu sync.RWMutex
)

// Per-message framing cost of the OpenAI chat format, plus the primer
// every reply starts with.
const (
	tokensPerMessage = 3
	tokensPerReply   = 3
)

// TokenCounter counts chat tokens for one model. When no tiktoken encoding
// can be resolved (unknown model, encoding files unavailable offline) it
// falls back to a character heuristic so budgeting stays deterministic.
type TokenCounter struct {
	model string
	enc   *tiktoken.Tiktoken
}

// NewTokenCounter builds a counter for the given model name.
func NewTokenCounter(model string) *TokenCounter {
	return &TokenCounter{model: model, enc: encoderFor(model)}
}

// encoderFor resolves and caches the tiktoken encoding for a model. A nil
// entry is cached too, so a failed lookup is not retried on every call.
func encoderFor(model string) *tiktoken.Tiktoken {
	encoderCacheMu.RLock()
	enc, ok := encoderCache[model]
	encoderCacheMu.RUnlock()
	if ok {
		return enc
	}

	encoderCacheMu.Lock()
	defer encoderCacheMu.Unlock()
	if enc, ok := encoderCache[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		enc = nil
	}
	encoderCache[model] = enc
	return enc
}

// Count returns the token count of one string.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return heuristicCount(text)
}

// heuristicCount approximates four characters per token, which tracks
// cl100k_base closely enough on English prose for budgeting.
func heuristicCount(text string) int {
	runes := utf8.RuneCountInString(text)
	if runes == 0 {
		return 0
	}
	return (runes + 3) / 4
}

// CountMessage returns the token cost of one chat message including its
// framing overhead.
func (c *TokenCounter) CountMessage(msg llms.MessageContent) int {
	total := tokensPerMessage + c.Count(string(msg.Role))
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			total += c.Count(p.Text)
		case llms.ToolCall:
			if p.FunctionCall != nil {
				total += c.Count(p.FunctionCall.Name)
				total += c.Count(p.FunctionCall.Arguments)
			}
		case llms.ToolCallResponse:
			total += c.Count(p.Content)
		}
	}
	return total
}

// CountConversation returns the token cost of a whole message slice.
func (c *TokenCounter) CountConversation(msgs []llms.MessageContent) int {
	total := tokensPerReply
	for _, msg := range msgs {
		total += c.CountMessage(msg)
	}
	return total
}

// TrimToBudget drops whole messages, oldest first, until the conversation
// fits the budget. A leading system message is never dropped and the newest
// message always survives, so the current question reaches the model even
// when it alone blows the budget. Messages are never split.
func (c *TokenCounter) TrimToBudget(msgs []llms.MessageContent, budget int) []llms.MessageContent {
	if budget <= 0 || len(msgs) == 0 {
		return msgs
	}

	out := make([]llms.MessageContent, len(msgs))
	copy(out, msgs)

	floor := 1
	oldest := 0
	if out[0].Role == llms.ChatMessageTypeSystem {
		floor = 2
		oldest = 1
	}

	for len(out) > floor && c.CountConversation(out) > budget {
		out = append(out[:oldest], out[oldest+1:]...)
	}
	return out
}
