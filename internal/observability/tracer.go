// Package observability provides the tracing seam for agent runs. The
// samples ship a logger-backed tracer and a noop; anything heavier (Azure
// Monitor, Langfuse) can slot in behind the same interface.
package observability

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
)

// TraceID identifies one traced run across its events.
type TraceID string

// UsageMetrics carries token accounting extracted from model responses.
type UsageMetrics struct {
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
	Unit         string `json:"unit,omitempty"`
}

// Tracer records the lifecycle of an agent run.
type Tracer interface {
	StartTrace(name string, metadata map[string]interface{}) TraceID
	EndTrace(id TraceID, metadata map[string]interface{})
	Event(id TraceID, name string, metadata map[string]interface{})
	RecordUsage(id TraceID, model string, usage UsageMetrics)
}

// NoopTracer drops everything. It is the default when no trace provider is
// configured.
type NoopTracer struct{}

func (NoopTracer) StartTrace(string, map[string]interface{}) TraceID { return "" }
func (NoopTracer) EndTrace(TraceID, map[string]interface{})          {}
func (NoopTracer) Event(TraceID, string, map[string]interface{})     {}
func (NoopTracer) RecordUsage(TraceID, string, UsageMetrics)         {}

// LogTracer writes trace records through the sample logger, which is enough
// to replay a run from the log file.
type LogTracer struct {
	log utils.ExtendedLogger
}

// NewLogTracer builds a tracer writing to log.
func NewLogTracer(log utils.ExtendedLogger) *LogTracer {
	return &LogTracer{log: log}
}

func (t *LogTracer) StartTrace(name string, metadata map[string]interface{}) TraceID {
	id := TraceID(uuid.NewString())
	t.entry(id, metadata).WithField("trace_name", name).Info("trace started")
	return id
}

func (t *LogTracer) EndTrace(id TraceID, metadata map[string]interface{}) {
	t.entry(id, metadata).Info("trace ended")
}

func (t *LogTracer) Event(id TraceID, name string, metadata map[string]interface{}) {
	t.entry(id, metadata).WithField("event", name).Debug("trace event")
}

func (t *LogTracer) RecordUsage(id TraceID, model string, usage UsageMetrics) {
	t.entry(id, nil).WithFields(logrus.Fields{
		"model":         model,
		"input_tokens":  usage.InputTokens,
		"output_tokens": usage.OutputTokens,
		"total_tokens":  usage.TotalTokens,
	}).Debug("token usage")
}

func (t *LogTracer) entry(id TraceID, metadata map[string]interface{}) *logrus.Entry {
	entry := t.log.WithField("trace_id", string(id)).WithField("ts", time.Now().UTC().Format(time.RFC3339Nano))
	for k, v := range metadata {
		entry = entry.WithField(k, v)
	}
	return entry
}
