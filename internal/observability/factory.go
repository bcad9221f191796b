package observability

import (
	"strings"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
)

// Trace provider names accepted by TRACE_PROVIDER and --trace-provider.
const (
	ProviderLog  = "log"
	ProviderNoop = "noop"
)

// GetTracer returns the tracer named by provider. Unknown names fall back
// to noop so a typo never breaks a run.
func GetTracer(provider string, logger utils.ExtendedLogger) Tracer {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderLog, "console":
		return NewLogTracer(logger)
	case ProviderNoop, "":
		return NoopTracer{}
	default:
		return NoopTracer{}
	}
}
