// Package persistent implements the persistent-agent sample: an agent whose
// definition and conversation history survive across program runs.
package persistent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/config"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/llm"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/observability"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/agents"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/history"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/logger"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/registry"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/runtime"
)

const defaultMessage = "Introduce yourself, then summarize what we have discussed in this thread so far."

// Cmd is the persistent-agent subcommand.
var Cmd = &cobra.Command{
	Use:   "persistent-agent",
	Short: "Run the persistent agent sample",
	Long: `Run PersistentAgent against a named conversation thread.

The first run publishes the local draft agent and creates the thread; later
runs resume both, so the agent remembers everything said in earlier
invocations. Pass --published to run the registered snapshot instead of the
local draft.`,
	RunE: run,
}

func init() {
	Cmd.Flags().Bool("published", false, "resolve the agent from the registry instead of using the local draft")
	Cmd.Flags().String("thread", "persistent-agent-demo", "thread title to create or resume")
	Cmd.Flags().StringP("message", "m", "", "message to send (default asks the agent to recap the thread)")
	Cmd.Flags().BoolP("interactive", "i", false, "chat in a loop instead of sending a single message")
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	log, err := logger.CreateLogger(viper.GetString("log-file"), viper.GetString("log-level"), viper.GetString("log-format"), false)
	if err != nil {
		return err
	}
	defer log.Close()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if path := viper.GetString("history-db"); path != "" {
		cfg.History.DBPath = path
	}
	if err := cfg.History.Validate(); err != nil {
		return err
	}

	store, err := history.Open(cfg.History, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// The registry always lives in the local SQLite file, even when history
	// is kept in Cosmos DB.
	reg, err := registry.Open(cfg.History.DBPath, log)
	if err != nil {
		return err
	}
	defer reg.Close()

	published, _ := cmd.Flags().GetBool("published")
	def, err := resolveAgent(ctx, reg, published)
	if err != nil {
		return err
	}

	title, _ := cmd.Flags().GetString("thread")
	thread, prior, err := openThread(ctx, store, title, def)
	if err != nil {
		return err
	}

	fmt.Printf("Agent:  %s (%s)\n", def.Name, def.Variant)
	fmt.Printf("Thread: %s (%s)\n", title, thread.ID)
	if prior > 0 {
		fmt.Printf("Resuming with %d prior messages\n", prior)
	} else {
		fmt.Println("Starting a fresh conversation")
	}

	runner, err := buildRunner(cmd, cfg, def, store, log)
	if err != nil {
		return err
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		return repl(ctx, runner, thread.ID)
	}

	message, _ := cmd.Flags().GetString("message")
	if message == "" {
		message = defaultMessage
	}

	answer, err := runner.Ask(ctx, thread.ID, message)
	if err != nil && !errors.Is(err, runtime.ErrMaxTurns) {
		return err
	}
	if errors.Is(err, runtime.ErrMaxTurns) {
		log.Warnf("persistent-agent: %v", err)
	}

	fmt.Printf("\n%s\n", answer)

	if msgs, err := store.ListMessages(ctx, thread.ID); err == nil {
		fmt.Printf("\nThread %q now holds %d messages. Run the command again to pick the conversation back up.\n", title, len(msgs))
	}
	return nil
}

// resolveAgent picks the definition to run. Published mode requires a
// registry entry; draft mode registers the local draft on first use so a
// later --published run has something to resolve.
func resolveAgent(ctx context.Context, reg *registry.Registry, published bool) (agents.AgentDefinition, error) {
	if published {
		pub, err := reg.Get(ctx, agents.PersistentAgentName)
		if errors.Is(err, registry.ErrNotPublished) {
			return agents.AgentDefinition{}, fmt.Errorf("%s is not published yet: run once without --published to register the draft", agents.PersistentAgentName)
		}
		if err != nil {
			return agents.AgentDefinition{}, err
		}
		fmt.Printf("Using published revision %d\n", pub.Revision)
		return pub.Definition(), nil
	}

	def := agents.PersistentAgentUnpublished()
	_, err := reg.Get(ctx, def.Name)
	if errors.Is(err, registry.ErrNotPublished) {
		pub, perr := reg.Publish(ctx, def)
		if perr != nil {
			return agents.AgentDefinition{}, fmt.Errorf("publish draft: %w", perr)
		}
		fmt.Printf("Published draft agent %s (revision %d)\n", pub.Name, pub.Revision)
	} else if err != nil {
		return agents.AgentDefinition{}, err
	}
	return def, nil
}

// openThread finds the thread by title or creates it, returning the prior
// message count so the demo can show what carried over.
func openThread(ctx context.Context, store history.Store, title string, def agents.AgentDefinition) (*history.Thread, int, error) {
	thread, err := store.FindThreadByTitle(ctx, title)
	if errors.Is(err, history.ErrThreadNotFound) {
		thread, err = store.CreateThread(ctx, &history.CreateThreadRequest{
			Title:     title,
			AgentName: def.Name,
			Variant:   def.Variant.String(),
		})
		if err != nil {
			return nil, 0, fmt.Errorf("create thread %q: %w", title, err)
		}
		return thread, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("find thread %q: %w", title, err)
	}

	msgs, err := store.ListMessages(ctx, thread.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages for %s: %w", thread.ID, err)
	}
	return thread, len(msgs), nil
}

func buildRunner(cmd *cobra.Command, cfg *config.Config, def agents.AgentDefinition, store history.Store, log utils.ExtendedLogger) (*runtime.Runner, error) {
	provider, err := llm.ResolveProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}

	traceProvider := viper.GetString("trace-provider")
	if traceProvider == "" {
		traceProvider = cfg.TraceProvider
	}
	tracer := observability.GetTracer(traceProvider, log)

	model, err := llm.Initialize(llm.Config{
		Provider:    provider,
		Model:       def.EffectiveModel(cfg.LLM.DeploymentName),
		Temperature: def.Temperature,
		Credentials: cfg.LLM,
		Logger:      log,
		Tracers:     []observability.Tracer{tracer},
	})
	if err != nil {
		return nil, err
	}

	opts := []runtime.Option{
		runtime.WithLogger(log),
		runtime.WithTracers(tracer),
		runtime.WithHistoryStore(store),
		runtime.WithMaxTurns(viper.GetInt("max-turns")),
	}
	if cmd.Flags().Changed("temperature") {
		opts = append(opts, runtime.WithTemperature(viper.GetFloat64("temperature")))
	}
	return runtime.New(def, model, opts...)
}

func repl(ctx context.Context, runner *runtime.Runner, threadID string) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Println(`Interactive mode. Type "exit" to quit.`)
	for ctx.Err() == nil {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		answer, err := runner.Ask(ctx, threadID, line)
		if err != nil && !errors.Is(err, runtime.ErrMaxTurns) {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", answer)
	}
	return scanner.Err()
}
