// Package advisor implements the architecture-advisor sample: AzureArchitect
// reviews designs against the Azure Well Architected Framework, grounded in
// Microsoft Learn documentation over MCP.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/config"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/llm"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/observability"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/agents"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/logger"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/mcptools"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/runtime"
)

const connectTimeout = 30 * time.Second

// Cmd is the advisor subcommand.
var Cmd = &cobra.Command{
	Use:   "advisor [question]",
	Short: "Ask the Azure architecture advisor",
	Long: `Ask AzureArchitect an architecture question, or hand it a design summary
with --report to get a structured Well Architected review as JSON.

By default the advisor connects to the MCP servers attached to the agent
definition (the Microsoft Learn endpoint) so answers cite current
documentation. Use --no-tools to answer from model knowledge alone.`,
	Args: cobra.ArbitraryArgs,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("question", "q", "", "question or design summary for the advisor")
	Cmd.Flags().String("design-file", "", "read the design summary from a file")
	Cmd.Flags().String("mcp-config", "", "MCP servers file overriding the agent's attachments")
	Cmd.Flags().Bool("no-tools", false, "skip MCP tools entirely")
	Cmd.Flags().Bool("report", false, "emit a structured Well Architected review as JSON")
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	question, err := readQuestion(cmd, args)
	if err != nil {
		return err
	}

	log, err := logger.CreateLogger(viper.GetString("log-file"), viper.GetString("log-level"), viper.GetString("log-format"), false)
	if err != nil {
		return err
	}
	defer log.Close()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	def := agents.AzureArchitect()

	provider, err := llm.ResolveProvider(cfg.LLM)
	if err != nil {
		return err
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
		return err
	}

	opts := []runtime.Option{
		runtime.WithLogger(log),
		runtime.WithTracers(tracer),
		runtime.WithMaxTurns(viper.GetInt("max-turns")),
	}
	if cmd.Flags().Changed("temperature") {
		opts = append(opts, runtime.WithTemperature(viper.GetFloat64("temperature")))
	}

	report, _ := cmd.Flags().GetBool("report")

	// The structured review runs in JSON mode without tool calls, so tools
	// are only attached for the conversational path.
	if !report {
		toolset, err := connectTools(ctx, cmd, def, log)
		if err != nil {
			return err
		}
		if toolset != nil {
			defer toolset.Close()
			llmTools, err := toolset.LLMTools()
			if err != nil {
				return err
			}
			opts = append(opts, runtime.WithTools(llmTools), runtime.WithToolExecutor(toolset))
			fmt.Printf("Connected MCP servers: %s (%d tools)\n", strings.Join(toolset.Servers(), ", "), len(llmTools))
		}
	}

	runner, err := runtime.New(def, model, opts...)
	if err != nil {
		return err
	}

	if report {
		review, err := runner.Review(ctx, question)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(review, "", "  ")
		if err != nil {
			return fmt.Errorf("encode review: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	answer, err := runner.Ask(ctx, "", question)
	if err != nil && !errors.Is(err, runtime.ErrMaxTurns) {
		return err
	}
	if errors.Is(err, runtime.ErrMaxTurns) {
		log.Warnf("advisor: %v", err)
	}

	fmt.Printf("\n%s\n", answer)
	return nil
}

func readQuestion(cmd *cobra.Command, args []string) (string, error) {
	if path, _ := cmd.Flags().GetString("design-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read design file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if q, _ := cmd.Flags().GetString("question"); q != "" {
		return q, nil
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	return "", fmt.Errorf("a question is required: pass it as an argument, with --question, or with --design-file")
}

// connectTools builds the advisor's tool set. An explicit --mcp-config must
// connect or the run fails; the agent's own attachments are best effort so
// the sample still answers when the Learn endpoint is unreachable.
func connectTools(ctx context.Context, cmd *cobra.Command, def agents.AgentDefinition, log utils.ExtendedLogger) (*mcptools.ToolSet, error) {
	if noTools, _ := cmd.Flags().GetBool("no-tools"); noTools {
		return nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if path, _ := cmd.Flags().GetString("mcp-config"); path != "" {
		file, err := mcptools.LoadServersFile(path)
		if err != nil {
			return nil, err
		}
		return mcptools.ConnectAll(connectCtx, file, log)
	}

	file := serversFromAttachments(def.Tools)
	if file == nil {
		return nil, nil
	}
	toolset, err := mcptools.ConnectAll(connectCtx, file, log)
	if err != nil {
		log.Warnf("advisor: continuing without tools: %v", err)
		fmt.Fprintf(os.Stderr, "warning: MCP connection failed (%v); answering without documentation tools\n", err)
		return nil, nil
	}
	return toolset, nil
}

func serversFromAttachments(attachments []agents.ToolAttachment) *mcptools.ServersFile {
	servers := make(map[string]mcptools.ServerConfig)
	for _, att := range attachments {
		if att.Type != agents.ToolTypeMCP || att.ServerURL == "" {
			continue
		}
		label := att.ServerLabel
		if label == "" {
			label = fmt.Sprintf("server-%d", len(servers)+1)
		}
		servers[label] = mcptools.ServerConfig{URL: att.ServerURL}
	}
	if len(servers) == 0 {
		return nil
	}
	return &mcptools.ServersFile{Servers: servers}
}
