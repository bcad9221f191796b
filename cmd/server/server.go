// Package server runs the HTTP API exposing the samples: query dispatch,
// event polling for frontends, and thread history CRUD.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tmc/langchaingo/llms"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/config"
	internalevents "github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/events"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/llm"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/observability"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/agents"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/history"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/logger"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/mcptools"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/registry"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/runtime"
)

const (
	maxEventsPerSession = 10000
	queryTimeout        = 10 * time.Minute
	shutdownTimeout     = 15 * time.Second
)

// Cmd is the server subcommand.
var Cmd = &cobra.Command{
	Use:   "server",
	Short: "Start the agent API server",
	Long: `Start the HTTP API server exposing the samples to a frontend:

- POST /api/query dispatches a run and returns a session id
- GET /api/observer/{session_id}/events polls that run's event stream
- GET /api/agents lists catalog and published agents
- /api/history/... serves thread history CRUD`,
	RunE: runServer,
}

func init() {
	Cmd.Flags().String("host", "0.0.0.0", "listen address")
	Cmd.Flags().Int("port", 8080, "listen port")
	Cmd.Flags().StringSlice("cors-origins", []string{"*"}, "allowed CORS origins")
	Cmd.Flags().String("mcp-config", "", "MCP servers file whose tools are offered to every run")

	viper.BindPFlag("host", Cmd.Flags().Lookup("host"))
	viper.BindPFlag("port", Cmd.Flags().Lookup("port"))
	viper.BindPFlag("cors-origins", Cmd.Flags().Lookup("cors-origins"))
	viper.BindPFlag("mcp-config", Cmd.Flags().Lookup("mcp-config"))
}

// apiServer holds everything the handlers share.
type apiServer struct {
	cfg         *config.Config
	log         utils.ExtendedLogger
	store       history.Store
	registry    *registry.Registry
	model       llms.Model
	provider    llm.Provider
	tracer      observability.Tracer
	manager     *internalevents.Manager
	toolset     *mcptools.ToolSet
	corsOrigins []string
	maxTurns    int
}

func runServer(cmd *cobra.Command, args []string) error {
	log, err := logger.CreateLogger(viper.GetString("log-file"), viper.GetString("log-level"), viper.GetString("log-format"), true)
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

	reg, err := registry.Open(cfg.History.DBPath, log)
	if err != nil {
		return err
	}
	defer reg.Close()

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
		Model:       cfg.LLM.DeploymentName,
		Credentials: cfg.LLM,
		Logger:      log,
		Tracers:     []observability.Tracer{tracer},
	})
	if err != nil {
		return err
	}

	api := &apiServer{
		cfg:         cfg,
		log:         log,
		store:       store,
		registry:    reg,
		model:       model,
		provider:    provider,
		tracer:      tracer,
		manager:     internalevents.NewManager(internalevents.NewStore(maxEventsPerSession), log),
		corsOrigins: viper.GetStringSlice("cors-origins"),
		maxTurns:    viper.GetInt("max-turns"),
	}

	if path := viper.GetString("mcp-config"); path != "" {
		file, err := mcptools.LoadServersFile(path)
		if err != nil {
			return err
		}
		connectCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		toolset, err := mcptools.ConnectAll(connectCtx, file, log)
		cancel()
		if err != nil {
			return err
		}
		defer toolset.Close()
		api.toolset = toolset
		log.Infof("server: connected MCP servers %s", strings.Join(toolset.Servers(), ", "))
	}

	router := mux.NewRouter()
	router.Use(api.corsMiddleware)

	// gin owns /api/history; it must be registered ahead of the general
	// /api subrouter or that subrouter swallows the requests with a 404.
	router.PathPrefix("/api/history").Handler(historyRouter(store, log))

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/query", api.handleQuery).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/health", api.handleHealth).Methods("GET")
	apiRouter.HandleFunc("/agents", api.handleAgents).Methods("GET")
	apiRouter.HandleFunc("/observer/stats", api.handleObserverStats).Methods("GET")
	apiRouter.HandleFunc("/observer/{session_id}/events", api.handleEvents).Methods("GET")
	apiRouter.HandleFunc("/observer/{session_id}", api.handleEndSession).Methods("DELETE", "OPTIONS")

	host := viper.GetString("host")
	port := viper.GetInt("port")
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  300 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: listen on %s: %v", srv.Addr, err)
		}
	}()

	fmt.Printf("Server listening on %s:%d\n", host, port)
	fmt.Printf("  POST http://%s:%d/api/query\n", host, port)
	fmt.Printf("  GET  http://%s:%d/api/observer/{session_id}/events\n", host, port)
	log.Infof("server: started on %s:%d (provider=%s driver=%s)", host, port, provider, cfg.History.Driver)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Infof("server: shutdown complete")
	return nil
}

func (s *apiServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range s.corsOrigins {
			if allowed == "*" || allowed == origin {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization, X-Session-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// queryRequest dispatches one agent run. Thread selection mirrors the CLI:
// an explicit thread id must exist, a title is created or resumed, and
// neither starts a fresh thread titled from the query.
type queryRequest struct {
	Query       string   `json:"query"`
	Agent       string   `json:"agent,omitempty"`
	Variant     string   `json:"variant,omitempty"`
	ThreadID    string   `json:"thread_id,omitempty"`
	ThreadTitle string   `json:"thread_title,omitempty"`
	MaxTurns    int      `json:"max_turns,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type queryResponse struct {
	SessionID string `json:"session_id"`
	ThreadID  string `json:"thread_id"`
	Agent     string `json:"agent"`
	Variant   string `json:"variant"`
	Status    string `json:"status"`
}

func (s *apiServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, errors.New("query is required"))
		return
	}

	def, err := s.resolveAgent(r.Context(), req.Agent, req.Variant)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, agents.ErrAgentNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	thread, err := s.resolveThread(r.Context(), req, def)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, history.ErrThreadNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	sessionID := s.manager.StartSession()
	runner, err := s.buildRunner(def, sessionID, req)
	if err != nil {
		s.manager.EndSession(sessionID)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		if _, err := runner.Ask(ctx, thread.ID, req.Query); err != nil {
			s.log.WithError(err).Errorf("server: session %s failed", sessionID)
		}
	}()

	writeJSON(w, http.StatusAccepted, queryResponse{
		SessionID: sessionID,
		ThreadID:  thread.ID,
		Agent:     def.Name,
		Variant:   def.Variant.String(),
		Status:    "accepted",
	})
}

// resolveAgent prefers the registry snapshot for published agents so the
// server serves what was actually published, falling back to the catalog.
func (s *apiServer) resolveAgent(ctx context.Context, name, variant string) (agents.AgentDefinition, error) {
	if name == "" {
		name = agents.PersistentAgentName
	}
	v := agents.VariantPublished
	if variant != "" {
		v = agents.Variant(variant)
		if !v.Valid() {
			return agents.AgentDefinition{}, fmt.Errorf("unknown variant %q", variant)
		}
	}

	if v == agents.VariantPublished {
		pub, err := s.registry.Get(ctx, name)
		if err == nil {
			return pub.Definition(), nil
		}
		if !errors.Is(err, registry.ErrNotPublished) {
			return agents.AgentDefinition{}, err
		}
	}
	return agents.Lookup(name, v)
}

func (s *apiServer) resolveThread(ctx context.Context, req queryRequest, def agents.AgentDefinition) (*history.Thread, error) {
	if req.ThreadID != "" {
		return s.store.GetThread(ctx, req.ThreadID)
	}

	title := strings.TrimSpace(req.ThreadTitle)
	if title == "" {
		return s.store.CreateThread(ctx, &history.CreateThreadRequest{
			Title:     threadTitleFromQuery(req.Query),
			AgentName: def.Name,
			Variant:   def.Variant.String(),
		})
	}

	thread, err := s.store.FindThreadByTitle(ctx, title)
	if errors.Is(err, history.ErrThreadNotFound) {
		return s.store.CreateThread(ctx, &history.CreateThreadRequest{
			Title:     title,
			AgentName: def.Name,
			Variant:   def.Variant.String(),
		})
	}
	return thread, err
}

func threadTitleFromQuery(query string) string {
	title := strings.Join(strings.Fields(query), " ")
	if len(title) > 60 {
		title = title[:57] + "..."
	}
	return title
}

func (s *apiServer) buildRunner(def agents.AgentDefinition, sessionID string, req queryRequest) (*runtime.Runner, error) {
	maxTurns := s.maxTurns
	if req.MaxTurns > 0 {
		maxTurns = req.MaxTurns
	}

	opts := []runtime.Option{
		runtime.WithLogger(s.log),
		runtime.WithTracers(s.tracer),
		runtime.WithHistoryStore(s.store),
		runtime.WithListeners(s.manager.ListenerFor(sessionID)),
		runtime.WithSessionID(sessionID),
		runtime.WithMaxTurns(maxTurns),
	}
	if req.Temperature != nil {
		opts = append(opts, runtime.WithTemperature(*req.Temperature))
	}
	if s.toolset != nil {
		llmTools, err := s.toolset.LLMTools()
		if err != nil {
			return nil, err
		}
		opts = append(opts, runtime.WithTools(llmTools), runtime.WithToolExecutor(s.toolset))
	}
	return runtime.New(def, s.model, opts...)
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC(),
		"config": map[string]any{
			"provider":       string(s.provider),
			"history_driver": s.cfg.History.Driver,
			"max_turns":      s.maxTurns,
			"mcp_servers":    s.mcpServerNames(),
		},
	})
}

func (s *apiServer) mcpServerNames() []string {
	if s.toolset == nil {
		return []string{}
	}
	return s.toolset.Servers()
}

type agentInfo struct {
	Name        string                  `json:"name"`
	DisplayName string                  `json:"display_name,omitempty"`
	Description string                  `json:"description,omitempty"`
	Variant     string                  `json:"variant"`
	Model       string                  `json:"model,omitempty"`
	Tools       []agents.ToolAttachment `json:"tools,omitempty"`
}

type publishedInfo struct {
	Name        string    `json:"name"`
	Revision    int       `json:"revision"`
	PublishedAt time.Time `json:"published_at"`
}

func (s *apiServer) handleAgents(w http.ResponseWriter, r *http.Request) {
	catalog := agents.Catalog()
	infos := make([]agentInfo, 0, len(catalog))
	for _, def := range catalog {
		infos = append(infos, agentInfo{
			Name:        def.Name,
			DisplayName: def.DisplayName,
			Description: def.Description,
			Variant:     def.Variant.String(),
			Model:       def.Model,
			Tools:       def.Tools,
		})
	}

	published, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	pubInfos := make([]publishedInfo, 0, len(published))
	for _, pub := range published {
		pubInfos = append(pubInfos, publishedInfo{
			Name:        pub.Name,
			Revision:    pub.Revision,
			PublishedAt: pub.PublishedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"catalog":   infos,
		"published": pubInfos,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
