package mcptools

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
)

// RetryConfig controls connection retries with exponential backoff.
type RetryConfig struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	ConnectTimeout time.Duration
}

// DefaultRetryConfig returns the retry behavior the samples use.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		BackoffFactor:  2.0,
		ConnectTimeout: 2 * time.Minute,
	}
}

// Client wraps a mark3labs MCP client with connection retries and the
// convenience calls the runtime needs.
type Client struct {
	name       string
	config     ServerConfig
	retry      RetryConfig
	log        utils.ExtendedLogger
	mcpClient  *client.Client
	serverInfo *mcp.Implementation
}

// NewClient builds a client for the named server entry. Connect must be
// called before tools can be listed or invoked.
func NewClient(name string, config ServerConfig, log utils.ExtendedLogger) *Client {
	return &Client{
		name:   name,
		config: config,
		retry:  DefaultRetryConfig(),
		log:    log,
	}
}

// NewClientWithRetry is NewClient with custom retry behavior.
func NewClientWithRetry(name string, config ServerConfig, retry RetryConfig, log utils.ExtendedLogger) *Client {
	c := NewClient(name, config, log)
	c.retry = retry
	return c
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.name }

// ServerInfo returns the implementation info the server reported, or nil
// before Connect succeeds.
func (c *Client) ServerInfo() *mcp.Implementation { return c.serverInfo }

// Connect establishes the session, retrying with exponential backoff.
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.retry.InitialDelay) * math.Pow(c.retry.BackoffFactor, float64(attempt-1)))
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
			c.log.Infof("mcp: retrying %s (attempt %d/%d) after %s", c.name, attempt+1, c.retry.MaxRetries+1, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("connect %s: %w", c.name, ctx.Err())
			}
		}

		connectCtx, cancel := context.WithTimeout(ctx, c.retry.ConnectTimeout)
		err := c.connectOnce(connectCtx)
		cancel()
		if err == nil {
			c.log.Infof("mcp: connected to %s via %s", c.name, c.config.ResolveProtocol())
			return nil
		}

		lastErr = err
		c.log.Warnf("mcp: connection to %s failed (attempt %d): %v", c.name, attempt+1, err)
		if ctx.Err() != nil {
			return fmt.Errorf("connect %s: %w", c.name, ctx.Err())
		}
	}

	return fmt.Errorf("connect %s after %d attempts: %w", c.name, c.retry.MaxRetries+1, lastErr)
}

func (c *Client) connectOnce(ctx context.Context) error {
	var (
		mcpClient *client.Client
		err       error
	)

	protocol := c.config.ResolveProtocol()
	switch protocol {
	case ProtocolSSE:
		mcpClient, err = client.NewSSEMCPClient(c.config.URL, transport.WithHeaders(c.config.Headers))
		if err != nil {
			return fmt.Errorf("create sse client: %w", err)
		}
		if err := mcpClient.Start(ctx); err != nil {
			mcpClient.Close()
			return fmt.Errorf("start sse transport: %w", err)
		}

	case ProtocolHTTP:
		mcpClient, err = client.NewStreamableHttpClient(c.config.URL, transport.WithHTTPHeaders(c.config.Headers))
		if err != nil {
			return fmt.Errorf("create http client: %w", err)
		}
		if err := mcpClient.Start(ctx); err != nil {
			mcpClient.Close()
			return fmt.Errorf("start http transport: %w", err)
		}

	case ProtocolStdio:
		env := make([]string, 0, len(c.config.Env))
		for key, value := range c.config.Env {
			env = append(env, fmt.Sprintf("%s=%s", key, value))
		}
		// NewStdioMCPClient starts the child process itself.
		mcpClient, err = client.NewStdioMCPClient(c.config.Command, env, c.config.Args...)
		if err != nil {
			return fmt.Errorf("create stdio client: %w", err)
		}

	default:
		return fmt.Errorf("unknown protocol %q", protocol)
	}

	initResult, err := mcpClient.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "foundry-jumpstart",
				Version: "0.1.0",
			},
		},
	})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("initialize session: %w", err)
	}

	c.mcpClient = mcpClient
	c.serverInfo = &initResult.ServerInfo
	return nil
}

// ListTools returns the tools the server offers.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if c.mcpClient == nil {
		return nil, fmt.Errorf("mcp client %s not connected", c.name)
	}

	result, err := c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools on %s: %w", c.name, err)
	}
	return result.Tools, nil
}

// CallTool invokes one tool with already-decoded arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	if c.mcpClient == nil {
		return nil, fmt.Errorf("mcp client %s not connected", c.name)
	}

	result, err := c.mcpClient.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: arguments,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("call tool %s on %s: %w", name, c.name, err)
	}
	return result, nil
}

// Close shuts the session down. Safe to call before Connect.
func (c *Client) Close() error {
	if c.mcpClient == nil {
		return nil
	}
	err := c.mcpClient.Close()
	c.mcpClient = nil
	return err
}
