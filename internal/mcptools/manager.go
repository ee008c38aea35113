// Package mcptools connects to MCP servers and exposes their tools to the
// orchestrator. Tool names are namespaced as "server.tool" so multiple
// servers can coexist without collisions.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/codefionn/modelgate/internal/llm"
	"github.com/codefionn/modelgate/internal/logger"
)

// ServerConfig describes one MCP server to connect to. Command starts a
// local stdio server; URL connects to a remote one.
type ServerConfig struct {
	Name      string            `json:"name"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	URL       string            `json:"url,omitempty"`
	Transport string            `json:"transport,omitempty"` // "sse" or "streamable-http"
}

type serverConn struct {
	name   string
	client *client.Client
	tools  []mcptypes.Tool
}

// Manager owns the MCP server connections and the aggregated tool list.
type Manager struct {
	mu      sync.RWMutex
	servers map[string]*serverConn
	log     *logger.Logger
}

// NewManager creates a Manager with no connections. Call Start to connect.
func NewManager() *Manager {
	return &Manager{
		servers: make(map[string]*serverConn),
		log:     logger.Global().WithPrefix("mcp"),
	}
}

// Start connects to each configured server, initializes the MCP session,
// and caches its tool list. A server that fails to connect is logged and
// skipped so one bad server does not take down the gateway.
func (m *Manager) Start(ctx context.Context, configs []ServerConfig) error {
	for _, cfg := range configs {
		if err := m.connect(ctx, cfg); err != nil {
			m.log.Error("failed to connect to MCP server %s: %v", cfg.Name, err)
			continue
		}
		m.log.Info("connected to MCP server %s", cfg.Name)
	}
	return nil
}

func (m *Manager) connect(ctx context.Context, cfg ServerConfig) error {
	var mcpClient *client.Client
	var err error

	switch {
	case cfg.URL != "" && cfg.Transport == "streamable-http":
		mcpClient, err = client.NewStreamableHttpClient(cfg.URL)
		if err != nil {
			return err
		}
		if err := mcpClient.GetTransport().Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP transport: %w", err)
		}
	case cfg.URL != "":
		mcpClient, err = client.NewSSEMCPClient(cfg.URL)
		if err != nil {
			return err
		}
		if err := mcpClient.GetTransport().Start(ctx); err != nil {
			return fmt.Errorf("failed to start SSE transport: %w", err)
		}
	case cfg.Command != "":
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		mcpClient, err = client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("server %s has neither command nor url", cfg.Name)
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: "2025-06-18",
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "modelgate",
				Version: "1.0.0",
			},
		},
	}
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to initialize: %w", err)
	}

	toolsResult, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to list tools: %w", err)
	}

	m.mu.Lock()
	m.servers[cfg.Name] = &serverConn{
		name:   cfg.Name,
		client: mcpClient,
		tools:  toolsResult.Tools,
	}
	m.mu.Unlock()

	return nil
}

// Tools returns the namespaced tool definitions across all servers.
func (m *Manager) Tools() []llm.ToolDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var defs []llm.ToolDefinition
	for name, conn := range m.servers {
		for _, tool := range conn.tools {
			defs = append(defs, llm.ToolDefinition{
				Name:        name + "." + tool.Name,
				Description: tool.Description,
				InputSchema: convertInputSchema(tool.InputSchema),
			})
		}
	}
	return defs
}

// Annotations returns the MCP annotations for a namespaced tool, or nil
// when the tool is unknown.
func (m *Manager) Annotations(toolName string) *mcptypes.ToolAnnotation {
	serverName, bareName := splitToolName(toolName)

	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.servers[serverName]
	if !ok {
		return nil
	}
	for i := range conn.tools {
		if conn.tools[i].Name == bareName {
			return &conn.tools[i].Annotations
		}
	}
	return nil
}

// Execute runs one tool call and always returns a ToolResult; failures
// are reported in-band so the model sees them in the next round.
func (m *Manager) Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	args := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return llm.ToolResult{
				ToolCallID: call.ID,
				Status:     llm.ToolStatusError,
				Content:    fmt.Sprintf("invalid tool arguments: %v", err),
			}
		}
	}

	serverName, bareName := splitToolName(call.Name)

	m.mu.RLock()
	conn, ok := m.servers[serverName]
	m.mu.RUnlock()
	if !ok {
		return llm.ToolResult{
			ToolCallID: call.ID,
			Status:     llm.ToolStatusError,
			Content:    fmt.Sprintf("unknown tool: %s", call.Name),
		}
	}

	start := time.Now()
	result, err := conn.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      bareName,
			Arguments: args,
		},
	})
	if err != nil {
		m.log.Warn("tool %s failed after %s: %v", call.Name, time.Since(start), err)
		return llm.ToolResult{
			ToolCallID: call.ID,
			Status:     llm.ToolStatusError,
			Content:    fmt.Sprintf("tool execution failed: %v", err),
		}
	}

	status := llm.ToolStatusOK
	if result.IsError {
		status = llm.ToolStatusError
	}
	return llm.ToolResult{
		ToolCallID: call.ID,
		Status:     status,
		Content:    flattenContent(result.Content),
	}
}

// Close shuts down all server connections.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, conn := range m.servers {
		if err := conn.client.Close(); err != nil {
			m.log.Warn("error closing MCP server %s: %v", name, err)
		}
		delete(m.servers, name)
	}
}

func splitToolName(namespaced string) (server, tool string) {
	idx := strings.Index(namespaced, ".")
	if idx == -1 {
		return "", namespaced
	}
	return namespaced[:idx], namespaced[idx+1:]
}

func flattenContent(content []mcptypes.Content) string {
	var parts []string
	for _, item := range content {
		switch text := item.(type) {
		case mcptypes.TextContent:
			parts = append(parts, text.Text)
		case *mcptypes.TextContent:
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func convertInputSchema(schema mcptypes.ToolInputSchema) map[string]interface{} {
	out := map[string]interface{}{
		"type":       schema.Type,
		"properties": schema.Properties,
	}
	if out["type"] == "" {
		out["type"] = "object"
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	if schema.Defs != nil {
		out["$defs"] = schema.Defs
	}
	return out
}
