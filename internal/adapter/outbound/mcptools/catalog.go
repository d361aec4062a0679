package mcptools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/m3y/askdoc/internal/domain"
	"github.com/m3y/askdoc/internal/usecase"
)

// Catalog implements the usecase.ToolCatalog interface against a remote MCP
// server reachable over streamable HTTP.
//
// The connection is established lazily on first use and memoized. A failed
// connect leaves the handle empty, so the next call simply retries instead of
// being poisoned by the earlier failure. The mutex guards only the handle and
// the name index, never a network call in flight.
type Catalog struct {
	endpoint string
	logger   *slog.Logger

	mu     sync.Mutex
	client *mcpclient.Client
	known  map[string]domain.ToolDescriptor // by exact name, from the last ListTools
}

// NewCatalog creates a Catalog for the MCP server at endpoint.
func NewCatalog(endpoint string, logger *slog.Logger) *Catalog {
	return &Catalog{
		endpoint: endpoint,
		logger:   logger.With("component", "mcp_catalog"),
	}
}

// ensureClient returns the memoized client, establishing and initializing it
// if there is none yet.
func (c *Catalog) ensureClient(ctx context.Context) (*mcpclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	cli, err := mcpclient.NewStreamableHttpClient(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("create MCP client for %s: %w", c.endpoint, err)
	}
	if err := cli.Start(ctx); err != nil {
		return nil, fmt.Errorf("start MCP transport to %s: %w", c.endpoint, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "askdoc", Version: "0.1.0"}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		cli.Close()
		return nil, fmt.Errorf("initialize MCP session with %s: %w", c.endpoint, err)
	}

	c.logger.Info("Connected to MCP server.", slog.String("endpoint", c.endpoint))
	c.client = cli
	return cli, nil
}

// ListTools fetches the current tool catalog and normalizes it into the
// declaration form the model expects. Transport failures wrap
// usecase.ErrToolCatalogUnavailable.
func (c *Catalog) ListTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	cli, err := c.ensureClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", usecase.ErrToolCatalogUnavailable, err)
	}

	res, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: list tools: %v", usecase.ErrToolCatalogUnavailable, err)
	}

	descriptors := make([]domain.ToolDescriptor, 0, len(res.Tools))
	known := make(map[string]domain.ToolDescriptor, len(res.Tools))
	names := make([]string, 0, len(res.Tools))
	for _, t := range res.Tools {
		d := domain.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: inputSchemaToMap(t.InputSchema),
		}
		descriptors = append(descriptors, d)
		known[t.Name] = d
		names = append(names, t.Name)
	}

	c.mu.Lock()
	c.known = known
	c.mu.Unlock()

	sort.Strings(names)
	c.logger.Info("Discovered MCP tools.", slog.Any("tools", names))
	return descriptors, nil
}

// Invoke executes the named tool with the given arguments. Every failure is
// returned as a *usecase.ToolInvocationError so the agent loop can recover
// and surface the message to the model.
func (c *Catalog) Invoke(ctx context.Context, name string, args map[string]interface{}) (domain.ToolResult, error) {
	cli, err := c.ensureClient(ctx)
	if err != nil {
		return domain.ToolResult{}, &usecase.ToolInvocationError{Tool: name, Err: err}
	}

	c.mu.Lock()
	needCatalog := c.known == nil
	c.mu.Unlock()
	if needCatalog {
		if _, err := c.ListTools(ctx); err != nil {
			return domain.ToolResult{}, &usecase.ToolInvocationError{Tool: name, Err: err}
		}
	}

	c.mu.Lock()
	resolved, ok := c.resolveToolName(name)
	c.mu.Unlock()
	if !ok {
		return domain.ToolResult{}, &usecase.ToolInvocationError{
			Tool: name,
			Err:  fmt.Errorf("no tool named %q in catalog", name),
		}
	}
	if resolved != name {
		c.logger.Warn("Requested tool name not in catalog, resolved by keyword.",
			slog.String("requested", name), slog.String("tool", resolved))
	}
	c.logger.Info("Invoking MCP tool.", slog.String("requested", name), slog.String("tool", resolved))

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = resolved
	callReq.Params.Arguments = args
	res, err := cli.CallTool(ctx, callReq)
	if err != nil {
		return domain.ToolResult{}, &usecase.ToolInvocationError{Tool: resolved, Err: err}
	}

	text := concatTextContent(res.Content)
	if res.IsError {
		return domain.ToolResult{}, &usecase.ToolInvocationError{
			Tool: resolved,
			Err:  fmt.Errorf("tool reported an error: %s", strings.TrimSpace(text)),
		}
	}

	return domain.ToolResult{Text: text, Sources: extractSources(text)}, nil
}

// resolveToolName maps a requested name to a catalog entry: exact match
// first, then an unambiguous keyword match. It never picks arbitrarily; an
// ambiguous or empty candidate set means no resolution. Callers must hold
// c.mu.
func (c *Catalog) resolveToolName(requested string) (string, bool) {
	if _, ok := c.known[requested]; ok {
		return requested, true
	}

	key := normalizeToolName(requested)
	if key == "" {
		return "", false
	}
	var candidate string
	for name := range c.known {
		if strings.Contains(normalizeToolName(name), key) {
			if candidate != "" {
				return "", false // ambiguous
			}
			candidate = name
		}
	}
	return candidate, candidate != ""
}

func normalizeToolName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, name)
}

// inputSchemaToMap converts the mcp-go schema struct to the raw JSON-Schema
// map passed through to the model.
func inputSchemaToMap(s mcp.ToolInputSchema) map[string]interface{} {
	schema := map[string]interface{}{"type": s.Type}
	if len(s.Properties) > 0 {
		schema["properties"] = s.Properties
	}
	if len(s.Required) > 0 {
		schema["required"] = s.Required
	}
	return schema
}

// concatTextContent joins every text segment of an MCP content array, each
// followed by a blank-line separator. Non-text segments are skipped.
func concatTextContent(content []mcp.Content) string {
	var b strings.Builder
	for _, item := range content {
		tc, ok := mcp.AsTextContent(item)
		if !ok {
			continue
		}
		b.WriteString(tc.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}
