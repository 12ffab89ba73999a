// Package mcp provides a Model Context Protocol server for symcat.
//
// It exposes the extraction pipeline and the approval workflow as MCP
// tools (extract, approve, pending, resolve, stats), and the symptom
// catalog as an MCP resource. Supports stdio transport for editor and
// agent hosts.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/medscribe/symcat/internal/approve"
	"github.com/medscribe/symcat/internal/catalog"
	"github.com/medscribe/symcat/internal/extract"
	"github.com/medscribe/symcat/internal/observe"
	"github.com/medscribe/symcat/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Catalog  *catalog.Catalog
	Store    store.Store
	Pipeline *extract.Pipeline
	Gateway  *approve.Gateway
	DBPath   string
	Version  string // version string for MCP server info
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines.
// SQLite (even with WAL) supports only one writer at a time, and an
// approval must resolve its pending rows before the next pending list
// is read. A global mutex ensures that ordering.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all symcat tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Symcat",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = store.DefaultDBPath
	}
	observeEngine := observe.NewEngine(cfg.Catalog, cfg.Store, dbPath)

	// Register tools
	registerExtractTool(s, cfg.Pipeline)
	registerApproveTool(s, cfg.Gateway)
	registerPendingTool(s, cfg.Store)
	registerResolveTool(s, cfg.Store)
	registerStatsTool(s, observeEngine)

	// Register resources
	registerCatalogResource(s, cfg.Catalog)

	return s
}

// --- Tools ---

func registerExtractTool(s *server.MCPServer, pipeline *extract.Pipeline) {
	tool := mcp.NewTool("symcat_extract",
		mcp.WithDescription("Extract symptoms from a clinical transcript. Returns matched catalog entries (code, name, matched text, category) plus unreviewed unknown mentions. Unknowns are appended to the review ledger."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("transcript",
			mcp.Required(),
			mcp.Description("Clinical transcript or consultation note text"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		transcript, err := req.RequireString("transcript")
		if err != nil {
			return mcp.NewToolResultError("transcript is required"), nil
		}
		if strings.TrimSpace(transcript) == "" {
			return mcp.NewToolResultError("transcript cannot be empty"), nil
		}

		result := pipeline.Process(ctx, transcript)
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerApproveTool(s *server.MCPServer, gateway *approve.Gateway) {
	tool := mcp.NewTool("symcat_approve",
		mcp.WithDescription("Approve a reviewed unknown mention as a new catalog symptom. Mints a sequential code, registers aliases, resolves matching pending reviews, and journals the decision. Idempotent for already-known mentions."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("mention",
			mcp.Required(),
			mcp.Description("The unknown mention being promoted (as it appeared in review)"),
		),
		mcp.WithString("name",
			mcp.Description("Canonical display name for the new symptom (default: the mention)"),
		),
		mcp.WithString("category",
			mcp.Description("Body-system category; empty = classify by keyword"),
		),
		mcp.WithString("aliases",
			mcp.Description("Extra comma-separated alias strings to register"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		mention, err := req.RequireString("mention")
		if err != nil {
			return mcp.NewToolResultError("mention is required"), nil
		}

		areq := approve.Request{Mention: mention}
		if name, err := req.RequireString("name"); err == nil {
			areq.Name = name
		}
		if category, err := req.RequireString("category"); err == nil {
			areq.Category = category
		}
		if raw, err := req.RequireString("aliases"); err == nil && raw != "" {
			for _, a := range strings.Split(raw, ",") {
				if a = strings.TrimSpace(a); a != "" {
					areq.Aliases = append(areq.Aliases, a)
				}
			}
		}

		code, err := gateway.Approve(ctx, areq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("approve error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(map[string]string{
			"code":    code,
			"mention": mention,
		}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerPendingTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("symcat_pending",
		mcp.WithDescription("List pending review-ledger entries: unknown mentions awaiting human approval, oldest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of entries (default: 50, max: 200)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := 0
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			limit = int(limitVal)
			if limit > 200 {
				limit = 200
			}
		}

		entries, err := st.ListPending(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing pending reviews: %v", err)), nil
		}

		payload := map[string]interface{}{
			"pending": entries,
			"count":   len(entries),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerResolveTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("symcat_resolve",
		mcp.WithDescription("Mark review-ledger entries resolved without approving them (rejected mentions). Pass an entry id, or a mention to resolve all its pending rows."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("id",
			mcp.Description("Review entry id to resolve"),
		),
		mcp.WithString("mention",
			mcp.Description("Resolve every pending entry with this mention"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		if idVal, err := req.RequireFloat("id"); err == nil && idVal > 0 {
			if err := st.Resolve(ctx, int64(idVal)); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("resolve error: %v", err)), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf(`{"resolved": 1, "id": %d}`, int64(idVal))), nil
		}

		if mention, err := req.RequireString("mention"); err == nil && strings.TrimSpace(mention) != "" {
			n, err := st.ResolveMention(ctx, mention)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("resolve error: %v", err)), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf(`{"resolved": %d}`, n)), nil
		}

		return mcp.NewToolResultError("either id or mention is required"), nil
	})
}

func registerStatsTool(s *server.MCPServer, engine *observe.Engine) {
	tool := mcp.NewTool("symcat_stats",
		mcp.WithDescription("Get catalog and review-ledger statistics: symptom and alias counts, category composition, pending/resolved reviews, approvals, storage size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := engine.GetStats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerCatalogResource(s *server.MCPServer, cat *catalog.Catalog) {
	resource := mcp.NewResource(
		"symcat://catalog",
		"Symptom Catalog",
		mcp.WithResourceDescription("Every catalog entry with its code, canonical name, aliases, and category, ordered by code."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		symptoms := cat.Symptoms()
		payload := map[string]interface{}{
			"symptoms": symptoms,
			"count":    len(symptoms),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

// ServeStdio runs the server on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
