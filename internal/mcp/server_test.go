package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/medscribe/symcat/internal/approve"
	"github.com/medscribe/symcat/internal/catalog"
	"github.com/medscribe/symcat/internal/extract"
	"github.com/medscribe/symcat/internal/observe"
	"github.com/medscribe/symcat/internal/store"
)

// helper: build a fully wired server over an in-memory store
func setupTestServer(t *testing.T) (*server.MCPServer, store.Store) {
	t.Helper()

	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cat := catalog.New(zap.NewNop())
	cat.Add("fever", "general", []string{"high temperature"})
	cat.Add("cough", "respiratory", nil)
	cat.Add("chest pain", "cardiovascular", nil)

	pipeline := extract.NewPipeline(cat, extract.WithLedger(s))
	gateway := approve.NewGateway(cat, s, zap.NewNop())

	srv := NewServer(ServerConfig{
		Catalog:  cat,
		Store:    s,
		Pipeline: pipeline,
		Gateway:  gateway,
		DBPath:   ":memory:",
	})
	return srv, s
}

func TestNewServer(t *testing.T) {
	srv, _ := setupTestServer(t)
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

// callTool invokes an MCP tool through the JSON-RPC dispatch path.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) *mcplib.CallToolResult {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}

	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	callResult := &mcplib.CallToolResult{IsError: resp.Result.IsError}
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			callResult.Content = append(callResult.Content, mcplib.NewTextContent(c.Text))
		}
	}
	return callResult
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func getTextContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found")
	return ""
}

func TestExtractTool(t *testing.T) {
	srv, _ := setupTestServer(t)

	result := callTool(t, srv, "symcat_extract", map[string]interface{}{
		"transcript": "Patient has a fever and reports a persistent cough.",
	})
	if result.IsError {
		t.Fatalf("extract tool errored: %s", getTextContent(t, result))
	}

	var out extract.Result
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &out); err != nil {
		t.Fatalf("parsing extract result: %v", err)
	}
	if out.SymptomCount != 2 {
		t.Fatalf("expected 2 symptoms, got %d: %+v", out.SymptomCount, out)
	}
	codes := map[string]bool{}
	for _, m := range out.SymptomsPresent {
		codes[m.Code] = true
	}
	if !codes["S00001"] || !codes["S00002"] {
		t.Fatalf("expected fever and cough codes, got %+v", out.SymptomsPresent)
	}
}

func TestExtractToolEmptyTranscript(t *testing.T) {
	srv, _ := setupTestServer(t)

	result := callTool(t, srv, "symcat_extract", map[string]interface{}{
		"transcript": "   ",
	})
	if !result.IsError {
		t.Fatal("expected error for blank transcript")
	}
}

func TestExtractToolLogsUnknowns(t *testing.T) {
	srv, s := setupTestServer(t)

	result := callTool(t, srv, "symcat_extract", map[string]interface{}{
		"transcript": "Patient reports severe zorbitis since Tuesday.",
	})
	if result.IsError {
		t.Fatalf("extract tool errored: %s", getTextContent(t, result))
	}

	pending, err := s.ListPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	found := false
	for _, e := range pending {
		if strings.Contains(e.Mention, "zorbitis") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a pending zorbitis review, got %+v", pending)
	}
}

func TestApproveTool(t *testing.T) {
	srv, _ := setupTestServer(t)

	result := callTool(t, srv, "symcat_approve", map[string]interface{}{
		"mention":  "zorbitis",
		"category": "general",
	})
	if result.IsError {
		t.Fatalf("approve tool errored: %s", getTextContent(t, result))
	}

	var out map[string]string
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &out); err != nil {
		t.Fatalf("parsing approve result: %v", err)
	}
	if out["code"] != "S00004" {
		t.Fatalf("expected S00004, got %q", out["code"])
	}

	// The approved term now resolves in extraction.
	extracted := callTool(t, srv, "symcat_extract", map[string]interface{}{
		"transcript": "Patient has zorbitis.",
	})
	var res extract.Result
	if err := json.Unmarshal([]byte(getTextContent(t, extracted)), &res); err != nil {
		t.Fatalf("parsing extract result: %v", err)
	}
	if res.SymptomCount != 1 || res.SymptomsPresent[0].Code != "S00004" {
		t.Fatalf("approved symptom not visible to extraction: %+v", res)
	}
}

func TestApproveToolMissingMention(t *testing.T) {
	srv, _ := setupTestServer(t)

	result := callTool(t, srv, "symcat_approve", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error when mention is missing")
	}
}

func TestPendingAndResolveTools(t *testing.T) {
	srv, _ := setupTestServer(t)

	callTool(t, srv, "symcat_extract", map[string]interface{}{
		"transcript": "Patient reports ongoing glorbnax today.",
	})

	pending := callTool(t, srv, "symcat_pending", map[string]interface{}{})
	if pending.IsError {
		t.Fatalf("pending tool errored: %s", getTextContent(t, pending))
	}
	var listing struct {
		Pending []store.ReviewEntry `json:"pending"`
		Count   int                 `json:"count"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, pending)), &listing); err != nil {
		t.Fatalf("parsing pending listing: %v", err)
	}
	if listing.Count == 0 {
		t.Fatal("expected at least one pending entry")
	}

	resolved := callTool(t, srv, "symcat_resolve", map[string]interface{}{
		"mention": listing.Pending[0].Mention,
	})
	if resolved.IsError {
		t.Fatalf("resolve tool errored: %s", getTextContent(t, resolved))
	}

	after := callTool(t, srv, "symcat_pending", map[string]interface{}{})
	var afterListing struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, after)), &afterListing); err != nil {
		t.Fatalf("parsing pending listing: %v", err)
	}
	if afterListing.Count != listing.Count-1 {
		t.Fatalf("expected one fewer pending entry, got %d (was %d)", afterListing.Count, listing.Count)
	}
}

func TestResolveToolRequiresTarget(t *testing.T) {
	srv, _ := setupTestServer(t)

	result := callTool(t, srv, "symcat_resolve", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error when neither id nor mention given")
	}
}

func TestStatsTool(t *testing.T) {
	srv, _ := setupTestServer(t)

	result := callTool(t, srv, "symcat_stats", map[string]interface{}{})
	if result.IsError {
		t.Fatalf("stats tool errored: %s", getTextContent(t, result))
	}

	var stats observe.Stats
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &stats); err != nil {
		t.Fatalf("parsing stats: %v", err)
	}
	if stats.Symptoms != 3 {
		t.Fatalf("expected 3 symptoms, got %d", stats.Symptoms)
	}
	if stats.Categories["respiratory"] != 1 {
		t.Fatalf("unexpected categories: %v", stats.Categories)
	}
}

func TestCatalogResource(t *testing.T) {
	srv, _ := setupTestServer(t)

	raw := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "resources/read",
		"params": map[string]interface{}{
			"uri": "symcat://catalog",
		},
	}))

	respBytes, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var resp struct {
		Result struct {
			Contents []struct {
				URI  string `json:"uri"`
				Text string `json:"text"`
			} `json:"contents"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("resource read error: %s", resp.Error.Message)
	}
	if len(resp.Result.Contents) == 0 {
		t.Fatal("expected resource contents")
	}

	var payload struct {
		Symptoms []catalog.Symptom `json:"symptoms"`
		Count    int               `json:"count"`
	}
	if err := json.Unmarshal([]byte(resp.Result.Contents[0].Text), &payload); err != nil {
		t.Fatalf("parsing catalog payload: %v", err)
	}
	if payload.Count != 3 || payload.Symptoms[0].Code != "S00001" {
		t.Fatalf("unexpected catalog payload: %+v", payload)
	}
}
