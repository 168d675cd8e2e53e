// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes echolog tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/echolog/internal/apperr"
	"github.com/starford/echolog/internal/memoservice"
)

const guideURI = "echolog://memo-guide"

// Server wraps the MCP server with echolog tools. Every tool acts on behalf
// of a single owner.
type Server struct {
	mcp   *server.MCPServer
	svc   *memoservice.Service
	owner string
}

// New creates a new MCP server with all echolog tools registered.
func New(svc *memoservice.Service, owner string) *Server {
	s := &Server{svc: svc, owner: owner}

	s.mcp = server.NewMCPServer(
		"echolog",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_memos",
		mcp.WithDescription("Full-text search through memo transcriptions, summaries and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchMemos)

	s.mcp.AddTool(mcp.NewTool("read_memo",
		mcp.WithDescription("Read a memo with its transcription, summary, tags and related memo ids."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Memo id")),
	), s.readMemo)

	s.mcp.AddTool(mcp.NewTool("related_memos",
		mcp.WithDescription("List the memos related to a memo by meaning, best match first."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Memo id")),
	), s.relatedMemos)

	s.mcp.AddTool(mcp.NewTool("knowledge_graph",
		mcp.WithDescription("Return the laid out graph of recent memos and their associations."),
		mcp.WithString("tag", mcp.Description("Only include memos carrying this tag")),
		mcp.WithNumber("limit", mcp.Description("Number of most recent memos to include")),
	), s.knowledgeGraph)

	s.mcp.AddTool(mcp.NewTool("create_memo",
		mcp.WithDescription("Create a memo from text. Summary and tags are generated when omitted. "+
			"Read the memo guide first via the get_memo_guide tool or the "+guideURI+" resource."),
		mcp.WithString("transcription", mcp.Required(), mcp.Description("Memo text")),
		mcp.WithString("summary", mcp.Description("Optional title")),
		mcp.WithString("tags", mcp.Description("Optional comma separated tags")),
	), s.createMemo)

	s.mcp.AddTool(mcp.NewTool("get_memo_guide",
		mcp.WithDescription("Returns the echolog memo guide."),
	), s.getMemoGuide)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Memo Guide",
			mcp.WithResourceDescription("How echolog memos are structured and linked."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMemoGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(id string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) searchMemos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.SearchText(ctx, s.owner, query, req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readMemo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.Get(ctx, s.owner, id)
	if err != nil {
		return errorResult(id, err), nil
	}
	m.Embedding = nil
	return jsonResult(m), nil
}

func (s *Server) relatedMemos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	memos, err := s.svc.Related(ctx, s.owner, id)
	if err != nil {
		return errorResult(id, err), nil
	}
	if len(memos) == 0 {
		return mcp.NewToolResultText("no related memos found"), nil
	}
	lines := make([]string, len(memos))
	for i, m := range memos {
		lines[i] = m.ID + "\t" + m.Summary
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) knowledgeGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := s.svc.Graph(ctx, s.owner, req.GetString("tag", ""), req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(g), nil
}

func (s *Server) createMemo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("transcription")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := memoservice.CreateInput{
		Transcription: text,
		Summary:       req.GetString("summary", ""),
	}
	for _, t := range strings.Split(req.GetString("tags", ""), ",") {
		if t = strings.TrimSpace(t); t != "" {
			in.Tags = append(in.Tags, t)
		}
	}

	m, err := s.svc.Create(ctx, s.owner, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", m.ID)), nil
}

func (s *Server) getMemoGuide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MemoGuide), nil
}

func (s *Server) readMemoGuideResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     MemoGuide,
		},
	}, nil
}
