// Package mcp exposes listing wizard sessions as MCP tools so an assistant
// can fill a listing draft on behalf of a seller.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/listwizard/internal/session"
	"github.com/rendis/listwizard/internal/streaming"
)

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Sessions *session.Manager
	Hub      streaming.EventHub
	Logger   *slog.Logger
}

// Server wraps an MCP server with the listing wizard tool handlers.
type Server struct {
	sessions  *session.Manager
	hub       streaming.EventHub
	logger    *slog.Logger
	clients   *SessionRegistry
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all listing tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &Server{
		sessions: deps.Sessions,
		hub:      deps.Hub,
		logger:   logger.With(slog.String("component", "mcp")),
		clients:  NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"listwizard",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("listwizard guides a seller through creating a home listing. "+
			"Call listing.start to open a session, listing.answer to record answers, listing.navigate to move "+
			"between questions, listing.progress to see which sections are complete, and listing.exit to save "+
			"and leave. listing.catalog lists every question and its options."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
// Session events are forwarded to the client that opened the session.
func (s *Server) Serve(ctx context.Context) error {
	if s.hub != nil {
		n := NewNotifier(s.mcpServer, s.clients, s.logger)
		if err := n.Forward(ctx, s.hub); err != nil {
			return err
		}
	}
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: startTool(), Handler: s.handleStart},
		{Tool: answerTool(), Handler: s.handleAnswer},
		{Tool: navigateTool(), Handler: s.handleNavigate},
		{Tool: exitTool(), Handler: s.handleExit},
		{Tool: progressTool(), Handler: s.handleProgress},
		{Tool: catalogTool(), Handler: s.handleCatalog},
	}
}

// --- Tool definitions ---

func startTool() mcp.Tool {
	return mcp.NewTool("listing.start",
		mcp.WithDescription("Open a wizard session on a new listing draft or resume a saved one"),
		mcp.WithString("draft_id", mcp.Description("Saved draft to resume (default: new draft)")),
		mcp.WithString("step_id", mcp.Description("Question or section to open at (legacy ids accepted)")),
	)
}

func answerTool() mcp.Tool {
	return mcp.NewTool("listing.answer",
		mcp.WithDescription("Record the answer to one question"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Wizard session")),
		mcp.WithString("step_id", mcp.Required(), mcp.Description("Question id, e.g. propertyType")),
		mcp.WithString("value", mcp.Description("Option value or free text")),
		mcp.WithObject("address", mcp.Description("Address answer: line1, line2, city, state, postalCode")),
	)
}

func navigateTool() mcp.Tool {
	return mcp.NewTool("listing.navigate",
		mcp.WithDescription("Move between questions. next on the last question completes the listing"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Wizard session")),
		mcp.WithString("direction", mcp.Required(),
			mcp.Enum("next", "previous", "jump"),
			mcp.Description("Where to move"),
		),
		mcp.WithString("step_id", mcp.Description("Target for jump: question or section id")),
	)
}

func exitTool() mcp.Tool {
	return mcp.NewTool("listing.exit",
		mcp.WithDescription("Save the draft and leave the wizard"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Wizard session")),
	)
}

func progressTool() mcp.Tool {
	return mcp.NewTool("listing.progress",
		mcp.WithDescription("Show section and question progress of a session or a saved draft"),
		mcp.WithString("session_id", mcp.Description("Live wizard session")),
		mcp.WithString("draft_id", mcp.Description("Saved draft (used when session_id is empty)")),
	)
}

func catalogTool() mcp.Tool {
	return mcp.NewTool("listing.catalog",
		mcp.WithDescription("List the wizard sections and every question with its options"),
	)
}
