package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/listwizard/internal/progress"
	"github.com/rendis/listwizard/internal/session"
	"github.com/rendis/listwizard/internal/wizard"
	"github.com/rendis/listwizard/pkg/schema"
)

// sessionResult is returned by every tool that acts on a session.
type sessionResult struct {
	wizard.State
	Progress progress.View `json:"progress"`
}

// handleStart opens a session.
func (s *Server) handleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := s.sessions.Start(ctx, session.StartRequest{
		DraftID: req.GetString("draft_id", ""),
		StepID:  req.GetString("step_id", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	s.captureClient(ctx, sess.SessionID())
	return sessionJSON(sess)
}

// handleAnswer records one answer. An address object wins over value.
func (s *Server) handleAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := s.lookup(req)
	if res != nil {
		return res, nil
	}
	stepID, err := req.RequireString("step_id")
	if err != nil {
		return mcp.NewToolResultError("step_id is required"), nil
	}

	var value any
	if addr := mcp.ParseStringMap(req, "address", nil); addr != nil {
		value = addr
	} else if v, err := req.RequireString("value"); err == nil {
		value = v
	} else {
		return mcp.NewToolResultError("value or address is required"), nil
	}

	if err := sess.Answer(ctx, stepID, value); err != nil {
		return toolError(err), nil
	}
	return sessionJSON(sess)
}

// handleNavigate moves the session.
func (s *Server) handleNavigate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := s.lookup(req)
	if res != nil {
		return res, nil
	}
	direction, err := req.RequireString("direction")
	if err != nil {
		return mcp.NewToolResultError("direction is required"), nil
	}

	switch direction {
	case "next":
		err = sess.Next(ctx)
	case "previous":
		err = sess.Previous(ctx)
	case "jump":
		target, reqErr := req.RequireString("step_id")
		if reqErr != nil {
			return mcp.NewToolResultError("step_id is required for jump"), nil
		}
		_, err = sess.JumpTo(ctx, target)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown direction %q: must be next, previous, or jump", direction)), nil
	}
	if err != nil {
		return toolError(err), nil
	}
	return sessionJSON(sess)
}

// handleExit saves and closes the session.
func (s *Server) handleExit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, res := s.lookup(req)
	if res != nil {
		return res, nil
	}
	if err := sess.Exit(ctx); err != nil {
		return toolError(err), nil
	}
	return sessionJSON(sess)
}

// handleProgress reports progress of a live session or a saved draft.
func (s *Server) handleProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := req.GetString("session_id", ""); id != "" {
		sess, err := s.sessions.Get(id)
		if err != nil {
			return toolError(err), nil
		}
		return marshalResult(sess.Progress())
	}
	draftID := req.GetString("draft_id", "")
	if draftID == "" {
		return mcp.NewToolResultError("session_id or draft_id is required"), nil
	}
	v, err := s.sessions.DraftProgress(ctx, draftID)
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(v)
}

// handleCatalog lists sections and questions.
func (s *Server) handleCatalog(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cat := s.sessions.Engine().Catalog
	return marshalResult(map[string]any{
		"version":  cat.Version(),
		"sections": cat.Sections(),
		"steps":    cat.Steps(),
	})
}

func (s *Server) lookup(req mcp.CallToolRequest) (*session.Session, *mcp.CallToolResult) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return nil, mcp.NewToolResultError("session_id is required")
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, toolError(err)
	}
	return sess, nil
}

// captureClient maps the wizard session to the calling MCP client for notifications.
func (s *Server) captureClient(ctx context.Context, sessionID string) {
	if client := server.ClientSessionFromContext(ctx); client != nil {
		s.clients.Register(sessionID, client.SessionID())
	}
}

func sessionJSON(sess *session.Session) (*mcp.CallToolResult, error) {
	return marshalResult(sessionResult{State: sess.State(), Progress: sess.Progress()})
}

// toolError converts err to an error tool result carrying its code.
func toolError(err error) *mcp.CallToolResult {
	if code := schema.CodeOf(err); code != "" {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("[%s] %v", schema.ErrCodeStore, err))
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
