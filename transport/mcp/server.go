package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mischool/api"
	"github.com/wricardo/mischool/host"
	"github.com/wricardo/mischool/quiz/page"
	"github.com/wricardo/mischool/transport/websocket"
)

// Server serves the page over MCP.
type Server struct {
	// ctx bounds the sessions opened by join_game.
	ctx       context.Context
	page      *page.Page
	loop      *host.Loop
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server for p. Play sessions opened through it last
// until ctx is done or they are left.
func NewServer(ctx context.Context, p *page.Page, loop *host.Loop, version string) *Server {
	s := &Server{
		ctx:  ctx,
		page: p,
		loop: loop,
	}

	s.initMCPServer(version)
	return s
}

func (s *Server) initMCPServer(version string) {
	s.mcpServer = server.NewMCPServer(
		"MI School",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`MI School - join a live quiz

AVAILABLE TOOLS:
- login: Open the Google login popup in the user's browser
- join_game: Join a game with an 8-digit PIN and a nickname (max 15 characters)
- leave_game: Leave a game by session ID
- list_sessions: List the games currently joined
- session_status: Show connection state and the last message received for a session

The PIN keeps only its digits. Messages sent by the game server are opaque JSON.`),
	)

	s.registerTools()
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "login",
		Description: "Open the Google login popup. The user completes sign-in in the browser.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleLogin)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "join_game",
		Description: "Join a running game session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"pin": map[string]interface{}{
					"type":        "string",
					"description": "8-digit game PIN. Non-digit characters are dropped",
				},
				"nickname": map[string]interface{}{
					"type":        "string",
					"description": "Display name, at most 15 characters",
				},
			},
			Required: []string{"pin", "nickname"},
		},
	}, s.handleJoinGame)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "leave_game",
		Description: "Close the connection of a joined game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID returned by join_game",
				},
			},
			Required: []string{"session_id"},
		},
	}, s.handleLeaveGame)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all joined games",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListSessions)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "session_status",
		Description: "Get the connection state of a joined game",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID returned by join_game",
				},
			},
			Required: []string{"session_id"},
		},
	}, s.handleSessionStatus)
}

// GetMCPServer returns the underlying MCP server for serving
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP on stdin and stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Tool handlers

func (s *Server) handleLogin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var err error
	if doErr := s.loop.Do(ctx, func() { err = s.page.Login() }); doErr != nil {
		return mcp.NewToolResultError(doErr.Error()), nil
	}
	if err != nil {
		return mcp.NewToolResultError(loginErrorText(err)), nil
	}
	return mcp.NewToolResultText("Login popup opened. Complete sign-in in the browser.\n" + api.LoginNotice), nil
}

func (s *Server) handleJoinGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	pin, _ := args["pin"].(string)
	nickname, _ := args["nickname"].(string)

	var (
		sess *websocket.Session
		err  error
	)
	doErr := s.loop.Do(ctx, func() {
		s.page.SetPIN(pin)
		s.page.SetNickname(nickname)
		sess, err = s.page.Submit(s.ctx)
	})
	if doErr != nil {
		return mcp.NewToolResultError(doErr.Error()), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Joining game %s as %q\nSession: %s\nURL: %s\n",
		sess.RoomCode, sess.Nickname, sess.ID, sess.URL)
	return mcp.NewToolResultText(result), nil
}

func (s *Server) handleLeaveGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)

	var err error
	if doErr := s.loop.Do(ctx, func() { err = s.page.Leave(sessionID) }); doErr != nil {
		return mcp.NewToolResultError(doErr.Error()), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", sessionID, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Left session %s\n", sessionID)), nil
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sessions []*websocket.Session
	if doErr := s.loop.Do(ctx, func() { sessions = s.page.Sessions() }); doErr != nil {
		return mcp.NewToolResultError(doErr.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Joined Games (%d):\n\n", len(sessions))
	for _, sess := range sessions {
		fmt.Fprintf(&b, "- %s (PIN: %s, Nickname: %q, State: %s, Joined: %s)\n",
			sess.ID, sess.RoomCode, sess.Nickname, sess.State(), sess.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleSessionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)

	var (
		sess *websocket.Session
		err  error
	)
	if doErr := s.loop.Do(ctx, func() { sess, err = s.page.Session(sessionID) }); doErr != nil {
		return mcp.NewToolResultError(doErr.Error()), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", sessionID, err)), nil
	}

	return mcp.NewToolResultText(formatSessionStatus(sess)), nil
}

func loginErrorText(err error) string {
	if errors.Is(err, page.ErrNotMounted) {
		return "The page is not ready. Restart the MCP server."
	}
	return err.Error()
}

func formatSessionStatus(sess *websocket.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", sess.ID)
	fmt.Fprintf(&b, "PIN: %s\n", sess.RoomCode)
	fmt.Fprintf(&b, "Nickname: %q\n", sess.Nickname)
	fmt.Fprintf(&b, "State: %s\n", sess.State())
	fmt.Fprintf(&b, "Joined: %s\n", sess.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Messages received: %d\n", sess.Received())
	if last := sess.LastMessage(); last != nil {
		fmt.Fprintf(&b, "Last message: %s\n", last)
	}
	if err := sess.Err(); err != nil {
		fmt.Fprintf(&b, "Error: %v\n", err)
	}
	return b.String()
}
