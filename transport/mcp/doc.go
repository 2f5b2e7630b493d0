// Package mcp exposes the join page as Model Context Protocol tools.
//
// MCP Tools:
//   - login: Open the Google login popup
//   - join_game: Fill in the join form and submit it
//   - leave_game: Close one play session
//   - list_sessions: List open play sessions
//   - session_status: Show the state of one play session
//
// Every tool call runs on the host loop, so the page sees tool calls and
// browser messages in a single order. Form validation failures are returned as
// tool errors carrying the same text the user would be alerted with.
//
// Usage:
//
//	srv := mcp.NewServer(ctx, p, loop, version)
//	if err := srv.ServeStdio(); err != nil {
//		log.Fatal(err)
//	}
package mcp
