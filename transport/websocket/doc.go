// Package websocket opens the play connection for a join attempt.
//
// The websocket package implements:
//   - Play URL construction with percent-encoded room code and nickname
//   - A Session handle that owns exactly one outbound connection
//   - Logging of inbound frames, errors and disconnects
//
// Message Protocol:
//
// The game server's protocol is not defined by this client. Inbound frames are
// parsed as JSON and logged; well-known top-level fields ("action", "error")
// are surfaced as log fields but never interpreted. Nothing is sent after the
// opening handshake.
//
// Usage:
//
//	initiator := websocket.NewInitiator(config.DefaultEndpoints())
//	session := initiator.Start(ctx, "20251010", "Ava")
//	defer session.Close()
//
//	<-session.Done()
//
// Connection Lifecycle:
//
// 1. Start returns immediately with the session in the connecting state
// 2. The session goroutine dials the play URL
// 3. Frames are logged in receipt order until the server or network closes
// 4. Close, or cancellation of the context given to Start, tears it down
//
// There is no reconnection, heartbeat or handshake timeout unless one is
// configured on the endpoints.
package websocket
