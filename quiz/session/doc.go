// Package session keeps track of the play sessions a page has opened.
//
// Every call to join a game produces one websocket.Session. The Registry holds
// it until the connection ends, at which point it removes itself. Pages call
// CloseAll on teardown so no connection outlives the surface that opened it.
//
// Usage:
//
//	reg := session.NewRegistry()
//	reg.Add(initiator.Start(ctx, pin, nickname))
//
//	// Later, on teardown
//	reg.CloseAll()
//
// The registry is safe for concurrent use. Lookups by ID are case-insensitive.
package session
