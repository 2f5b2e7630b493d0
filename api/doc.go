// Package api serves the loopback bridge between the system browser and the
// page.
//
// A terminal program cannot receive window.postMessage events, so the login
// popup is opened by a small page served from 127.0.0.1. That page relays
// every message it receives back to the process.
//
// Endpoints:
//   - GET / - Bridge page. Opens the pending popup and relays its messages
//   - POST /api/messages - Relayed message {"origin": ..., "data": ...}
//   - GET /healthz - Liveness
//
// Relayed messages must carry the per-run nonce in the X-Bridge-Nonce header.
// Browsers also send an Origin header, which must match the bridge's own
// origin. The origin field inside the body is the origin reported by the
// browser for the popup and is checked later by the login coordinator.
package api
