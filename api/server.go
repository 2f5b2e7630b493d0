package api

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mischool/host"
	"github.com/wricardo/mischool/quiz/oauth"
)

// NonceHeader carries the per-run bridge nonce.
const NonceHeader = "X-Bridge-Nonce"

// LoginNotice is shown whenever a login starts through the bridge. Browsers
// only deliver window.postMessage when the target origin matches the opener,
// and the production sign-in page targets its own origin, not the bridge.
const LoginNotice = "Note: the production sign-in page only posts its result to its own origin, " +
	"so this client sees the login complete only when --auth-url points at a server that posts to the bridge page."

// maxMessageBody bounds a relayed message.
const maxMessageBody = 64 << 10

//go:embed templates/bridge.html
var templateFS embed.FS

var bridgeTemplate = template.Must(template.ParseFS(templateFS, "templates/bridge.html"))

// PopupSource reports the popup the bridge page should open.
type PopupSource interface {
	Popup() (host.Popup, bool)
}

// Dispatcher receives relayed messages. Dispatch returns false when the
// receiver is gone.
type Dispatcher interface {
	Dispatch(m oauth.Message) bool
}

// Server represents the bridge HTTP server
type Server struct {
	popups     PopupSource
	dispatcher Dispatcher
	nonce      string
	origin     string
	router     *mux.Router
}

// NewServer creates a bridge with a fresh nonce.
func NewServer(popups PopupSource, dispatcher Dispatcher) *Server {
	s := &Server{
		popups:     popups,
		dispatcher: dispatcher,
		nonce:      uuid.NewString(),
		router:     mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleBridgePage).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/messages", s.handleMessage).Methods("POST")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Nonce returns the value relayed messages must present.
func (s *Server) Nonce() string { return s.nonce }

// SetOrigin sets the origin the bridge is served from. Requests with an
// Origin header must match it. It must be called before serving.
func (s *Server) SetOrigin(origin string) { s.origin = origin }

// Listen binds addr, which must be a loopback address, and serves until ctx is
// done. It returns the bridge base URL.
func (s *Server) Listen(ctx context.Context, addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok || !tcpAddr.IP.IsLoopback() {
		ln.Close()
		return "", fmt.Errorf("bridge must listen on a loopback address, got %s", ln.Addr())
	}

	baseURL := "http://" + ln.Addr().String()
	s.SetOrigin(baseURL)

	httpServer := &http.Server{
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("[bridge] server stopped")
		}
	}()
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	})

	log.Debug().Str("url", baseURL).Msg("[bridge] listening")
	return baseURL + "/", nil
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type bridgeView struct {
	Pending   bool
	PopupURL  string
	PopupName string
	Features  string
	Nonce     string
}

func (s *Server) handleBridgePage(w http.ResponseWriter, r *http.Request) {
	view := bridgeView{Nonce: s.nonce}
	if popup, ok := s.popups.Popup(); ok {
		view.Pending = true
		view.PopupURL = popup.URL
		view.PopupName = popup.Name
		view.Features = popup.Features.String()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := bridgeTemplate.Execute(w, view); err != nil {
		log.Error().Err(err).Msg("[bridge] failed to render page")
	}
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	nonce := r.Header.Get(NonceHeader)
	if subtle.ConstantTimeCompare([]byte(nonce), []byte(s.nonce)) != 1 {
		respondError(w, http.StatusForbidden, "invalid nonce")
		return
	}
	if origin := r.Header.Get("Origin"); origin != "" && origin != s.origin {
		respondError(w, http.StatusForbidden, "cross-origin request")
		return
	}

	var msg oauth.Message
	body := io.LimitReader(r.Body, maxMessageBody)
	if err := json.NewDecoder(body).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid message")
		return
	}
	if len(msg.Data) == 0 {
		respondError(w, http.StatusBadRequest, "message data is required")
		return
	}

	if !s.dispatcher.Dispatch(msg) {
		respondError(w, http.StatusServiceUnavailable, "client is shutting down")
		return
	}

	log.Debug().Str("origin", msg.Origin).Msg("[bridge] message relayed")
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
