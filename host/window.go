package host

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mischool/quiz/oauth"
)

// Popup is the most recent window.open request, served by the bridge page.
type Popup struct {
	URL      string
	Name     string
	Features oauth.Features
}

// WindowConfig configures a Window.
type WindowConfig struct {
	ScreenWidth  int
	ScreenHeight int
	// BridgeURL is where the bridge page is served. When empty, popups are
	// opened directly and no messages come back from them.
	BridgeURL string
	Launcher  Launcher
	// Alerts receives alert text, one line each.
	Alerts io.Writer
}

// Window implements oauth.Window on top of a Loop.
type Window struct {
	loop   *Loop
	cfg    WindowConfig
	navCh  chan string
	mu     sync.Mutex
	popup  *Popup
	nextID int
	// listeners is only touched on the loop.
	listeners map[int]func(oauth.Message)
}

// NewWindow creates a window whose messages are delivered on loop.
func NewWindow(loop *Loop, cfg WindowConfig) *Window {
	if cfg.Launcher == nil {
		cfg.Launcher = SystemLauncher{}
	}
	if cfg.Alerts == nil {
		cfg.Alerts = io.Discard
	}
	return &Window{
		loop:      loop,
		cfg:       cfg,
		navCh:     make(chan string, 1),
		listeners: make(map[int]func(oauth.Message)),
	}
}

// SetBridgeURL points popups at the bridge page.
func (w *Window) SetBridgeURL(url string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg.BridgeURL = url
}

func (w *Window) ScreenSize() (int, int) {
	return w.cfg.ScreenWidth, w.cfg.ScreenHeight
}

// Open records the popup request and launches the browser at the bridge
// page, which performs the actual window.open. A launcher failure counts as
// a blocked popup.
func (w *Window) Open(url, name string, features oauth.Features) bool {
	w.mu.Lock()
	w.popup = &Popup{URL: url, Name: name, Features: features}
	target := w.cfg.BridgeURL
	w.mu.Unlock()

	if target == "" {
		target = url
	}
	if err := w.cfg.Launcher.Launch(target); err != nil {
		log.Error().Err(err).Str("url", target).Msg("[oauth] failed to open browser")
		return false
	}
	return true
}

// Popup returns the pending popup request, if any.
func (w *Window) Popup() (Popup, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.popup == nil {
		return Popup{}, false
	}
	return *w.popup, true
}

func (w *Window) Alert(message string) {
	log.Warn().Str("alert", message).Msg("[join] alert")
	fmt.Fprintln(w.cfg.Alerts, message)
}

// Navigate opens url in the browser and reports it on Navigated.
func (w *Window) Navigate(url string) {
	if err := w.cfg.Launcher.Launch(url); err != nil {
		log.Error().Err(err).Str("url", url).Msg("[oauth] failed to open browser")
	}
	select {
	case w.navCh <- url:
	default:
	}
}

// Navigated delivers the target of the most recent navigation not yet read.
func (w *Window) Navigated() <-chan string {
	return w.navCh
}

func (w *Window) AddMessageListener(fn func(oauth.Message)) func() {
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	return func() { delete(w.listeners, id) }
}

// Dispatch queues m for the message listeners. It is safe to call from any
// goroutine and returns false once the loop has stopped.
func (w *Window) Dispatch(m oauth.Message) bool {
	return w.loop.Post(func() {
		for _, fn := range w.listeners {
			fn(m)
		}
	})
}
