// Package page is the landing page: a Google login button and the join form.
//
// A Page is not safe for concurrent use. Hosts call every method from a single
// goroutine, the same one that delivers window messages.
package page

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mischool/quiz/config"
	"github.com/wricardo/mischool/quiz/form"
	"github.com/wricardo/mischool/quiz/oauth"
	"github.com/wricardo/mischool/quiz/session"
	"github.com/wricardo/mischool/transport/websocket"
)

var ErrNotMounted = errors.New("page is not mounted")

// Starter opens play sessions.
type Starter interface {
	Start(ctx context.Context, roomCode, nickname string) *websocket.Session
}

// Page wires the login coordinator, the join form and the sessions it opens.
type Page struct {
	win      oauth.Window
	coord    *oauth.Coordinator
	starter  Starter
	form     form.Form
	sessions *session.Registry
	mounted  bool
}

// New creates an unmounted page.
func New(win oauth.Window, endpoints config.Endpoints, starter Starter) *Page {
	return &Page{
		win:      win,
		coord:    oauth.NewCoordinator(win, endpoints),
		starter:  starter,
		sessions: session.NewRegistry(),
	}
}

// Mount starts listening for login results with an empty form.
func (p *Page) Mount() {
	if p.mounted {
		return
	}
	p.form.Reset()
	p.coord.Listen()
	p.mounted = true
	log.Debug().Msg("[join] page mounted")
}

// Unmount removes the message listener, closes every open session and
// discards the form.
func (p *Page) Unmount() {
	if !p.mounted {
		return
	}
	p.coord.Stop()
	n := p.sessions.CloseAll()
	p.form.Reset()
	p.mounted = false
	log.Debug().Int("sessions_closed", n).Msg("[join] page unmounted")
}

// Mounted reports whether the page is mounted.
func (p *Page) Mounted() bool { return p.mounted }

// Listening reports whether login results are being received.
func (p *Page) Listening() bool { return p.coord.Listening() }

// Login opens the Google login popup.
func (p *Page) Login() error {
	if !p.mounted {
		return ErrNotMounted
	}
	return p.coord.Initiate()
}

func (p *Page) SetNickname(value string) { p.form.SetNickname(value) }
func (p *Page) SetPIN(value string)      { p.form.SetPIN(value) }
func (p *Page) Nickname() string         { return p.form.Nickname() }
func (p *Page) PIN() string              { return p.form.PIN() }

// CanSubmit reports whether the join button is enabled.
func (p *Page) CanSubmit() bool { return p.form.CanSubmit() }

// Submit validates the form and starts a play session. On a validation
// failure the user is alerted once and no connection is opened. The session
// lives until ctx is done, Leave is called or the page is unmounted.
func (p *Page) Submit(ctx context.Context) (*websocket.Session, error) {
	if !p.mounted {
		return nil, ErrNotMounted
	}

	if err := p.form.Validate(); err != nil {
		var verr *form.ValidationError
		if errors.As(err, &verr) {
			p.win.Alert(verr.Message)
		}
		return nil, err
	}

	pin, nickname := p.form.PIN(), p.form.Nickname()
	log.Info().Str("pin", pin).Str("nickname", nickname).Msg("[join] Joining game")

	s := p.starter.Start(ctx, pin, nickname)
	if err := p.sessions.Add(s); err != nil {
		if s != nil {
			if cerr := s.Close(); cerr != nil {
				log.Warn().Err(cerr).Str("session", s.ID).Msg("[join] failed to close session")
			}
		}
		return nil, err
	}
	return s, nil
}

// Session returns an open session by ID.
func (p *Page) Session(id string) (*websocket.Session, error) {
	return p.sessions.Get(id)
}

// Sessions lists the sessions still open, oldest first.
func (p *Page) Sessions() []*websocket.Session {
	return p.sessions.List()
}

// Leave closes one session.
func (p *Page) Leave(id string) error {
	return p.sessions.Remove(id)
}
