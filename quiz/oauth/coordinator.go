package oauth

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mischool/quiz/config"
)

const (
	// PopupName is the browsing context name of the login popup.
	PopupName = "Google Login"

	// StatusSuccess is the payload status that completes a login.
	StatusSuccess = "success"

	popupBlockedMessage = "Popup blocked! Please allow popups for this site."
)

var ErrPopupBlocked = errors.New("popup blocked")

// Payload is the message body posted by the auth popup.
type Payload struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
}

// Coordinator opens the login popup and reacts to its result.
type Coordinator struct {
	win       Window
	endpoints config.Endpoints
	remove    func()
}

// NewCoordinator creates a coordinator for win.
func NewCoordinator(win Window, endpoints config.Endpoints) *Coordinator {
	return &Coordinator{
		win:       win,
		endpoints: endpoints,
	}
}

// Initiate opens the centered login popup. When the window refuses to open it
// alerts the user once and returns ErrPopupBlocked.
func (c *Coordinator) Initiate() error {
	screenWidth, screenHeight := c.win.ScreenSize()
	features := CenteredFeatures(screenWidth, screenHeight, c.endpoints.PopupWidth, c.endpoints.PopupHeight)

	if !c.win.Open(c.endpoints.AuthURL, PopupName, features) {
		c.win.Alert(popupBlockedMessage)
		return ErrPopupBlocked
	}

	log.Debug().Str("url", c.endpoints.AuthURL).Str("features", features.String()).Msg("[oauth] login popup opened")
	return nil
}

// Listen registers the message listener. Calling it again while registered
// does nothing.
func (c *Coordinator) Listen() {
	if c.remove != nil {
		return
	}
	c.remove = c.win.AddMessageListener(func(m Message) {
		c.HandleMessage(m)
	})
}

// Listening reports whether the message listener is registered.
func (c *Coordinator) Listening() bool {
	return c.remove != nil
}

// Stop removes the message listener.
func (c *Coordinator) Stop() {
	if c.remove == nil {
		return
	}
	c.remove()
	c.remove = nil
}

// HandleMessage processes one cross-window message and reports whether it
// triggered navigation. Messages from any origin other than the trusted one,
// and payloads that are not a success, are dropped silently.
func (c *Coordinator) HandleMessage(m Message) bool {
	if m.Origin != c.endpoints.TrustedOrigin {
		return false
	}

	payload, ok := decodePayload(m.Data)
	if !ok || payload.Status != StatusSuccess {
		return false
	}

	if payload.Token != "" {
		logToken(payload.Token)
	}

	log.Info().Str("url", c.endpoints.HomeURL).Msg("[oauth] login succeeded, navigating home")
	c.win.Navigate(c.endpoints.HomeURL)
	return true
}

// decodePayload reads status and token independently so a token of an
// unexpected type does not hide a valid status.
func decodePayload(data json.RawMessage) (Payload, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Payload{}, false
	}

	var p Payload
	if err := json.Unmarshal(fields["status"], &p.Status); err != nil {
		return Payload{}, false
	}
	if raw, ok := fields["token"]; ok {
		_ = json.Unmarshal(raw, &p.Token)
	}
	return p, true
}

func logToken(raw string) {
	claims, err := InspectToken(raw)
	if err != nil {
		log.Debug().Err(err).Msg("[oauth] token present but not decodable")
		return
	}
	ev := log.Debug().Str("subject", claims.Subject).Str("method", claims.Method)
	if exp := claims.ExpiresAtTime(); !exp.IsZero() {
		ev = ev.Time("expires_at", exp)
	}
	ev.Msg("[oauth] token received")
}
