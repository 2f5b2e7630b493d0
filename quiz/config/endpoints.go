package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	DefaultAuthURL       = "https://cuda.network/auth/google"
	DefaultTrustedOrigin = "https://cuda.network"
	DefaultHomeURL       = "https://cuda.network"
	DefaultPlayURL       = "wss://cuda.network/api/play"

	DefaultPopupWidth  = 500
	DefaultPopupHeight = 600
)

var ErrInvalidEndpoints = errors.New("invalid endpoints")

// Endpoints describes every external address the client uses.
type Endpoints struct {
	// AuthURL is opened in the login popup.
	AuthURL string `json:"auth_url"`
	// TrustedOrigin is the only origin whose messages are accepted.
	TrustedOrigin string `json:"trusted_origin"`
	// HomeURL is the navigation target after a successful login.
	HomeURL string `json:"home_url"`
	// PlayURL is the WebSocket endpoint without query parameters.
	PlayURL string `json:"play_url"`

	PopupWidth  int `json:"popup_width"`
	PopupHeight int `json:"popup_height"`

	// HandshakeTimeout bounds the WebSocket opening handshake. Zero means no
	// timeout.
	HandshakeTimeout time.Duration `json:"handshake_timeout"`
}

// DefaultEndpoints returns the production endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthURL:       DefaultAuthURL,
		TrustedOrigin: DefaultTrustedOrigin,
		HomeURL:       DefaultHomeURL,
		PlayURL:       DefaultPlayURL,
		PopupWidth:    DefaultPopupWidth,
		PopupHeight:   DefaultPopupHeight,
	}
}

// Validate checks that every endpoint is an absolute URL with the expected
// scheme and that the popup has a positive size.
func (e Endpoints) Validate() error {
	if err := checkURL("auth_url", e.AuthURL, "http", "https"); err != nil {
		return err
	}
	if err := checkURL("home_url", e.HomeURL, "http", "https"); err != nil {
		return err
	}
	if err := checkURL("play_url", e.PlayURL, "ws", "wss"); err != nil {
		return err
	}
	if err := checkURL("trusted_origin", e.TrustedOrigin, "http", "https"); err != nil {
		return err
	}

	origin, _ := url.Parse(e.TrustedOrigin)
	if (origin.Path != "" && origin.Path != "/") || origin.RawQuery != "" || origin.Fragment != "" {
		return fmt.Errorf("%w: trusted_origin must be scheme://host[:port], got %q", ErrInvalidEndpoints, e.TrustedOrigin)
	}

	if e.PopupWidth <= 0 || e.PopupHeight <= 0 {
		return fmt.Errorf("%w: popup size must be positive, got %dx%d", ErrInvalidEndpoints, e.PopupWidth, e.PopupHeight)
	}
	if e.HandshakeTimeout < 0 {
		return fmt.Errorf("%w: handshake_timeout must not be negative", ErrInvalidEndpoints)
	}
	return nil
}

func checkURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidEndpoints, field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidEndpoints, field, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %s must be absolute, got %q", ErrInvalidEndpoints, field, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s scheme must be one of %v, got %q", ErrInvalidEndpoints, field, schemes, u.Scheme)
}
