package oauth

import (
	"encoding/json"
	"fmt"
)

// Message is a cross-window message as delivered to the opener.
type Message struct {
	Origin string          `json:"origin"`
	Data   json.RawMessage `json:"data"`
}

// Window is the browsing context that hosts the login button.
type Window interface {
	// ScreenSize returns the current screen dimensions in pixels.
	ScreenSize() (width, height int)
	// Open creates a new browsing context at url. It returns false when the
	// window could not be created (popup blocked).
	Open(url, name string, features Features) bool
	// Alert shows a blocking message to the user.
	Alert(message string)
	// Navigate replaces the top-level document with url.
	Navigate(url string)
	// AddMessageListener registers fn for cross-window messages and returns
	// a function that removes it.
	AddMessageListener(fn func(Message)) (remove func())
}

// Features is the popup geometry passed to Window.Open.
type Features struct {
	Width  int
	Height int
	Top    int
	Left   int
}

// CenteredFeatures centers a width x height popup on a screenWidth x
// screenHeight screen. Offsets never go below zero.
func CenteredFeatures(screenWidth, screenHeight, width, height int) Features {
	return Features{
		Width:  width,
		Height: height,
		Top:    max((screenHeight-height)/2, 0),
		Left:   max((screenWidth-width)/2, 0),
	}
}

// String renders the features in window.open syntax.
func (f Features) String() string {
	return fmt.Sprintf("width=%d,height=%d,top=%d,left=%d", f.Width, f.Height, f.Top, f.Left)
}
