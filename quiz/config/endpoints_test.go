package config

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultEndpoints(t *testing.T) {
	e := DefaultEndpoints()

	if e.AuthURL != "https://cuda.network/auth/google" {
		t.Errorf("Expected auth URL https://cuda.network/auth/google, got %s", e.AuthURL)
	}
	if e.TrustedOrigin != "https://cuda.network" {
		t.Errorf("Expected trusted origin https://cuda.network, got %s", e.TrustedOrigin)
	}
	if e.HomeURL != "https://cuda.network" {
		t.Errorf("Expected home URL https://cuda.network, got %s", e.HomeURL)
	}
	if e.PlayURL != "wss://cuda.network/api/play" {
		t.Errorf("Expected play URL wss://cuda.network/api/play, got %s", e.PlayURL)
	}
	if e.PopupWidth != 500 || e.PopupHeight != 600 {
		t.Errorf("Expected popup 500x600, got %dx%d", e.PopupWidth, e.PopupHeight)
	}
	if e.HandshakeTimeout != 0 {
		t.Errorf("Expected no handshake timeout by default, got %v", e.HandshakeTimeout)
	}

	if err := e.Validate(); err != nil {
		t.Fatalf("Default endpoints should validate: %v", err)
	}
}

func TestEndpointsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(e *Endpoints)
		wantErr bool
	}{
		{"defaults", func(e *Endpoints) {}, false},
		{"local development", func(e *Endpoints) {
			e.AuthURL = "http://localhost:8080/auth/google"
			e.TrustedOrigin = "http://localhost:8080"
			e.HomeURL = "http://localhost:8080/"
			e.PlayURL = "ws://localhost:8080/api/play"
		}, false},
		{"trailing slash origin", func(e *Endpoints) { e.TrustedOrigin = "https://cuda.network/" }, false},
		{"missing auth url", func(e *Endpoints) { e.AuthURL = "" }, true},
		{"relative home url", func(e *Endpoints) { e.HomeURL = "/home" }, true},
		{"http play url", func(e *Endpoints) { e.PlayURL = "https://cuda.network/api/play" }, true},
		{"ws auth url", func(e *Endpoints) { e.AuthURL = "wss://cuda.network/auth/google" }, true},
		{"origin with path", func(e *Endpoints) { e.TrustedOrigin = "https://cuda.network/auth" }, true},
		{"origin with query", func(e *Endpoints) { e.TrustedOrigin = "https://cuda.network?x=1" }, true},
		{"zero popup width", func(e *Endpoints) { e.PopupWidth = 0 }, true},
		{"negative popup height", func(e *Endpoints) { e.PopupHeight = -1 }, true},
		{"negative timeout", func(e *Endpoints) { e.HandshakeTimeout = -time.Second }, true},
		{"positive timeout", func(e *Endpoints) { e.HandshakeTimeout = 5 * time.Second }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DefaultEndpoints()
			tt.modify(&e)

			err := e.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected validation error")
				}
				if !errors.Is(err, ErrInvalidEndpoints) {
					t.Errorf("Expected ErrInvalidEndpoints, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}
