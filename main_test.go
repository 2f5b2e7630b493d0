package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mischool/api"
	"github.com/wricardo/mischool/host"
	"github.com/wricardo/mischool/quiz/config"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName == "" {
		t.Error("AppName should not be empty")
	}

	expectedAppName := "MI School"
	if AppName != expectedAppName {
		t.Errorf("Expected app name %s, got %s", expectedAppName, AppName)
	}
}

// newGameServer accepts one player, sends a frame and closes normally.
func newGameServer(t *testing.T) (string, chan string) {
	t.Helper()
	queries := make(chan string, 4)
	upgrader := gorilla.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(gorilla.TextMessage, []byte(`{"action":"update_data","started":false}`))
		conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""))
		conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/play", queries
}

func runCommand(t *testing.T, in string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newCommand(strings.NewReader(in), &out)
	cmd.Writer = &out
	cmd.ErrWriter = &out
	cmd.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := cmd.Run(ctx, append([]string{"mischool"}, args...))
	return out.String(), err
}

func TestJoinCommand(t *testing.T) {
	playURL, queries := newGameServer(t)

	out, err := runCommand(t, "", "--play-url", playURL, "join", "--pin", "2025-1010", "--nickname", "Ava")
	if err != nil {
		t.Fatalf("join failed: %v\n%s", err, out)
	}

	if q := <-queries; q != "room_code=20251010&nickname=Ava" {
		t.Errorf("Unexpected query %q", q)
	}
	if !strings.Contains(out, "Joining game 20251010 as Ava") {
		t.Errorf("Expected join banner, got:\n%s", out)
	}
	if !strings.Contains(out, "The game server closed the connection.") {
		t.Errorf("Expected closing message, got:\n%s", out)
	}
}

func TestJoinCommandPrompts(t *testing.T) {
	playURL, queries := newGameServer(t)

	out, err := runCommand(t, "20251010\nAva Lee\n", "--play-url", playURL, "join")
	if err != nil {
		t.Fatalf("join failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Game PIN: ") || !strings.Contains(out, "Nickname: ") {
		t.Errorf("Expected prompts, got:\n%s", out)
	}
	if q := <-queries; q != "room_code=20251010&nickname=Ava+Lee" {
		t.Errorf("Unexpected query %q", q)
	}
}

func TestJoinCommandValidation(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		alert string
	}{
		{"short pin", []string{"--pin", "1234567", "--nickname", "Ava"}, "Game PIN must be 8 digits!"},
		{"blank nickname", []string{"--pin", "20251010", "--nickname", "   "}, "Please enter a valid nickname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			playURL, queries := newGameServer(t)

			args := append([]string{"--play-url", playURL, "join"}, tt.args...)
			out, err := runCommand(t, "", args...)

			var exitErr cli.ExitCoder
			if !errors.As(err, &exitErr) || exitErr.ExitCode() != 2 {
				t.Errorf("Expected exit code 2, got %v", err)
			}
			if strings.Count(out, tt.alert) != 1 {
				t.Errorf("Expected alert %q exactly once, got:\n%s", tt.alert, out)
			}
			select {
			case q := <-queries:
				t.Errorf("Validation failure opened a connection: %s", q)
			default:
			}
		})
	}
}

func TestJoinCommandConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	playURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/play"
	_, err := runCommand(t, "", "--play-url", playURL, "join", "--pin", "20251010", "--nickname", "Ava")
	if err == nil || !strings.Contains(err.Error(), "connection to game 20251010 lost") {
		t.Errorf("Expected connection error, got %v", err)
	}
}

func TestInvalidEndpoints(t *testing.T) {
	_, err := runCommand(t, "", "--play-url", "https://cuda.network/api/play", "join", "--pin", "20251010", "--nickname", "Ava")
	if !errors.Is(err, config.ErrInvalidEndpoints) {
		t.Errorf("Expected ErrInvalidEndpoints, got %v", err)
	}
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		pin          string
		nickname     string
		wantPIN      string
		wantNickname string
		wantErr      bool
	}{
		{"both prompted", "20251010\nAva\n", "", "", "20251010", "Ava", false},
		{"windows line endings", "20251010\r\nAva\r\n", "", "", "20251010", "Ava", false},
		{"pin given", "Ava\n", "20251010", "", "20251010", "Ava", false},
		{"no trailing newline", "20251010\nAva", "", "", "20251010", "Ava", false},
		{"nickname keeps spaces", "20251010\n Ava \n", "", "", "20251010", " Ava ", false},
		{"input ends early", "20251010\n", "", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			pin, nickname, err := prompt(strings.NewReader(tt.input), &out, tt.pin, tt.nickname)
			if (err != nil) != tt.wantErr {
				t.Fatalf("prompt() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if pin != tt.wantPIN || nickname != tt.wantNickname {
				t.Errorf("prompt() = %q, %q, want %q, %q", pin, nickname, tt.wantPIN, tt.wantNickname)
			}
		})
	}
}

func TestSetupLogging(t *testing.T) {
	orig, origLevel := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = orig
		zerolog.SetGlobalLevel(origLevel)
	}()

	var buf bytes.Buffer
	setupLogging(&buf, "json", false)
	log.Info().Msg("[join] hello")
	log.Debug().Msg("[join] hidden")

	out := buf.String()
	if !strings.HasPrefix(out, "{") || !strings.Contains(out, `"message":"[join] hello"`) {
		t.Errorf("Expected JSON log line, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("Debug message logged at info level")
	}

	buf.Reset()
	setupLogging(&buf, "console", true)
	log.Debug().Msg("[join] visible")
	if !strings.Contains(buf.String(), "[join] visible") {
		t.Errorf("Expected debug message, got %q", buf.String())
	}
}

func TestConfigCommand(t *testing.T) {
	out, err := runCommand(t, "", "config")
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	for _, want := range []string{
		`"auth_url": "https://cuda.network/auth/google"`,
		`"play_url": "wss://cuda.network/api/play"`,
		`"popup_width": 500`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in output, got:\n%s", want, out)
		}
	}
}

func TestConfigFileWithFlagOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoints.json")
	data := `{"play_url":"ws://localhost:8000/api/play","home_url":"http://localhost:3000"}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "", "--config", path, "--home-url", "http://localhost:4000", "config")
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if !strings.Contains(out, `"play_url": "ws://localhost:8000/api/play"`) {
		t.Errorf("Expected play URL from file, got:\n%s", out)
	}
	if !strings.Contains(out, `"home_url": "http://localhost:4000"`) {
		t.Errorf("Expected home URL from flag, got:\n%s", out)
	}

	settings := config.Get()
	if settings["version"] != Version {
		t.Errorf("Expected settings to record version, got %v", settings)
	}
}

func TestConfigFileMissing(t *testing.T) {
	_, err := runCommand(t, "", "--config", filepath.Join(t.TempDir(), "nope.json"), "config")
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
}

var nonceRe = regexp.MustCompile(`nonce\s*=\s*"([0-9a-f-]+)"`)

// relayLoginResult plays the bridge page: it reads the nonce from the page and
// posts a login result the way the page's message listener would.
func relayLoginResult(bridgeURL, origin string) error {
	resp, err := http.Get(bridgeURL)
	if err != nil {
		return err
	}
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}
	m := nonceRe.FindSubmatch(page)
	if m == nil {
		return fmt.Errorf("no nonce in bridge page:\n%s", page)
	}

	body := `{"origin":"` + origin + `","data":{"status":"success"}}`
	req, err := http.NewRequest("POST", bridgeURL+"api/messages", strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.NonceHeader, string(m[1]))
	req.Header.Set("Origin", strings.TrimSuffix(bridgeURL, "/"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("bridge answered %d", resp.StatusCode)
	}
	return nil
}

func TestLoginCommand(t *testing.T) {
	var (
		mu       sync.Mutex
		launched []string
		relayErr = make(chan error, 1)
	)
	orig := browserLauncher
	defer func() { browserLauncher = orig }()
	browserLauncher = host.LauncherFunc(func(target string) error {
		mu.Lock()
		launched = append(launched, target)
		mu.Unlock()
		if strings.HasPrefix(target, "http://127.0.0.1:") {
			go func() { relayErr <- relayLoginResult(target, config.DefaultTrustedOrigin) }()
		}
		return nil
	})

	out, err := runCommand(t, "", "login")
	if err != nil {
		t.Fatalf("login failed: %v\n%s", err, out)
	}
	if err := <-relayErr; err != nil {
		t.Fatalf("relaying the login result failed: %v", err)
	}

	if !strings.Contains(out, api.LoginNotice) {
		t.Errorf("Expected the bridge login notice, got:\n%s", out)
	}
	if !strings.Contains(out, "Logged in. Continue at https://cuda.network") {
		t.Errorf("Expected login completion, got:\n%s", out)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(launched) != 2 || launched[1] != config.DefaultHomeURL {
		t.Errorf("Expected bridge page then home page, got %v", launched)
	}
}

func TestLoginCommandBlocked(t *testing.T) {
	orig := browserLauncher
	defer func() { browserLauncher = orig }()
	browserLauncher = host.LauncherFunc(func(string) error { return errors.New("no display") })

	out, err := runCommand(t, "", "login")

	var exitErr cli.ExitCoder
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Errorf("Expected exit code 1, got %v", err)
	}
	if strings.Count(out, "Popup blocked! Please allow popups for this site.") != 1 {
		t.Errorf("Expected exactly one popup-blocked alert, got:\n%s", out)
	}
	if strings.Contains(out, api.LoginNotice) {
		t.Error("Notice shown although the popup never opened")
	}
}
