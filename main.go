// Command mischool joins MI School quiz games from the terminal.
//
// Commands:
//  1. "login" – opens the Google login popup through a loopback bridge page and
//     waits for the result
//  2. "join" – validates a game PIN and nickname and stays connected to the game
//  3. "mcp" – serves the same page as MCP tools over stdio
//  4. "config" – validates and prints the resolved endpoints
//
// Endpoints default to the production service. During development they can be
// overridden with a JSON file (--config), flags, MISCHOOL_* environment
// variables or a .env file.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mischool/api"
	"github.com/wricardo/mischool/host"
	"github.com/wricardo/mischool/quiz/config"
	"github.com/wricardo/mischool/quiz/form"
	"github.com/wricardo/mischool/quiz/page"
	"github.com/wricardo/mischool/transport/mcp"
	"github.com/wricardo/mischool/transport/websocket"
)

// browserLauncher opens URLs for login, navigation and the bridge page.
var browserLauncher host.Launcher = host.SystemLauncher{}

// Version information
const (
	Version = "1.0.0"
	AppName = "MI School"
)

func main() {
	// Load .env file if it exists
	dotenvErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newCommand(os.Stdin, os.Stdout)
	cmd.Before = func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		setupLogging(os.Stderr, cmd.String("log-format"), cmd.Bool("debug"))
		if dotenvErr != nil && !os.IsNotExist(dotenvErr) {
			log.Warn().Err(dotenvErr).Msg("Error loading .env file")
		}
		return ctx, nil
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("mischool failed")
	}
}

func newCommand(in io.Reader, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "mischool",
		Usage:   "Join MI School quiz games",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("MISCHOOL_DEBUG"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "log output format: console or json",
				Value:   "console",
				Sources: cli.EnvVars("MISCHOOL_LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "JSON endpoints file; flags given explicitly take precedence",
				Sources: cli.EnvVars("MISCHOOL_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "auth-url",
				Usage:   "Google login URL opened in the popup",
				Value:   config.DefaultAuthURL,
				Sources: cli.EnvVars("MISCHOOL_AUTH_URL"),
			},
			&cli.StringFlag{
				Name:    "trusted-origin",
				Usage:   "only login messages from this origin are accepted",
				Value:   config.DefaultTrustedOrigin,
				Sources: cli.EnvVars("MISCHOOL_TRUSTED_ORIGIN"),
			},
			&cli.StringFlag{
				Name:    "home-url",
				Usage:   "page opened after a successful login",
				Value:   config.DefaultHomeURL,
				Sources: cli.EnvVars("MISCHOOL_HOME_URL"),
			},
			&cli.StringFlag{
				Name:    "play-url",
				Usage:   "game server WebSocket endpoint",
				Value:   config.DefaultPlayURL,
				Sources: cli.EnvVars("MISCHOOL_PLAY_URL"),
			},
			&cli.DurationFlag{
				Name:    "handshake-timeout",
				Usage:   "abort the WebSocket handshake after this long (0 waits forever)",
				Sources: cli.EnvVars("MISCHOOL_HANDSHAKE_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "bridge-addr",
				Usage:   "loopback address of the login bridge page",
				Value:   "127.0.0.1:0",
				Sources: cli.EnvVars("MISCHOOL_BRIDGE_ADDR"),
			},
			&cli.IntFlag{
				Name:    "screen-width",
				Usage:   "screen width used to center the login popup",
				Value:   1920,
				Sources: cli.EnvVars("MISCHOOL_SCREEN_WIDTH"),
			},
			&cli.IntFlag{
				Name:    "screen-height",
				Usage:   "screen height used to center the login popup",
				Value:   1080,
				Sources: cli.EnvVars("MISCHOOL_SCREEN_HEIGHT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with Google",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runLogin(ctx, cmd, out)
				},
			},
			{
				Name:  "join",
				Usage: "Join a game with a PIN and a nickname",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "pin",
						Usage:   "8-digit game PIN (prompted when omitted)",
						Sources: cli.EnvVars("MISCHOOL_PIN"),
					},
					&cli.StringFlag{
						Name:    "nickname",
						Usage:   "nickname shown to other players (prompted when omitted)",
						Sources: cli.EnvVars("MISCHOOL_NICKNAME"),
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runJoin(ctx, cmd, in, out)
				},
			},
			{
				Name:  "config",
				Usage: "Validate and print the resolved endpoints",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runConfig(cmd, out)
				},
			},
			{
				Name:  "mcp",
				Usage: "Serve MCP tools over stdio",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runMCP(ctx, cmd)
				},
			},
		},
	}
}

// setupLogging configures the global zerolog logger.
func setupLogging(w io.Writer, format string, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if format == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
}

// endpointsFromFlags resolves endpoints and records them as the process
// settings. Values come from the config file, if any, then from flags that
// were set explicitly.
func endpointsFromFlags(cmd *cli.Command) (config.Endpoints, error) {
	endpoints := config.DefaultEndpoints()
	if path := cmd.String("config"); path != "" {
		var err error
		if endpoints, err = config.LoadEndpoints(path); err != nil {
			return config.Endpoints{}, err
		}
	}

	override := func(flag string, dst *string) {
		if cmd.IsSet(flag) {
			*dst = cmd.String(flag)
		}
	}
	override("auth-url", &endpoints.AuthURL)
	override("trusted-origin", &endpoints.TrustedOrigin)
	override("home-url", &endpoints.HomeURL)
	override("play-url", &endpoints.PlayURL)
	if cmd.IsSet("handshake-timeout") {
		endpoints.HandshakeTimeout = cmd.Duration("handshake-timeout")
	}

	if err := endpoints.Validate(); err != nil {
		return config.Endpoints{}, err
	}

	config.Set(map[string]any{
		"version":   Version,
		"endpoints": endpoints,
	})
	log.Debug().Interface("settings", config.Get()).Msg("settings loaded")
	return endpoints, nil
}

func runConfig(cmd *cli.Command, out io.Writer) error {
	endpoints, err := endpointsFromFlags(cmd)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(endpoints, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode endpoints: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// runtime is a mounted page with its loop, window and optional bridge.
type runtime struct {
	loop   *host.Loop
	window *host.Window
	page   *page.Page
	cancel context.CancelFunc
}

type runtimeOptions struct {
	bridge   bool
	alerts   io.Writer
	launcher host.Launcher
}

func startRuntime(ctx context.Context, cmd *cli.Command, opts runtimeOptions) (*runtime, error) {
	endpoints, err := endpointsFromFlags(cmd)
	if err != nil {
		return nil, err
	}

	// The loop outlives ctx so the page can be unmounted after a signal.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	loop := host.NewLoop()
	go loop.Run(loopCtx)

	win := host.NewWindow(loop, host.WindowConfig{
		ScreenWidth:  int(cmd.Int("screen-width")),
		ScreenHeight: int(cmd.Int("screen-height")),
		Launcher:     opts.launcher,
		Alerts:       opts.alerts,
	})

	if opts.bridge {
		bridge := api.NewServer(win, win)
		bridgeURL, err := bridge.Listen(loopCtx, cmd.String("bridge-addr"))
		if err != nil {
			cancel()
			return nil, err
		}
		win.SetBridgeURL(bridgeURL)
	}

	rt := &runtime{
		loop:   loop,
		window: win,
		page:   page.New(win, endpoints, websocket.NewInitiator(endpoints)),
		cancel: cancel,
	}
	if err := loop.Do(ctx, rt.page.Mount); err != nil {
		cancel()
		return nil, err
	}
	return rt, nil
}

// Close unmounts the page, which closes every session, then stops the loop.
func (rt *runtime) Close() {
	if err := rt.loop.Do(context.Background(), rt.page.Unmount); err != nil {
		log.Warn().Err(err).Msg("failed to unmount page")
	}
	rt.cancel()
}

func runLogin(ctx context.Context, cmd *cli.Command, out io.Writer) error {
	rt, err := startRuntime(ctx, cmd, runtimeOptions{bridge: true, alerts: out, launcher: browserLauncher})
	if err != nil {
		return err
	}
	defer rt.Close()

	var loginErr error
	if err := rt.loop.Do(ctx, func() { loginErr = rt.page.Login() }); err != nil {
		return err
	}
	if loginErr != nil {
		return cli.Exit("", 1)
	}

	fmt.Fprintln(out, "Complete the Google sign-in in your browser.")
	fmt.Fprintln(out, api.LoginNotice)
	select {
	case url := <-rt.window.Navigated():
		fmt.Fprintf(out, "Logged in. Continue at %s\n", url)
		return nil
	case <-ctx.Done():
		return nil
	}
}

func runJoin(ctx context.Context, cmd *cli.Command, in io.Reader, out io.Writer) error {
	pin, nickname := cmd.String("pin"), cmd.String("nickname")
	if pin == "" || nickname == "" {
		var err error
		pin, nickname, err = prompt(in, out, pin, nickname)
		if err != nil {
			return err
		}
	}

	rt, err := startRuntime(ctx, cmd, runtimeOptions{alerts: out, launcher: browserLauncher})
	if err != nil {
		return err
	}
	defer rt.Close()

	var (
		sess      *websocket.Session
		submitErr error
	)
	err = rt.loop.Do(ctx, func() {
		rt.page.SetPIN(pin)
		rt.page.SetNickname(nickname)
		sess, submitErr = rt.page.Submit(ctx)
	})
	if err != nil {
		return err
	}
	var verr *form.ValidationError
	if errors.As(submitErr, &verr) {
		// the alert has already been shown
		return cli.Exit("", 2)
	}
	if submitErr != nil {
		return submitErr
	}

	fmt.Fprintf(out, "Joining game %s as %s. Press Ctrl+C to leave.\n", sess.RoomCode, sess.Nickname)
	select {
	case <-sess.Done():
		if err := sess.Err(); err != nil {
			return fmt.Errorf("connection to game %s lost: %w", sess.RoomCode, err)
		}
		fmt.Fprintln(out, "The game server closed the connection.")
		return nil
	case <-ctx.Done():
		return nil
	}
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	// stdout carries the protocol
	rt, err := startRuntime(ctx, cmd, runtimeOptions{bridge: true, alerts: os.Stderr, launcher: browserLauncher})
	if err != nil {
		return err
	}
	defer rt.Close()

	log.Info().Str("version", Version).Msg("[mcp] serving on stdio")
	return mcp.NewServer(ctx, rt.page, rt.loop, Version).ServeStdio()
}

// prompt asks for whichever of pin and nickname is empty.
func prompt(in io.Reader, out io.Writer, pin, nickname string) (string, string, error) {
	reader := bufio.NewReader(in)
	read := func(label string) (string, error) {
		fmt.Fprintf(out, "%s: ", label)
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	var err error
	if pin == "" {
		if pin, err = read("Game PIN"); err != nil {
			return "", "", err
		}
	}
	if nickname == "" {
		if nickname, err = read("Nickname"); err != nil {
			return "", "", err
		}
	}
	return pin, nickname, nil
}
