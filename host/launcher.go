package host

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Launcher opens a URL for the user.
type Launcher interface {
	Launch(url string) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(url string) error

func (f LauncherFunc) Launch(url string) error { return f(url) }

// SystemLauncher opens URLs in the default browser of the operating system.
type SystemLauncher struct{}

func (SystemLauncher) Launch(url string) error {
	name, args := browserCommand(runtime.GOOS)
	if name == "" {
		return fmt.Errorf("no browser launcher for %s", runtime.GOOS)
	}

	cmd := exec.Command(name, append(args, url)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	go cmd.Wait()
	return nil
}

func browserCommand(goos string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", nil
	default:
		return "", nil
	}
}
