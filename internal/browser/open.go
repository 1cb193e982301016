package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Open opens rawURL in the user's default browser. Only http(s) URLs are
// accepted, since invite links come from the backend.
func Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("browser: refusing to open %q", rawURL)
	}
	name, args, err := command(runtime.GOOS, u.String())
	if err != nil {
		return err
	}
	return exec.Command(name, args...).Start()
}

func command(goos, target string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{target}, nil
	case "linux", "freebsd", "openbsd":
		return "xdg-open", []string{target}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}, nil
	default:
		return "", nil, fmt.Errorf("browser: unsupported OS: %s", goos)
	}
}
