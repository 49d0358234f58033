package notify

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ErrNoSink means no way to reach the user exists on this machine; the
// push manager treats it like a denied notification permission.
var ErrNoSink = errors.New("no notification sink available")

// Desktop shows a native notification by shelling out to the platform
// notifier. Command override is for unusual desktops (or tests).
type Desktop struct {
	Command string // optional; "{title}" and "{body}" are substituted
}

func (d *Desktop) Render(title, body string) error {
	if body == "" {
		body = title
	}
	name, args := d.command(title, body)
	if name == "" {
		return ErrNoSink
	}
	if err := exec.Command(name, args...).Run(); err != nil {
		return fmt.Errorf("desktop notify: %w", err)
	}
	return nil
}

func (d *Desktop) Available() bool {
	name, _ := d.command("", "")
	if name == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

func (d *Desktop) command(title, body string) (string, []string) {
	if d.Command != "" {
		parts := strings.Fields(d.Command)
		args := make([]string, 0, len(parts)-1)
		for _, p := range parts[1:] {
			p = strings.ReplaceAll(p, "{title}", title)
			p = strings.ReplaceAll(p, "{body}", body)
			args = append(args, p)
		}
		return parts[0], args
	}
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		return "osascript", []string{"-e", script}
	case "linux":
		return "notify-send", []string{title, body}
	default:
		return "", nil
	}
}
