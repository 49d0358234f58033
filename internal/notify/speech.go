package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Speech reads the reminder aloud. The utterance is the title followed by
// the body, the same text the original reader spoke.
type Speech struct {
	Command string // optional; "{text}" is substituted
	Lang    string // voice language hint, default "ar"
}

func (s *Speech) Render(title, body string) error {
	text := title
	if strings.TrimSpace(body) != "" {
		text = title + ". " + body
	}
	name, args := s.command(text)
	if name == "" {
		return ErrNoSink
	}
	if err := exec.Command(name, args...).Run(); err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	return nil
}

func (s *Speech) Available() bool {
	name, _ := s.command("")
	if name == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

func (s *Speech) command(text string) (string, []string) {
	if s.Command != "" {
		parts := strings.Fields(s.Command)
		args := make([]string, 0, len(parts)-1)
		for _, p := range parts[1:] {
			args = append(args, strings.ReplaceAll(p, "{text}", text))
		}
		return parts[0], args
	}
	lang := s.Lang
	if lang == "" {
		lang = "ar"
	}
	switch runtime.GOOS {
	case "darwin":
		return "say", []string{text}
	case "linux":
		return "espeak-ng", []string{"-v", lang, "-s", "140", text}
	default:
		return "", nil
	}
}
