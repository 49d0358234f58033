package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSink struct {
	available bool
	err       error
	calls     int
}

func (f *fakeSink) Render(title, body string) error {
	f.calls++
	return f.err
}

func (f *fakeSink) Available() bool { return f.available }

func TestMultiSkipsUnavailableSinks(t *testing.T) {
	up := &fakeSink{available: true}
	down := &fakeSink{available: false}

	m := Multi{down, up}
	assert.NoError(t, m.Render("t", "b"))
	assert.Equal(t, 1, up.calls)
	assert.Zero(t, down.calls)
}

func TestMultiFailingSinkDoesNotBlockSiblings(t *testing.T) {
	bad := &fakeSink{available: true, err: errors.New("speaker on fire")}
	good := &fakeSink{available: true}

	m := Multi{bad, good}
	assert.NoError(t, m.Render("t", "b"), "sink failures are advisory")
	assert.Equal(t, 1, good.calls)
}

func TestMultiNoSink(t *testing.T) {
	m := Multi{&fakeSink{available: false}}
	assert.False(t, m.Available())
	assert.ErrorIs(t, m.Render("t", "b"), ErrNoSink)
}

func TestDesktopCommandOverride(t *testing.T) {
	d := &Desktop{Command: "mynotify --title {title} --msg {body}"}
	name, args := d.command("Pill", "Take it")
	assert.Equal(t, "mynotify", name)
	// Placeholders substitute after splitting, so a multi-word body stays
	// one argument.
	assert.Equal(t, []string{"--title", "Pill", "--msg", "Take it"}, args)
}

func TestSpeechUtterance(t *testing.T) {
	s := &Speech{Command: "speak {text}"}

	_, args := s.command("Pill. Take it")
	assert.Equal(t, []string{"Pill. Take it"}, args)
}
