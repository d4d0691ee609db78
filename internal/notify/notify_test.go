package notify

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	l := Log{Logger: zerolog.New(&buf)}

	t.Run("RecordingStarted", func(t *testing.T) {
		buf.Reset()
		l.RecordingStarted("standup")

		out := buf.String()
		if !strings.Contains(out, "recording started") || !strings.Contains(out, "standup") {
			t.Errorf("unexpected log output: %s", out)
		}
	})

	t.Run("RecordingStopped", func(t *testing.T) {
		buf.Reset()
		l.RecordingStopped("/tmp/meetings/standup-20260830")

		out := buf.String()
		if !strings.Contains(out, "recording stopped") || !strings.Contains(out, "standup-20260830") {
			t.Errorf("unexpected log output: %s", out)
		}
	})

	t.Run("PauseResume", func(t *testing.T) {
		buf.Reset()
		l.RecordingPaused()
		l.RecordingResumed()

		out := buf.String()
		if !strings.Contains(out, "recording paused") || !strings.Contains(out, "recording resumed") {
			t.Errorf("unexpected log output: %s", out)
		}
	})

	t.Run("Error", func(t *testing.T) {
		buf.Reset()
		l.Error("microphone unplugged")

		out := buf.String()
		if !strings.Contains(out, "session error") || !strings.Contains(out, "microphone unplugged") {
			t.Errorf("unexpected log output: %s", out)
		}
	})
}

func TestNopNotifier(t *testing.T) {
	nop := Nop{}

	// All Nop methods should do nothing and not panic.
	nop.RecordingStarted("m")
	nop.RecordingStopped("f")
	nop.RecordingPaused()
	nop.RecordingResumed()
	nop.Error("e")
}

func TestNotifierInterface(t *testing.T) {
	var _ Notifier = Desktop{}
	var _ Notifier = Log{}
	var _ Notifier = Nop{}
}
