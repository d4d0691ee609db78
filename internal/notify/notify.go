// Package notify surfaces session events to the user's desktop.
package notify

import (
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/ponchovillalobos/maity-desktop/internal/logging"
)

const appName = "Maity"

type Notifier interface {
	RecordingStarted(meeting string)
	RecordingStopped(folder string)
	RecordingPaused()
	RecordingResumed()
	Error(msg string)
}

// Desktop sends notifications through notify-send.
type Desktop struct{}

func (Desktop) send(urgency, title, message string) {
	args := []string{"-a", appName}
	if urgency != "" {
		args = append(args, "-u", urgency)
	}
	args = append(args, title)
	if message != "" {
		args = append(args, message)
	}
	if err := exec.Command("notify-send", args...).Run(); err != nil {
		log := logging.Component("notify")
		log.Debug().Err(err).Msg("notify-send failed")
	}
}

func (d Desktop) RecordingStarted(meeting string) {
	msg := ""
	if meeting != "" {
		msg = fmt.Sprintf("Meeting: %s", meeting)
	}
	d.send("", "Recording started", msg)
}

func (d Desktop) RecordingStopped(folder string) {
	msg := ""
	if folder != "" {
		msg = fmt.Sprintf("Saved to %s", folder)
	}
	d.send("", "Recording stopped", msg)
}

func (d Desktop) RecordingPaused()  { d.send("", "Recording paused", "") }
func (d Desktop) RecordingResumed() { d.send("", "Recording resumed", "") }
func (d Desktop) Error(msg string)  { d.send("critical", "Maity error", msg) }

// Log writes notifications to the structured log instead of the
// desktop. Useful on headless systems.
type Log struct {
	Logger zerolog.Logger
}

func NewLog() Log {
	return Log{Logger: logging.Component("notify")}
}

func (l Log) RecordingStarted(meeting string) {
	l.Logger.Info().Str("meeting", meeting).Msg("recording started")
}

func (l Log) RecordingStopped(folder string) {
	l.Logger.Info().Str("folder", folder).Msg("recording stopped")
}

func (l Log) RecordingPaused()  { l.Logger.Info().Msg("recording paused") }
func (l Log) RecordingResumed() { l.Logger.Info().Msg("recording resumed") }
func (l Log) Error(msg string)  { l.Logger.Error().Str("detail", msg).Msg("session error") }

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) RecordingStarted(string) {}
func (Nop) RecordingStopped(string) {}
func (Nop) RecordingPaused()        {}
func (Nop) RecordingResumed()       {}
func (Nop) Error(string)            {}
