// Package deps inspects the external tools maity relies on at runtime.
package deps

import (
	"os/exec"
	"strings"
)

// Status represents the installation status of a dependency
type Status struct {
	Installed bool
	Path      string
	Version   string
}

// check resolves a binary and extracts the first line of its version
// output.
func check(name string, versionArgs ...string) Status {
	path, err := exec.LookPath(name)
	if err != nil {
		return Status{Installed: false}
	}

	status := Status{
		Installed: true,
		Path:      path,
	}

	output, err := exec.Command(path, versionArgs...).Output()
	if err == nil {
		lines := strings.Split(string(output), "\n")
		if len(lines) > 0 {
			status.Version = strings.TrimSpace(lines[0])
		}
	}
	return status
}

// CheckWhisperCli checks if whisper-cli is installed and returns its status
func CheckWhisperCli() Status {
	return check("whisper-cli", "--version")
}

// CheckNotifySend checks if notify-send is available for desktop
// notifications.
func CheckNotifySend() Status {
	return check("notify-send", "--version")
}
