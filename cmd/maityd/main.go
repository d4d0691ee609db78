package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ponchovillalobos/maity-desktop/internal/bus"
	"github.com/ponchovillalobos/maity-desktop/internal/capture"
	"github.com/ponchovillalobos/maity-desktop/internal/daemon"
	"github.com/ponchovillalobos/maity-desktop/internal/deps"
	"github.com/ponchovillalobos/maity-desktop/internal/hardware"
	"github.com/ponchovillalobos/maity-desktop/internal/models/whisper"
)

var version = "dev"

func main() {
	_ = rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "maityd",
	Short: "Meeting recorder and live transcription daemon",
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		startCmd(),
		stopCmd(),
		pauseCmd(),
		resumeCmd(),
		statusCmd(),
		transcriptCmd(),
		versionCmd(),
		quitCmd(),
		devicesCmd(),
		hardwareCmd(),
		doctorCmd(),
		modelCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := daemon.New(version)
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}
			return d.Run()
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [meeting-name]",
		Short: "Start a recording session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := []byte{bus.CmdStart}
			if len(args) == 1 {
				line = append(line, ' ')
				line = append(line, args[0]...)
			}
			resp, err := sendLine(line)
			if err != nil {
				return fmt.Errorf("failed to start recording: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active recording session",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdStop)
			if err != nil {
				return fmt.Errorf("failed to stop recording: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the active recording session",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdPause)
			if err != nil {
				return fmt.Errorf("failed to pause recording: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused recording session",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdResume)
			if err != nil {
				return fmt.Errorf("failed to resume recording: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func transcriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcript",
		Short: "Print the transcript accumulated so far",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := bus.Dial()
			if err != nil {
				return fmt.Errorf("failed to get transcript: %w", err)
			}
			defer c.Close()
			if _, err := c.Write([]byte{bus.CmdTranscript, '\n'}); err != nil {
				return err
			}
			resp, err := io.ReadAll(c)
			if err != nil {
				return err
			}
			fmt.Print(string(resp))
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get current session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdStatus)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Get daemon and protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdVersion)
			if err != nil {
				fmt.Printf("client version=%s (daemon not running)\n", version)
				return nil
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func quitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "Shut down the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdQuit)
			if err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			fmt.Print(resp)
			return nil
		},
	}
}

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := capture.NewBackend()
			if err != nil {
				return fmt.Errorf("failed to init audio backend: %w", err)
			}
			defer backend.Close()

			names, err := backend.ListCaptureDevices()
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}
			if len(names) == 0 {
				fmt.Println("no capture devices found")
				return nil
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func hardwareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hardware",
		Short: "Show the detected hardware profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := hardware.Detect()
			fmt.Printf("tier=%s cores=%d memory_gb=%.1f threads=%d chunk_seconds=%g\n",
				strings.ToLower(p.Tier.String()), p.CPUCores, p.MemoryGB, p.MaxThreads,
				p.Tier.RecommendedChunkSeconds())
			return nil
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			printStatus := func(name string, s deps.Status) {
				if !s.Installed {
					fmt.Printf("%-12s missing\n", name)
					return
				}
				fmt.Printf("%-12s %s", name, s.Path)
				if s.Version != "" {
					fmt.Printf(" (%s)", s.Version)
				}
				fmt.Println()
			}
			printStatus("whisper-cli", deps.CheckWhisperCli())
			printStatus("notify-send", deps.CheckNotifySend())

			installed := whisper.ListInstalled()
			if len(installed) == 0 {
				fmt.Println("models       none installed (run 'maityd model download <id>')")
			} else {
				fmt.Printf("models       %s\n", strings.Join(installed, ", "))
			}
			return nil
		},
	}
}

func modelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage local whisper models",
	}
	cmd.AddCommand(modelListCmd(), modelDownloadCmd(), modelRemoveCmd())
	return cmd
}

func modelListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available whisper models",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, m := range whisper.ListModels() {
				mark := " "
				if whisper.IsInstalled(m.ID) {
					mark = "*"
				}
				fmt.Printf("%s %-10s %-16s %s\n", mark, m.ID, m.Name, m.Size)
			}
			return nil
		},
	}
}

func modelDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <model-id>",
		Short: "Download a whisper model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if whisper.IsInstalled(id) {
				fmt.Printf("model %s already installed\n", id)
				return nil
			}

			var lastPct int64 = -1
			err := whisper.Download(cmd.Context(), id, func(downloaded, total int64) {
				if total <= 0 {
					return
				}
				pct := downloaded * 100 / total
				if pct != lastPct {
					fmt.Printf("\rdownloading %s: %d%%", id, pct)
					lastPct = pct
				}
			})
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to download model: %w", err)
			}
			fmt.Printf("model %s installed\n", id)
			return nil
		},
	}
}

func modelRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <model-id>",
		Short: "Remove a downloaded whisper model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := whisper.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("model %s removed\n", args[0])
			return nil
		},
	}
}

// sendLine sends a raw command line (command byte plus optional
// argument) and returns the response.
func sendLine(line []byte) (string, error) {
	c, err := bus.Dial()
	if err != nil {
		return "", err
	}
	defer c.Close()

	if _, err := c.Write(append(line, '\n')); err != nil {
		return "", err
	}
	buf := make([]byte, 1024)
	n, err := c.Read(buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}
