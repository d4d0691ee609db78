// Package daemon runs the long-lived maity process: it owns the
// control socket, the config manager, the event bus and the recording
// lifecycle, and translates socket commands into session operations.
package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ponchovillalobos/maity-desktop/internal/bus"
	"github.com/ponchovillalobos/maity-desktop/internal/config"
	"github.com/ponchovillalobos/maity-desktop/internal/events"
	"github.com/ponchovillalobos/maity-desktop/internal/logging"
	"github.com/ponchovillalobos/maity-desktop/internal/notify"
	"github.com/ponchovillalobos/maity-desktop/internal/recording"
)

type Daemon struct {
	version string
	log     zerolog.Logger

	cfgMgr    *config.Manager
	events    *events.Bus
	lifecycle *recording.Lifecycle
	notifier  notify.Notifier

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	metricsSrv *http.Server
}

func New(version string) (*Daemon, error) {
	cfgMgr, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfgMgr.Current().Logging)

	ctx, cancel := context.WithCancel(context.Background())
	evBus := events.NewBus(256)
	d := &Daemon{
		version:   version,
		log:       logging.Component("daemon"),
		cfgMgr:    cfgMgr,
		events:    evBus,
		lifecycle: recording.NewLifecycle(evBus),
		notifier:  notify.Desktop{},
		ctx:       ctx,
		cancel:    cancel,
	}
	evBus.Subscribe(d.notifyOn)
	return d, nil
}

// notifyOn forwards session events to the desktop notifier.
func (d *Daemon) notifyOn(ev events.Event) {
	if d.notifier == nil {
		return
	}
	switch ev.Type {
	case events.TypeRecordingStarted:
		info, _ := ev.Payload.(events.SessionInfo)
		go d.notifier.RecordingStarted(info.MeetingName)
	case events.TypeRecordingStopped:
		info, _ := ev.Payload.(events.SessionInfo)
		go d.notifier.RecordingStopped(info.Folder)
	case events.TypeRecordingPaused:
		go d.notifier.RecordingPaused()
	case events.TypeRecordingResumed:
		go d.notifier.RecordingResumed()
	case events.TypeTranscriptionError:
		msg, _ := ev.Payload.(string)
		go d.notifier.Error(msg)
	}
}

// Events exposes the session event bus for additional listeners.
func (d *Daemon) Events() *events.Bus { return d.events }

// Lifecycle exposes the session coordinator.
func (d *Daemon) Lifecycle() *recording.Lifecycle { return d.lifecycle }

// Run serves the control socket until a quit command or signal. Blocks.
func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	if err := d.cfgMgr.StartWatching(d.ctx); err != nil {
		d.log.Warn().Err(err).Msg("config hot reload unavailable")
	}
	defer d.cfgMgr.Stop()

	d.startMetrics()
	defer d.stopMetrics()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			d.log.Info().Str("signal", sig.String()).Msg("shutting down")
			d.cancel()
		case <-d.ctx.Done():
		}
	}()

	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	d.log.Info().Str("version", d.version).Msg("daemon started")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				d.shutdown()
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

// shutdown stops any active session before the daemon exits.
func (d *Daemon) shutdown() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.lifecycle.Stop(stopCtx); err != nil {
		d.log.Error().Err(err).Msg("failed to stop session during shutdown")
	}
	d.events.Close()
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	line = strings.TrimRight(line, "\n")
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}
	cmd := line[0]
	arg := strings.TrimSpace(line[1:])

	switch cmd {
	case bus.CmdStart:
		if err := d.lifecycle.Start(d.ctx, d.cfgMgr.Current(), arg); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprint(c, "OK recording started\n")
	case bus.CmdStop:
		if err := d.lifecycle.Stop(d.ctx); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprint(c, "OK recording stopped\n")
	case bus.CmdPause:
		if err := d.lifecycle.Pause(); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprint(c, "OK recording paused\n")
	case bus.CmdResume:
		if err := d.lifecycle.Resume(); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprint(c, "OK recording resumed\n")
	case bus.CmdStatus:
		state := d.lifecycle.State()
		if meeting, ok := d.lifecycle.Meeting(); ok && meeting != "" {
			fmt.Fprintf(c, "STATUS status=%s meeting=%s\n", state, meeting)
			return
		}
		fmt.Fprintf(c, "STATUS status=%s\n", state)
	case bus.CmdTranscript:
		segs := d.lifecycle.Transcript()
		fmt.Fprintf(c, "TRANSCRIPT segments=%d\n", len(segs))
		for _, seg := range segs {
			fmt.Fprintf(c, "%d\t%s\t%s\n", seg.SequenceID, seg.Source, seg.Text)
		}
	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s version=%s\n", bus.ProtoVer, d.version)
	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()
	default:
		d.log.Warn().Str("command", string(cmd)).Msg("unknown command")
		fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
	}
}

func (d *Daemon) startMetrics() {
	cfg := d.cfgMgr.Current()
	if !cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}

	d.mu.Lock()
	d.metricsSrv = srv
	d.mu.Unlock()

	go func() {
		d.log.Info().Str("listen", cfg.Metrics.Listen).Msg("metrics server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func (d *Daemon) stopMetrics() {
	d.mu.Lock()
	srv := d.metricsSrv
	d.metricsSrv = nil
	d.mu.Unlock()
	if srv == nil {
		return
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutCtx)
}
