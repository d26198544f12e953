package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/visiona/camlink/internal/config"
	"github.com/visiona/camlink/internal/manager"
	"github.com/visiona/camlink/internal/render"
	"github.com/visiona/camlink/internal/session"
	"github.com/visiona/camlink/internal/source"
	"github.com/visiona/camlink/internal/telemetry"
)

func newWatchCommand() *cobra.Command {
	var (
		sourceURI string
		viewport  string
		useMock   bool
	)

	cmd := &cobra.Command{
		Use:           "watch",
		Short:         "Supervise a live preview session until interrupted",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if sourceURI != "" {
				cfg.Stream.SourceURI = sourceURI
			}
			if cfg.Stream.SourceURI == "" && !useMock {
				return fmt.Errorf("no stream source configured (use --source, --mock or a config file)")
			}

			viewportW, viewportH, err := parseViewport(viewport)
			if err != nil {
				return err
			}

			return runWatch(cfg, viewportW, viewportH, useMock)
		},
	}

	cmd.Flags().StringVar(&sourceURI, "source", "", "stream URI (overrides config)")
	cmd.Flags().StringVar(&viewport, "viewport", "960x540", "viewport size as WxH")
	cmd.Flags().BoolVar(&useMock, "mock", false, "use a synthetic frame source")

	return cmd
}

func runWatch(cfg *config.Config, viewportW, viewportH int, useMock bool) error {
	var src source.Source
	if useMock {
		src = &source.MockSource{Width: 1280, Height: 720}
	} else {
		src = &source.GstSource{
			ReadTimeout: time.Duration(cfg.Stream.ReadTimeoutMS) * time.Millisecond,
		}
	}

	var renderer manager.Renderer = render.NewConsole(viewportW, viewportH)
	var journal manager.Logger = render.Journal{}

	var publisher *telemetry.Publisher
	var mgr *manager.Manager
	if cfg.MQTT.Broker != "" {
		publisher = telemetry.New(cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.QoS, cfg.InstanceID)
		if err := publisher.Connect(); err != nil {
			// Telemetry is best-effort: the preview runs without it.
			slog.Warn("watch: telemetry unavailable", "error", err)
			publisher = nil
		} else {
			defer publisher.Disconnect()
		}
		sessionID := func() string { return mgr.ActiveID() }
		renderer = &telemetry.RenderTap{Next: renderer, Publisher: publisher, SessionID: sessionID}
		journal = &telemetry.JournalTap{Next: journal, Publisher: publisher, SessionID: sessionID}
	}

	mgr = manager.New(src, renderer, journal)
	mgr.StartSession(session.Config{
		SourceURI:      cfg.Stream.SourceURI,
		ConnectTimeout: time.Duration(cfg.Stream.ConnectTimeoutMS) * time.Millisecond,
		ReadTimeout:    time.Duration(cfg.Stream.ReadTimeoutMS) * time.Millisecond,
		RetryPolicy:    retryPolicy(cfg.Stream.OnReadFailure),
		RetryBackoff:   time.Duration(cfg.Stream.RetryBackoffMS) * time.Millisecond,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("watch: received signal, shutting down", "signal", sig)

	mgr.Shutdown(time.Duration(cfg.ShutdownTimeoutS) * time.Second)
	return nil
}

func retryPolicy(name string) session.RetryPolicy {
	if strings.EqualFold(name, "eof") {
		return session.EndOnReadFailure
	}
	return session.RetryOnReadFailure
}

func parseViewport(s string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil || w < 1 || h < 1 {
		return 0, 0, fmt.Errorf("invalid viewport %q (want WxH)", s)
	}
	return w, h, nil
}
