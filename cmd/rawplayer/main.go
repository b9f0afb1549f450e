// Command rawplayer plays a media URL and hands every decoded BGRA frame to the
// configured consumers: an image saver, a msgpack frame stream and an MQTT
// control/status plane.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	mediaplayer "github.com/e7canasta/orion-media-player"
	"github.com/e7canasta/orion-media-player/internal/config"
	"github.com/e7canasta/orion-media-player/internal/control"
	"github.com/e7canasta/orion-media-player/internal/emitter"
	"github.com/e7canasta/orion-media-player/internal/fanout"
	"github.com/e7canasta/orion-media-player/internal/framesink"
	"github.com/e7canasta/orion-media-player/internal/framestats"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "rawplayer",
		Usage:   "play a media URL and deliver raw BGRA frames",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file", EnvVars: []string{"RAWPLAYER_CONFIG"}},
			&cli.StringSliceFlag{Name: "url", Aliases: []string{"u"}, Usage: "media URL (only the first is played)"},
			&cli.Float64Flag{Name: "fps", Usage: "target frames per second, 0 = source rate"},
			&cli.IntFlag{Name: "width", Usage: "frame width, requires --height"},
			&cli.IntFlag{Name: "height", Usage: "frame height, requires --width"},
			&cli.Float64Flag{Name: "volume", Usage: "linear volume, 1.0 = unity"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "save frames to this directory"},
			&cli.StringFlag{Name: "format", Usage: "saved frame format: png or jpeg"},
			&cli.IntFlag{Name: "max-width", Usage: "downscale saved frames wider than this"},
			&cli.StringFlag{Name: "msgpack-out", Usage: "write a msgpack frame stream to this file, - for stdout"},
			&cli.StringFlag{Name: "mqtt-broker", Usage: "MQTT broker for events, status and control", EnvVars: []string{"RAWPLAYER_MQTT_BROKER"}},
			&cli.DurationFlag{Name: "duration", Usage: "stop after this long, 0 = until end of stream"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("rawplayer failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	// Logs go to stderr so --msgpack-out - keeps stdout clean.
	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("url") {
		cfg.Playback.URLs = c.StringSlice("url")
	}
	if c.IsSet("fps") {
		cfg.Playback.FPS = c.Float64("fps")
	}
	if c.IsSet("width") {
		cfg.Playback.Width = c.Int("width")
	}
	if c.IsSet("height") {
		cfg.Playback.Height = c.Int("height")
	}
	if c.IsSet("volume") {
		v := c.Float64("volume")
		cfg.Playback.Volume = &v
	}
	if c.IsSet("duration") {
		cfg.Playback.DurationS = int(c.Duration("duration").Seconds())
	}
	if c.IsSet("output") {
		cfg.Output.Dir = c.String("output")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.IsSet("max-width") {
		cfg.Output.MaxWidth = c.Int("max-width")
	}
	if c.IsSet("msgpack-out") {
		cfg.Output.MsgpackPath = c.String("msgpack-out")
	}
	if c.IsSet("mqtt-broker") {
		cfg.MQTT.Broker = c.String("mqtt-broker")
	}

	// Flags may have changed fields Validate checks.
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(cfg.Playback.URLs) == 0 {
		return nil, errors.New("no url given (use --url or playback.urls)")
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	setupLogging(c.Bool("debug"))

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	p, err := mediaplayer.New()
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	defer p.Close()

	slog.Info("rawplayer starting",
		"version", version,
		"instance_id", cfg.InstanceID,
		"session_id", p.SessionID(),
		"url", cfg.Playback.URLs[0])

	pb := cfg.Playback
	if pb.FPS > 0 {
		p.SetFPS(pb.FPS)
	}
	if pb.Width > 0 && pb.Height > 0 {
		p.SetResolution(pb.Width, pb.Height)
	}
	if pb.Volume != nil {
		if err := p.SetVolume(*pb.Volume); err != nil {
			return err
		}
	}

	ctx := c.Context
	fo := fanout.New()
	cs := newConsumers(fo, cfg.Output.BufferFrames)
	defer func() {
		timeout := time.Duration(cfg.ShutdownTimeoutS) * time.Second
		if err := cs.drain(timeout); err != nil {
			slog.Warn("rawplayer frame consumers", "error", err)
		}
	}()

	if cfg.Output.Dir != "" {
		saver, err := framesink.NewSaver(cfg.Output.Dir, cfg.Output.Format, cfg.Output.JPEGQuality, cfg.Output.MaxWidth)
		if err != nil {
			return err
		}
		err = cs.add("saver", func(ctx context.Context, ch <-chan fanout.Frame) error {
			err := saver.Run(ctx, ch)
			saved, dropped := saver.Stats()
			slog.Info("rawplayer frame saver finished", "dir", cfg.Output.Dir, "saved", saved, "dropped", dropped)
			return err
		})
		if err != nil {
			return err
		}
	}

	if cfg.Output.MsgpackPath != "" {
		out := os.Stdout
		if cfg.Output.MsgpackPath != "-" {
			f, err := os.Create(cfg.Output.MsgpackPath)
			if err != nil {
				return fmt.Errorf("failed to create msgpack output: %w", err)
			}
			cs.closeAfter(f)
			out = f
		}
		w := framesink.NewWriter(out, p.SessionID())
		err := cs.add("msgpack", func(ctx context.Context, ch <-chan fanout.Frame) error {
			err := w.Run(ctx, ch)
			// A dead reader must not keep frames queued for it.
			_ = fo.Unsubscribe("msgpack")
			return err
		})
		if err != nil {
			return err
		}
	}

	latest, err := fo.SubscribeLatest("status")
	if err != nil {
		return err
	}

	p.OnFrame(fo.FrameFunc())

	var em *emitter.MQTTEmitter
	if cfg.MQTT.Broker != "" {
		em = emitter.NewMQTTEmitter(cfg, p.SessionID())
		if err := em.Connect(ctx); err != nil {
			return err
		}
		defer em.Disconnect()
		p.OnEvent(em.Observe)
	}

	if err := p.Play(cfg.Playback.URLs); err != nil {
		return err
	}

	interval := time.Duration(cfg.MQTT.StatusIntervalS) * time.Second

	runErr := p.Run(ctx, func(ctx context.Context) error {
		if em != nil {
			h := control.NewHandler(cfg, em.Client, p)
			h.OnShutdown = p.Stop
			if err := h.Start(ctx); err != nil {
				return err
			}
			defer h.Stop()
		}

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			reportStats(ctx, p, fo, latest, interval)
			return nil
		})

		if em != nil {
			g.Go(func() error {
				em.Run(ctx, interval, p.Stats)
				return nil
			})
		}

		if cfg.Playback.DurationS > 0 {
			g.Go(func() error {
				select {
				case <-ctx.Done():
				case <-time.After(time.Duration(cfg.Playback.DurationS) * time.Second):
					slog.Info("rawplayer duration reached, stopping", "duration_s", cfg.Playback.DurationS)
					p.Stop()
				}
				return nil
			})
		}

		<-ctx.Done()
		return g.Wait()
	})

	st := p.Stats()
	slog.Info("rawplayer finished",
		"state", st.State.String(),
		"frames_delivered", st.FramesDelivered,
		"frames_skipped", st.FramesSkipped,
		"frames_failed", st.FramesFailed,
		"uptime", st.Uptime.Round(time.Millisecond))

	if errors.Is(runErr, context.Canceled) {
		slog.Info("rawplayer interrupted")
		return nil
	}
	return runErr
}

// reportStats logs player and fan-out statistics every interval and warns when the
// delivered rate falls behind the requested one.
func reportStats(ctx context.Context, p *mediaplayer.Player, fo *fanout.Fanout, latest *fanout.Latest, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st := p.Stats()
		fs := fo.Stats()
		attrs := []any{
			"state", st.State.String(),
			"frames", st.FramesDelivered,
			"fps_mean", st.FPSMean,
			"fps_stable", st.FPSStable,
			"fanout_sent", fs.TotalSent,
			"fanout_dropped", fs.TotalDropped,
		}
		if frame, ok := latest.TryReceive(); ok {
			attrs = append(attrs, "last_seq", frame.Seq, "last_trace_id", frame.TraceID, "last_size", fmt.Sprintf("%dx%d", frame.Width, frame.Height))
		}
		slog.Info("rawplayer stats", attrs...)

		target := st.Format.Framerate
		if st.State == mediaplayer.StatePlaying && !target.IsZero() {
			measured := framestats.FPS{Mean: st.FPSMean}
			if st.FramesDelivered > 0 && measured.BelowTarget(target.Float()) {
				slog.Warn("rawplayer delivering below target fps",
					"target_fps", target.Float(),
					"fps_mean", st.FPSMean)
			}
		}
	}
}
