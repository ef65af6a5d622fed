package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/automoto/krazykarts-mp/bot"
	"github.com/automoto/krazykarts-mp/config"
	"github.com/automoto/krazykarts-mp/logging"
	"github.com/automoto/krazykarts-mp/network"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/automoto/krazykarts-mp/shared/protocol"
	"github.com/automoto/krazykarts-mp/shared/track"
	"github.com/spf13/pflag"
)

const joinTimeout = 10 * time.Second

func main() {
	fs := pflag.NewFlagSet("bot", pflag.ExitOnError)
	configFile := fs.String("config", "", "Config file (yaml, toml or json)")
	fs.String("server", "", "Server address (host:port)")
	fs.String("transport", "ws", "Transport: ws or kcp")
	fs.String("driver", "bot", "Driver name")
	fs.String("version", "", "Client version sent when joining")
	fs.Int("fps", 60, "Client frame rate")
	fs.Duration("duration", 0, "How long to drive (0 = until interrupted)")
	fs.Int64("seed", 1, "Autopilot seed")
	fs.String("tracks-dir", "assets/tracks", "Directory of .tmx tracks for local collision")
	fs.String("log-level", "info", "Log level")
	fs.String("log-format", "console", "Log format: console or json")
	_ = fs.Parse(os.Args[1:])

	v := config.New()
	if err := config.BindFlags(v, fs); err != nil {
		fatal(err)
	}
	cfg, err := config.Load(v, *configFile)
	if err != nil {
		fatal(err)
	}
	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		fatal(err)
	}
	log := logging.For("main")

	if err := protocol.RegisterComponents(); err != nil {
		log.Fatal().Err(err).Msg("register components")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := messages.JoinRequest{Version: cfg.Server.Version, PlayerName: cfg.Bot.Name}
	conn, err := dial(cfg.Bot, req)
	if err != nil {
		log.Fatal().Err(err).Str("server", cfg.Bot.Server).Msg("connect")
	}
	defer conn.Close()

	joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	joined, err := conn.WaitJoined(joinCtx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("server", cfg.Bot.Server).Msg("join")
	}

	var tr *track.Track
	if joined.Track != "" {
		tracks, _, err := track.LoadAll(os.DirFS(cfg.Server.TracksDir), ".")
		if err != nil {
			log.Warn().Err(err).Msg("no local tracks, predicting without walls")
		} else if tr = tracks[joined.Track]; tr == nil {
			log.Warn().Str("track", joined.Track).Msg("track not found locally, predicting without walls")
		}
	}

	if cfg.Bot.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Bot.Duration)
		defer cancel()
	}

	log.Info().
		Uint32("kart", joined.VehicleID).
		Str("server", joined.ServerName).
		Str("transport", cfg.Bot.Transport).
		Int("fps", cfg.Bot.FrameRate).
		Msg("driving")

	stats := bot.NewDriver(conn, joined, tr, cfg.Bot.Seed).Run(ctx, cfg.Bot.FrameRate)
	log.Info().
		Int("ticks", stats.Ticks).
		Int("states", stats.StatesApplied).
		Int("duplicates", stats.DuplicatesSkipped).
		Int("reconciles", stats.Reconciles).
		Float64("meanCorrection", stats.MeanCorrection()).
		Float64("maxCorrection", stats.MaxCorrection).
		Msg("done")
}

func dial(cfg config.BotConfig, req messages.JoinRequest) (network.Conn, error) {
	switch cfg.Transport {
	case "kcp":
		return network.DialKCP(cfg.Server, req)
	default:
		c := network.NewClient()
		c.Connect(cfg.Server, req)
		return c, nil
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
