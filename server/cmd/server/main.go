package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/automoto/krazykarts-mp/config"
	"github.com/automoto/krazykarts-mp/logging"
	"github.com/automoto/krazykarts-mp/server/core"
	"github.com/automoto/krazykarts-mp/shared/netconfig"
	"github.com/automoto/krazykarts-mp/shared/protocol"
	"github.com/automoto/krazykarts-mp/shared/track"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("server", pflag.ExitOnError)
	configFile := fs.String("config", "", "Config file (yaml, toml or json)")
	fs.Uint("port", netconfig.DefaultPort, "WebSocket port")
	fs.Uint("kcp-port", 0, "KCP port (0 disables KCP)")
	fs.Int("tickrate", netconfig.DefaultTickRate, "Server tick rate (updates per second)")
	fs.Int("max-players", netconfig.DefaultMaxPlayers, "Maximum connected drivers")
	fs.String("name", "Krazy Karts Server", "Server display name")
	fs.String("version", "", "Required client version (empty = accept any)")
	fs.String("tracks-dir", "assets/tracks", "Directory of .tmx tracks")
	fs.String("track", "", "Track to race on (file stem; empty = first)")
	fs.Float64("gravity", netconfig.DefaultGravity, "Gravity in m/s²")
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

	tracks, names, err := track.LoadAll(os.DirFS(cfg.Server.TracksDir), ".")
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Server.TracksDir).Msg("load tracks")
	}
	if len(names) == 0 {
		log.Fatal().Str("dir", cfg.Server.TracksDir).Msg("no tracks found")
	}
	name := cfg.Server.Track
	if name == "" {
		name = names[0]
	}
	tr, ok := tracks[name]
	if !ok {
		log.Fatal().Str("track", name).Strs("available", names).Msg("unknown track")
	}

	server, err := core.NewServer(cfg, tr)
	if err != nil {
		log.Fatal().Err(err).Msg("create server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down server")
		server.Stop()
		os.Exit(0)
	}()

	log.Info().
		Str("name", cfg.Server.Name).
		Str("track", tr.Name).
		Uint("port", cfg.Server.Port).
		Uint("kcpPort", cfg.Server.KCPPort).
		Int("tickRate", cfg.Server.TickRate).
		Str("version", cfg.Server.Version).
		Msg("starting server")
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
