// Package config loads server and bot settings from defaults, an optional
// config file, KARTS_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/netconfig"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "KARTS"

var ErrInvalidConfig = errors.New("invalid config")

// ServerConfig contains the dedicated server settings
type ServerConfig struct {
	Name              string        `mapstructure:"name"`
	Version           string        `mapstructure:"version"` // required client version, empty accepts any
	Port              uint          `mapstructure:"port"`    // websocket
	KCPPort           uint          `mapstructure:"kcpPort"` // 0 disables KCP
	TickRate          int           `mapstructure:"tickRate"`
	MaxPlayers        int           `mapstructure:"maxPlayers"`
	MaxMovesPerSecond int           `mapstructure:"maxMovesPerSecond"`
	ReconnectSecret   string        `mapstructure:"reconnectSecret"`
	ReconnectGrace    time.Duration `mapstructure:"reconnectGrace"`
	TracksDir         string        `mapstructure:"tracksDir"`
	Track             string        `mapstructure:"track"`
}

// WorldConfig contains world-wide physics inputs
type WorldConfig struct {
	Gravity float64 `mapstructure:"gravity"` // m/s²
}

// LogConfig selects the zerolog level and output format
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// BotConfig contains the headless client settings
type BotConfig struct {
	Server    string        `mapstructure:"server"`    // host:port
	Transport string        `mapstructure:"transport"` // ws or kcp
	Name      string        `mapstructure:"name"`
	FrameRate int           `mapstructure:"frameRate"`
	Duration  time.Duration `mapstructure:"duration"` // 0 runs until interrupted
	Seed      int64         `mapstructure:"seed"`
}

type Config struct {
	Server ServerConfig   `mapstructure:"server"`
	Kart   kart.Constants `mapstructure:"kart"`
	World  WorldConfig    `mapstructure:"world"`
	Log    LogConfig      `mapstructure:"log"`
	Bot    BotConfig      `mapstructure:"bot"`
}

// flagKeys maps command line flags to config keys. Only flags present in the
// flag set are bound, so server and bot share the table.
var flagKeys = map[string]string{
	"name":        "server.name",
	"version":     "server.version",
	"port":        "server.port",
	"kcp-port":    "server.kcpPort",
	"tickrate":    "server.tickRate",
	"max-players": "server.maxPlayers",
	"track":       "server.track",
	"tracks-dir":  "server.tracksDir",
	"gravity":     "world.gravity",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"server":      "bot.server",
	"transport":   "bot.transport",
	"driver":      "bot.name",
	"fps":         "bot.frameRate",
	"duration":    "bot.duration",
	"seed":        "bot.seed",
}

// New returns a viper instance with every default set and environment
// lookup enabled.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "Krazy Karts Server")
	v.SetDefault("server.version", "")
	v.SetDefault("server.port", netconfig.DefaultPort)
	v.SetDefault("server.kcpPort", 0)
	v.SetDefault("server.tickRate", netconfig.DefaultTickRate)
	v.SetDefault("server.maxPlayers", netconfig.DefaultMaxPlayers)
	v.SetDefault("server.maxMovesPerSecond", netconfig.DefaultMovesPerSec)
	v.SetDefault("server.reconnectSecret", "")
	v.SetDefault("server.reconnectGrace", 30*time.Second)
	v.SetDefault("server.tracksDir", "assets/tracks")
	v.SetDefault("server.track", "")

	c := kart.DefaultConstants()
	v.SetDefault("kart.mass", c.Mass)
	v.SetDefault("kart.maxDrivingForce", c.MaxDrivingForce)
	v.SetDefault("kart.dragCoefficient", c.DragCoefficient)
	v.SetDefault("kart.rollingResistance", c.RollingResistanceCoefficient)
	v.SetDefault("kart.minTurningRadius", c.MinTurningRadius)

	v.SetDefault("world.gravity", netconfig.DefaultGravity)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("bot.server", fmt.Sprintf("localhost:%d", netconfig.DefaultPort))
	v.SetDefault("bot.transport", "ws")
	v.SetDefault("bot.name", "bot")
	v.SetDefault("bot.frameRate", 60)
	v.SetDefault("bot.duration", time.Duration(0))
	v.SetDefault("bot.seed", int64(1))
}

// BindFlags binds every known flag of fs to its config key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads configFile (if not empty) into v, unmarshals the result and
// validates it.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	s := c.Server
	switch {
	case s.Port == 0 || s.Port > 65535:
		return fmt.Errorf("%w: server.port %d", ErrInvalidConfig, s.Port)
	case s.KCPPort > 65535:
		return fmt.Errorf("%w: server.kcpPort %d", ErrInvalidConfig, s.KCPPort)
	case s.KCPPort != 0 && s.KCPPort == s.Port:
		return fmt.Errorf("%w: server.kcpPort must differ from server.port", ErrInvalidConfig)
	case s.TickRate <= 0 || s.TickRate > 240:
		return fmt.Errorf("%w: server.tickRate %d", ErrInvalidConfig, s.TickRate)
	case s.MaxPlayers <= 0:
		return fmt.Errorf("%w: server.maxPlayers %d", ErrInvalidConfig, s.MaxPlayers)
	case s.MaxMovesPerSecond <= 0:
		return fmt.Errorf("%w: server.maxMovesPerSecond %d", ErrInvalidConfig, s.MaxMovesPerSecond)
	case s.ReconnectGrace < 0:
		return fmt.Errorf("%w: server.reconnectGrace %s", ErrInvalidConfig, s.ReconnectGrace)
	case c.World.Gravity < 0:
		return fmt.Errorf("%w: world.gravity %v", ErrInvalidConfig, c.World.Gravity)
	}

	if err := c.Kart.Validate(); err != nil {
		return fmt.Errorf("%w: kart: %w", ErrInvalidConfig, err)
	}

	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}

	switch c.Bot.Transport {
	case "ws", "kcp":
	default:
		return fmt.Errorf("%w: bot.transport %q", ErrInvalidConfig, c.Bot.Transport)
	}
	if c.Bot.FrameRate <= 0 {
		return fmt.Errorf("%w: bot.frameRate %d", ErrInvalidConfig, c.Bot.FrameRate)
	}
	return nil
}
