package clientconfig

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcdev12/gesturegame/go/internal/session/connection"
	"github.com/mcdev12/gesturegame/go/internal/session/display"
	"github.com/mcdev12/gesturegame/go/internal/session/input"
	"github.com/mcdev12/gesturegame/go/internal/session/room"
	"github.com/mcdev12/gesturegame/go/internal/session/round"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	Session    SessionConfig    `yaml:"session"`
	Round      RoundConfig      `yaml:"round"`
	Input      InputConfig      `yaml:"input"`
	Display    DisplayConfig    `yaml:"display"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Path               string `yaml:"path"`
	TLS                bool   `yaml:"tls"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

type ConnectionConfig struct {
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	MaxBatch          int           `yaml:"max_batch"`
	MaxMessageSize    int64         `yaml:"max_message_size"`
	ConnectAttempts   int           `yaml:"connect_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
}

type SessionConfig struct {
	PlayerName string `yaml:"player_name"`
	MaxPlayers int    `yaml:"max_players"`
	PlayerType string `yaml:"player_type"`
}

type RoundConfig struct {
	Duration          time.Duration `yaml:"duration"`
	UseServerDuration bool          `yaml:"use_server_duration"`
}

type InputConfig struct {
	ConfirmWindow  time.Duration `yaml:"confirm_window"`
	RequireConfirm bool          `yaml:"require_confirm"`
	MinConfidence  float64       `yaml:"min_confidence"`
	GestureRate    float64       `yaml:"gesture_rate"`
	GestureBurst   int           `yaml:"gesture_burst"`
}

// DisplayConfig configures the optional NATS display bridge. An empty URL
// disables it.
type DisplayConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	conn := connection.DefaultConfig()
	sess := room.DefaultConfig()
	relay := input.DefaultRelayConfig()
	return Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 3000,
			Path: "/",
		},
		Connection: ConnectionConfig{
			ConnectTimeout:    conn.ConnectTimeout,
			KeepAliveInterval: conn.KeepAliveInterval,
			WriteTimeout:      conn.WriteTimeout,
			MaxBatch:          conn.MaxBatch,
			MaxMessageSize:    conn.MaxMessageSize,
			ConnectAttempts:   3,
			RetryDelay:        2 * time.Second,
		},
		Session: SessionConfig{
			MaxPlayers: sess.MaxPlayers,
			PlayerType: sess.PlayerType,
		},
		Round: RoundConfig{
			Duration: round.DefaultConfig().Duration,
		},
		Input: InputConfig{
			ConfirmWindow:  input.DefaultConfirmWindow,
			RequireConfirm: true,
			MinConfidence:  relay.MinConfidence,
			GestureRate:    relay.Rate,
			GestureBurst:   relay.Burst,
		},
		Display: DisplayConfig{
			Subject: display.DefaultBridgeConfig().Subject,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and GESTURE_* environment variables, in that order.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&config)

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate rejects values the client cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Server.Host == "":
		return fmt.Errorf("%w: server.host is required", ErrInvalid)
	case c.Server.Port < 1 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	case c.Connection.ConnectTimeout <= 0:
		return fmt.Errorf("%w: connection.connect_timeout must be positive", ErrInvalid)
	case c.Connection.KeepAliveInterval <= 0:
		return fmt.Errorf("%w: connection.keep_alive_interval must be positive", ErrInvalid)
	case c.Connection.MaxBatch < 1:
		return fmt.Errorf("%w: connection.max_batch must be at least 1", ErrInvalid)
	case c.Connection.ConnectAttempts < 1:
		return fmt.Errorf("%w: connection.connect_attempts must be at least 1", ErrInvalid)
	case c.Session.MaxPlayers < 2:
		return fmt.Errorf("%w: session.max_players must be at least 2", ErrInvalid)
	case c.Round.Duration < time.Second:
		return fmt.Errorf("%w: round.duration must be at least 1s", ErrInvalid)
	case c.Input.MinConfidence < 0 || c.Input.MinConfidence > 1:
		return fmt.Errorf("%w: input.min_confidence must be within [0,1]", ErrInvalid)
	case c.Input.GestureRate <= 0 || c.Input.GestureBurst < 1:
		return fmt.Errorf("%w: input.gesture_rate and input.gesture_burst must be positive", ErrInvalid)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	return nil
}

// LogLevel returns the configured zerolog level. Validate has already
// rejected unknown levels.
func (c Config) LogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func (c Config) ConnectionOptions() connection.Config {
	conn := connection.DefaultConfig()
	conn.ConnectTimeout = c.Connection.ConnectTimeout
	conn.KeepAliveInterval = c.Connection.KeepAliveInterval
	conn.WriteTimeout = c.Connection.WriteTimeout
	conn.MaxBatch = c.Connection.MaxBatch
	conn.MaxMessageSize = c.Connection.MaxMessageSize
	conn.InsecureSkipVerify = c.Server.InsecureSkipVerify
	return conn
}

func (c Config) RoomOptions() room.Config {
	return room.Config{
		PlayerName: c.Session.PlayerName,
		MaxPlayers: c.Session.MaxPlayers,
		PlayerType: c.Session.PlayerType,
	}
}

func (c Config) RoundOptions() round.Config {
	return round.Config{
		Duration:          c.Round.Duration,
		UseServerDuration: c.Round.UseServerDuration,
	}
}

func (c Config) RelayOptions() input.RelayConfig {
	return input.RelayConfig{
		MinConfidence: c.Input.MinConfidence,
		Rate:          c.Input.GestureRate,
		Burst:         c.Input.GestureBurst,
	}
}

// BridgeOptions returns the NATS bridge settings, or false when the bridge is
// disabled.
func (c Config) BridgeOptions(deviceID string) (display.BridgeConfig, bool) {
	if c.Display.NATSURL == "" {
		return display.BridgeConfig{}, false
	}
	bridge := display.DefaultBridgeConfig()
	bridge.URL = c.Display.NATSURL
	bridge.DeviceID = deviceID
	if c.Display.Subject != "" {
		bridge.Subject = c.Display.Subject
	}
	return bridge, true
}
