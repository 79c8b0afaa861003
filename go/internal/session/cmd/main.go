package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/mcdev12/gesturegame/go/internal/clientconfig"
	"github.com/mcdev12/gesturegame/go/internal/session"
	"github.com/mcdev12/gesturegame/go/internal/session/display"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:   "gesture-client",
	Short: "Gesture game device client",
	RunE:  runClient,
}

var (
	flagConfig   string
	flagHost     string
	flagPort     int
	flagPath     string
	flagTLS      bool
	flagName     string
	flagLogLevel string
)

var errConnectionLost = errors.New("connection to game server lost")

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", os.Getenv("GESTURE_CONFIG"), "optional YAML config file (from env GESTURE_CONFIG if set)")
	flags.StringVar(&flagHost, "host", "", "game server host (overrides config)")
	flags.IntVar(&flagPort, "port", 0, "game server port (overrides config)")
	flags.StringVar(&flagPath, "path", "", "websocket path (overrides config)")
	flags.BoolVar(&flagTLS, "tls", false, "connect with wss")
	flags.StringVar(&flagName, "name", "", "player name (overrides config)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute gesture client command")
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(cfg.LogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var screens display.Multi
	screens = append(screens, display.NewLog(log.Logger))

	svcConfig := session.Config{
		Server: session.Server{
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
			Path: cfg.Server.Path,
			TLS:  cfg.Server.TLS,
		},
		Connection:     cfg.ConnectionOptions(),
		Room:           cfg.RoomOptions(),
		Round:          cfg.RoundOptions(),
		Relay:          cfg.RelayOptions(),
		ConfirmWindow:  cfg.Input.ConfirmWindow,
		RequireConfirm: cfg.Input.RequireConfirm,
	}

	deviceID := uuid.New().String()
	if bridgeCfg, ok := cfg.BridgeOptions(deviceID); ok {
		bridge, err := display.NewBridge(bridgeCfg)
		if err != nil {
			log.Warn().Err(err).Str("url", bridgeCfg.URL).Msg("display bridge unavailable")
		} else {
			defer bridge.Close()
			screens = append(screens, bridge)
		}
	}

	svc := session.NewService(svcConfig, screens, session.WithDeviceID(deviceID))
	defer svc.Stop()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("device_id", svc.Session().DeviceID()).
		Str("player_name", svc.Session().PlayerName()).
		Msg("starting gesture client")

	if err := connectWithRetry(ctx, svc, cfg.Connection.ConnectAttempts, cfg.Connection.RetryDelay, clockwork.NewRealClock()); err != nil {
		return err
	}
	if err := svc.Session().FetchRooms(); err != nil {
		log.Warn().Err(err).Msg("initial room list request failed")
	}

	g, gctx := errgroup.WithContext(ctx)
	lines := make(chan string)
	go readLines(os.Stdin, lines)

	con := newConsole(svc, os.Stdout)
	g.Go(func() error {
		return con.run(gctx, lines)
	})
	g.Go(func() error {
		return superviseConnection(gctx, svc, cfg.Connection.ConnectAttempts, cfg.Connection.RetryDelay, clockwork.NewRealClock())
	})

	err = g.Wait()
	switch {
	case errors.Is(err, errQuit), err == nil:
		log.Info().Msg("gesture client shutdown complete")
		return nil
	default:
		return err
	}
}

func loadConfig(cmd *cobra.Command) (clientconfig.Config, error) {
	cfg, err := clientconfig.Load(flagConfig)
	if err != nil {
		return clientconfig.Config{}, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = flagHost
	}
	if flags.Changed("port") {
		cfg.Server.Port = flagPort
	}
	if flags.Changed("path") {
		cfg.Server.Path = flagPath
	}
	if flags.Changed("tls") {
		cfg.Server.TLS = flagTLS
	}
	if flags.Changed("name") {
		cfg.Session.PlayerName = flagName
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return clientconfig.Config{}, err
	}
	return cfg, nil
}

// connectWithRetry makes up to attempts connection attempts, waiting delay
// between them.
func connectWithRetry(ctx context.Context, svc *session.Service, attempts int, delay time.Duration, clock clockwork.Clock) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = svc.Connect(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("attempts", attempts).Msg("connect attempt failed")
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(delay):
		}
	}
	return fmt.Errorf("connect after %d attempts: %w", attempts, err)
}

// superviseConnection reconnects whenever the server connection drops. It
// returns nil when ctx ends and errConnectionLost once a reconnect has used up
// every attempt.
func superviseConnection(ctx context.Context, svc *session.Service, attempts int, delay time.Duration, clock clockwork.Clock) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-svc.Done():
		}

		log.Warn().Int("attempts", attempts).Msg("connection to game server lost, reconnecting")
		if err := connectWithRetry(ctx, svc, attempts, delay, clock); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", errConnectionLost, err)
		}
		log.Info().Msg("reconnected to game server")
		if err := svc.Session().FetchRooms(); err != nil {
			log.Warn().Err(err).Msg("room list request after reconnect failed")
		}
	}
}
