package clientconfig

import (
	"os"
	"strconv"
	"time"
)

// applyEnv overrides config with any GESTURE_* variables that are set.
func applyEnv(c *Config) {
	c.Server.Host = getEnv("GESTURE_SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("GESTURE_SERVER_PORT", c.Server.Port)
	c.Server.Path = getEnv("GESTURE_SERVER_PATH", c.Server.Path)
	c.Server.TLS = getEnvAsBool("GESTURE_SERVER_TLS", c.Server.TLS)
	c.Server.InsecureSkipVerify = getEnvAsBool("GESTURE_SERVER_INSECURE_SKIP_VERIFY", c.Server.InsecureSkipVerify)

	c.Connection.ConnectTimeout = getEnvAsDuration("GESTURE_CONNECT_TIMEOUT", c.Connection.ConnectTimeout)
	c.Connection.KeepAliveInterval = getEnvAsDuration("GESTURE_KEEP_ALIVE_INTERVAL", c.Connection.KeepAliveInterval)
	c.Connection.ConnectAttempts = getEnvAsInt("GESTURE_CONNECT_ATTEMPTS", c.Connection.ConnectAttempts)

	c.Session.PlayerName = getEnv("GESTURE_PLAYER_NAME", c.Session.PlayerName)
	c.Session.MaxPlayers = getEnvAsInt("GESTURE_MAX_PLAYERS", c.Session.MaxPlayers)

	c.Round.Duration = getEnvAsDuration("GESTURE_ROUND_DURATION", c.Round.Duration)
	c.Round.UseServerDuration = getEnvAsBool("GESTURE_USE_SERVER_DURATION", c.Round.UseServerDuration)

	c.Input.ConfirmWindow = getEnvAsDuration("GESTURE_CONFIRM_WINDOW", c.Input.ConfirmWindow)
	c.Input.RequireConfirm = getEnvAsBool("GESTURE_REQUIRE_CONFIRM", c.Input.RequireConfirm)
	c.Input.MinConfidence = getEnvAsFloat("GESTURE_MIN_CONFIDENCE", c.Input.MinConfidence)

	c.Display.NATSURL = getEnv("GESTURE_NATS_URL", c.Display.NATSURL)
	c.Display.Subject = getEnv("GESTURE_DISPLAY_SUBJECT", c.Display.Subject)

	c.Log.Level = getEnv("GESTURE_LOG_LEVEL", c.Log.Level)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
