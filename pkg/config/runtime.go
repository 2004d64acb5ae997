package config

import (
	"log/slog"
	"os"
	"strings"
)

// Runtime holds process-level settings that never reach the certificate core.
type Runtime struct {
	LogLevel         string `yaml:"log_level,omitempty"`
	ListenAddr       string `yaml:"listen_addr,omitempty"`
	JWTSecret        string `yaml:"jwt_secret,omitempty"`
	KeyFile          string `yaml:"key_file,omitempty"`
	JournalDSN       string `yaml:"journal_dsn,omitempty"`
	RedisAddr        string `yaml:"redis_addr,omitempty"`
	RedisPassword    string `yaml:"redis_password,omitempty"`
	OTLPEndpoint     string `yaml:"otlp_endpoint,omitempty"`
	TelemetryEnabled bool   `yaml:"telemetry_enabled,omitempty"`
}

// LoadRuntime loads runtime settings from environment variables.
func LoadRuntime() Runtime {
	rt := Runtime{
		LogLevel:      os.Getenv("LOG_LEVEL"),
		ListenAddr:    os.Getenv("DOCUFY_LISTEN_ADDR"),
		JWTSecret:     os.Getenv("DOCUFY_JWT_SECRET"),
		KeyFile:       os.Getenv("DOCUFY_KEY_FILE"),
		JournalDSN:    os.Getenv("DOCUFY_JOURNAL_DSN"),
		RedisAddr:     os.Getenv("DOCUFY_REDIS_ADDR"),
		RedisPassword: os.Getenv("DOCUFY_REDIS_PASSWORD"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if rt.LogLevel == "" {
		rt.LogLevel = "INFO"
	}
	if rt.ListenAddr == "" {
		rt.ListenAddr = ":8080"
	}
	rt.TelemetryEnabled = rt.OTLPEndpoint != ""
	return rt
}

// SlogLevel maps LogLevel onto slog, defaulting to INFO.
func (r Runtime) SlogLevel() slog.Level {
	switch strings.ToUpper(r.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
