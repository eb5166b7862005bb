// Package config loads the signaling server configuration from a YAML file,
// environment variables and built-in defaults.
package config

import "time"

// Config is the signaling server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Signaling SignalingConfig `yaml:"signaling"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // empty allows every origin
	DebugEndpoints  bool          `yaml:"debug_endpoints"` // exposes GET /debug/rooms
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SignalingConfig holds coordinator and per-connection settings.
type SignalingConfig struct {
	GracePeriod     time.Duration `yaml:"grace_period"`
	SendBuffer      int           `yaml:"send_buffer"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	WriteWait       time.Duration `yaml:"write_wait"`
	PongWait        time.Duration `yaml:"pong_wait"`
}

// PingPeriod is how often the server pings each connection. It must be
// shorter than PongWait.
func (s SignalingConfig) PingPeriod() time.Duration {
	return (s.PongWait * 9) / 10
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
