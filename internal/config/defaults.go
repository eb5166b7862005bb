package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultGracePeriod     = 2 * time.Minute
	DefaultSendBuffer      = 256
	DefaultMaxMessageBytes = 64 * 1024 // enough for SDP with many candidates
	DefaultWriteWait       = 10 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Signaling.GracePeriod == 0 {
		c.Signaling.GracePeriod = DefaultGracePeriod
	}
	if c.Signaling.SendBuffer == 0 {
		c.Signaling.SendBuffer = DefaultSendBuffer
	}
	if c.Signaling.MaxMessageBytes == 0 {
		c.Signaling.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.Signaling.WriteWait == 0 {
		c.Signaling.WriteWait = DefaultWriteWait
	}
	if c.Signaling.PongWait == 0 {
		c.Signaling.PongWait = DefaultPongWait
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
