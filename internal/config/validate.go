package config

import (
	"errors"
	"fmt"

	"github.com/infinitybuddha29/caller/internal/logging"
)

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return errors.New("server.listen_addr is required")
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must be >= 0")
	}

	if c.Signaling.GracePeriod <= 0 {
		return errors.New("signaling.grace_period must be > 0")
	}
	if c.Signaling.SendBuffer < 1 {
		return errors.New("signaling.send_buffer must be >= 1")
	}
	if c.Signaling.MaxMessageBytes < 1024 {
		return fmt.Errorf("signaling.max_message_bytes must be >= 1024, got %d", c.Signaling.MaxMessageBytes)
	}
	if c.Signaling.WriteWait <= 0 {
		return errors.New("signaling.write_wait must be > 0")
	}
	if c.Signaling.PongWait <= 0 {
		return errors.New("signaling.pong_wait must be > 0")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", logging.FormatText, logging.FormatJSON, c.Log.Format)
	}

	return nil
}
