package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables overriding file values.
const (
	envListenAddr      = "CALLER_LISTEN_ADDR"
	envAllowedOrigins  = "CALLER_ALLOWED_ORIGINS"
	envDebugEndpoints  = "CALLER_DEBUG_ENDPOINTS"
	envShutdownTimeout = "CALLER_SHUTDOWN_TIMEOUT"
	envGracePeriod     = "CALLER_GRACE_PERIOD"
	envSendBuffer      = "CALLER_SEND_BUFFER"
	envMaxMessageBytes = "CALLER_MAX_MESSAGE_BYTES"
	envLogLevel        = "LOG_LEVEL"
	envLogFormat       = "LOG_FORMAT"

	// envPort is honoured for platforms that only hand out a port.
	envPort = "PORT"
)

// Load reads a YAML config file and expands ${VAR} references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadAndValidate builds the effective configuration: the file at path (if
// any), then environment overrides, then defaults, then validation.
func LoadAndValidate(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		var err error
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envPort); ok && v != "" {
		c.Server.ListenAddr = ":" + v
	}
	if v, ok := lookup(envListenAddr); ok && v != "" {
		c.Server.ListenAddr = v
	}
	if v, ok := lookup(envAllowedOrigins); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup(envDebugEndpoints); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envDebugEndpoints, err)
		}
		c.Server.DebugEndpoints = b
	}
	if err := envDuration(lookup, envShutdownTimeout, &c.Server.ShutdownTimeout); err != nil {
		return err
	}
	if err := envDuration(lookup, envGracePeriod, &c.Signaling.GracePeriod); err != nil {
		return err
	}
	if v, ok := lookup(envSendBuffer); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envSendBuffer, err)
		}
		c.Signaling.SendBuffer = n
	}
	if v, ok := lookup(envMaxMessageBytes); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", envMaxMessageBytes, err)
		}
		c.Signaling.MaxMessageBytes = n
	}
	if v, ok := lookup(envLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(envLogFormat); ok && v != "" {
		c.Log.Format = v
	}
	return nil
}

func envDuration(lookup func(string) (string, bool), key string, dst *time.Duration) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
