// Package cliconfig resolves settings for the caller command line client.
package cliconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/infinitybuddha29/caller/internal/signaling"
)

// Default configuration values
const (
	DefaultServerURL = "ws://localhost:8080/ws"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
	DefaultCodec     = "json"
)

// Config holds client configuration
type Config struct {
	// ServerURL is the signaling websocket endpoint
	ServerURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string // optional, empty disables TURN
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN candidates
	ForceRelay bool

	// Codec is "json" or "msgpack"
	Codec string

	// PublicDNS enables the public resolver fallback
	PublicDNS bool
}

// Options for loading config with CLI flag overrides. Zero values mean
// "not set on the command line".
type Options struct {
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	Codec      string
	PublicDNS  bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	return load(opts, os.LookupEnv)
}

func load(opts Options, lookup func(string) (string, bool)) (*Config, error) {
	pick := func(flag, env, def string) string {
		if flag != "" {
			return flag
		}
		if v, ok := lookup(env); ok && v != "" {
			return v
		}
		return def
	}
	pickBool := func(flag bool, env string) (bool, error) {
		if flag {
			return true, nil
		}
		v, ok := lookup(env)
		if !ok || v == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%s: %w", env, err)
		}
		return b, nil
	}

	cfg := &Config{
		ServerURL:  pick(opts.ServerURL, "CALLER_SERVER_URL", DefaultServerURL),
		STUNServer: pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer: pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:   pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:   pick(opts.TURNPass, "TURN_PASSWORD", ""),
		Codec:      strings.ToLower(pick(opts.Codec, "CALLER_CODEC", DefaultCodec)),
	}

	var err error
	if cfg.ForceRelay, err = pickBool(opts.ForceRelay, "CALLER_FORCE_RELAY"); err != nil {
		return nil, err
	}
	if cfg.PublicDNS, err = pickBool(opts.PublicDNS, "CALLER_PUBLIC_DNS"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the server URL and codec.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("server url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("server url: missing host in %q", c.ServerURL)
	}
	switch c.Codec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("codec must be json or msgpack, got %q", c.Codec)
	}
	return nil
}

// Subprotocol maps the configured codec to its websocket subprotocol.
func (c *Config) Subprotocol() string {
	if c.Codec == "msgpack" {
		return signaling.SubprotocolMsgPack
	}
	return signaling.SubprotocolJSON
}

// HTTPBaseURL returns the server origin over HTTP(S), used for the
// operational endpoints next to the websocket.
func (c *Config) HTTPBaseURL() string {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String()
}

// STUNServers returns STUN server URLs
func (c *Config) STUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// TURNServers returns TURN server URLs if configured
func (c *Config) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	if strings.Contains(c.TURNServer, "?transport=") {
		return []string{c.TURNServer}
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turn:"), "turns:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// TURNCredentials returns TURN username and password
func (c *Config) TURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
