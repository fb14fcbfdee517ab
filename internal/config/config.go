package config

import "time"

// Config is the root configuration for a relayd instance.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Relay   RelayConfig   `yaml:"relay"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP/WebSocket host settings.
type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`    // empty = allow any origin
	EnableCompression bool          `yaml:"enable_compression"` // permessage-deflate on upgraded sockets
	ReadLimit         int64         `yaml:"read_limit"`         // max inbound frame bytes
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// RelayConfig holds relay core settings.
type RelayConfig struct {
	ChannelCapacity int `yaml:"channel_capacity"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}
