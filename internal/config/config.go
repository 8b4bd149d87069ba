// Package config provides configuration management for the GeminiGate server.
// It handles loading and parsing YAML configuration files, and provides structured
// access to application settings including the listen port, backend base URL,
// the default model for passthrough requests, and logging behavior.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file is absent or leaves a field unset.
const (
	// DefaultPort is the listen port used when none is configured.
	DefaultPort = 80

	// DefaultBaseURL is the Gemini generateContent endpoint prefix, up to and
	// including the models path segment.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

	// DefaultLegacyModel is the model used for passthrough requests, which carry
	// no model name of their own.
	DefaultLegacyModel = "gemini-2.5-flash"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Port is the network port on which the gateway will listen.
	Port int `yaml:"port"`

	// BaseURL is the backend URL prefix requests are forwarded to. The final
	// request URL is "{base-url}/{model}:generateContent?key={key}".
	BaseURL string `yaml:"base-url"`

	// LegacyModel is the model name used for passthrough requests on "/".
	LegacyModel string `yaml:"legacy-model"`

	// RequestTimeout is the timeout in seconds applied to backend calls and
	// image fetches. Zero disables the timeout entirely, which mirrors the
	// gateway's historical behavior of waiting indefinitely.
	RequestTimeout int `yaml:"request-timeout"`

	// ProxyURL is the URL of an optional proxy server to use for outbound
	// requests. SOCKS5, HTTP, and HTTPS proxies are supported.
	ProxyURL string `yaml:"proxy-url"`

	// Debug enables or disables debug-level logging and other debug features.
	Debug bool `yaml:"debug"`

	// LoggingToFile redirects application logs to rotated files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// RequestLog enables or disables detailed request logging functionality.
	RequestLog bool `yaml:"request-log"`
}

// Default returns a configuration populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Port:        DefaultPort,
		BaseURL:     DefaultBaseURL,
		LegacyModel: DefaultLegacyModel,
	}
}

// LoadConfig reads a YAML configuration file from the given path, unmarshals
// it into a Config struct, and fills unset fields with defaults. A missing
// file is not an error: the gateway runs on defaults alone.
//
// Parameters:
//   - configFile: The path to the YAML configuration file
//
// Returns:
//   - *Config: The loaded configuration
//   - error: An error if the configuration could not be parsed
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// applyDefaults fills zero-valued fields with the built-in defaults.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.LegacyModel == "" {
		c.LegacyModel = DefaultLegacyModel
	}
}
