package util

import (
	"github.com/mizuki-ao/geminigate/internal/config"
	log "github.com/sirupsen/logrus"
)

// SetLogLevel applies the configured verbosity: debug mode selects
// DebugLevel, everything else runs at InfoLevel. Level changes are logged so
// configuration reloads leave a trace.
func SetLogLevel(cfg *config.Config) {
	level := log.InfoLevel
	if cfg.Debug {
		level = log.DebugLevel
	}

	if current := log.GetLevel(); current != level {
		log.SetLevel(level)
		log.Infof("log level changed from %s to %s (debug=%t)", current, level, cfg.Debug)
	}
}

// HideAPIKey obscures an API key for logging purposes, showing only the first
// and last few characters.
func HideAPIKey(apiKey string) string {
	switch {
	case len(apiKey) > 8:
		return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
	case len(apiKey) > 4:
		return apiKey[:2] + "..." + apiKey[len(apiKey)-2:]
	case len(apiKey) > 2:
		return apiKey[:1] + "..." + apiKey[len(apiKey)-1:]
	}
	return apiKey
}
