// Package cmd wires the gateway's components together and runs the service
// until it receives a shutdown signal.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mizuki-ao/geminigate/internal/api"
	"github.com/mizuki-ao/geminigate/internal/config"
	"github.com/mizuki-ao/geminigate/internal/watcher"
	log "github.com/sirupsen/logrus"
)

// StartService builds the API server from the given configuration, starts it,
// and blocks until SIGINT or SIGTERM arrives. When the configuration file
// exists on disk it is watched for changes, and every successful reload is
// applied to the running server.
//
// Parameters:
//   - cfg: The application configuration
//   - configPath: The path of the configuration file to watch
func StartService(cfg *config.Config, configPath string) {
	apiServer := api.NewServer(cfg)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	watcherCtx, cancelWatcher := context.WithCancel(context.Background())
	defer cancelWatcher()

	if _, err := os.Stat(configPath); err == nil {
		configWatcher, errWatcher := watcher.NewWatcher(configPath, apiServer.UpdateConfig)
		if errWatcher != nil {
			log.Warnf("failed to create config watcher: %v", errWatcher)
		} else {
			configWatcher.SetConfig(cfg)
			if errStart := configWatcher.Start(watcherCtx); errStart != nil {
				log.Warnf("failed to start config watcher: %v", errStart)
			} else {
				defer func() {
					_ = configWatcher.Stop()
				}()
			}
		}
	} else {
		log.Debugf("config file %s not found, hot reload disabled", configPath)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Debugf("received shutdown signal, cleaning up...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		log.Debugf("error stopping API server: %v", err)
	}

	log.Debugf("cleanup completed, exiting...")
}
