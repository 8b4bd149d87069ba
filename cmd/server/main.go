package main

import (
	"flag"
	"os"
	"path"

	"github.com/mizuki-ao/geminigate/internal/cmd"
	"github.com/mizuki-ao/geminigate/internal/config"
	"github.com/mizuki-ao/geminigate/internal/logging"
	"github.com/mizuki-ao/geminigate/internal/util"
	log "github.com/sirupsen/logrus"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Configure File Path")
	flag.Parse()

	if configPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("failed to get working directory: %v", err)
		}
		configPath = path.Join(wd, "config.yaml")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	util.SetLogLevel(cfg)
	if err = logging.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
		log.Fatalf("failed to configure log output: %v", err)
	}

	cmd.StartService(cfg, configPath)
}
