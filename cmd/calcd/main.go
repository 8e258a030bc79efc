package main

import (
	"flag"

	"github.com/virdis/calcwire/internal/calc"
	"github.com/virdis/calcwire/internal/config"
	"github.com/virdis/calcwire/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config (runtime defaults apply when empty)")
	flag.Parse()

	logger := observability.InitLogger("calcd")

	cfg := calc.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := config.LoadServiceConfig(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *configPath).Msg("load config")
		}
		cfg = loaded
	}

	svc := calc.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		logger.Fatal().Err(err).Msg("service exited")
	}
}
