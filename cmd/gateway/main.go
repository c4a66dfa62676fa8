package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/common"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/gateway"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

func main() {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		log.Fatal().Err(err).Msg("error creating config manager")
	}
	config := configManager.GetConfig()
	if config.PrettyLogs {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	gw, err := gateway.NewGateway()
	if err != nil {
		log.Fatal().Err(err).Msg("error creating report gateway")
	}

	gw.Start()
	log.Info().Msg("Gateway stopped")
}
