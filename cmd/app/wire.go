//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/cityweather/internal/bootstrap"
	"github.com/yanqian/cityweather/internal/domain/weather"
	"github.com/yanqian/cityweather/internal/infra/config"
	"github.com/yanqian/cityweather/internal/infra/openweather"
	"github.com/yanqian/cityweather/internal/infra/teleport"
	httpiface "github.com/yanqian/cityweather/internal/interface/http"
	"github.com/yanqian/cityweather/pkg/logger"
	"github.com/yanqian/cityweather/pkg/util"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideWeatherConfig,
		provideCityDirectory,
		provideWeatherProvider,
		provideClock,
		provideSequenceStore,
		provideFailureJournal,
		weather.NewService,
		wire.Bind(new(weather.CityDirectory), new(*teleport.Client)),
		wire.Bind(new(weather.Provider), new(*openweather.Client)),
		wire.Bind(new(weather.Clock), new(*util.Clock)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
