package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/cityweather/internal/domain/weather"
	"github.com/yanqian/cityweather/internal/infra/config"
	"github.com/yanqian/cityweather/internal/infra/journal"
	"github.com/yanqian/cityweather/internal/infra/openweather"
	"github.com/yanqian/cityweather/internal/infra/sequence"
	"github.com/yanqian/cityweather/internal/infra/teleport"
	"github.com/yanqian/cityweather/pkg/util"
)

func provideWeatherConfig(cfg *config.Config) weather.Config {
	return weather.Config{
		SequenceTTL:  cfg.Sessions.TTL,
		FailureLimit: cfg.Journal.MaxList,
	}
}

func provideCityDirectory(cfg *config.Config, logger *slog.Logger) (*teleport.Client, error) {
	return teleport.NewClient(cfg.CityDirectory.BaseURL, cfg.CityDirectory.Timeout, logger)
}

func provideWeatherProvider(cfg *config.Config, logger *slog.Logger) (*openweather.Client, error) {
	return openweather.NewClient(cfg.Weather.BaseURL, cfg.Weather.APIKey, cfg.Weather.Timeout, logger)
}

func provideClock(cfg *config.Config) (*util.Clock, error) {
	loc, err := cfg.Clock.Location()
	if err != nil {
		return nil, err
	}
	return util.NewClock(loc), nil
}

func provideSequenceStore(cfg *config.Config, logger *slog.Logger) weather.SequenceStore {
	if cfg.Sessions.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory sequences", "error", err)
			return sequence.NewMemoryStore()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory sequences", "error", err)
			return sequence.NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory sequences", "error", err)
			client.Close()
		} else {
			logger.Info("valkey sequence store enabled", "addr", cfg.Sessions.Valkey.Addr)
			return sequence.NewValkeyStore(client, cfg.Sessions.Valkey.Prefix)
		}
	}
	return sequence.NewMemoryStore()
}

func provideFailureJournal(cfg *config.Config, logger *slog.Logger) weather.FailureJournal {
	fallback := journal.NewMemoryJournal(cfg.Journal.Capacity)
	dsn := strings.TrimSpace(cfg.Journal.Postgres.DSN)
	if dsn == "" {
		logger.Info("journal postgres dsn not set, using memory journal")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory journal", "error", err)
		return fallback
	}
	if cfg.Journal.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Journal.Postgres.MaxConns
	}
	if cfg.Journal.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Journal.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory journal", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory journal", "error", err)
		pool.Close()
		return fallback
	}
	pg := journal.NewPostgresJournal(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Error("failed to prepare journal schema, using memory journal", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("postgres failure journal enabled")
	return pg
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.Sessions.Valkey.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.Sessions.Valkey.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.Sessions.Valkey.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}
