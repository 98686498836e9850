package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"travelbook/auth"
	"travelbook/config"
	dbt "travelbook/db/db"
	"travelbook/db/file"
	"travelbook/db/mem"
	"travelbook/db/pg"
	"travelbook/db/sheet"
	"travelbook/mq/goch"
	"travelbook/mq/mq"
	"travelbook/mq/rabbit"
	"travelbook/store"
)

// loadConfig reads the configuration selected by the persistent flags and
// installs the default logger.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		cfg.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	setupLogging(cfg.LogFormat)
	return cfg, nil
}

func setupLogging(format string) {
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	} else {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	slog.SetDefault(slog.New(handler))
}

// app is everything a command needs, built from one Config.
type app struct {
	cfg    config.Config
	store  *store.Store
	events *goch.ChannelOrderMessageQueue
	closer []func()
}

func (a *app) Close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		a.closer[i]()
	}
}

// newApp wires backend, publishers and store. localEvents enables the
// in-process queue that feeds the websocket stream.
func newApp(cfg config.Config, localEvents bool) (*app, error) {
	a := &app{cfg: cfg}

	backend, err := a.newBackend()
	if err != nil {
		a.Close()
		return nil, err
	}

	var publishers mq.Publishers
	if localEvents && cfg.MQMode != config.MQModeNone {
		a.events = goch.NewChannelOrderMessageQueue(64)
		a.closer = append(a.closer, a.events.Stop)
		publishers = append(publishers, a.events)
	}
	if cfg.MQMode == config.MQModeRabbit {
		conn, err := rabbit.NewRabbitConnection(rabbit.CreateAmqpURL(cfg.RabbitMQURL))
		if err != nil {
			a.Close()
			return nil, err
		}
		publisher, err := rabbit.NewRabbitOrderPublisher(conn)
		if err != nil {
			conn.Close()
			a.Close()
			return nil, err
		}
		a.closer = append(a.closer, publisher.Close)
		publishers = append(publishers, publisher)
	}

	opts := []store.Option{store.WithAmountPolicy(cfg.Policy())}
	if len(publishers) > 0 {
		opts = append(opts, store.WithPublisher(publishers))
	}
	a.store = store.New(backend, opts...)
	return a, nil
}

func (a *app) newBackend() (dbt.TableWrapper, error) {
	cfg := a.cfg
	switch cfg.Backend {
	case dbt.BackendFile:
		return file.NewCSVTableWrapper(cfg.File), nil
	case dbt.BackendMem:
		return mem.NewInMemoryTableWrapper(), nil
	case dbt.BackendPG:
		gormDB, err := pg.InitPostgresGORM(pg.CreateDSN(cfg.DatabaseURL))
		if err != nil {
			return nil, err
		}
		a.closer = append(a.closer, func() { pg.CloseGORM(gormDB) })
		return pg.NewGORMTableWrapper(gormDB), nil
	case dbt.BackendSheet:
		authOpts := []auth.Option{}
		if cfg.RedisURL != "" {
			rdb, err := auth.NewRedisClient(cfg.RedisURL)
			if err != nil {
				return nil, err
			}
			a.closer = append(a.closer, func() { rdb.Close() })
			key := fmt.Sprintf("%s:sheet_token:%s", config.AppName, cfg.Sheet.AppID)
			authOpts = append(authOpts, auth.WithCache(auth.NewRedisCache(rdb, key)))
		}
		tokens := auth.NewTokenManager(auth.Config{
			BaseURL:   cfg.Sheet.BaseURL,
			AppID:     cfg.Sheet.AppID,
			AppSecret: cfg.Sheet.AppSecret,
			Timeout:   cfg.Sheet.Timeout,
		}, authOpts...)
		return sheet.NewSheetTableWrapper(sheet.Config{
			BaseURL:    cfg.Sheet.BaseURL,
			Collection: cfg.Sheet.Collection,
			SheetID:    cfg.Sheet.SheetID,
			MaxRows:    cfg.Sheet.MaxRows,
			Timeout:    cfg.Sheet.Timeout,
		}, tokens, &http.Client{}), nil
	}
	return nil, &config.ConfigError{Problems: []string{fmt.Sprintf("unknown backend %q", cfg.Backend)}}
}

// openStore builds the app and loads the collection. strict makes a failed
// load an error instead of a degraded start.
func openStore(ctx context.Context, cmd *cobra.Command, localEvents, strict bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg, localEvents)
	if err != nil {
		return nil, err
	}
	if _, err := a.store.LoadAll(ctx); err != nil {
		if strict {
			a.Close()
			return nil, err
		}
		slog.Warn("starting with an empty collection", "err", err)
	}
	return a, nil
}
