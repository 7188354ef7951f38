package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KNICEX/coin-status-watcher/internal/api"
	httpserver "github.com/KNICEX/coin-status-watcher/internal/platform/http"
	"github.com/KNICEX/coin-status-watcher/internal/repo"
	"github.com/KNICEX/coin-status-watcher/internal/service/monitor"
	"github.com/KNICEX/coin-status-watcher/ioc"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func initViper() error {
	// --config=./config/config.yaml, 不指定时只读环境变量
	file := pflag.String("config", "", "specify config file")
	pflag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if *file == "" {
		return nil
	}
	viper.SetConfigFile(*file)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("watcher stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := initViper(); err != nil {
		return err
	}
	cfg, err := ioc.InitConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger := ioc.InitLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []monitor.Option{monitor.WithLogger(logger)}
	var history repo.StatusChangeRepo
	if cfg.HistoryDSN != "" {
		db, err := ioc.InitDB(cfg.HistoryDSN)
		if err != nil {
			return err
		}
		history = repo.NewStatusChangeRepo(db)
		opts = append(opts, monitor.WithHistory(history))
	}

	assetMonitor, err := monitor.NewAssetMonitor(monitor.Coin,
		ioc.NewAssetServiceFactory(cfg.Binance, monitor.Coin),
		ioc.NewNotificationFactory(cfg.Telegram),
		opts...,
	)
	if err != nil {
		return err
	}

	if cfg.HTTPAddr != "" {
		router := api.NewRouter(assetMonitor, history, logger)
		go func() {
			if err := httpserver.Start(ctx, cfg.HTTPAddr, router, logger); err != nil {
				logger.Error("http server stopped", "error", err)
			}
		}()
	}

	task := monitor.NewAssetMonitorTask(assetMonitor)
	logger.Info("starting task", "task", task.Name())
	if err = task.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
