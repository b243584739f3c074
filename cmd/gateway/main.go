package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"marketgateway/config"
	"marketgateway/internal/gateway"
	"marketgateway/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := gateway.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to start gateway", zap.Error(err))
	}

	if err := gw.Run(ctx); err != nil {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
