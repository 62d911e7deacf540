package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uhyunpark/hypersigner/params"
	"github.com/uhyunpark/hypersigner/pkg/api"
	"github.com/uhyunpark/hypersigner/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	logger, err := util.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	server := api.NewServer(cfg, sugar)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: server.Handler(),
	}

	go func() {
		sugar.Infow("signer_starting",
			"listen", cfg.Listen,
			"api_url", cfg.APIURL,
			"trading_asset", cfg.TradingAsset,
			"perp_dex", cfg.PerpDex,
			"auth_enabled", cfg.SignerAPIKey != "",
			"builder_enabled", cfg.Builder() != nil,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server_failed", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		sugar.Warnw("shutdown_incomplete", "err", err)
	}
	sugar.Infow("signer_stopped")
}
