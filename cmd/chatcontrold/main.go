package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/If-Master/ChatControlPlugin/config"
	"github.com/If-Master/ChatControlPlugin/internal/chat"
	"github.com/If-Master/ChatControlPlugin/internal/chat/manager"
	"github.com/If-Master/ChatControlPlugin/internal/chat/profile"
	"github.com/If-Master/ChatControlPlugin/internal/chat/storage"
	"github.com/If-Master/ChatControlPlugin/pkg/logger"
)

func main() {
	v, err := config.LoadConfig("config")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg, err := config.ParseConfig(v)
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}

	lg, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Select(ctx, cfg, lg)
	if err != nil {
		lg.Error("storage init failed", "error", err)
		os.Exit(1)
	}

	profiles, err := profile.NewManager(cfg.Storage.DataDir, lg)
	if err != nil {
		lg.Error("profile manager init failed", "error", err)
		os.Exit(1)
	}

	caps, bad := chat.NewStaticCapabilities(cfg.Capabilities)
	for _, raw := range bad {
		lg.Warn("ignoring capability grant with invalid uuid", "uuid", raw)
	}

	mgr, err := manager.New(ctx, store, profiles, caps, cfg, lg)
	if err != nil {
		lg.Error("chat manager init failed", "error", err)
		os.Exit(1)
	}

	lg.Info("chat core ready",
		"server", cfg.ServerName,
		"relational", store.Relational(),
		"channels", len(mgr.ChannelNames()),
	)

	<-ctx.Done()

	lg.Info("shutting down")
	profiles.SaveAll()
	if err := store.Close(); err != nil {
		lg.Error("storage close failed", "error", err)
	}
}
