package main

import (
	"context"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/unisonmedia/unison-backend/internal/api/rooms"
	"github.com/unisonmedia/unison-backend/internal/config"
	"github.com/unisonmedia/unison-backend/internal/logger"
	"github.com/unisonmedia/unison-backend/internal/middleware"
	"github.com/unisonmedia/unison-backend/internal/queue"
	"github.com/unisonmedia/unison-backend/internal/registry"
	"github.com/unisonmedia/unison-backend/internal/storage/valkeystore"
	"github.com/unisonmedia/unison-backend/internal/ws"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	store, err := valkeystore.New(cfg.ValkeyAddr)
	if err != nil {
		logger.Log.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	hub := ws.NewHub()
	go hub.Run()

	reg := registry.New()
	queueService := queue.NewService(store, store)

	handler := rooms.NewHandler(reg, queueService, hub, cfg.JWTSecret, cfg.AllowOrigin)
	if err := handler.StartQueueFanout(context.Background(), store); err != nil {
		logger.Log.Error("failed to subscribe to queue updates", "error", err)
		os.Exit(1)
	}

	router := mux.NewRouter()
	rooms.RegisterRoutes(router, handler)

	logger.Log.Info("server started", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, middleware.CORS(cfg.AllowOrigin)(router)); err != nil {
		logger.Log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
