package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"messaging-service/internal/access"
	"messaging-service/internal/client"
	"messaging-service/internal/config"
	hrest "messaging-service/internal/handler/http"
	wshandler "messaging-service/internal/handler/ws"
	"messaging-service/internal/notify"
	"messaging-service/internal/repository"
	"messaging-service/internal/rooms"
	"messaging-service/internal/router"
	"messaging-service/internal/usecase"
	"messaging-service/pkg/push"
	"messaging-service/pkg/roombus"
	ws "messaging-service/pkg/roombus/ws"
)

func NewServer(cfg config.AppConfig) *http.Server {
	// --- DB connection ---
	dbpool, err := config.ConnectDB()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	// --- Repositories ---
	messageRepo := repository.NewMessageRepository(dbpool)
	notifRepo := repository.NewNotificationRepository(dbpool)
	pushRepo := repository.NewPushRepository(dbpool)

	// --- External collaborators ---
	accessClient := client.NewAccessClient(cfg.AccessServiceURL)
	provider := push.NewGatewayClient(cfg.PushGatewayURL)

	// --- Core components ---
	resolver := access.NewResolver(accessClient, accessClient)
	roomRouter := rooms.NewRouter(accessClient)
	bus := roombus.NewRedisBus(rdb)
	deriver := notify.NewDeriver(accessClient, pushRepo)
	dispatcher := notify.NewDispatcher(bus, pushRepo, provider, cfg.PushConcurrency)

	// --- WS hub ---
	hub := ws.NewHub(rdb)
	go hub.Run(context.Background())
	go hub.Heartbeat(30 * time.Second)
	wsHandler := wshandler.NewWSHandler(hub)

	// --- Usecases ---
	messageUC := usecase.NewMessageUsecase(resolver, messageRepo, notifRepo, roomRouter, bus, deriver, dispatcher, cfg.MinTrustScore)
	notifUC := usecase.NewNotificationUsecase(notifRepo, pushRepo, bus)

	// --- Handlers ---
	messageHandler := hrest.NewMessageHandler(messageUC)
	notifHandler := hrest.NewNotificationHandler(notifUC)

	// --- HTTP routes ---
	r := chi.NewRouter()
	router.SetupRoutes(r, messageHandler, notifHandler, wsHandler, cfg.JWTSecret, rdb)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}
}
