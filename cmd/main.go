package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messaging-service/internal/config"
	"messaging-service/internal/server"
)

func main() {
	cfg := config.Load()

	srv := server.NewServer(cfg)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("messaging service listening on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Println("messaging service shutting down gracefully...")
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("messaging service shutdown error: %v", err)
		}
	case err := <-errCh:
		log.Fatalf("messaging service failed: %v", err)
	}
}
