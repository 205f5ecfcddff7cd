package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warehouse-notify/internal/config"
	"warehouse-notify/internal/server"
)

func main() {
	// Load config (.env is optional)
	cfg := config.Load()

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Notify service init failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("📢 Notify service HTTP server starting on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Println("🛑 Notify service shutting down gracefully...")
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Notify service shutdown error: %v", err)
		}
	case err := <-errCh:
		log.Fatalf("Notify service failed: %v", err)
	}
}
