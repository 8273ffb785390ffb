package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusnotify/internal/common"
	"campusnotify/internal/config"
	"campusnotify/internal/devserver"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	server := devserver.NewServer(cfg.Server.JWTSecret)

	// Convenience for local clients.
	token, err := server.Token("demo-user")
	if err != nil {
		log.Fatalf("Failed to sign dev token: %v", err)
	}
	log.Printf("Dev token for demo-user:\n%s", token)

	server.Seed("demo-user", common.Notification{
		Type:      common.EventReminderType,
		Title:     "Campus career fair tomorrow",
		Message:   "Doors open at 10:00 in the main hall",
		Category:  common.CategoryEvent,
		Priority:  common.PriorityHigh,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	})
	server.Seed("demo-user", common.Notification{
		Type:     common.RewardRedeemedType,
		Title:    "Reward redeemed",
		Message:  "Your free coffee voucher is ready",
		Category: common.CategoryAchievement,
		Priority: common.PriorityMedium,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("Notification dev server listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Shutdown: %v", err)
	}
	log.Println("Server stopped")
}
