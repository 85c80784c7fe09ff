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

	"github.com/malulos-pos/api/internal/config"
	"github.com/malulos-pos/api/internal/database"
	"github.com/malulos-pos/api/internal/middleware"
	"github.com/malulos-pos/api/internal/router"
	"github.com/malulos-pos/api/internal/service"
	"github.com/malulos-pos/api/internal/telegram"
	"github.com/malulos-pos/api/internal/ws"
)

func main() {
	cfg := config.Load()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	queries := database.New(pool)

	middleware.InitMetrics()

	hub := ws.NewHub()
	go hub.Run()

	orderSvc := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})
	orderSvc.SetBroadcaster(hub)

	sessionSvc := service.NewCashSessionService(pool, func(db database.DBTX) service.SessionStore {
		return database.New(db)
	})

	// The bot is optional: without a token the POS runs without the
	// Telegram ordering channel.
	if cfg.TelegramBotToken != "" {
		bot, err := telegram.New(cfg.TelegramBotToken, queries, orderSvc)
		if err != nil {
			log.Fatalf("telegram bot: %v", err)
		}
		orderSvc.SetNotifier(bot)
		go bot.Run(ctx)
	} else {
		log.Println("TELEGRAM_BOT_TOKEN not set, telegram channel disabled")
	}

	r := router.New(cfg, queries, orderSvc, sessionSvc, hub)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown: %v", err)
	}
}
