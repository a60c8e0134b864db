// Package main, dmsync client daemon'ının giriş noktasıdır.
//
// Bu dosyanın görevi: Dependency Injection "wire-up":
//  1. Config'i yükle
//  2. Cache veritabanını başlat
//  3. Repository'leri oluştur
//  4. Auth, REST client ve WebSocket Manager'ı oluştur
//  5. Service'leri oluştur (MessageCache + Messenger)
//  6. Bağlantı callback'lerini bağla
//  7. Debug HTTP router'ını kur (CORS + /metrics)
//  8. Engine'i başlat
//  9. Graceful shutdown
//
// Global değişken YOK; her şey bu fonksiyonda oluşturulup birbirine bağlanıyor.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/cors"

	"github.com/akinalp/dmsync/api"
	"github.com/akinalp/dmsync/config"
	"github.com/akinalp/dmsync/database"
	"github.com/akinalp/dmsync/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] dmsync starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (api=%s, ws=%s)", cfg.API.BaseURL, cfg.WS.URL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.New()

	// ─── 2. Database ───
	db, err := database.New(ctx, cfg.Cache.Path, nil)
	if err != nil {
		log.Fatalf("[main] failed to initialize cache database: %v", err)
	}
	defer db.Close()

	// ─── 3. Repository Layer ───
	repos, err := initRepositories(db.Conn, cfg.Cache, clk)
	if err != nil {
		log.Fatalf("[main] failed to initialize repositories: %v", err)
	}

	// ─── 4. Auth + Transport ───
	svcs, err := initServices(cfg, repos, clk)
	if err != nil {
		log.Fatalf("[main] failed to initialize services: %v", err)
	}

	manager := ws.NewManager(ws.ManagerConfig{
		URL:               cfg.WS.URL,
		HeartbeatInterval: cfg.WS.HeartbeatInterval,
		ReconnectMin:      cfg.WS.ReconnectMin,
		ReconnectMax:      cfg.WS.ReconnectMax,
	})
	restClient := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, svcs.Auth)

	// ─── 5. Messenger ───
	svcs.initMessenger(restClient, manager, cfg.Messaging, clk)

	// ─── 6. Connection Callbacks ───
	registerConnectionCallbacks(manager, svcs.Messenger)

	// ─── 7. Debug HTTP Server ───
	h := initHandlers(svcs)
	mux := http.NewServeMux()
	initRoutes(mux, h)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Debug.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		Debug:            false,
	})

	srv := &http.Server{
		Addr:         cfg.Debug.Addr(),
		Handler:      corsHandler.Handler(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[main] debug server listening on %s", cfg.Debug.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] debug server error: %v", err)
		}
	}()

	// ─── 8. Engine ───
	if err := svcs.Messenger.Start(ctx); err != nil {
		log.Fatalf("[main] failed to start messenger: %v", err)
	}

	// ─── 9. Graceful Shutdown ───
	<-ctx.Done()
	log.Println("[main] shutting down...")

	// Önce engine'i durdur: typing=false gönderilir, WebSocket kapanır.
	// Sonra debug sunucusunu kapat (5sn timeout).
	svcs.Messenger.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] forced shutdown: %v", err)
	}

	log.Println("[main] dmsync stopped gracefully")
}
