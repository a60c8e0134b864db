// Package main: HTTP route registration.
//
// initRoutes, debug endpoint'lerini mux'a bağlar.
package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// initRoutes, tüm debug endpoint'lerini kaydeder.
//
// Route sıralama kuralı: Literal path'ler parametrik path'lerden ÖNCE tanımlanır.
func initRoutes(mux *http.ServeMux, h *Handlers) {
	// Engine
	mux.HandleFunc("GET /api/health", h.Debug.Health)
	mux.HandleFunc("GET /api/state", h.Debug.State)
	mux.HandleFunc("GET /api/members", h.Debug.ListMembers)

	// Conversations
	mux.HandleFunc("GET /api/conversations", h.Debug.SearchConversations)
	mux.HandleFunc("POST /api/conversations", h.Debug.CreateConversation)
	mux.HandleFunc("POST /api/conversations/{id}/select", h.Debug.SelectConversation)
	mux.HandleFunc("POST /api/conversations/{id}/messages", h.Debug.SendMessage)
	mux.HandleFunc("POST /api/conversations/{id}/more", h.Debug.LoadMore)
	mux.HandleFunc("POST /api/conversations/{id}/typing", h.Debug.Keystroke)

	// Cache
	mux.HandleFunc("DELETE /api/cache", h.Debug.ClearCache)
	mux.HandleFunc("DELETE /api/cache/{id}", h.Debug.ClearCache)

	// Prometheus
	mux.Handle("GET /metrics", promhttp.Handler())
}
