package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"holdem-table/internal/auth"
	"holdem-table/internal/gateway"
	"holdem-table/internal/store"
	"holdem-table/internal/table"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Printf("[Server] Loaded .env")
	}

	authService, authMode, err := auth.NewServiceFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init auth service: %v", err)
	}
	defer authService.Close()

	snapshots, history, storeMode, err := store.NewFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init stores: %v", err)
	}
	defer snapshots.Close()
	defer history.Close()

	tableID := strings.TrimSpace(os.Getenv("TABLE_ID"))
	if tableID == "" {
		tableID = "table_" + uuid.NewString()[:8]
	}

	gw := gateway.New(authService)
	tbl, err := table.New(tableID, tableConfigFromEnv(), gw.Send, authService, snapshots, history)
	if err != nil {
		log.Fatalf("[Server] Failed to create table: %v", err)
	}
	defer tbl.Stop()
	gw.AttachTable(tbl)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", gw.HandleWebSocket)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	auth.NewHTTPHandler(authService).RegisterRoutes(r)

	addr := strings.TrimSpace(os.Getenv("LISTEN_ADDR"))
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("[Server] Auth mode: %s", authMode)
	log.Printf("[Server] Store mode: %s", storeMode)
	log.Printf("[Server] Table %s listening on %s", tableID, addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
}

func tableConfigFromEnv() table.Config {
	return table.Config{
		SeatCount:       envInt("TABLE_SEATS", 6),
		SmallBlind:      envInt64("SMALL_BLIND", 1),
		BigBlind:        envInt64("BIG_BLIND", 2),
		MinPlayers:      envInt("MIN_PLAYERS", 2),
		StartingStack:   envInt64("STARTING_STACK", 1000),
		ActionTimeout:   envDuration("ACTION_TIMEOUT", 30*time.Second),
		ReconnectWindow: envDuration("RECONNECT_WINDOW", 60*time.Second),
		NextHandDelay:   envDuration("NEXT_HAND_DELAY", 2*time.Second),
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[Server] Ignoring invalid %s=%q", name, raw)
		return fallback
	}
	return v
}

func envInt64(name string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("[Server] Ignoring invalid %s=%q", name, raw)
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("[Server] Ignoring invalid %s=%q", name, raw)
		return fallback
	}
	return v
}
