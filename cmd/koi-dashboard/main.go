package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"koiadmin/internal/api"
	"koiadmin/internal/cache"
	"koiadmin/internal/config"
	"koiadmin/internal/remote"
	"koiadmin/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ca, err := cache.Open(cfg.CachePath)
	if err != nil {
		log.Fatalf("Failed to open cache at %s: %v", cfg.CachePath, err)
	}
	defer ca.Close()

	st := store.New()
	client := remote.NewClient(cfg.UpstreamURL, cfg.APIToken, cfg.FetchTimeout)
	refresher := remote.NewRefresher(client, st, ca, cfg.RefreshInterval)

	server := api.NewServer(st, refresher, client, cfg)

	ctx := context.Background()
	go refresher.Run(ctx)

	if err := refresher.WaitReady(ctx, cfg.ReadyAttempts, cfg.ReadyDelay); err != nil {
		log.Printf("Starting without reservation data: %v", err)
	} else if st.FromCache() {
		log.Printf("Upstream unreachable, starting with %d cached reservations", st.Len())
	} else {
		log.Printf("Loaded %d reservations from upstream", st.Len())
	}

	log.Printf("KOI dashboard listening on %s (refresh every %s)", cfg.Addr, cfg.RefreshInterval)
	if err := http.ListenAndServe(cfg.Addr, server.Routes()); err != nil {
		log.Fatal(err)
	}
}
