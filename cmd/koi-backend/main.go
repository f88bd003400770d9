package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"koiadmin/internal/backend"
	"koiadmin/internal/config"
	"koiadmin/internal/db"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	database, err := db.OpenMySQL(cfg.MySQL)
	if err != nil {
		log.Fatalf("Failed to connect to MySQL: %v", err)
	}
	defer database.Close()

	var wa backend.WhatsAppSender
	if cfg.GreenAPI.Enabled && cfg.GreenAPI.InstanceID != "" && cfg.GreenAPI.APIToken != "" {
		wa = backend.NewGreenAPIClient(cfg.GreenAPI)
		log.Printf("WhatsApp confirmations enabled via Green API instance %s", cfg.GreenAPI.InstanceID)
	} else {
		log.Printf("WhatsApp confirmations disabled")
	}

	handler, err := backend.NewHandler(database, cfg, wa)
	if err != nil {
		log.Fatalf("Failed to prepare reservation schema: %v", err)
	}

	r := chi.NewRouter()
	r.Handle("/", handler)
	r.Handle("/exec", handler)

	log.Printf("KOI reservation backend listening on %s (db %s)", cfg.Addr, cfg.MySQL.DBName)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Fatal(err)
	}
}
