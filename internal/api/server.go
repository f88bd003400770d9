package api

import (
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"koiadmin/internal/config"
	"koiadmin/internal/httpx"
	"koiadmin/internal/remote"
	"koiadmin/internal/store"
)

type Server struct {
	store     *store.Store
	refresher *remote.Refresher
	client    *remote.Client
	cfg       config.Config
	hub       *liveHub
}

func NewServer(st *store.Store, refresher *remote.Refresher, client *remote.Client, cfg config.Config) *Server {
	s := &Server{
		store:     st,
		refresher: refresher,
		client:    client,
		cfg:       cfg,
		hub:       newLiveHub(),
	}
	go s.hub.run()

	refresher.SetOnUpdate(func(fromCache bool, count int) {
		s.hub.Broadcast("ReservationsRefreshed", map[string]any{
			"count":     count,
			"fromCache": fromCache,
		})
	})
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// CORS / preflight: the dashboard build may be served from another origin.
	r.Options("/*", func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		allowed := "*"
		if s.cfg.CORSAllowOrigins != "" {
			allowed = s.cfg.CORSAllowOrigins
		}
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")
		w.WriteHeader(http.StatusNoContent)
	})

	// Legacy proxy endpoint, kept under its PHP name for existing clients.
	r.HandleFunc("/proxy.php", s.handleProxy)

	r.Route("/api", func(r chi.Router) {
		r.Get("/reservations", s.handleReservationsList)
		r.Get("/charts/weekly", s.handleWeeklyChart)
		r.Get("/charts/monthly", s.handleMonthlyChart)
		r.Get("/kpis", s.handleKPIs)
		r.Get("/customers", s.handleCustomers)
		r.Get("/status", s.handleStatus)
		r.Get("/ws", s.handleWS)

		r.With(s.requireAdmin).Post("/reservations", s.handleReservationCreate)
		r.With(s.requireAdmin).Patch("/reservations/{id}", s.handleReservationPatch)
		r.With(s.requireAdmin).Post("/reservations/{id}/cancel", s.handleReservationCancel)
		r.With(s.requireAdmin).Post("/reservations/{id}/whatsapp", s.handleSendWhatsApp)
		r.With(s.requireAdmin).Post("/refresh", s.handleRefresh)
	})

	if s.cfg.StaticDir != "" {
		r.NotFound(SPAHandler(s.cfg.StaticDir).ServeHTTP)
	}

	return r
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	// If no admin token is configured, don't gate mutations (dev convenience).
	if strings.TrimSpace(s.cfg.AdminToken) == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Admin-Token"))
		if token == "" {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}

		if token == "" || token != s.cfg.AdminToken {
			httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// validAPIToken checks a backend token against either the configured bcrypt
// hash or, when no hash is set, the plaintext value.
func (s *Server) validAPIToken(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	if hash := strings.TrimSpace(s.cfg.APITokenHash); hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
	}
	return s.cfg.APIToken != "" && token == s.cfg.APIToken
}

func SPAHandler(staticDir string) http.Handler {
	fsys := os.DirFS(staticDir)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		// Cache hashed build assets aggressively.
		if strings.HasPrefix(path, "assets/") {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}

		if _, err := fs.Stat(fsys, path); err != nil {
			// Client-side routes fall back to the SPA entrypoint.
			r.URL.Path = "/index.html"
		}
		http.FileServer(http.FS(fsys)).ServeHTTP(w, r)
	})
}
