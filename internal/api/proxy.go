package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"koiadmin/internal/httpx"
)

// handleProxy validates and forwards action requests to the upstream
// backend. It keeps the contract of the PHP proxy it replaces: only POST,
// body must be JSON carrying a valid token, and any upstream failure
// collapses to a 500 so callers see a uniform error shape.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" {
		allowed := "*"
		if s.cfg.CORSAllowOrigins != "" {
			allowed = s.cfg.CORSAllowOrigins
		}
		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Vary", "Origin")
	}

	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusForbidden, "Metodo non consentito. Solo POST ammesso.")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Dati JSON mancanti o non validi.")
		return
	}

	var payload map[string]any
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &payload) != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Dati JSON mancanti o non validi.")
		return
	}

	token, _ := payload["token"].(string)
	if !s.validAPIToken(token) {
		httpx.WriteError(w, http.StatusUnauthorized, "Token non valido")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.cfg.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "Errore di comunicazione con il backend")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: s.cfg.FetchTimeout}
	resp, err := client.Do(req)
	if err != nil {
		log.Printf("proxy: upstream request failed: %v", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Errore di comunicazione con il backend")
		return
	}
	defer resp.Body.Close()

	upstream, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode >= 400 {
		log.Printf("proxy: upstream returned HTTP %d", resp.StatusCode)
		httpx.WriteError(w, http.StatusInternalServerError, "Errore di comunicazione con il backend")
		return
	}

	// Upstream responses pass through verbatim, always as a 200 so the
	// dashboard only has to parse the success flag.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(upstream)
}
