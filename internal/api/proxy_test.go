package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"koiadmin/internal/cache"
	"koiadmin/internal/config"
	"koiadmin/internal/remote"
	"koiadmin/internal/store"
)

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()

	ca, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { ca.Close() })

	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 2 * time.Second
	}

	st := store.New()
	client := remote.NewClient(cfg.UpstreamURL, cfg.APIToken, cfg.FetchTimeout)
	refresher := remote.NewRefresher(client, st, ca, time.Minute)

	return NewServer(st, refresher, client, cfg)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestProxyRejectsNonPOST(t *testing.T) {
	s := newTestServer(t, config.Config{APIToken: "secret"})
	h := s.Routes()

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/proxy.php", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d, want 403", method, rec.Code)
		}
		body := decodeEnvelope(t, rec)
		if body["error"] != "Metodo non consentito. Solo POST ammesso." {
			t.Errorf("%s: error = %v", method, body["error"])
		}
	}
}

func TestProxyRejectsBadJSON(t *testing.T) {
	s := newTestServer(t, config.Config{APIToken: "secret"})
	h := s.Routes()

	for _, payload := range []string{"", "not json", "[1,2,3"} {
		req := httptest.NewRequest(http.MethodPost, "/proxy.php", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("payload %q: status = %d, want 400", payload, rec.Code)
		}
		body := decodeEnvelope(t, rec)
		if body["error"] != "Dati JSON mancanti o non validi." {
			t.Errorf("payload %q: error = %v", payload, body["error"])
		}
	}
}

func TestProxyRejectsBadToken(t *testing.T) {
	s := newTestServer(t, config.Config{APIToken: "secret"})
	h := s.Routes()

	for _, payload := range []string{
		`{"action":"lista"}`,
		`{"action":"lista","token":"wrong"}`,
		`{"action":"lista","token":""}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/proxy.php", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("payload %q: status = %d, want 401", payload, rec.Code)
		}
		body := decodeEnvelope(t, rec)
		if body["error"] != "Token non valido" {
			t.Errorf("payload %q: error = %v", payload, body["error"])
		}
	}
}

func TestProxyForwardsValidRequest(t *testing.T) {
	var upstreamBody map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&upstreamBody)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": []any{}})
	}))
	defer upstream.Close()

	s := newTestServer(t, config.Config{APIToken: "secret", UpstreamURL: upstream.URL})
	h := s.Routes()

	req := httptest.NewRequest(http.MethodPost, "/proxy.php",
		strings.NewReader(`{"action":"lista","token":"secret"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["success"] != true {
		t.Errorf("body = %v", body)
	}
	if upstreamBody["action"] != "lista" || upstreamBody["token"] != "secret" {
		t.Errorf("upstream saw %v", upstreamBody)
	}
}

func TestProxyUpstreamErrorBecomes500(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	s := newTestServer(t, config.Config{APIToken: "secret", UpstreamURL: upstream.URL})
	h := s.Routes()

	req := httptest.NewRequest(http.MethodPost, "/proxy.php",
		strings.NewReader(`{"action":"lista","token":"secret"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestProxyUnreachableUpstreamBecomes500(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	upstream.Close()

	s := newTestServer(t, config.Config{APIToken: "secret", UpstreamURL: upstream.URL})
	h := s.Routes()

	req := httptest.NewRequest(http.MethodPost, "/proxy.php",
		strings.NewReader(`{"action":"lista","token":"secret"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["error"] != "Errore di comunicazione con il backend" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestValidAPITokenBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	s := newTestServer(t, config.Config{APITokenHash: string(hash)})
	if !s.validAPIToken("secret") {
		t.Error("correct token rejected against hash")
	}
	if s.validAPIToken("wrong") {
		t.Error("wrong token accepted against hash")
	}
	if s.validAPIToken("") {
		t.Error("empty token accepted")
	}
}
