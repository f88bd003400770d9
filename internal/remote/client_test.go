package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"koiadmin/internal/reservation"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, "secret", 2*time.Second), srv
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	return body
}

func TestListaSendsActionAndToken(t *testing.T) {
	var got map[string]any
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		got = decodeBody(t, r)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": []any{}})
	})
	defer srv.Close()

	if _, err := c.Lista(context.Background()); err != nil {
		t.Fatalf("Lista: %v", err)
	}
	if got["action"] != "lista" || got["token"] != "secret" {
		t.Errorf("request body = %v", got)
	}
}

func TestListaParsesRecords(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]any{
				{"id": "a", "nome": "Mario", "cognome": "Rossi", "telefono": 333111, "data": "13/09/2025", "persone": "4"},
				{"nome": "Anna", "cognome": "Verdi", "telefono": "333222", "data": "14/09/2025", "persone": 2},
			},
		})
	})
	defer srv.Close()

	list, err := c.Lista(context.Background())
	if err != nil {
		t.Fatalf("Lista: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d records, want 2", len(list))
	}
	if string(list[0].Telefono) != "333111" || int(list[0].Persone) != 4 {
		t.Errorf("flexible fields not decoded: %+v", list[0])
	}
	if string(list[1].ID) == "" {
		t.Error("record without id should get a slug fallback")
	}
}

func TestListaNonListDataYieldsEmpty(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": "nessuna prenotazione"})
	})
	defer srv.Close()

	list, err := c.Lista(context.Background())
	if err != nil {
		t.Fatalf("Lista: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("got %d records, want 0", len(list))
	}
}

func TestListaBackendFailure(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "Token non valido"})
	})
	defer srv.Close()

	_, err := c.Lista(context.Background())
	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("err = %v, want BackendError", err)
	}
	if backendErr.Message != "Token non valido" {
		t.Errorf("message = %q", backendErr.Message)
	}
}

func TestListaMalformedBodyIsTransportError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})
	defer srv.Close()

	_, err := c.Lista(context.Background())
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		t.Error("malformed body should not be a BackendError")
	}
}

func TestListaHTTPErrorStatus(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	if _, err := c.Lista(context.Background()); err == nil {
		t.Fatal("expected error for HTTP 502")
	}
}

func TestCrea(t *testing.T) {
	var got map[string]any
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		got = decodeBody(t, r)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "whatsappSent": true})
	})
	defer srv.Close()

	sent, err := c.Crea(context.Background(), reservation.Reservation{
		Nome: "Mario", Cognome: "Rossi", Telefono: "333111",
		Data: "2025-09-13", Orario: "20:30", Persone: 4,
	})
	if err != nil {
		t.Fatalf("Crea: %v", err)
	}
	if !sent {
		t.Error("whatsappSent not reported")
	}

	if got["action"] != "crea" {
		t.Errorf("action = %v", got["action"])
	}
	if got["data"] != "13/09/2025" {
		t.Errorf("data = %v, want converted slash date", got["data"])
	}
	if got["origine"] != "Dashboard" || got["inviaWhatsApp"] != true {
		t.Errorf("request body = %v", got)
	}
}

func TestModificaNestsDataObject(t *testing.T) {
	var got map[string]any
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		got = decodeBody(t, r)
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
	defer srv.Close()

	err := c.Modifica(context.Background(), reservation.Reservation{
		ID: "a", Nome: "Mario", Cognome: "Rossi", Telefono: "333111",
		Data: "2025-09-13", Persone: 4,
	})
	if err != nil {
		t.Fatalf("Modifica: %v", err)
	}

	data, ok := got["data"].(map[string]any)
	if !ok {
		t.Fatalf("data field = %T, want object", got["data"])
	}
	if data["id"] != "a" || data["data"] != "13/09/2025" {
		t.Errorf("nested data = %v", data)
	}
}

func TestCancella(t *testing.T) {
	var got map[string]any
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		got = decodeBody(t, r)
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
	defer srv.Close()

	if err := c.Cancella(context.Background(), "abc"); err != nil {
		t.Fatalf("Cancella: %v", err)
	}
	if got["action"] != "cancella" || got["id"] != "abc" {
		t.Errorf("request body = %v", got)
	}
}

func TestInviaWhatsApp(t *testing.T) {
	var got map[string]any
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		got = decodeBody(t, r)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "whatsappSent": true})
	})
	defer srv.Close()

	sent, err := c.InviaWhatsApp(context.Background(), "abc")
	if err != nil {
		t.Fatalf("InviaWhatsApp: %v", err)
	}
	if !sent {
		t.Error("whatsappSent not reported")
	}
	if got["action"] != "inviaWhatsApp" || got["reservationId"] != "abc" {
		t.Errorf("request body = %v", got)
	}
}

func TestToSlashDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2025-09-13", "13/09/2025"},
		{"13/09/2025", "13/09/2025"},
		{"2025-09-13T20:00:00", "2025-09-13T20:00:00"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ToSlashDate(tt.input); got != tt.want {
			t.Errorf("ToSlashDate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
