package reservation

import (
	"encoding/json"
	"strings"
	"testing"

	"koiadmin/internal/config"
)

func testLimits() config.Limits {
	return config.Limits{
		MinPersone:       1,
		MaxPersone:       20,
		MaxNoteLength:    500,
		BookingDaysAhead: 90,
	}
}

func TestReservationDecodeFlexibleFields(t *testing.T) {
	// The spreadsheet upstream sends phone numbers as raw numbers and form
	// submissions send persone as strings.
	raw := `{
		"id": 12345,
		"nome": "Mario",
		"cognome": "Rossi",
		"telefono": 3331234567,
		"data": "13/09/2025",
		"orario": "20:30",
		"persone": "4"
	}`

	var r Reservation
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if string(r.ID) != "12345" {
		t.Errorf("ID = %q, want %q", r.ID, "12345")
	}
	if string(r.Telefono) != "3331234567" {
		t.Errorf("Telefono = %q, want %q", r.Telefono, "3331234567")
	}
	if int(r.Persone) != 4 {
		t.Errorf("Persone = %d, want 4", r.Persone)
	}
}

func TestEffectiveStatoDefaultsToConfermata(t *testing.T) {
	r := Reservation{}
	if got := r.EffectiveStato(); got != StatoConfermata {
		t.Errorf("EffectiveStato = %q, want %q", got, StatoConfermata)
	}
	if r.Cancelled() {
		t.Error("record without stato should not count as cancelled")
	}
}

func TestCancelledMatchesCaseInsensitive(t *testing.T) {
	tests := []struct {
		stato string
		want  bool
	}{
		{"Cancellata", true},
		{"cancellata", true},
		{"CANCELLATA", true},
		{"Confermata", false},
		{"In attesa", false},
		{"", false},
	}
	for _, tt := range tests {
		r := Reservation{Stato: tt.stato}
		if got := r.Cancelled(); got != tt.want {
			t.Errorf("Cancelled() with stato %q = %v, want %v", tt.stato, got, tt.want)
		}
	}
}

func TestEnsureIDFallsBackToSlug(t *testing.T) {
	r := Reservation{Nome: "Mario", Telefono: "333123", Data: "13/09/2025"}
	r.EnsureID()
	if string(r.ID) != "mario-333123-13092025" {
		t.Errorf("EnsureID produced %q", r.ID)
	}

	r2 := Reservation{ID: "existing"}
	r2.EnsureID()
	if string(r2.ID) != "existing" {
		t.Errorf("EnsureID overwrote existing id: %q", r2.ID)
	}
}

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Error("NewID returned the same value twice")
	}
	if len(a) != 36 {
		t.Errorf("NewID length = %d, want 36", len(a))
	}
}

func TestValidate(t *testing.T) {
	valid := Reservation{
		Nome:     "Mario",
		Cognome:  "Rossi",
		Telefono: "+39 333 1234567",
		Email:    "mario@example.com",
		Data:     "13/09/2025",
		Orario:   "20:30",
		Persone:  4,
	}

	if errs := valid.Validate(testLimits()); len(errs) != 0 {
		t.Fatalf("valid reservation rejected: %v", errs)
	}

	tests := []struct {
		name    string
		mutate  func(*Reservation)
		wantErr string
	}{
		{"short nome", func(r *Reservation) { r.Nome = "M" }, "Nome non valido"},
		{"short cognome", func(r *Reservation) { r.Cognome = " R " }, "Cognome non valido"},
		{"empty phone", func(r *Reservation) { r.Telefono = "" }, "Numero di telefono non valido"},
		{"letters in phone", func(r *Reservation) { r.Telefono = "call me" }, "Numero di telefono non valido"},
		{"bad email", func(r *Reservation) { r.Email = "not-an-email" }, "Email non valida"},
		{"zero persone", func(r *Reservation) { r.Persone = 0 }, "Numero persone non valido (1-20)"},
		{"too many persone", func(r *Reservation) { r.Persone = 21 }, "Numero persone non valido (1-20)"},
		{"long note", func(r *Reservation) { r.Note = strings.Repeat("a", 501) }, "Note troppo lunghe"},
		{"bad date", func(r *Reservation) { r.Data = "dopodomani" }, "Data non valida"},
		{"empty date", func(r *Reservation) { r.Data = "" }, "Data non valida"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			errs := r.Validate(testLimits())
			for _, e := range errs {
				if e == tt.wantErr {
					return
				}
			}
			t.Errorf("Validate = %v, missing %q", errs, tt.wantErr)
		})
	}
}

func TestValidateEmptyEmailAllowed(t *testing.T) {
	r := Reservation{
		Nome: "Mario", Cognome: "Rossi", Telefono: "333123",
		Data: "13/09/2025", Persone: 2,
	}
	if errs := r.Validate(testLimits()); len(errs) != 0 {
		t.Errorf("email is optional, got %v", errs)
	}
}
