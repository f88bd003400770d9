package store

import (
	"testing"

	"koiadmin/internal/reservation"
)

func seed() []reservation.Reservation {
	return []reservation.Reservation{
		{ID: "a", Nome: "Mario", Cognome: "Rossi", Telefono: "333111", Data: "13/09/2025"},
		{ID: "b", Nome: "Anna", Cognome: "Verdi", Telefono: "333222", Data: "14/09/2025"},
	}
}

func TestReplaceAllAndSnapshot(t *testing.T) {
	s := New()
	if s.Loaded() {
		t.Error("fresh store should not be loaded")
	}

	s.ReplaceAll(seed(), false)

	if !s.Loaded() {
		t.Error("store should be loaded after ReplaceAll")
	}
	if s.FromCache() {
		t.Error("fromCache should be false for a live load")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}

	snap := s.Snapshot()
	snap[0].Nome = "Cambiato"
	if got, _ := s.Find("a"); got.Nome != "Mario" {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestReplaceAllFromCacheFlag(t *testing.T) {
	s := New()
	s.ReplaceAll(seed(), true)
	if !s.FromCache() {
		t.Error("fromCache should be true for a cache load")
	}
	s.ReplaceAll(seed(), false)
	if s.FromCache() {
		t.Error("fromCache should reset on a live load")
	}
}

func TestReplaceAllAssignsMissingIDs(t *testing.T) {
	s := New()
	s.ReplaceAll([]reservation.Reservation{
		{Nome: "Mario", Telefono: "333111", Data: "13/09/2025"},
	}, false)

	snap := s.Snapshot()
	if string(snap[0].ID) == "" {
		t.Error("ReplaceAll should assign slug ids to records without one")
	}
}

func TestFind(t *testing.T) {
	s := New()
	s.ReplaceAll(seed(), false)

	if _, ok := s.Find("a"); !ok {
		t.Error("Find failed for existing id")
	}
	if _, ok := s.Find(" a "); !ok {
		t.Error("Find should trim the id")
	}
	if _, ok := s.Find("nope"); ok {
		t.Error("Find succeeded for unknown id")
	}
}

func TestMarkCancelled(t *testing.T) {
	s := New()
	s.ReplaceAll(seed(), false)

	if !s.MarkCancelled("a") {
		t.Fatal("MarkCancelled failed for existing id")
	}
	got, _ := s.Find("a")
	if got.Stato != reservation.StatoCancellata {
		t.Errorf("stato = %q, want %q", got.Stato, reservation.StatoCancellata)
	}

	if s.MarkCancelled("nope") {
		t.Error("MarkCancelled succeeded for unknown id")
	}
}

func TestMarkWhatsAppSent(t *testing.T) {
	s := New()
	s.ReplaceAll(seed(), false)

	if !s.MarkWhatsAppSent("b") {
		t.Fatal("MarkWhatsAppSent failed")
	}
	got, _ := s.Find("b")
	if !got.WaInviato {
		t.Error("waInviato flag not set")
	}
}

func TestApplyEdit(t *testing.T) {
	s := New()
	s.ReplaceAll(seed(), false)

	ok := s.ApplyEdit(reservation.Reservation{
		ID: "a", Nome: "Maria", Cognome: "Rossi", Telefono: "333999",
		Data: "20/09/2025", Orario: "21:00", Persone: 6,
	})
	if !ok {
		t.Fatal("ApplyEdit failed for existing id")
	}

	got, _ := s.Find("a")
	if got.Nome != "Maria" || string(got.Telefono) != "333999" || int(got.Persone) != 6 {
		t.Errorf("edit not applied: %+v", got)
	}
	if got.Data != "20/09/2025" {
		t.Errorf("data = %q, want 20/09/2025", got.Data)
	}
}
