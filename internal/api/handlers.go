package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"koiadmin/internal/httpx"
	"koiadmin/internal/remote"
	"koiadmin/internal/reservation"
)

// buildFilter assembles a reservation filter from query parameters. The
// quick presets win over explicit date/range values when both are sent.
func buildFilter(r *http.Request, now time.Time) reservation.Filter {
	q := r.URL.Query()

	search := q.Get("search")
	if search == "" {
		search = q.Get("q")
	}

	if f, ok := reservation.QuickFilter(q.Get("quick"), now); ok {
		f.Status = q.Get("status")
		f.Search = search
		return f
	}

	f := reservation.Filter{
		Status: q.Get("status"),
		Search: search,
	}

	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		if when, ok := reservation.ParseDate(raw); ok {
			day := reservation.StartOfDay(when)
			f.Date = &day
		}
	}

	from, fromOK := reservation.ParseDate(strings.TrimSpace(q.Get("from")))
	to, toOK := reservation.ParseDate(strings.TrimSpace(q.Get("to")))
	if f.Date == nil && q.Get("from") != "" && q.Get("to") != "" && fromOK && toOK {
		f.Range = &reservation.DateRange{
			Start: reservation.StartOfDay(from),
			End:   reservation.EndOfDay(to),
		}
	}

	return f
}

func (s *Server) handleReservationsList(w http.ResponseWriter, r *http.Request) {
	res := reservation.Apply(s.store.Snapshot(), buildFilter(r, time.Now()))

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"data":      res.Items,
		"shown":     res.Shown,
		"total":     res.Total,
		"fromCache": s.store.FromCache(),
	})
}

func (s *Server) handleWeeklyChart(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	list := s.store.Snapshot()

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"labels":  reservation.WeekLabels(now),
		"data":    reservation.WeeklyTrend(list, now),
	})
}

func (s *Server) handleMonthlyChart(w http.ResponseWriter, r *http.Request) {
	cmp := reservation.CompareMonths(s.store.Snapshot(), time.Now())

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"labels":   cmp.Labels,
		"current":  cmp.Current,
		"previous": cmp.Previous,
	})
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	list := s.store.Snapshot()

	confirmed := 0
	for _, res := range list {
		if res.Confirmed() {
			confirmed++
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"today":       reservation.TodayCount(list, now),
		"totalCovers": reservation.TotalCovers(list),
		"confirmed":   confirmed,
		"total":       len(list),
		"customers":   len(reservation.CustomerStats(list)),
	})
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    reservation.CustomerStats(s.store.Snapshot()),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  s.refresher.Status(),
	})
}

func (s *Server) handleReservationCreate(w http.ResponseWriter, r *http.Request) {
	var res reservation.Reservation
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Dati JSON mancanti o non validi.")
		return
	}

	if errs := res.Validate(s.cfg.Limits); len(errs) > 0 {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   strings.Join(errs, "; "),
			"errors":  errs,
		})
		return
	}

	sent, err := s.client.Crea(r.Context(), res)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}

	// The upstream owns the canonical record; pull it back in so the new
	// reservation shows up with its server-assigned id.
	if err := s.refresher.Refresh(r.Context()); err != nil {
		log.Printf("create: post-create refresh: %v", err)
	}

	s.hub.Broadcast("ReservationCreated", map[string]any{
		"nome":         res.Nome,
		"cognome":      res.Cognome,
		"data":         res.Data,
		"whatsappSent": sent,
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"whatsappSent": sent,
	})
}

func (s *Server) handleReservationPatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.store.Find(id); !ok {
		httpx.WriteError(w, http.StatusNotFound, "Prenotazione non trovata")
		return
	}

	var res reservation.Reservation
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Dati JSON mancanti o non validi.")
		return
	}
	res.ID = reservation.FlexString(id)

	if errs := res.Validate(s.cfg.Limits); len(errs) > 0 {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   strings.Join(errs, "; "),
			"errors":  errs,
		})
		return
	}

	if err := s.client.Modifica(r.Context(), res); err != nil {
		s.writeBackendError(w, err)
		return
	}

	// Optimistic local patch; the next full refresh confirms it.
	s.store.ApplyEdit(res)
	s.hub.Broadcast("ReservationUpdated", map[string]any{"id": id})

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleReservationCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.store.Find(id); !ok {
		httpx.WriteError(w, http.StatusNotFound, "Prenotazione non trovata")
		return
	}

	if err := s.client.Cancella(r.Context(), id); err != nil {
		s.writeBackendError(w, err)
		return
	}

	s.store.MarkCancelled(id)
	s.hub.Broadcast("ReservationCancelled", map[string]any{"id": id})

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleSendWhatsApp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.store.Find(id); !ok {
		httpx.WriteError(w, http.StatusNotFound, "Prenotazione non trovata")
		return
	}

	sent, err := s.client.InviaWhatsApp(r.Context(), id)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}

	if sent {
		s.store.MarkWhatsAppSent(id)
		s.hub.Broadcast("WhatsAppSent", map[string]any{"id": id})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"whatsappSent": sent,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.refresher.Refresh(r.Context()); err != nil {
		if errors.Is(err, remote.ErrNoData) {
			httpx.WriteError(w, http.StatusServiceUnavailable, "Impossibile caricare le prenotazioni")
			return
		}
		s.writeBackendError(w, err)
		return
	}

	st := s.refresher.Status()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  st,
	})
}

// writeBackendError maps an upstream failure onto the response. Failures the
// backend reported itself come back as a 200 with success=false, matching
// the envelope contract; transport problems are a 502.
func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	var backendErr *remote.BackendError
	if errors.As(err, &backendErr) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   backendErr.Error(),
		})
		return
	}
	log.Printf("api: upstream call failed: %v", err)
	httpx.WriteError(w, http.StatusBadGateway, "Errore di comunicazione con il backend")
}
