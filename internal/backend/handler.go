// Package backend implements the self-hosted reservation upstream: the same
// action contract the Apps Script deployment speaks, backed by MySQL, with
// WhatsApp confirmations through the Green API gateway.
package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"koiadmin/internal/config"
	"koiadmin/internal/httpx"
	"koiadmin/internal/reservation"
)

const schema = `
CREATE TABLE IF NOT EXISTS reservations (
	id VARCHAR(64) NOT NULL PRIMARY KEY,
	nome VARCHAR(128) NOT NULL,
	cognome VARCHAR(128) NOT NULL,
	telefono VARCHAR(64) NOT NULL,
	email VARCHAR(255) NOT NULL DEFAULT '',
	data VARCHAR(32) NOT NULL,
	orario VARCHAR(16) NOT NULL DEFAULT '',
	persone INT NOT NULL DEFAULT 1,
	note TEXT,
	stato VARCHAR(32) NOT NULL DEFAULT 'Confermata',
	wa_inviato TINYINT(1) NOT NULL DEFAULT 0,
	origine VARCHAR(64) NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`

type Handler struct {
	db       *sql.DB
	cfg      config.Config
	whatsapp WhatsAppSender
}

func NewHandler(db *sql.DB, cfg config.Config, wa WhatsAppSender) (*Handler, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, err
	}
	return &Handler{db: db, cfg: cfg, whatsapp: wa}, nil
}

// actionRequest is the Apps Script-compatible request shape. Creation sends
// the record fields flattened at the top level; modification nests the new
// values under "data", which on creation instead carries the date string.
type actionRequest struct {
	Action        string          `json:"action"`
	Token         string          `json:"token"`
	ID            string          `json:"id"`
	ReservationID string          `json:"reservationId"`
	Data          json.RawMessage `json:"data"`

	Nome          string                 `json:"nome"`
	Cognome       string                 `json:"cognome"`
	Telefono      reservation.FlexString `json:"telefono"`
	Email         string                 `json:"email"`
	Orario        string                 `json:"orario"`
	Persone       reservation.FlexInt    `json:"persone"`
	Note          string                 `json:"note"`
	Origine       string                 `json:"origine"`
	InviaWhatsApp bool                   `json:"inviaWhatsApp"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusForbidden, "Metodo non consentito. Solo POST ammesso.")
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Dati JSON mancanti o non validi.")
		return
	}

	if !h.validToken(req.Token) {
		httpx.WriteError(w, http.StatusUnauthorized, "Token non valido")
		return
	}

	ctx := r.Context()

	switch req.Action {
	case "lista":
		h.handleLista(ctx, w)
	case "crea":
		h.handleCrea(ctx, w, req)
	case "modifica":
		h.handleModifica(ctx, w, req)
	case "cancella":
		h.handleCancella(ctx, w, req.ID)
	case "inviaWhatsApp":
		h.handleInviaWhatsApp(ctx, w, req.ReservationID)
	default:
		writeFailure(w, "Azione non riconosciuta: "+req.Action)
	}
}

func (h *Handler) validToken(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	if hash := strings.TrimSpace(h.cfg.APITokenHash); hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
	}
	return h.cfg.APIToken != "" && token == h.cfg.APIToken
}

// Logical failures are HTTP 200 with success=false; the dashboard parses
// the flag, not the status code.
func writeFailure(w http.ResponseWriter, message string) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": false,
		"error":   message,
	})
}

const selectColumns = "id, nome, cognome, telefono, email, data, orario, persone, note, stato, wa_inviato, origine"

func scanReservation(scan func(dest ...any) error) (reservation.Reservation, error) {
	var (
		r         reservation.Reservation
		telefono  string
		id        string
		note      sql.NullString
		waInviato bool
	)
	err := scan(&id, &r.Nome, &r.Cognome, &telefono, &r.Email, &r.Data, &r.Orario,
		(*int)(&r.Persone), &note, &r.Stato, &waInviato, &r.Origine)
	if err != nil {
		return reservation.Reservation{}, err
	}
	r.ID = reservation.FlexString(id)
	r.Telefono = reservation.FlexString(telefono)
	r.Note = note.String
	r.WaInviato = waInviato
	return r, nil
}

func (h *Handler) handleLista(ctx context.Context, w http.ResponseWriter) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM reservations ORDER BY created_at DESC")
	if err != nil {
		log.Printf("backend: lista query: %v", err)
		writeFailure(w, "Errore di lettura delle prenotazioni")
		return
	}
	defer rows.Close()

	list := []reservation.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows.Scan)
		if err != nil {
			log.Printf("backend: lista scan: %v", err)
			writeFailure(w, "Errore di lettura delle prenotazioni")
			return
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		log.Printf("backend: lista rows: %v", err)
		writeFailure(w, "Errore di lettura delle prenotazioni")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    list,
	})
}

func (h *Handler) handleCrea(ctx context.Context, w http.ResponseWriter, req actionRequest) {
	var data string
	if len(req.Data) > 0 {
		_ = json.Unmarshal(req.Data, &data)
	}

	res := reservation.Reservation{
		ID:       reservation.FlexString(reservation.NewID()),
		Nome:     strings.TrimSpace(req.Nome),
		Cognome:  strings.TrimSpace(req.Cognome),
		Telefono: req.Telefono,
		Email:    strings.TrimSpace(req.Email),
		Data:     strings.TrimSpace(data),
		Orario:   strings.TrimSpace(req.Orario),
		Persone:  req.Persone,
		Note:     req.Note,
		Stato:    reservation.StatoConfermata,
		Origine:  strings.TrimSpace(req.Origine),
	}

	if errs := res.Validate(h.cfg.Limits); len(errs) > 0 {
		writeFailure(w, strings.Join(errs, "; "))
		return
	}
	if msg := h.checkBookingWindow(res.Data); msg != "" {
		writeFailure(w, msg)
		return
	}

	sent := false
	if req.InviaWhatsApp && h.whatsapp != nil {
		if err := h.whatsapp.SendMessage(ctx, string(res.Telefono), ConfirmationMessage(res)); err != nil {
			log.Printf("backend: whatsapp send: %v", err)
		} else {
			sent = true
		}
	}
	res.WaInviato = sent

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO reservations (id, nome, cognome, telefono, email, data, orario, persone, note, stato, wa_inviato, origine)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(res.ID), res.Nome, res.Cognome, string(res.Telefono), res.Email,
		res.Data, res.Orario, int(res.Persone), res.Note, res.Stato, res.WaInviato, res.Origine)
	if err != nil {
		log.Printf("backend: crea insert: %v", err)
		writeFailure(w, "Errore durante il salvataggio della prenotazione")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"id":           string(res.ID),
		"whatsappSent": sent,
	})
}

// checkBookingWindow rejects dates in the past or beyond the bookable
// horizon. Empty message means the date is acceptable.
func (h *Handler) checkBookingWindow(data string) string {
	when, ok := reservation.ParseDate(data)
	if !ok {
		return "Data non valida"
	}
	today := reservation.StartOfDay(time.Now())
	day := reservation.StartOfDay(when)
	if day.Before(today) {
		return "La data della prenotazione è già passata"
	}
	if day.After(today.AddDate(0, 0, h.cfg.Limits.BookingDaysAhead)) {
		return "Data oltre il periodo prenotabile"
	}
	return ""
}

func (h *Handler) handleModifica(ctx context.Context, w http.ResponseWriter, req actionRequest) {
	var res reservation.Reservation
	if len(req.Data) == 0 || json.Unmarshal(req.Data, &res) != nil {
		writeFailure(w, "Dati di modifica mancanti o non validi")
		return
	}

	id := strings.TrimSpace(string(res.ID))
	if id == "" {
		id = strings.TrimSpace(req.ID)
	}
	if id == "" {
		writeFailure(w, "Id prenotazione mancante")
		return
	}

	if errs := res.Validate(h.cfg.Limits); len(errs) > 0 {
		writeFailure(w, strings.Join(errs, "; "))
		return
	}

	result, err := h.db.ExecContext(ctx,
		`UPDATE reservations
		 SET nome = ?, cognome = ?, telefono = ?, email = ?, data = ?, orario = ?, persone = ?, note = ?
		 WHERE id = ?`,
		strings.TrimSpace(res.Nome), strings.TrimSpace(res.Cognome), string(res.Telefono),
		strings.TrimSpace(res.Email), strings.TrimSpace(res.Data), strings.TrimSpace(res.Orario),
		int(res.Persone), res.Note, id)
	if err != nil {
		log.Printf("backend: modifica update: %v", err)
		writeFailure(w, "Errore durante la modifica della prenotazione")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		if !h.exists(ctx, id) {
			writeFailure(w, "Prenotazione non trovata")
			return
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleCancella(ctx context.Context, w http.ResponseWriter, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		writeFailure(w, "Id prenotazione mancante")
		return
	}

	result, err := h.db.ExecContext(ctx,
		"UPDATE reservations SET stato = ? WHERE id = ?", reservation.StatoCancellata, id)
	if err != nil {
		log.Printf("backend: cancella update: %v", err)
		writeFailure(w, "Errore durante la cancellazione della prenotazione")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 && !h.exists(ctx, id) {
		writeFailure(w, "Prenotazione non trovata")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleInviaWhatsApp(ctx context.Context, w http.ResponseWriter, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		writeFailure(w, "Id prenotazione mancante")
		return
	}

	row := h.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM reservations WHERE id = ?", id)
	res, err := scanReservation(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeFailure(w, "Prenotazione non trovata")
			return
		}
		log.Printf("backend: inviaWhatsApp query: %v", err)
		writeFailure(w, "Errore di lettura della prenotazione")
		return
	}

	if h.whatsapp == nil {
		writeFailure(w, "Invio WhatsApp non configurato")
		return
	}

	if err := h.whatsapp.SendMessage(ctx, string(res.Telefono), ConfirmationMessage(res)); err != nil {
		log.Printf("backend: whatsapp send: %v", err)
		writeFailure(w, "Invio del messaggio WhatsApp non riuscito")
		return
	}

	if _, err := h.db.ExecContext(ctx,
		"UPDATE reservations SET wa_inviato = 1 WHERE id = ?", id); err != nil {
		log.Printf("backend: inviaWhatsApp update: %v", err)
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"whatsappSent": true,
	})
}

func (h *Handler) exists(ctx context.Context, id string) bool {
	var one int
	err := h.db.QueryRowContext(ctx,
		"SELECT 1 FROM reservations WHERE id = ?", id).Scan(&one)
	return err == nil
}
