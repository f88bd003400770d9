// Package remote talks to the reservation backend: a Google Apps Script
// deployment behind the token proxy, or a self-hosted koi-backend. Every
// call is a POST carrying {action, token, ...}.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"koiadmin/internal/reservation"
)

// Envelope is the backend's uniform response shape.
type Envelope struct {
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data,omitempty"`
	Error        string          `json:"error,omitempty"`
	WhatsappSent bool            `json:"whatsappSent,omitempty"`
}

// BackendError is a failure the backend reported itself (success=false),
// as opposed to a transport problem. These surface to the user directly
// and never trigger the cache fallback.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return "backend error"
	}
	return e.Message
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, action string, extra map[string]any) (Envelope, error) {
	payload := map[string]any{
		"action": action,
		"token":  c.token,
	}
	for k, v := range extra {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return Envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Envelope{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Envelope{}, fmt.Errorf("remote: HTTP %d from %s", resp.StatusCode, action)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, err
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("remote: malformed response for %s: %w", action, err)
	}

	if !env.Success {
		return env, &BackendError{Message: env.Error}
	}
	return env, nil
}

// Lista fetches the full reservation list. A success envelope whose data
// field is missing or not a list yields an empty slice, not an error.
func (c *Client) Lista(ctx context.Context) ([]reservation.Reservation, error) {
	env, err := c.do(ctx, "lista", nil)
	if err != nil {
		return nil, err
	}

	list := []reservation.Reservation{}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &list); err != nil {
			list = []reservation.Reservation{}
		}
	}
	for i := range list {
		list[i].EnsureID()
	}
	return list, nil
}

// Crea creates a reservation and asks the backend to send the WhatsApp
// confirmation. Reports whether the message went out.
func (c *Client) Crea(ctx context.Context, r reservation.Reservation) (bool, error) {
	env, err := c.do(ctx, "crea", map[string]any{
		"nome":          r.Nome,
		"cognome":       r.Cognome,
		"telefono":      string(r.Telefono),
		"email":         r.Email,
		"data":          ToSlashDate(r.Data),
		"orario":        r.Orario,
		"persone":       int(r.Persone),
		"note":          r.Note,
		"origine":       "Dashboard",
		"inviaWhatsApp": true,
	})
	if err != nil {
		return false, err
	}
	return env.WhatsappSent, nil
}

// Modifica updates an existing reservation; the backend expects the new
// values nested under "data".
func (c *Client) Modifica(ctx context.Context, r reservation.Reservation) error {
	updated := r
	updated.Data = ToSlashDate(r.Data)
	_, err := c.do(ctx, "modifica", map[string]any{
		"data": updated,
	})
	return err
}

// Cancella soft-deletes a reservation: the backend flips its status.
func (c *Client) Cancella(ctx context.Context, id string) error {
	_, err := c.do(ctx, "cancella", map[string]any{"id": id})
	return err
}

// InviaWhatsApp triggers the confirmation message for an existing record.
func (c *Client) InviaWhatsApp(ctx context.Context, id string) (bool, error) {
	env, err := c.do(ctx, "inviaWhatsApp", map[string]any{"reservationId": id})
	if err != nil {
		return false, err
	}
	return env.WhatsappSent || env.Success, nil
}

var isoDayRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// ToSlashDate converts a YYYY-MM-DD form value to the DD/MM/YYYY encoding
// the backend stores. Anything else passes through untouched.
func ToSlashDate(data string) string {
	m := isoDayRe.FindStringSubmatch(data)
	if m == nil {
		return data
	}
	return m[3] + "/" + m[2] + "/" + m[1]
}
