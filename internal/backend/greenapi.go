package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"koiadmin/internal/config"
	"koiadmin/internal/reservation"
)

// WhatsAppSender sends the booking confirmation message. Satisfied by the
// Green API client and by test fakes.
type WhatsAppSender interface {
	SendMessage(ctx context.Context, phone, message string) error
}

// GreenAPIClient talks to the Green API WhatsApp gateway. Messages go to
// POST {base}/waInstance{instance}/sendMessage/{token}.
type GreenAPIClient struct {
	cfg  config.GreenAPIConfig
	http *http.Client
}

func NewGreenAPIClient(cfg config.GreenAPIConfig) *GreenAPIClient {
	return &GreenAPIClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 35 * time.Second},
	}
}

var nonDigits = regexp.MustCompile(`\D`)

// ChatID converts a phone number to the gateway's chat id form. Numbers
// without a country prefix get the Italian one.
func ChatID(phone string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	if digits == "" {
		return ""
	}
	if !strings.HasPrefix(digits, "39") && len(digits) <= 10 {
		digits = "39" + digits
	}
	return digits + "@c.us"
}

func (c *GreenAPIClient) SendMessage(ctx context.Context, phone, message string) error {
	chatID := ChatID(phone)
	if chatID == "" {
		return fmt.Errorf("greenapi: no usable phone number")
	}

	endpoint := fmt.Sprintf("%s/waInstance%s/sendMessage/%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.InstanceID, c.cfg.APIToken)

	body, _ := json.Marshal(map[string]any{
		"chatId":  chatID,
		"message": message,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("greenapi: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

// ConfirmationMessage renders the Italian booking confirmation sent over
// WhatsApp.
func ConfirmationMessage(r reservation.Reservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ciao %s! 🍣\n\n", strings.TrimSpace(r.Nome))
	b.WriteString("La tua prenotazione presso KOI Restaurant è confermata:\n\n")
	fmt.Fprintf(&b, "📅 Data: %s\n", r.Data)
	if strings.TrimSpace(r.Orario) != "" {
		fmt.Fprintf(&b, "🕒 Orario: %s\n", reservation.FormatTime(r.Orario))
	}
	fmt.Fprintf(&b, "👥 Persone: %d\n", int(r.Persone))
	if strings.TrimSpace(r.Note) != "" {
		fmt.Fprintf(&b, "📝 Note: %s\n", strings.TrimSpace(r.Note))
	}
	b.WriteString("\nTi aspettiamo!\nKOI Restaurant")
	return b.String()
}
