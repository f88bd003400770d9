package reservation

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"koiadmin/internal/config"
)

const (
	StatoConfermata = "Confermata"
	StatoCancellata = "Cancellata"
)

// FlexString decodes a JSON string or number into a string. The upstream
// spreadsheet sends phone numbers and sometimes ids as raw numbers.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "" || raw == "null" {
		*s = ""
		return nil
	}
	if raw[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

// FlexInt decodes a JSON number or numeric string into an int. Form
// submissions deliver persone as text.
type FlexInt int

func (i *FlexInt) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "" || raw == "null" {
		*i = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	if raw == "" {
		*i = 0
		return nil
	}
	if v, err := strconv.Atoi(raw); err == nil {
		*i = FlexInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*i = FlexInt(int(f))
	return nil
}

// Reservation is a single booking record in the wire shape the dashboard
// and the upstream exchange.
type Reservation struct {
	ID        FlexString `json:"id,omitempty"`
	Nome      string     `json:"nome"`
	Cognome   string     `json:"cognome"`
	Telefono  FlexString `json:"telefono"`
	Email     string     `json:"email,omitempty"`
	Data      string     `json:"data"`
	Orario    string     `json:"orario"`
	Persone   FlexInt    `json:"persone"`
	Note      string     `json:"note,omitempty"`
	Stato     string     `json:"stato,omitempty"`
	WaInviato bool       `json:"waInviato"`
	Origine   string     `json:"origine,omitempty"`
}

// EffectiveStato returns the record's status, defaulting a missing value
// to Confermata.
func (r Reservation) EffectiveStato() string {
	s := strings.TrimSpace(r.Stato)
	if s == "" {
		return StatoConfermata
	}
	return s
}

// Cancelled reports whether the record is explicitly cancelled. Any other
// status, known or not, counts as confirmed; the original value is kept on
// the record untouched.
func (r Reservation) Cancelled() bool {
	return strings.EqualFold(strings.TrimSpace(r.Stato), StatoCancellata)
}

func (r Reservation) Confirmed() bool {
	return !r.Cancelled()
}

// FullName joins first and last name for display and search.
func (r Reservation) FullName() string {
	return strings.TrimSpace(r.Nome + " " + r.Cognome)
}

// EnsureID assigns the legacy slug id when the upstream sent none.
func (r *Reservation) EnsureID() {
	if strings.TrimSpace(string(r.ID)) == "" {
		r.ID = FlexString(Slug(r.Nome, string(r.Telefono), r.Data))
	}
}

// NewID returns an id for a freshly created reservation. UUIDs replace the
// old concatenation slugs, which collide for identical name/phone/date.
func NewID() string {
	return uuid.NewString()
}

var (
	phoneRe = regexp.MustCompile(`^[\d\s+()-]+$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Validate checks a reservation against the booking limits and returns the
// list of problems, empty when the record is acceptable.
func (r Reservation) Validate(lim config.Limits) []string {
	var errs []string

	if len(strings.TrimSpace(r.Nome)) < 2 {
		errs = append(errs, "Nome non valido")
	}
	if len(strings.TrimSpace(r.Cognome)) < 2 {
		errs = append(errs, "Cognome non valido")
	}
	if phone := strings.TrimSpace(string(r.Telefono)); phone == "" || !phoneRe.MatchString(phone) {
		errs = append(errs, "Numero di telefono non valido")
	}
	if email := strings.TrimSpace(r.Email); email != "" && !emailRe.MatchString(email) {
		errs = append(errs, "Email non valida")
	}
	if int(r.Persone) < lim.MinPersone || int(r.Persone) > lim.MaxPersone {
		errs = append(errs, "Numero persone non valido (1-20)")
	}
	if len(r.Note) > lim.MaxNoteLength {
		errs = append(errs, "Note troppo lunghe")
	}
	if _, ok := ParseDate(r.Data); !ok || strings.TrimSpace(r.Data) == "" {
		errs = append(errs, "Data non valida")
	}

	return errs
}
