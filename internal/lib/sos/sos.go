package sos

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shaktipath/safepath/server/internal/lib/geo"
)

// ErrNoEmergencyContact is returned when the user has no usable emergency number
var ErrNoEmergencyContact = errors.New("no emergency contact configured")

const (
	defaultCountryCode = "91"
	timestampLayout    = "02/01/2006, 03:04:05 pm"
)

// Sender is who the alert is from
type Sender struct {
	FullName         string
	Phone            string
	EmergencyContact string
}

// Dispatch is a ready-to-send WhatsApp alert
type Dispatch struct {
	Number      string `json:"emergencyNumber"`
	Message     string `json:"message"`
	WhatsAppURL string `json:"whatsappUrl"`
}

// Composer builds SOS messages with timestamps in a fixed zone
type Composer struct {
	location *time.Location
	now      func() time.Time
}

// NewComposer creates a Composer. A nil now uses time.Now.
func NewComposer(loc *time.Location, now func() time.Time) *Composer {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Composer{location: loc, now: now}
}

// Compose builds the message and WhatsApp link for sender at location
func (c *Composer) Compose(sender Sender, location geo.Location) (Dispatch, error) {
	number := NormalizeNumber(sender.EmergencyContact)
	if number == "" {
		return Dispatch{}, ErrNoEmergencyContact
	}

	message := FormatMessage(sender, location, c.now().In(c.location))
	return Dispatch{
		Number:      number,
		Message:     message,
		WhatsAppURL: WhatsAppURL(number, message),
	}, nil
}

// NormalizeNumber keeps digits only and prefixes the country code to 10 digit numbers
func NormalizeNumber(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) == 10 {
		return defaultCountryCode + digits
	}
	return digits
}

// FormatMessage renders the alert text
func FormatMessage(sender Sender, location geo.Location, at time.Time) string {
	address := location.Address
	if strings.TrimSpace(address) == "" {
		address = fmt.Sprintf("%.4f, %.4f", location.Latitude, location.Longitude)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 EMERGENCY ALERT from %s\n\n", sender.FullName)
	fmt.Fprintf(&b, "📍 Location: %s\n\n", address)
	fmt.Fprintf(&b, "🗺️ Google Maps: %s\n\n", MapsLink(location.Point))
	fmt.Fprintf(&b, "📞 Contact: %s\n", sender.Phone)
	fmt.Fprintf(&b, "⏰ Time: %s\n\n", at.Format(timestampLayout))
	b.WriteString("🆘 Please respond immediately! I need help.\n\n")
	b.WriteString("Sent via ShaktiPath Safety App")
	return b.String()
}

// MapsLink is a Google Maps link to p
func MapsLink(p geo.Point) string {
	return "https://maps.google.com/?q=" +
		strconv.FormatFloat(p.Latitude, 'f', -1, 64) + "," +
		strconv.FormatFloat(p.Longitude, 'f', -1, 64)
}

// WhatsAppURL is a wa.me click-to-chat link with the message prefilled
func WhatsAppURL(number, message string) string {
	return "https://wa.me/" + number + "?text=" + encodeURIComponent(message)
}

// uriComponentReplacer turns query escaping into JavaScript encodeURIComponent output
var uriComponentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func encodeURIComponent(s string) string {
	return uriComponentReplacer.Replace(url.QueryEscape(s))
}
