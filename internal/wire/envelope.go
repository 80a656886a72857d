// Package wire defines the JSON shapes of the interstate protocol: the
// response envelope, the lowerCamelCase payloads of the five message flows,
// their acuses, and the timestamp codec. These types are a contract with
// independently implemented peers in other estados; field names and formats
// must not drift.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Envelope wraps every protocol response.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  []string        `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

// NewEnvelope marshals data into a success envelope.
func NewEnvelope(message string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Success: true, Message: message, Errors: []string{}, Data: raw}, nil
}

// Valid reports whether the envelope satisfies the contract: errors must be
// present (possibly empty) and success responses must carry data.
func (e *Envelope) Valid() bool {
	if e.Errors == nil {
		return false
	}
	if e.Success && len(e.Data) == 0 {
		return false
	}
	return true
}

// DateTime layouts accepted on the wire. Peers have historically emitted
// all four; we always emit the first.
var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05.999999",
}

// DateTime is a wire timestamp in the sending peer's local timezone,
// serialized as "YYYY-MM-DD HH:MM:SS". The receiver converts to UTC for
// storage.
type DateTime struct {
	time.Time
}

// NewDateTime wraps t for wire serialization.
func NewDateTime(t time.Time) DateTime { return DateTime{Time: t} }

// MarshalJSON emits the canonical "YYYY-MM-DD HH:MM:SS" form.
func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateTimeLayouts[0]))
}

// UnmarshalJSON accepts any of the four historical layouts.
func (d *DateTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("fecha hora en formato incorrecto: %q", s)
}

// Date is a wire date serialized as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate wraps t for wire serialization.
func NewDate(t time.Time) Date { return Date{Time: t} }

// MarshalJSON emits "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

// UnmarshalJSON accepts "YYYY-MM-DD" and, leniently, any datetime layout.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		return nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("fecha en formato incorrecto: %q", s)
}
