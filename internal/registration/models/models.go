package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultName is used when a registration is submitted without a name.
const DefaultName = "Anonymous"

// Input limits for registrations. The kiosk form enforces the same lengths.
const (
	MaxCountryLength = 100
	MaxNameLength    = 100
	MaxMessageLength = 500
)

// Registration is one submitted (country, name, message, timestamp) record.
// Registrations are immutable once created and the collection is append-only.
type Registration struct {
	ID        int64     `json:"id"`
	Country   string    `json:"country"`
	Name      string    `json:"name"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Document is the single stored object: {"registrations": [...]}.
type Document struct {
	Registrations []Registration `json:"registrations"`
}

// Len returns the number of registrations in the document.
func (d Document) Len() int {
	return len(d.Registrations)
}

// Clone returns a document that shares no backing array with d.
func (d Document) Clone() Document {
	regs := make([]Registration, len(d.Registrations))
	copy(regs, d.Registrations)
	return Document{Registrations: regs}
}

// CountryCount pairs a country with its registration count.
type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// RegisterRequest is the inbound shape of a registration.
type RegisterRequest struct {
	Country string `json:"country"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Normalize trims whitespace and applies the default name.
func (r *RegisterRequest) Normalize() {
	r.Country = strings.TrimSpace(r.Country)
	r.Name = strings.TrimSpace(r.Name)
	r.Message = strings.TrimSpace(r.Message)
	if r.Name == "" {
		r.Name = DefaultName
	}
}

// Validate checks a normalized request.
func (r *RegisterRequest) Validate() error {
	if r.Country == "" {
		return fmt.Errorf("country is required")
	}
	if utf8.RuneCountInString(r.Country) > MaxCountryLength {
		return fmt.Errorf("country must be at most %d characters", MaxCountryLength)
	}
	if utf8.RuneCountInString(r.Name) > MaxNameLength {
		return fmt.Errorf("name must be at most %d characters", MaxNameLength)
	}
	if utf8.RuneCountInString(r.Message) > MaxMessageLength {
		return fmt.Errorf("message must be at most %d characters", MaxMessageLength)
	}
	return nil
}
