package service

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
)

// DefaultSeed returns the sample registrations written into a brand new store.
func DefaultSeed() models.Document {
	at := func(hour, minute int) time.Time {
		return time.Date(2024, 1, 15, hour, minute, 0, 0, time.UTC)
	}
	return models.Document{Registrations: []models.Registration{
		{ID: 1, Country: "Nigeria", Name: "John", Timestamp: at(10, 30)},
		{ID: 2, Country: "Ghana", Name: "Sarah", Timestamp: at(10, 35)},
		{ID: 3, Country: "Nigeria", Name: "Mike", Timestamp: at(10, 40)},
		{ID: 4, Country: "South Africa", Name: "David", Timestamp: at(10, 45)},
		{ID: 5, Country: "Kenya", Name: "Lisa", Timestamp: at(10, 50)},
		{ID: 6, Country: "Nigeria", Name: "Emma", Timestamp: at(10, 55)},
		{ID: 7, Country: "Ghana", Name: "James", Timestamp: at(11, 0)},
	}}
}

type seedFile struct {
	Registrations []seedEntry `yaml:"registrations"`
}

type seedEntry struct {
	ID        int64     `yaml:"id"`
	Country   string    `yaml:"country"`
	Name      string    `yaml:"name"`
	Message   string    `yaml:"message"`
	Timestamp time.Time `yaml:"timestamp"`
}

// LoadSeedFile reads a YAML seed document:
//
//	registrations:
//	  - country: Nigeria
//	    name: Demo User
//	    message: Welcome to the African Origins Map!
//	    timestamp: 2024-01-15T10:30:00Z
//
// Missing ids are numbered from 1 in file order; missing names default to
// Anonymous; entries without a country are rejected.
func LoadSeedFile(path string) (models.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("read seed file: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return models.Document{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	doc := models.Document{Registrations: make([]models.Registration, 0, len(file.Registrations))}
	for i, entry := range file.Registrations {
		country := strings.TrimSpace(entry.Country)
		if country == "" {
			return models.Document{}, fmt.Errorf("seed entry %d: country is required", i+1)
		}
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			name = models.DefaultName
		}
		id := entry.ID
		if id == 0 {
			id = int64(i + 1)
		}
		doc.Registrations = append(doc.Registrations, models.Registration{
			ID:        id,
			Country:   country,
			Name:      name,
			Message:   strings.TrimSpace(entry.Message),
			Timestamp: entry.Timestamp.UTC(),
		})
	}
	return doc, nil
}
