// Package store persists the registration document.
//
// Every backend exposes the same handle: Load, List, Append and Initialize.
// Blob backends (memory, file, redis) keep the whole document as one JSON
// value under a single key; SQL backends (postgres, sqlite) keep one row per
// registration and a marker row that records whether the store exists.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/metrics"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
	"github.com/WilliamsPJ19/africa-map-tracker/pkg/platform/sentinel"
)

// Store is the registration store handle.
type Store interface {
	// Load returns the whole document. A missing or malformed document
	// reads as empty.
	Load(ctx context.Context) (models.Document, error)
	// List returns the registrations in insertion order.
	List(ctx context.Context) ([]models.Registration, error)
	// Append adds one registration, creating the document if needed.
	Append(ctx context.Context, reg models.Registration) error
	// Initialize writes seed when no document exists and reports whether it wrote.
	Initialize(ctx context.Context, seed models.Document) (bool, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	metrics    *metrics.Metrics
	maxRetries int
}

func defaultOptions() options {
	return options{
		logger:     slog.New(slog.DiscardHandler),
		maxRetries: 5,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger sets the logger used to report recovered decode failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics counts malformed documents.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMaxRetries bounds optimistic write retries (redis driver).
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// DecodeDocument parses a stored blob. Empty input is an empty document;
// anything that is not a valid document wraps sentinel.ErrMalformed.
func DecodeDocument(raw []byte) (models.Document, error) {
	if len(raw) == 0 {
		return models.Document{Registrations: []models.Registration{}}, nil
	}
	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.Document{Registrations: []models.Registration{}}, fmt.Errorf("%w: %v", sentinel.ErrMalformed, err)
	}
	if doc.Registrations == nil {
		doc.Registrations = []models.Registration{}
	}
	return doc, nil
}

// EncodeDocument serializes doc. A nil registration slice encodes as [].
func EncodeDocument(doc models.Document) ([]byte, error) {
	if doc.Registrations == nil {
		doc.Registrations = []models.Registration{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return raw, nil
}

// decodeOrEmpty applies the malformed-as-empty rule and reports the recovery.
func (o options) decodeOrEmpty(ctx context.Context, raw []byte, source string) models.Document {
	doc, err := DecodeDocument(raw)
	if err != nil {
		o.logger.WarnContext(ctx, "stored registration document is malformed, reading as empty",
			"source", source,
			"error", err.Error(),
		)
		o.metrics.IncrementMalformedDocument()
	}
	return doc
}
