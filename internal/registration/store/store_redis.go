package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
	"github.com/WilliamsPJ19/africa-map-tracker/pkg/platform/sentinel"
)

// RedisStore keeps the document as one JSON string under a single key.
// Appends use WATCH/MULTI so concurrent writers on other instances retry
// instead of overwriting each other.
type RedisStore struct {
	client *redis.Client
	key    string
	opts   options
}

// NewRedisStore constructs a Redis-backed store. The client lifecycle is
// managed by the caller.
func NewRedisStore(client *redis.Client, key string, opts ...Option) *RedisStore {
	return &RedisStore{client: client, key: key, opts: applyOptions(opts)}
}

func (s *RedisStore) Load(ctx context.Context) (models.Document, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Document{Registrations: []models.Registration{}}, nil
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get %s: %w", s.key, err)
	}
	return s.opts.decodeOrEmpty(ctx, raw, "redis:"+s.key), nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.Registration, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Registrations, nil
}

func (s *RedisStore) Append(ctx context.Context, reg models.Registration) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, s.key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		doc := s.opts.decodeOrEmpty(ctx, raw, "redis:"+s.key)
		doc.Registrations = append(doc.Registrations, reg)
		encoded, err := EncodeDocument(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, encoded, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.opts.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, s.key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("append registration: %w", err)
	}
	return fmt.Errorf("append registration after %d attempts: %w", s.opts.maxRetries, sentinel.ErrConflict)
}

func (s *RedisStore) Initialize(ctx context.Context, seed models.Document) (bool, error) {
	encoded, err := EncodeDocument(seed)
	if err != nil {
		return false, err
	}
	created, err := s.client.SetNX(ctx, s.key, encoded, 0).Result()
	if err != nil {
		return false, fmt.Errorf("initialize %s: %w", s.key, err)
	}
	return created, nil
}
