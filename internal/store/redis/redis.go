// Package redis stores documents as JSON strings in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/store"
)

const (
	transcriptPrefix = "transcript:"
	summaryPrefix    = "summary:"
)

// client is the subset of *redis.Client the store uses.
type client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store implements store.Store on Redis. Transcripts use SETNX, summaries SET.
type Store struct {
	rc client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Redis store connected")
	return &Store{rc: rc}, nil
}

func (s *Store) Insert(ctx context.Context, doc *models.TranscriptDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	ok, err := s.rc.SetNX(ctx, transcriptPrefix+doc.ID, data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis SetNX error for transcript %s: %w", doc.ID, err)
	}
	if !ok {
		return store.ErrDuplicateID
	}
	return nil
}

func (s *Store) GetTranscript(ctx context.Context, id string) (*models.TranscriptDocument, error) {
	var doc models.TranscriptDocument
	if err := s.get(ctx, transcriptPrefix+id, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) Upsert(ctx context.Context, doc *models.SummaryDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	if err := s.rc.Set(ctx, summaryPrefix+doc.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("redis Set error for summary %s: %w", doc.ID, err)
	}
	return nil
}

func (s *Store) GetSummary(ctx context.Context, id string) (*models.SummaryDocument, error) {
	var doc models.SummaryDocument
	if err := s.get(ctx, summaryPrefix+id, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) Close() error {
	return s.rc.Close()
}

func (s *Store) get(ctx context.Context, key string, v any) error {
	data, err := s.rc.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return store.ErrNotFound
	case err != nil:
		return fmt.Errorf("redis Get error for key %s: %w", key, err)
	}
	return json.Unmarshal(data, v)
}
