// Package postgres stores documents in PostgreSQL through gorm, with the
// transcript segments and summary fields held in JSONB columns.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/store"
)

type transcriptRow struct {
	ID            string         `gorm:"primaryKey;type:text"`
	AudioFile     string         `gorm:"not null"`
	Transcription datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time
}

func (transcriptRow) TableName() string { return "transcripts" }

type summaryRow struct {
	ID        string         `gorm:"primaryKey;type:text"`
	Content   datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (summaryRow) TableName() string { return "summaries" }

// Store implements store.Store on PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New opens the database and migrates both tables.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&transcriptRow{}, &summaryRow{}); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	log.Info().Msg("Postgres store connected")
	return &Store{db: db}, nil
}

func (s *Store) Insert(ctx context.Context, doc *models.TranscriptDocument) error {
	row, err := toTranscriptRow(doc)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Create(row)
	switch {
	case errors.Is(result.Error, gorm.ErrDuplicatedKey):
		return store.ErrDuplicateID
	case result.Error != nil:
		return fmt.Errorf("insert transcript %s: %w", doc.ID, result.Error)
	}
	return nil
}

func (s *Store) GetTranscript(ctx context.Context, id string) (*models.TranscriptDocument, error) {
	var row transcriptRow
	result := s.db.WithContext(ctx).First(&row, "id = ?", id)
	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		return nil, store.ErrNotFound
	case result.Error != nil:
		return nil, result.Error
	}
	return row.document()
}

// Upsert inserts the summary or replaces every column of the existing row.
func (s *Store) Upsert(ctx context.Context, doc *models.SummaryDocument) error {
	row, err := toSummaryRow(doc)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(row)
	if result.Error != nil {
		return fmt.Errorf("upsert summary %s: %w", doc.ID, result.Error)
	}
	return nil
}

func (s *Store) GetSummary(ctx context.Context, id string) (*models.SummaryDocument, error) {
	var row summaryRow
	result := s.db.WithContext(ctx).First(&row, "id = ?", id)
	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		return nil, store.ErrNotFound
	case result.Error != nil:
		return nil, result.Error
	}
	return row.document()
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toTranscriptRow(doc *models.TranscriptDocument) (*transcriptRow, error) {
	segments := doc.Transcription
	if segments == nil {
		segments = []models.Segment{}
	}
	data, err := json.Marshal(segments)
	if err != nil {
		return nil, err
	}
	return &transcriptRow{
		ID:            doc.ID,
		AudioFile:     doc.AudioFile,
		Transcription: datatypes.JSON(data),
	}, nil
}

func (r *transcriptRow) document() (*models.TranscriptDocument, error) {
	doc := &models.TranscriptDocument{ID: r.ID, AudioFile: r.AudioFile}
	if err := json.Unmarshal(r.Transcription, &doc.Transcription); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", r.ID, err)
	}
	return doc, nil
}

func toSummaryRow(doc *models.SummaryDocument) (*summaryRow, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return &summaryRow{ID: doc.ID, Content: datatypes.JSON(data)}, nil
}

func (r *summaryRow) document() (*models.SummaryDocument, error) {
	var doc models.SummaryDocument
	if err := json.Unmarshal(r.Content, &doc); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", r.ID, err)
	}
	doc.ID = r.ID
	return &doc, nil
}
