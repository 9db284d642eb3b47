package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matelabs/mateview/internal/interview"
)

// PostgresStore mirrors transcript saves in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transcripts (
			id TEXT PRIMARY KEY,
			interview_id TEXT NOT NULL UNIQUE,
			owner TEXT NOT NULL,
			topic_id TEXT NOT NULL,
			points INTEGER NOT NULL DEFAULT 0,
			messages JSONB NOT NULL,
			saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transcripts_owner_saved ON transcripts (owner, saved_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) PutTranscript(ctx context.Context, record TranscriptRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.SavedAt.IsZero() {
		record.SavedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(record.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO transcripts (id, interview_id, owner, topic_id, points, messages, saved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (interview_id) DO UPDATE
		 SET points = EXCLUDED.points, messages = EXCLUDED.messages, saved_at = EXCLUDED.saved_at`,
		record.ID,
		record.InterviewID,
		record.Owner,
		record.TopicID,
		record.Points,
		payload,
		record.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("put transcript: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTranscript(ctx context.Context, interviewID string) (TranscriptRecord, error) {
	var (
		record  TranscriptRecord
		payload []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, interview_id, owner, topic_id, points, messages, saved_at
		 FROM transcripts WHERE interview_id=$1`,
		interviewID,
	).Scan(&record.ID, &record.InterviewID, &record.Owner, &record.TopicID, &record.Points, &payload, &record.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TranscriptRecord{}, ErrNotFound
	}
	if err != nil {
		return TranscriptRecord{}, fmt.Errorf("get transcript: %w", err)
	}

	if err := json.Unmarshal(payload, &record.Messages); err != nil {
		return TranscriptRecord{}, fmt.Errorf("decode messages: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner string, limit int) ([]TranscriptRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, interview_id, owner, topic_id, points, messages, saved_at
		 FROM transcripts WHERE owner=$1 ORDER BY saved_at DESC LIMIT $2`,
		owner,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	items := make([]TranscriptRecord, 0, limit)
	for rows.Next() {
		var (
			record  TranscriptRecord
			payload []byte
		)
		if err := rows.Scan(&record.ID, &record.InterviewID, &record.Owner, &record.TopicID, &record.Points, &payload, &record.SavedAt); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		var messages []interview.Message
		if err := json.Unmarshal(payload, &messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
		record.Messages = messages
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
