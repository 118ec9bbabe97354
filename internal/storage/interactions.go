package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/taptalk/commlog/internal/attribution"
)

// Append inserts rec and returns the id SQLite assigned to it.
func (s *SQLiteStorage) Append(ctx context.Context, rec Interaction) (int64, error) {
	if err := rec.validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	data, err := encodeData(rec.Data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	var words sql.NullString
	if rec.Words != nil {
		encoded, err := json.Marshal(rec.Words)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to marshal words: %w", ErrPersist, err)
		}
		words = sql.NullString{String: string(encoded), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready || s.db == nil {
		return 0, ErrNotReady
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (timestamp, session_id, type, data, attribution, words, view)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Timestamp,
		rec.SessionID,
		rec.Type,
		data,
		string(rec.User),
		words,
		rec.View,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read assigned id: %w", ErrPersist, err)
	}
	return id, nil
}

// GetAll returns every stored record in id order.
// A scan failure fails the whole read; callers never see a partial set.
func (s *SQLiteStorage) GetAll(ctx context.Context) ([]Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready || s.db == nil {
		return nil, ErrNotReady
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, session_id, type, data, attribution, words, view
		FROM interactions
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	records := []Interaction{}
	for rows.Next() {
		var (
			rec   Interaction
			data  string
			user  string
			words sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&rec.SessionID,
			&rec.Type,
			&data,
			&user,
			&words,
			&rec.View,
		); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}

		if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
			return nil, fmt.Errorf("failed to decode data of interaction %d: %w", rec.ID, err)
		}
		if words.Valid {
			if err := json.Unmarshal([]byte(words.String), &rec.Words); err != nil {
				return nil, fmt.Errorf("failed to decode words of interaction %d: %w", rec.ID, err)
			}
		}
		rec.User = attribution.User(user)

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read interactions: %w", err)
	}
	return records, nil
}

// ClearAll deletes every record. The id sequence is left untouched.
func (s *SQLiteStorage) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready || s.db == nil {
		return ErrNotReady
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM interactions"); err != nil {
		return fmt.Errorf("failed to clear interactions: %w", err)
	}
	return nil
}

// Summary returns the record count and the oldest timestamp.
func (s *SQLiteStorage) Summary(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready || s.db == nil {
		return Summary{}, ErrNotReady
	}

	var (
		summary Summary
		oldest  sql.NullString
	)
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(timestamp) FROM interactions",
	).Scan(&summary.Count, &oldest); err != nil {
		return Summary{}, fmt.Errorf("failed to summarise interactions: %w", err)
	}
	summary.Oldest = oldest.String
	return summary, nil
}

// encodeData serialises the payload. A nil payload is stored as {}.
func encodeData(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal data: %w", err)
	}
	return string(encoded), nil
}
