// Package notes manages free-form notes attached to contacts.
package notes

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolodexhq/rolodex/internal/db"
)

var ErrBodyRequired = errors.New("note body is required")

type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "notes")),
	}
}

func (s *Service) ListForContact(ctx context.Context, contactID string) ([]Note, error) {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, contact_id, import_batch_id, note_type, body, created_at
		FROM notes
		WHERE contact_id=$1
		ORDER BY created_at DESC`, pgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, note)
	}
	return items, rows.Err()
}

func (s *Service) Create(ctx context.Context, contactID string, req CreateRequest) (Note, error) {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return Note{}, err
	}
	if strings.TrimSpace(req.Body) == "" {
		return Note{}, ErrBodyRequired
	}
	noteType := strings.TrimSpace(req.NoteType)
	if noteType == "" {
		noteType = "note"
	}
	batchID := pgtype.UUID{}
	if strings.TrimSpace(req.ImportBatchID) != "" {
		batchID, err = db.ParseUUID(req.ImportBatchID)
		if err != nil {
			return Note{}, err
		}
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO notes (contact_id, import_batch_id, note_type, body)
		VALUES ($1,$2,$3,$4)
		RETURNING id, contact_id, import_batch_id, note_type, body, created_at`,
		pgID, batchID, noteType, req.Body)
	return scanNote(row)
}

func scanNote(row pgx.Row) (Note, error) {
	var (
		note          Note
		id, contactID pgtype.UUID
		batchID       pgtype.UUID
		createdAt     pgtype.Timestamptz
	)
	if err := row.Scan(&id, &contactID, &batchID, &note.NoteType, &note.Body, &createdAt); err != nil {
		return Note{}, err
	}
	note.ID = db.UUIDString(id)
	note.ContactID = db.UUIDString(contactID)
	note.ImportBatchID = db.UUIDString(batchID)
	note.CreatedAt = db.TimeFromPg(createdAt)
	return note, nil
}
