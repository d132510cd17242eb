// Package tags manages tags and their assignments to contacts.
package tags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolodexhq/rolodex/internal/db"
)

var (
	ErrNameRequired    = errors.New("tag name is required")
	ErrContactNotFound = errors.New("contact not found")
	ErrNotAssigned     = errors.New("tag is not assigned to contact")
)

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
		logger: log.With(slog.String("service", "tags")),
	}
}

func (s *Service) List(ctx context.Context) ([]Tag, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, category, description, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Tag, 0)
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tag)
	}
	return items, rows.Err()
}

// ListForContact returns the tags assigned to one contact, ordered by name.
func (s *Service) ListForContact(ctx context.Context, contactID string) ([]Tag, error) {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.name, t.category, t.description, t.created_at
		FROM contact_tags ct
		JOIN tags t ON t.id = ct.tag_id
		WHERE ct.contact_id = $1
		ORDER BY t.name`, pgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Tag, 0)
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, tag)
	}
	return items, rows.Err()
}

func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (Tag, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Tag{}, ErrNameRequired
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tags (name, category, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET category = EXCLUDED.category,
		    description = EXCLUDED.description
		RETURNING id, name, category, description, created_at`,
		name, db.Text(req.Category), db.Text(req.Description))
	return scanTag(row)
}

// Assign attaches the requested tags to the contact in one transaction,
// overwriting attribution for tags already assigned.
func (s *Service) Assign(ctx context.Context, contactID string, req AssignRequest) error {
	pgContactID, err := db.ParseUUID(contactID)
	if err != nil {
		return err
	}
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM contacts WHERE id=$1)`, pgContactID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrContactNotFound
	}

	assignedBy := strings.TrimSpace(req.AssignedBy)
	if assignedBy == "" {
		assignedBy = "manual"
	}
	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}
	batchID := pgtype.UUID{}
	if strings.TrimSpace(req.ImportBatchID) != "" {
		batchID, err = db.ParseUUID(req.ImportBatchID)
		if err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, tagID := range req.TagIDs {
		pgTagID, err := db.ParseUUID(tagID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO contact_tags (contact_id, tag_id, assigned_by, confidence, import_batch_id)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (contact_id, tag_id) DO UPDATE
			SET assigned_by = EXCLUDED.assigned_by,
			    confidence = EXCLUDED.confidence,
			    import_batch_id = EXCLUDED.import_batch_id`,
			pgContactID, pgTagID, assignedBy, confidence, batchID); err != nil {
			return fmt.Errorf("assign tag %s: %w", tagID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Service) Remove(ctx context.Context, contactID, tagID string) error {
	pgContactID, err := db.ParseUUID(contactID)
	if err != nil {
		return err
	}
	pgTagID, err := db.ParseUUID(tagID)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM contact_tags WHERE contact_id=$1 AND tag_id=$2`, pgContactID, pgTagID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotAssigned
	}
	return nil
}

func scanTag(row pgx.Row) (Tag, error) {
	var (
		tag                   Tag
		id                    pgtype.UUID
		category, description pgtype.Text
		createdAt             pgtype.Timestamptz
	)
	if err := row.Scan(&id, &tag.Name, &category, &description, &createdAt); err != nil {
		return Tag{}, err
	}
	tag.ID = db.UUIDString(id)
	tag.Category = db.TextValue(category)
	tag.Description = db.TextValue(description)
	tag.CreatedAt = db.TimeFromPg(createdAt)
	return tag, nil
}
