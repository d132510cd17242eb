package contacts

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rolodexhq/rolodex/internal/db"
)

// Source is a provenance record tying a contact to the import or channel it
// came from.
type Source struct {
	ID            string    `json:"id"`
	ContactID     string    `json:"contact_id"`
	ImportBatchID string    `json:"import_batch_id,omitempty"`
	SourceType    string    `json:"source_type"`
	SourceLabel   string    `json:"source_label,omitempty"`
	ExternalID    string    `json:"external_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListSources returns the contact's provenance records, newest first.
func (s *Service) ListSources(ctx context.Context, contactID string) ([]Source, error) {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, contact_id, import_batch_id, source_type, source_label, external_id, created_at
		FROM contact_sources
		WHERE contact_id = $1
		ORDER BY created_at DESC`, pgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Source, 0)
	for rows.Next() {
		var (
			source            Source
			id, cid, batchID  pgtype.UUID
			label, externalID pgtype.Text
			createdAt         pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &cid, &batchID, &source.SourceType, &label, &externalID, &createdAt); err != nil {
			return nil, err
		}
		source.ID = db.UUIDString(id)
		source.ContactID = db.UUIDString(cid)
		source.ImportBatchID = db.UUIDString(batchID)
		source.SourceLabel = db.TextValue(label)
		source.ExternalID = db.TextValue(externalID)
		source.CreatedAt = db.TimeFromPg(createdAt)
		items = append(items, source)
	}
	return items, rows.Err()
}
