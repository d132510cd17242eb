package dedupe

import (
	"context"
	"encoding/json"
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
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrInvalidResolution  = errors.New("resolution must be accepted or rejected")
	ErrInvalidStatus      = errors.New("status must be open, accepted, or rejected")
)

const suggestionColumns = `id, contact_id, possible_duplicate_contact_id,
	match_type, score, reason, evidence, status, suggested_by,
	resolved_at, resolved_by, created_at, updated_at`

// Repository persists detector output as durable, deduplicated suggestions.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	if log == nil {
		log = slog.Default()
	}
	return &Repository{
		pool:   pool,
		logger: log.With(slog.String("service", "dedupe")),
	}
}

// Upsert inserts an open suggestion for the candidate pair, or reconciles the
// existing row for the same (pair, match type): score only ever rises, reason
// and evidence take the latest detection's values, and status plus resolution
// fields are left untouched. Re-running detection is therefore idempotent.
func (r *Repository) Upsert(ctx context.Context, candidate Candidate) (Suggestion, error) {
	pgContactID, err := db.ParseUUID(candidate.ContactID)
	if err != nil {
		return Suggestion{}, err
	}
	pgDuplicateID, err := db.ParseUUID(candidate.PossibleDuplicateContactID)
	if err != nil {
		return Suggestion{}, err
	}
	evidence, err := json.Marshal(candidate.Evidence)
	if err != nil {
		return Suggestion{}, fmt.Errorf("encode evidence: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO duplicate_suggestions (
			contact_id, possible_duplicate_contact_id,
			match_type, score, reason, evidence, status, suggested_by
		) VALUES ($1,$2,$3,$4,$5,$6,'open',$7)
		ON CONFLICT (contact_id, possible_duplicate_contact_id, match_type)
		DO UPDATE SET
			score = GREATEST(duplicate_suggestions.score, EXCLUDED.score),
			reason = EXCLUDED.reason,
			evidence = EXCLUDED.evidence,
			updated_at = now()
		RETURNING `+suggestionColumns,
		pgContactID, pgDuplicateID, candidate.MatchType, candidate.Score,
		candidate.Reason, evidence, suggestedBy)
	return scanSuggestion(row)
}

// List returns suggestions with the given status, highest score first and
// most recent first within equal scores.
func (r *Repository) List(ctx context.Context, status string, limit int) ([]Suggestion, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		status = StatusOpen
	}
	switch status {
	case StatusOpen, StatusAccepted, StatusRejected:
	default:
		return nil, ErrInvalidStatus
	}
	if limit < 1 || limit > 500 {
		limit = 200
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+suggestionColumns+`
		FROM duplicate_suggestions
		WHERE status = $1
		ORDER BY score DESC, created_at DESC
		LIMIT $2`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSuggestions(rows)
}

// ListForContact returns every suggestion referencing the contact on either
// side, open items first.
func (r *Repository) ListForContact(ctx context.Context, contactID string) ([]Suggestion, error) {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+suggestionColumns+`
		FROM duplicate_suggestions
		WHERE contact_id = $1 OR possible_duplicate_contact_id = $1
		ORDER BY status ASC, score DESC, created_at DESC`, pgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSuggestions(rows)
}

// Resolve transitions a suggestion to accepted or rejected, stamping the
// resolution time and resolver. Resolving an already-resolved suggestion
// overwrites the previous resolution.
func (r *Repository) Resolve(ctx context.Context, suggestionID, resolution, resolvedBy string) (Suggestion, error) {
	if resolution != StatusAccepted && resolution != StatusRejected {
		return Suggestion{}, ErrInvalidResolution
	}
	pgID, err := db.ParseUUID(suggestionID)
	if err != nil {
		return Suggestion{}, err
	}
	if strings.TrimSpace(resolvedBy) == "" {
		resolvedBy = "dashboard"
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE duplicate_suggestions
		SET status = $2, resolved_at = now(), resolved_by = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+suggestionColumns, pgID, resolution, resolvedBy)
	suggestion, err := scanSuggestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Suggestion{}, ErrSuggestionNotFound
	}
	return suggestion, err
}

func collectSuggestions(rows pgx.Rows) ([]Suggestion, error) {
	items := make([]Suggestion, 0)
	for rows.Next() {
		suggestion, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, suggestion)
	}
	return items, rows.Err()
}

func scanSuggestion(row pgx.Row) (Suggestion, error) {
	var (
		s                          Suggestion
		id, contactID, duplicateID pgtype.UUID
		evidence                   []byte
		resolvedAt                 pgtype.Timestamptz
		resolvedBy                 pgtype.Text
		createdAt, updatedAt       pgtype.Timestamptz
	)
	err := row.Scan(&id, &contactID, &duplicateID,
		&s.MatchType, &s.Score, &s.Reason, &evidence, &s.Status, &s.SuggestedBy,
		&resolvedAt, &resolvedBy, &createdAt, &updatedAt)
	if err != nil {
		return Suggestion{}, err
	}
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &s.Evidence); err != nil {
			return Suggestion{}, fmt.Errorf("decode evidence: %w", err)
		}
	}
	if s.Evidence == nil {
		s.Evidence = map[string]any{}
	}
	s.ID = db.UUIDString(id)
	s.ContactID = db.UUIDString(contactID)
	s.PossibleDuplicateContactID = db.UUIDString(duplicateID)
	s.ResolvedAt = db.TimeFromPg(resolvedAt)
	s.ResolvedBy = db.TextValue(resolvedBy)
	s.CreatedAt = db.TimeFromPg(createdAt)
	s.UpdatedAt = db.TimeFromPg(updatedAt)
	return s, nil
}
