package dedupe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolodexhq/rolodex/internal/contacts"
	"github.com/rolodexhq/rolodex/internal/db"
)

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrSameContact     = errors.New("survivor and merged contact must differ")
)

// Merge reason tags written to merge_history.
const (
	reasonSuggestion = "duplicate_suggestion"
	reasonManual     = "manual_merge"
)

// Merger collapses two contact records into one, preserving all dependent
// data, as a single atomic transaction.
type Merger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewMerger(log *slog.Logger, pool *pgxpool.Pool) *Merger {
	if log == nil {
		log = slog.Default()
	}
	return &Merger{
		pool:   pool,
		logger: log.With(slog.String("service", "merge")),
	}
}

// Merge unions the merged contact's data into the survivor, repoints every
// dependent record, writes one merge_history row, and soft-deletes the merged
// contact. All steps run in one transaction and roll back together on
// failure; only the soft delete is tolerated to fail (it is logged and
// skipped so a schema without deleted_at does not abort the merge).
func (m *Merger) Merge(ctx context.Context, survivorID, mergedID, suggestionID, mergedBy string) (MergeResult, error) {
	if survivorID == mergedID {
		return MergeResult{}, ErrSameContact
	}
	pgSurvivorID, err := db.ParseUUID(survivorID)
	if err != nil {
		return MergeResult{}, err
	}
	pgMergedID, err := db.ParseUUID(mergedID)
	if err != nil {
		return MergeResult{}, err
	}
	pgSuggestionID := pgtype.UUID{}
	if strings.TrimSpace(suggestionID) != "" {
		pgSuggestionID, err = db.ParseUUID(suggestionID)
		if err != nil {
			return MergeResult{}, err
		}
	}
	if strings.TrimSpace(mergedBy) == "" {
		mergedBy = "dashboard"
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return MergeResult{}, fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback(ctx)

	survivor, err := lockContact(ctx, tx, pgSurvivorID)
	if err != nil {
		return MergeResult{}, err
	}
	merged, err := lockContact(ctx, tx, pgMergedID)
	if err != nil {
		return MergeResult{}, err
	}

	updated := computeMergedRecord(survivor, merged)
	if err := writeSurvivor(ctx, tx, pgSurvivorID, updated); err != nil {
		return MergeResult{}, fmt.Errorf("write survivor: %w", err)
	}

	// Tag union: copy assignments the survivor is missing, then clear the
	// merged contact's assignments.
	if _, err := tx.Exec(ctx, `
		INSERT INTO contact_tags (contact_id, tag_id, assigned_by, confidence)
		SELECT $1, tag_id, 'merge', COALESCE(confidence, 1.0)
		FROM contact_tags
		WHERE contact_id = $2
		ON CONFLICT (contact_id, tag_id) DO NOTHING`,
		pgSurvivorID, pgMergedID); err != nil {
		return MergeResult{}, fmt.Errorf("union tags: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM contact_tags WHERE contact_id = $1`, pgMergedID); err != nil {
		return MergeResult{}, fmt.Errorf("clear merged tags: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE notes SET contact_id = $1 WHERE contact_id = $2`,
		pgSurvivorID, pgMergedID); err != nil {
		return MergeResult{}, fmt.Errorf("reassign notes: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE contact_sources SET contact_id = $1 WHERE contact_id = $2`,
		pgSurvivorID, pgMergedID); err != nil {
		return MergeResult{}, fmt.Errorf("reassign sources: %w", err)
	}

	// Repoint open suggestions that reference the merged contact as the
	// possible duplicate, so the queue never points at a retired id. Rows
	// whose repointed key would collide with an existing suggestion (or
	// would pair the survivor with itself) are dropped instead.
	if _, err := tx.Exec(ctx, `
		UPDATE duplicate_suggestions ds
		SET possible_duplicate_contact_id = $1, updated_at = now()
		WHERE ds.possible_duplicate_contact_id = $2
		  AND ds.status = 'open'
		  AND ds.contact_id <> $1
		  AND NOT EXISTS (
			SELECT 1 FROM duplicate_suggestions other
			WHERE other.contact_id = ds.contact_id
			  AND other.possible_duplicate_contact_id = $1
			  AND other.match_type = ds.match_type
		  )`,
		pgSurvivorID, pgMergedID); err != nil {
		return MergeResult{}, fmt.Errorf("repoint suggestions: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM duplicate_suggestions
		WHERE possible_duplicate_contact_id = $1
		  AND status = 'open'
		  AND ($2::uuid IS NULL OR id <> $2)`,
		pgMergedID, pgSuggestionID); err != nil {
		return MergeResult{}, fmt.Errorf("drop stale suggestions: %w", err)
	}

	reason := reasonManual
	if pgSuggestionID.Valid {
		reason = reasonSuggestion
	}
	payload, err := json.Marshal(map[string]any{
		"suggestion_id": nullableID(pgSuggestionID),
		"updated":       updated,
	})
	if err != nil {
		return MergeResult{}, fmt.Errorf("encode merge payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO merge_history (survivor_contact_id, merged_contact_id, merged_by, merge_reason, merge_payload)
		VALUES ($1,$2,$3,$4,$5)`,
		pgSurvivorID, pgMergedID, mergedBy, reason, payload); err != nil {
		return MergeResult{}, fmt.Errorf("write merge history: %w", err)
	}

	m.softDeleteMerged(ctx, tx, pgMergedID)

	if pgSuggestionID.Valid {
		if _, err := tx.Exec(ctx, `
			UPDATE duplicate_suggestions
			SET status = 'accepted', resolved_at = now(), resolved_by = $2, updated_at = now()
			WHERE id = $1`,
			pgSuggestionID, mergedBy); err != nil {
			return MergeResult{}, fmt.Errorf("accept suggestion: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return MergeResult{}, fmt.Errorf("commit merge: %w", err)
	}
	return MergeResult{
		Merged:            true,
		SurvivorContactID: survivorID,
		MergedContactID:   mergedID,
	}, nil
}

// softDeleteMerged marks the merged contact deleted. The failure is tolerated
// inside a savepoint so a schema without the column cannot abort the merge; a
// warning is emitted so operators can reconcile the still-visible contact.
func (m *Merger) softDeleteMerged(ctx context.Context, tx pgx.Tx, pgMergedID pgtype.UUID) {
	inner, err := tx.Begin(ctx)
	if err != nil {
		m.logger.Warn("soft delete skipped: savepoint failed", slog.Any("error", err))
		return
	}
	_, err = inner.Exec(ctx, `
		UPDATE contacts
		SET deleted_at = COALESCE(deleted_at, now()), updated_at = now()
		WHERE id = $1`, pgMergedID)
	if err != nil {
		_ = inner.Rollback(ctx)
		m.logger.Warn("soft delete of merged contact failed; contact remains visible",
			slog.String("merged_contact_id", db.UUIDString(pgMergedID)),
			slog.Any("error", err))
		return
	}
	if err := inner.Commit(ctx); err != nil {
		m.logger.Warn("soft delete commit failed", slog.Any("error", err))
	}
}

func lockContact(ctx context.Context, tx pgx.Tx, id pgtype.UUID) (contacts.Contact, error) {
	contact, err := contacts.ScanContact(tx.QueryRow(ctx,
		`SELECT `+contacts.Columns+` FROM contacts WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return contacts.Contact{}, ErrContactNotFound
	}
	if err != nil {
		return contacts.Contact{}, fmt.Errorf("lock contact: %w", err)
	}
	return contact, nil
}

// computeMergedRecord builds the post-merge survivor record: emails and
// phones are the de-duplicated union, scalar fields keep the survivor's value
// and fall back to the merged contact's, and metadata custom_fields are
// shallow-merged with survivor precedence. The remaining metadata sub-keys
// (alt_names, nicknames, socials, flags) are taken from the survivor
// unchanged.
func computeMergedRecord(survivor, merged contacts.Contact) contacts.Contact {
	out := survivor

	out.Emails = contacts.NormalizeList(append(append([]string{}, survivor.Emails...), merged.Emails...))
	out.Phones = contacts.NormalizeList(append(append([]string{}, survivor.Phones...), merged.Phones...))

	out.PrimaryEmail = pickPrimary(survivor.PrimaryEmail, merged.PrimaryEmail, out.Emails)
	out.PrimaryPhone = pickPrimary(survivor.PrimaryPhone, merged.PrimaryPhone, out.Phones)

	out.FullName = pick(survivor.FullName, merged.FullName)
	out.FirstName = pick(survivor.FirstName, merged.FirstName)
	out.MiddleName = pick(survivor.MiddleName, merged.MiddleName)
	out.LastName = pick(survivor.LastName, merged.LastName)
	out.Suffix = pick(survivor.Suffix, merged.Suffix)
	out.Street = pick(survivor.Street, merged.Street)
	out.Street2 = pick(survivor.Street2, merged.Street2)
	out.City = pick(survivor.City, merged.City)
	out.State = pick(survivor.State, merged.State)
	out.PostalCode = pick(survivor.PostalCode, merged.PostalCode)
	out.Country = pick(survivor.Country, merged.Country)
	out.Company = pick(survivor.Company, merged.Company)
	out.Title = pick(survivor.Title, merged.Title)
	out.Organization = pick(survivor.Organization, merged.Organization)
	out.Website = pick(survivor.Website, merged.Website)
	out.Birthday = pick(survivor.Birthday, merged.Birthday)

	out.Metadata = survivor.Metadata.Normalize()
	out.Metadata.CustomFields = mergeCustomFields(
		survivor.Metadata.CustomFields, merged.Metadata.CustomFields)

	return out
}

// mergeCustomFields shallow-merges b into a with a's keys taking precedence;
// keys that are absent, nil, or empty-string on a are filled from b.
func mergeCustomFields(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		existing, ok := out[k]
		if !ok || existing == nil || existing == "" {
			out[k] = v
		}
	}
	return out
}

func pick(survivor, merged string) string {
	if survivor != "" {
		return survivor
	}
	return merged
}

func pickPrimary(survivor, merged string, union []string) string {
	if survivor != "" {
		return survivor
	}
	if merged != "" {
		return merged
	}
	if len(union) > 0 {
		return union[0]
	}
	return ""
}

func nullableID(id pgtype.UUID) any {
	if !id.Valid {
		return nil
	}
	return db.UUIDString(id)
}

func writeSurvivor(ctx context.Context, tx pgx.Tx, id pgtype.UUID, updated contacts.Contact) error {
	metadata, err := json.Marshal(updated.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	var birthday pgtype.Date
	if updated.Birthday != "" {
		parsed, err := time.Parse("2006-01-02", updated.Birthday)
		if err != nil {
			return fmt.Errorf("parse birthday: %w", err)
		}
		birthday = pgtype.Date{Time: parsed, Valid: true}
	}
	_, err = tx.Exec(ctx, `
		UPDATE contacts SET
			full_name=$2, first_name=$3, middle_name=$4, last_name=$5, suffix=$6,
			primary_email=$7, primary_phone=$8, emails=$9, phones=$10,
			street=$11, street2=$12, city=$13, state=$14, postal_code=$15, country=$16,
			company=$17, title=$18, organization=$19, website=$20,
			birthday=$21, metadata=$22, updated_at=now()
		WHERE id=$1`,
		id,
		updated.FullName, db.Text(updated.FirstName), db.Text(updated.MiddleName),
		db.Text(updated.LastName), db.Text(updated.Suffix),
		db.Text(updated.PrimaryEmail), db.Text(updated.PrimaryPhone),
		updated.Emails, updated.Phones,
		db.Text(updated.Street), db.Text(updated.Street2), db.Text(updated.City),
		db.Text(updated.State), db.Text(updated.PostalCode), db.Text(updated.Country),
		db.Text(updated.Company), db.Text(updated.Title), db.Text(updated.Organization),
		db.Text(updated.Website),
		birthday, metadata)
	return err
}
