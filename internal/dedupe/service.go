// Package dedupe implements duplicate detection and the merge workflow:
// heuristic match detectors, an idempotent suggestion queue, and an atomic
// multi-entity merge.
package dedupe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolodexhq/rolodex/internal/db"
)

// Bounds applied when the caller does not supply sane limits.
const (
	defaultRunLimit = 500
	defaultRunCap   = 500
	defaultPairCap  = 2000
)

// Service orchestrates detection runs and exposes the suggestion queue and
// merge engine to the transport layer.
type Service struct {
	pool        *pgxpool.Pool
	suggestions *Repository
	merger      *Merger
	logger      *slog.Logger
	pairCap     int
	runCap      int
}

func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:        pool,
		suggestions: NewRepository(log, pool),
		merger:      NewMerger(log, pool),
		logger:      log.With(slog.String("service", "dedupe")),
		pairCap:     defaultPairCap,
		runCap:      defaultRunCap,
	}
}

// SetPairCap overrides the name-heuristic self-join pair cap.
func (s *Service) SetPairCap(limit int) {
	if limit > 0 {
		s.pairCap = limit
	}
}

// SetRunCap overrides the per-run candidate ceiling.
func (s *Service) SetRunCap(limit int) {
	if limit > 0 {
		s.runCap = limit
	}
}

// clampRunLimit replaces a missing limit with the default and caps whatever
// the caller asked for at the configured ceiling.
func (s *Service) clampRunLimit(limit int) int {
	if limit < 1 {
		limit = defaultRunLimit
	}
	if limit > s.runCap {
		limit = s.runCap
	}
	return limit
}

// Run executes the email, phone, and name+geography detectors in that order,
// feeding every candidate through the suggestion upsert. It returns the
// number of suggestions created or refreshed. A failing detector aborts the
// run; upserts already committed stay (each upsert is independent, so a rerun
// simply reconciles them).
func (s *Service) Run(ctx context.Context, limit int) (RunResult, error) {
	limit = s.clampRunLimit(limit)

	total := 0
	detectors := []struct {
		name   string
		detect func(context.Context, *pgxpool.Pool, int) ([]Candidate, error)
		limit  int
	}{
		{"email", detectEmailMatches, limit},
		{"phone", detectPhoneMatches, limit},
		{"name_city", detectNameMatches, min(limit, s.pairCap)},
	}
	for _, d := range detectors {
		candidates, err := d.detect(ctx, s.pool, d.limit)
		if err != nil {
			return RunResult{Ran: true, CreatedSuggestions: total}, fmt.Errorf("%s detector: %w", d.name, err)
		}
		for _, candidate := range candidates {
			if _, err := s.suggestions.Upsert(ctx, candidate); err != nil {
				return RunResult{Ran: true, CreatedSuggestions: total}, fmt.Errorf("upsert %s suggestion: %w", d.name, err)
			}
			total++
		}
		s.logger.Debug("detector finished",
			slog.String("detector", d.name), slog.Int("candidates", len(candidates)))
	}

	s.logger.Info("dedupe run complete", slog.Int("created_suggestions", total))
	return RunResult{Ran: true, CreatedSuggestions: total}, nil
}

// List returns suggestions by status; see Repository.List.
func (s *Service) List(ctx context.Context, status string, limit int) ([]Suggestion, error) {
	return s.suggestions.List(ctx, status, limit)
}

// ListForContact returns suggestions referencing the contact on either side.
func (s *Service) ListForContact(ctx context.Context, contactID string) ([]Suggestion, error) {
	return s.suggestions.ListForContact(ctx, contactID)
}

// Resolve transitions one suggestion; see Repository.Resolve.
func (s *Service) Resolve(ctx context.Context, suggestionID, resolution, resolvedBy string) (Suggestion, error) {
	return s.suggestions.Resolve(ctx, suggestionID, resolution, resolvedBy)
}

// Merge collapses the merged contact into the survivor; see Merger.Merge.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (MergeResult, error) {
	return s.merger.Merge(ctx, req.SurvivorContactID, req.MergedContactID, req.SuggestionID, req.MergedBy)
}

// HistoryForContact returns merge audit rows naming the contact on either side.
func (s *Service) HistoryForContact(ctx context.Context, contactID string) ([]MergeRecord, error) {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, survivor_contact_id, merged_contact_id, merged_by, merge_reason, merge_payload, created_at
		FROM merge_history
		WHERE survivor_contact_id = $1 OR merged_contact_id = $1
		ORDER BY created_at DESC`, pgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]MergeRecord, 0)
	for rows.Next() {
		record, err := scanMergeRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, record)
	}
	return items, rows.Err()
}

func scanMergeRecord(row pgx.Row) (MergeRecord, error) {
	var (
		record                   MergeRecord
		id, survivorID, mergedID pgtype.UUID
		payload                  []byte
		createdAt                pgtype.Timestamptz
	)
	if err := row.Scan(&id, &survivorID, &mergedID,
		&record.MergedBy, &record.MergeReason, &payload, &createdAt); err != nil {
		return MergeRecord{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &record.MergePayload); err != nil {
			return MergeRecord{}, fmt.Errorf("decode merge payload: %w", err)
		}
	}
	record.ID = db.UUIDString(id)
	record.SurvivorContactID = db.UUIDString(survivorID)
	record.MergedContactID = db.UUIDString(mergedID)
	record.CreatedAt = db.TimeFromPg(createdAt)
	return record, nil
}
