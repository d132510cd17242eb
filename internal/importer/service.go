// Package importer ingests CSV and vCard files into contacts, recording every
// run as an import batch and every created contact's provenance.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolodexhq/rolodex/internal/contacts"
	"github.com/rolodexhq/rolodex/internal/db"
)

var (
	ErrCSVInputRequired     = errors.New("csv_text or csv_base64 is required")
	ErrVCardInputRequired   = errors.New("vcard_text or vcard_base64 is required")
	ErrSourceLabelRequired  = errors.New("source_label is required")
	ErrMappingRequired      = errors.New("mapping is required")
	ErrUnknownMappingHeader = errors.New("mapping header not found")
	ErrBatchNotFound        = errors.New("import batch not found")
)

const (
	defaultPreviewRows = 25
	maxPreviewRows     = 200
	resultIDCap        = 50
)

// Service runs import previews and commits.
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
		logger: log.With(slog.String("service", "importer")),
	}
}

// CSVPreview parses a bounded sample of the upload and proposes a column
// mapping without writing anything.
func (s *Service) CSVPreview(ctx context.Context, req PreviewRequest) (CSVPreview, error) {
	text, err := csvText(req)
	if err != nil {
		return CSVPreview{}, err
	}
	delimiter := delimiterRune(req.Delimiter)
	hasHeader := req.HasHeader == nil || *req.HasHeader
	maxPreview := req.MaxPreviewRows
	if maxPreview < 1 || maxPreview > maxPreviewRows {
		maxPreview = defaultPreviewRows
	}

	limit := maxPreview
	if hasHeader {
		limit++
	}
	table, err := parseCSV(text, delimiter, limit)
	if err != nil {
		return CSVPreview{}, err
	}
	headers, rows := toRowObjects(table, hasHeader)
	if len(rows) > maxPreview {
		rows = rows[:maxPreview]
	}

	warnings := []string{}
	if len(headers) == 0 {
		warnings = append(warnings, "No headers detected.")
	}
	sample := rows
	if len(sample) > 10 {
		sample = sample[:10]
	}
	return CSVPreview{
		FileName:          req.FileName,
		Delimiter:         string(delimiter),
		HasHeader:         hasHeader,
		Headers:           headers,
		SampleRows:        sample,
		ColumnProfile:     profileColumns(rows, headers),
		MappingSuggestion: guessMapping(headers),
		CanonicalFields:   canonicalFields,
		Warnings:          warnings,
	}, nil
}

// CSVCommit parses the whole upload and imports every row under a new batch.
func (s *Service) CSVCommit(ctx context.Context, req CommitRequest) (CommitResult, error) {
	if strings.TrimSpace(req.SourceLabel) == "" {
		return CommitResult{}, ErrSourceLabelRequired
	}
	if req.Mapping == nil {
		return CommitResult{}, ErrMappingRequired
	}
	text, err := csvText(req.PreviewRequest)
	if err != nil {
		return CommitResult{}, err
	}
	delimiter := delimiterRune(req.Delimiter)
	hasHeader := req.HasHeader == nil || *req.HasHeader

	table, err := parseCSV(text, delimiter, 0)
	if err != nil {
		return CommitResult{}, err
	}
	headers, rows := toRowObjects(table, hasHeader)

	known := map[string]struct{}{}
	for _, h := range headers {
		known[h] = struct{}{}
	}
	for _, header := range req.Mapping {
		if header == "" {
			continue
		}
		if _, ok := known[header]; !ok {
			return CommitResult{}, fmt.Errorf("%w: %s", ErrUnknownMappingHeader, header)
		}
	}

	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = "csv"
	}
	meta := map[string]any{
		"delimiter":  string(delimiter),
		"has_header": hasHeader,
		"headers":    headers,
		"mapping":    req.Mapping,
		"defaults":   req.Defaults,
	}
	batchID, err := s.createBatch(ctx, sourceType, req, meta, len(rows))
	if err != nil {
		return CommitResult{}, err
	}

	importRows := make([]importRow, 0, len(rows))
	for _, row := range rows {
		fingerprint, err := fingerprintJSON(map[string]any{"headers": headers, "row": row})
		if err != nil {
			return CommitResult{}, err
		}
		importRows = append(importRows, importRow{
			raw:         row,
			normalized:  contactFromRow(row, req.Mapping, req.Defaults),
			fingerprint: fingerprint,
		})
	}
	return s.commitRows(ctx, batchID, sourceType, req.SourceLabel, importRows)
}

// VCardPreview parses the upload and returns a sample of the cards found.
func (s *Service) VCardPreview(ctx context.Context, req PreviewRequest) (VCardPreview, error) {
	text, err := vcardText(req)
	if err != nil {
		return VCardPreview{}, err
	}
	cards, err := parseVCards(text)
	if err != nil {
		return VCardPreview{}, err
	}

	sample := make([]VCardSample, 0, 10)
	for _, card := range cards {
		if len(sample) == 10 {
			break
		}
		item := VCardSample{
			FullName: card.FullName,
			First:    card.First,
			Last:     card.Last,
			Org:      card.Org,
			Title:    card.Title,
			City:     card.City,
			State:    card.Region,
		}
		if len(card.Emails) > 0 {
			item.Email = card.Emails[0]
		}
		if len(card.Phones) > 0 {
			item.Phone = card.Phones[0]
		}
		sample = append(sample, item)
	}
	return VCardPreview{
		FileName:    req.FileName,
		CardCount:   len(cards),
		SampleCards: sample,
		MappingNote: "vCard fields FN/N/EMAIL/TEL/ADR/ORG/TITLE/URL/BDAY/NOTE are mapped; unrecognized properties are ignored.",
	}, nil
}

// VCardCommit imports every card in the upload under a new batch.
func (s *Service) VCardCommit(ctx context.Context, req CommitRequest) (CommitResult, error) {
	if strings.TrimSpace(req.SourceLabel) == "" {
		return CommitResult{}, ErrSourceLabelRequired
	}
	text, err := vcardText(req.PreviewRequest)
	if err != nil {
		return CommitResult{}, err
	}
	cards, err := parseVCards(text)
	if err != nil {
		return CommitResult{}, err
	}

	meta := map[string]any{"format": "vcard", "defaults": req.Defaults}
	batchID, err := s.createBatch(ctx, "vcard", req, meta, len(cards))
	if err != nil {
		return CommitResult{}, err
	}

	importRows := make([]importRow, 0, len(cards))
	for _, card := range cards {
		fingerprint, err := fingerprintJSON(card)
		if err != nil {
			return CommitResult{}, err
		}
		importRows = append(importRows, importRow{
			raw:         card,
			normalized:  contactFromCard(card, req.Defaults),
			fingerprint: fingerprint,
		})
	}
	return s.commitRows(ctx, batchID, "vcard", req.SourceLabel, importRows)
}

// ListBatches returns the most recent import batches, newest first.
func (s *Service) ListBatches(ctx context.Context) ([]Batch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+batchColumns+`
		FROM import_batches
		ORDER BY created_at DESC
		LIMIT 100`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Batch, 0)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, batch)
	}
	return items, rows.Err()
}

// GetBatch returns one batch by id.
func (s *Service) GetBatch(ctx context.Context, batchID string) (Batch, error) {
	pgID, err := db.ParseUUID(batchID)
	if err != nil {
		return Batch{}, err
	}
	batch, err := scanBatch(s.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM import_batches WHERE id = $1`, pgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, ErrBatchNotFound
	}
	return batch, err
}

const batchColumns = `id, source_type, source_label, file_name, status,
	record_count, processed_count, error_summary, meta, created_by,
	completed_at, created_at`

func (s *Service) createBatch(ctx context.Context, sourceType string, req CommitRequest, meta map[string]any, recordCount int) (pgtype.UUID, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("encode batch meta: %w", err)
	}
	var id pgtype.UUID
	err = s.pool.QueryRow(ctx, `
		INSERT INTO import_batches (source_type, source_label, file_name, status, record_count, meta, created_by)
		VALUES ($1,$2,$3,'processing',$4,$5,$6)
		RETURNING id`,
		sourceType, req.SourceLabel, db.Text(req.FileName), recordCount, metaJSON, db.Text(req.CreatedBy),
	).Scan(&id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("create import batch: %w", err)
	}
	return id, nil
}

// commitRows inserts one contact plus one provenance row per input record in
// a single transaction, then marks the batch completed. On failure the
// transaction rolls back and the batch is marked failed with the error.
func (s *Service) commitRows(ctx context.Context, batchID pgtype.UUID, sourceType, sourceLabel string, rows []importRow) (CommitResult, error) {
	createdIDs, err := s.insertRows(ctx, batchID, sourceType, sourceLabel, rows)
	if err != nil {
		if _, markErr := s.pool.Exec(ctx,
			`UPDATE import_batches SET status = 'failed', error_summary = $2 WHERE id = $1`,
			batchID, err.Error()); markErr != nil {
			s.logger.Error("mark batch failed", slog.Any("error", markErr))
		}
		return CommitResult{}, err
	}

	s.logger.Info("import batch committed",
		slog.String("batch_id", db.UUIDString(batchID)),
		slog.String("source_type", sourceType),
		slog.Int("records", len(rows)))

	preview := createdIDs
	if len(preview) > resultIDCap {
		preview = preview[:resultIDCap]
	}
	return CommitResult{
		BatchID:                     db.UUIDString(batchID),
		Status:                      BatchCompleted,
		RecordCount:                 len(rows),
		ProcessedCount:              len(createdIDs),
		CreatedContactIDs:           preview,
		CreatedContactsPreviewCount: len(preview),
	}, nil
}

func (s *Service) insertRows(ctx context.Context, batchID pgtype.UUID, sourceType, sourceLabel string, rows []importRow) ([]string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	createdIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		contactID, err := insertContact(ctx, tx, row.normalized)
		if err != nil {
			return nil, err
		}
		createdIDs = append(createdIDs, contactID)

		rawJSON, err := json.Marshal(row.raw)
		if err != nil {
			return nil, fmt.Errorf("encode raw payload: %w", err)
		}
		snapshotJSON, err := json.Marshal(row.normalized)
		if err != nil {
			return nil, fmt.Errorf("encode normalized snapshot: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO contact_sources (
				contact_id, import_batch_id, source_type, source_label,
				row_fingerprint, raw_payload, normalized_snapshot
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (import_batch_id, row_fingerprint)
				WHERE import_batch_id IS NOT NULL AND row_fingerprint IS NOT NULL
				DO NOTHING`,
			contactID, batchID, sourceType, db.Text(sourceLabel),
			row.fingerprint, rawJSON, snapshotJSON); err != nil {
			return nil, fmt.Errorf("record contact source: %w", err)
		}

		if len(createdIDs)%100 == 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE import_batches SET processed_count = $2 WHERE id = $1`,
				batchID, len(createdIDs)); err != nil {
				return nil, fmt.Errorf("update batch progress: %w", err)
			}
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE import_batches
		SET processed_count = $2, status = 'completed', completed_at = now()
		WHERE id = $1`, batchID, len(createdIDs)); err != nil {
		return nil, fmt.Errorf("complete batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return createdIDs, nil
}

func insertContact(ctx context.Context, tx pgx.Tx, req contacts.CreateRequest) (string, error) {
	metadata := contacts.Metadata{}
	if req.Metadata != nil {
		metadata = *req.Metadata
	}
	metadataJSON, err := json.Marshal(metadata.Normalize())
	if err != nil {
		return "", fmt.Errorf("encode contact metadata: %w", err)
	}
	country := req.Country
	if country == "" {
		country = "USA"
	}

	var id pgtype.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO contacts (
			full_name, first_name, middle_name, last_name, suffix,
			primary_email, primary_phone, emails, phones,
			street, street2, city, state, postal_code, country,
			company, title, organization, website, birthday, metadata
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,$9,
			$10,$11,$12,$13,$14,$15,
			$16,$17,$18,$19, NULLIF($20,'')::date, $21
		)
		RETURNING id`,
		req.FullName, db.Text(req.FirstName), db.Text(req.MiddleName),
		db.Text(req.LastName), db.Text(req.Suffix),
		db.Text(req.PrimaryEmail), db.Text(req.PrimaryPhone),
		contacts.NormalizeList(req.Emails), contacts.NormalizeList(req.Phones),
		db.Text(req.Street), db.Text(req.Street2), db.Text(req.City),
		db.Text(req.State), db.Text(req.PostalCode), country,
		db.Text(req.Company), db.Text(req.Title), db.Text(req.Organization),
		db.Text(req.Website), req.Birthday, metadataJSON,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert contact: %w", err)
	}
	return db.UUIDString(id), nil
}

func csvText(req PreviewRequest) (string, error) {
	if req.CSVText != "" {
		return req.CSVText, nil
	}
	if req.CSVBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.CSVBase64)
		if err != nil {
			return "", fmt.Errorf("decode csv_base64: %w", err)
		}
		return string(decoded), nil
	}
	return "", ErrCSVInputRequired
}

func vcardText(req PreviewRequest) (string, error) {
	if req.VCardText != "" {
		return req.VCardText, nil
	}
	if req.VCardBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.VCardBase64)
		if err != nil {
			return "", fmt.Errorf("decode vcard_base64: %w", err)
		}
		return string(decoded), nil
	}
	return "", ErrVCardInputRequired
}

func delimiterRune(delimiter string) rune {
	for _, r := range delimiter {
		return r
	}
	return ','
}

// fingerprintJSON hashes the canonical JSON encoding of v, used to spot the
// same record re-imported into the same batch.
func fingerprintJSON(v any) (string, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode fingerprint input: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

func scanBatch(row pgx.Row) (Batch, error) {
	var (
		batch                  Batch
		id                     pgtype.UUID
		fileName, errorSummary pgtype.Text
		createdBy              pgtype.Text
		meta                   []byte
		completedAt, createdAt pgtype.Timestamptz
	)
	err := row.Scan(&id, &batch.SourceType, &batch.SourceLabel, &fileName,
		&batch.Status, &batch.RecordCount, &batch.ProcessedCount,
		&errorSummary, &meta, &createdBy, &completedAt, &createdAt)
	if err != nil {
		return Batch{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &batch.Meta); err != nil {
			return Batch{}, fmt.Errorf("decode batch meta: %w", err)
		}
	}
	if batch.Meta == nil {
		batch.Meta = map[string]any{}
	}
	batch.ID = db.UUIDString(id)
	batch.FileName = db.TextValue(fileName)
	batch.ErrorSummary = db.TextValue(errorSummary)
	batch.CreatedBy = db.TextValue(createdBy)
	batch.CompletedAt = db.TimeFromPg(completedAt)
	batch.CreatedAt = db.TimeFromPg(createdAt)
	return batch, nil
}
