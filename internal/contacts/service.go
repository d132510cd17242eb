// Package contacts provides CRUD over the canonical contact records.
package contacts

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

	"github.com/rolodexhq/rolodex/internal/db"
)

var (
	ErrNotFound         = errors.New("contact not found")
	ErrFullNameRequired = errors.New("full_name is required")
	ErrInvalidBirthday  = errors.New("birthday must be YYYY-MM-DD")
)

// Columns is the canonical contact select list, shared with the merge engine.
const Columns = `id, full_name, first_name, middle_name, last_name, suffix,
	primary_email, primary_phone, emails, phones,
	street, street2, city, state, postal_code, country,
	company, title, organization, website, birthday, metadata,
	deleted_at, created_at, updated_at`

const birthdayLayout = "2006-01-02"

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
		logger: log.With(slog.String("service", "contacts")),
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Contact, error) {
	if strings.TrimSpace(req.FullName) == "" {
		return Contact{}, ErrFullNameRequired
	}
	birthday, err := parseBirthday(req.Birthday)
	if err != nil {
		return Contact{}, err
	}
	var meta Metadata
	if req.Metadata != nil {
		meta = *req.Metadata
	}
	payload, err := json.Marshal(meta.Normalize())
	if err != nil {
		return Contact{}, err
	}
	country := strings.TrimSpace(req.Country)
	if country == "" {
		country = "USA"
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO contacts (
			full_name, first_name, middle_name, last_name, suffix,
			primary_email, primary_phone, emails, phones,
			street, street2, city, state, postal_code, country,
			company, title, organization, website, birthday, metadata
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,$9,
			$10,$11,$12,$13,$14,$15,
			$16,$17,$18,$19,$20,$21
		)
		RETURNING `+Columns,
		strings.TrimSpace(req.FullName),
		db.Text(req.FirstName), db.Text(req.MiddleName), db.Text(req.LastName), db.Text(req.Suffix),
		db.Text(req.PrimaryEmail), db.Text(req.PrimaryPhone),
		NormalizeList(req.Emails), NormalizeList(req.Phones),
		db.Text(req.Street), db.Text(req.Street2), db.Text(req.City), db.Text(req.State),
		db.Text(req.PostalCode), country,
		db.Text(req.Company), db.Text(req.Title), db.Text(req.Organization), db.Text(req.Website),
		birthday, payload,
	)
	return ScanContact(row)
}

func (s *Service) Get(ctx context.Context, contactID string) (Contact, error) {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return Contact{}, err
	}
	contact, err := ScanContact(s.pool.QueryRow(ctx, `SELECT `+Columns+` FROM contacts WHERE id=$1`, pgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	return contact, err
}

func (s *Service) Update(ctx context.Context, contactID string, req UpdateRequest) (Contact, error) {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return Contact{}, err
	}
	if req.FullName != nil && strings.TrimSpace(*req.FullName) == "" {
		return Contact{}, ErrFullNameRequired
	}

	var birthday pgtype.Date
	if req.Birthday != nil {
		birthday, err = parseBirthday(*req.Birthday)
		if err != nil {
			return Contact{}, err
		}
	}
	var metadata []byte
	if req.Metadata != nil {
		metadata, err = json.Marshal(req.Metadata.Normalize())
		if err != nil {
			return Contact{}, err
		}
	}
	var emails, phones []string
	if req.Emails != nil {
		emails = NormalizeList(*req.Emails)
	}
	if req.Phones != nil {
		phones = NormalizeList(*req.Phones)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE contacts SET
			full_name=COALESCE($2, full_name),
			first_name=COALESCE($3, first_name),
			middle_name=COALESCE($4, middle_name),
			last_name=COALESCE($5, last_name),
			suffix=COALESCE($6, suffix),
			primary_email=COALESCE($7, primary_email),
			primary_phone=COALESCE($8, primary_phone),
			emails=COALESCE($9, emails),
			phones=COALESCE($10, phones),
			street=COALESCE($11, street),
			street2=COALESCE($12, street2),
			city=COALESCE($13, city),
			state=COALESCE($14, state),
			postal_code=COALESCE($15, postal_code),
			country=COALESCE($16, country),
			company=COALESCE($17, company),
			title=COALESCE($18, title),
			organization=COALESCE($19, organization),
			website=COALESCE($20, website),
			birthday=COALESCE($21, birthday),
			metadata=COALESCE($22, metadata),
			updated_at=now()
		WHERE id=$1
		RETURNING `+Columns,
		pgID,
		textPtr(req.FullName), textPtr(req.FirstName), textPtr(req.MiddleName),
		textPtr(req.LastName), textPtr(req.Suffix),
		textPtr(req.PrimaryEmail), textPtr(req.PrimaryPhone),
		emails, phones,
		textPtr(req.Street), textPtr(req.Street2), textPtr(req.City), textPtr(req.State),
		textPtr(req.PostalCode), textPtr(req.Country),
		textPtr(req.Company), textPtr(req.Title), textPtr(req.Organization), textPtr(req.Website),
		birthday, metadata,
	)
	contact, err := ScanContact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	return contact, err
}

func (s *Service) Delete(ctx context.Context, contactID string) error {
	pgID, err := db.ParseUUID(contactID)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM contacts WHERE id=$1`, pgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 200 {
		params.PageSize = 50
	}

	where := make([]string, 0, 4)
	values := make([]any, 0, 6)
	arg := func(v any) string {
		values = append(values, v)
		return fmt.Sprintf("$%d", len(values))
	}

	if q := strings.TrimSpace(params.Query); q != "" {
		p := arg("%" + q + "%")
		where = append(where, fmt.Sprintf(`(
			c.full_name ILIKE %[1]s OR
			coalesce(c.primary_email,'') ILIKE %[1]s OR
			coalesce(c.primary_phone,'') ILIKE %[1]s OR
			coalesce(c.company,'') ILIKE %[1]s OR
			coalesce(c.city,'') ILIKE %[1]s OR
			coalesce(c.state,'') ILIKE %[1]s
		)`, p))
	}
	if params.State != "" {
		where = append(where, "c.state = "+arg(params.State))
	}
	if params.Tag != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM contact_tags ct
			JOIN tags t ON t.id = ct.tag_id
			WHERE ct.contact_id = c.id AND t.name = `+arg(params.Tag)+`
		)`)
	}
	if params.SourceType != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM contact_sources cs
			WHERE cs.contact_id = c.id AND cs.source_type = `+arg(params.SourceType)+`
		)`)
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	// Sort/order come from a fixed whitelist, never from raw input.
	sortSQL := "lower(c.full_name)"
	switch params.Sort {
	case "updated_at":
		sortSQL = "c.updated_at"
	case "created_at":
		sortSQL = "c.created_at"
	}
	orderSQL := "ASC"
	if strings.EqualFold(params.Order, "desc") {
		orderSQL = "DESC"
	}

	countValues := make([]any, len(values))
	copy(countValues, values)

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*)::int FROM contacts c `+whereSQL, countValues...,
	).Scan(&total); err != nil {
		return ListResult{}, err
	}

	limit := arg(params.PageSize)
	offset := arg((params.Page - 1) * params.PageSize)
	rows, err := s.pool.Query(ctx, `
		SELECT
			c.id, c.full_name, c.primary_email, c.primary_phone, c.city, c.state, c.updated_at,
			COALESCE(tg.tag_names, ARRAY[]::text[]) AS tag_names,
			COALESCE(src.source_types, ARRAY[]::text[]) AS source_types
		FROM contacts c
		LEFT JOIN LATERAL (
			SELECT array_agg(t.name ORDER BY t.name) AS tag_names
			FROM contact_tags ct
			JOIN tags t ON t.id = ct.tag_id
			WHERE ct.contact_id = c.id
		) tg ON TRUE
		LEFT JOIN LATERAL (
			SELECT array_agg(DISTINCT cs.source_type) AS source_types
			FROM contact_sources cs
			WHERE cs.contact_id = c.id
		) src ON TRUE
		`+whereSQL+`
		ORDER BY `+sortSQL+` `+orderSQL+`
		LIMIT `+limit+` OFFSET `+offset,
		values...,
	)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()

	items := make([]ListItem, 0, params.PageSize)
	for rows.Next() {
		var (
			item         ListItem
			id           pgtype.UUID
			email, phone pgtype.Text
			city, state  pgtype.Text
			updatedAt    pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &item.FullName, &email, &phone, &city, &state, &updatedAt,
			&item.TagNames, &item.SourceTypes); err != nil {
			return ListResult{}, err
		}
		item.ID = db.UUIDString(id)
		item.PrimaryEmail = db.TextValue(email)
		item.PrimaryPhone = db.TextValue(phone)
		item.City = db.TextValue(city)
		item.State = db.TextValue(state)
		item.UpdatedAt = db.TimeFromPg(updatedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}

	return ListResult{
		Data:     items,
		Page:     params.Page,
		PageSize: params.PageSize,
		Total:    total,
	}, nil
}

// ScanContact scans one contact row selected with Columns.
func ScanContact(row pgx.Row) (Contact, error) {
	var (
		c                                    Contact
		id                                   pgtype.UUID
		firstName, middleName, lastName      pgtype.Text
		suffix, primaryEmail, primaryPhone   pgtype.Text
		street, street2, city, state         pgtype.Text
		postalCode, country, company, title  pgtype.Text
		organization, website                pgtype.Text
		birthday                             pgtype.Date
		metadata                             []byte
		deletedAt, createdAt, updatedAt      pgtype.Timestamptz
	)
	err := row.Scan(
		&id, &c.FullName, &firstName, &middleName, &lastName, &suffix,
		&primaryEmail, &primaryPhone, &c.Emails, &c.Phones,
		&street, &street2, &city, &state, &postalCode, &country,
		&company, &title, &organization, &website, &birthday, &metadata,
		&deletedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return Contact{}, err
	}

	var meta Metadata
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &meta); err != nil {
			return Contact{}, fmt.Errorf("decode contact metadata: %w", err)
		}
	}

	c.ID = db.UUIDString(id)
	c.FirstName = db.TextValue(firstName)
	c.MiddleName = db.TextValue(middleName)
	c.LastName = db.TextValue(lastName)
	c.Suffix = db.TextValue(suffix)
	c.PrimaryEmail = db.TextValue(primaryEmail)
	c.PrimaryPhone = db.TextValue(primaryPhone)
	c.Street = db.TextValue(street)
	c.Street2 = db.TextValue(street2)
	c.City = db.TextValue(city)
	c.State = db.TextValue(state)
	c.PostalCode = db.TextValue(postalCode)
	c.Country = db.TextValue(country)
	c.Company = db.TextValue(company)
	c.Title = db.TextValue(title)
	c.Organization = db.TextValue(organization)
	c.Website = db.TextValue(website)
	if birthday.Valid {
		c.Birthday = birthday.Time.Format(birthdayLayout)
	}
	c.Metadata = meta.Normalize()
	c.DeletedAt = db.TimeFromPg(deletedAt)
	c.CreatedAt = db.TimeFromPg(createdAt)
	c.UpdatedAt = db.TimeFromPg(updatedAt)
	if c.Emails == nil {
		c.Emails = []string{}
	}
	if c.Phones == nil {
		c.Phones = []string{}
	}
	return c, nil
}

// NormalizeList trims entries, drops blanks, and removes duplicates while
// preserving first-seen order.
func NormalizeList(values []string) []string {
	seen := map[string]struct{}{}
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

func parseBirthday(value string) (pgtype.Date, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Date{}, nil
	}
	parsed, err := time.Parse(birthdayLayout, trimmed)
	if err != nil {
		return pgtype.Date{}, ErrInvalidBirthday
	}
	return pgtype.Date{Time: parsed, Valid: true}, nil
}

func textPtr(value *string) pgtype.Text {
	if value == nil {
		return pgtype.Text{}
	}
	return db.Text(*value)
}
