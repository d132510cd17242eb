package dedupe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5/pgxpool"
)

// detectEmailMatches groups active contacts by normalized email (primary plus
// the email list, trimmed and lowercased) and emits every i<j pair within a
// group. The limit bounds the number of candidate groups, not pairs.
func detectEmailMatches(ctx context.Context, pool *pgxpool.Pool, limit int) ([]Candidate, error) {
	rows, err := pool.Query(ctx, `
		WITH expanded AS (
			SELECT id AS contact_id,
			       unnest(array_append(COALESCE(emails, '{}'), primary_email)) AS email
			FROM contacts
			WHERE deleted_at IS NULL
		),
		grouped AS (
			SELECT lower(trim(email)) AS email_norm,
			       array_agg(DISTINCT contact_id::text) AS ids
			FROM expanded
			WHERE email IS NOT NULL AND trim(email) <> ''
			GROUP BY lower(trim(email))
			HAVING count(DISTINCT contact_id) > 1
			LIMIT $1
		)
		SELECT email_norm, ids FROM grouped`, limit)
	if err != nil {
		return nil, fmt.Errorf("email detection query: %w", err)
	}
	defer rows.Close()

	candidates := make([]Candidate, 0)
	for rows.Next() {
		var (
			norm string
			ids  []string
		)
		if err := rows.Scan(&norm, &ids); err != nil {
			return nil, err
		}
		candidates = append(candidates, pairCombinations(ids, Candidate{
			MatchType: MatchTypeEmail,
			Score:     scoreEmail,
			Reason:    fmt.Sprintf("Exact email match: %s", norm),
			Evidence:  map[string]any{"email": norm},
		})...)
	}
	return candidates, rows.Err()
}

// detectPhoneMatches is the phone analog of detectEmailMatches; numbers are
// normalized by stripping every non-digit character.
func detectPhoneMatches(ctx context.Context, pool *pgxpool.Pool, limit int) ([]Candidate, error) {
	rows, err := pool.Query(ctx, `
		WITH expanded AS (
			SELECT id AS contact_id,
			       unnest(array_append(COALESCE(phones, '{}'), primary_phone)) AS phone
			FROM contacts
			WHERE deleted_at IS NULL
		),
		grouped AS (
			SELECT regexp_replace(phone, '\D', '', 'g') AS phone_norm,
			       array_agg(DISTINCT contact_id::text) AS ids
			FROM expanded
			WHERE phone IS NOT NULL AND regexp_replace(phone, '\D', '', 'g') <> ''
			GROUP BY regexp_replace(phone, '\D', '', 'g')
			HAVING count(DISTINCT contact_id) > 1
			LIMIT $1
		)
		SELECT phone_norm, ids FROM grouped`, limit)
	if err != nil {
		return nil, fmt.Errorf("phone detection query: %w", err)
	}
	defer rows.Close()

	candidates := make([]Candidate, 0)
	for rows.Next() {
		var (
			norm string
			ids  []string
		)
		if err := rows.Scan(&norm, &ids); err != nil {
			return nil, err
		}
		candidates = append(candidates, pairCombinations(ids, Candidate{
			MatchType: MatchTypePhone,
			Score:     scorePhone,
			Reason:    fmt.Sprintf("Exact phone match: %s", norm),
			Evidence:  map[string]any{"phone": norm},
		})...)
	}
	return candidates, rows.Err()
}

// namePair is one self-join row from the name+geography query.
type namePair struct {
	aID, bID       string
	aFirst, bFirst string
	aLast, bLast   string
	aCity, bCity   string
	aState, bState string
}

// detectNameMatches self-joins active contacts on equal lowercased last name
// where city (case-insensitive) or state (exact) also matches, bounded by
// limit pairs. Pairs whose first initials differ are filtered out here, not
// persisted.
func detectNameMatches(ctx context.Context, pool *pgxpool.Pool, limit int) ([]Candidate, error) {
	rows, err := pool.Query(ctx, `
		SELECT a.id::text, b.id::text,
		       COALESCE(a.first_name, ''), COALESCE(b.first_name, ''),
		       COALESCE(a.last_name, ''), COALESCE(b.last_name, ''),
		       COALESCE(a.city, ''), COALESCE(b.city, ''),
		       COALESCE(a.state, ''), COALESCE(b.state, '')
		FROM contacts a
		JOIN contacts b
		  ON a.id < b.id
		 AND a.last_name IS NOT NULL
		 AND b.last_name IS NOT NULL
		 AND lower(a.last_name) = lower(b.last_name)
		 AND (
		      (a.city IS NOT NULL AND b.city IS NOT NULL AND lower(a.city) = lower(b.city))
		   OR (a.state IS NOT NULL AND b.state IS NOT NULL AND a.state = b.state)
		 )
		WHERE a.deleted_at IS NULL AND b.deleted_at IS NULL
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("name detection query: %w", err)
	}
	defer rows.Close()

	candidates := make([]Candidate, 0)
	for rows.Next() {
		var p namePair
		if err := rows.Scan(&p.aID, &p.bID,
			&p.aFirst, &p.bFirst, &p.aLast, &p.bLast,
			&p.aCity, &p.bCity, &p.aState, &p.bState); err != nil {
			return nil, err
		}
		if candidate, ok := nameCandidate(p); ok {
			candidates = append(candidates, candidate)
		}
	}
	return candidates, rows.Err()
}

// nameCandidate applies the first-initial filter and builds the candidate.
func nameCandidate(p namePair) (Candidate, bool) {
	aFirst := strings.TrimSpace(p.aFirst)
	bFirst := strings.TrimSpace(p.bFirst)
	if aFirst == "" || bFirst == "" {
		return Candidate{}, false
	}
	aInitial := []rune(aFirst)[0]
	bInitial := []rune(bFirst)[0]
	if unicode.ToLower(aInitial) != unicode.ToLower(bInitial) {
		return Candidate{}, false
	}
	return Candidate{
		ContactID:                  p.aID,
		PossibleDuplicateContactID: p.bID,
		MatchType:                  MatchTypeNameCity,
		Score:                      scoreNameCity,
		Reason: fmt.Sprintf("Same last name and location; first initial match (%c).",
			unicode.ToUpper(aInitial)),
		Evidence: map[string]any{
			"a": map[string]any{"first_name": aFirst, "last_name": p.aLast, "city": p.aCity, "state": p.aState},
			"b": map[string]any{"first_name": bFirst, "last_name": p.bLast, "city": p.bCity, "state": p.bState},
		},
	}, true
}

// pairCombinations emits every i<j pair from ids (sorted for a stable
// ordering, so a group of n contacts yields exactly C(n,2) candidates).
func pairCombinations(ids []string, template Candidate) []Candidate {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	pairs := make([]Candidate, 0, len(sorted)*(len(sorted)-1)/2)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			candidate := template
			candidate.ContactID = sorted[i]
			candidate.PossibleDuplicateContactID = sorted[j]
			pairs = append(pairs, candidate)
		}
	}
	return pairs
}
