package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rolodexhq/rolodex/internal/contacts"
)

// parseCSV reads up to maxRows records (0 means unlimited). Rows may carry a
// varying number of fields; quoting follows RFC 4180 with the configured
// delimiter.
func parseCSV(text string, delimiter rune, maxRows int) ([][]string, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows := make([][]string, 0)
	for maxRows <= 0 || len(rows) < maxRows {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// toRowObjects turns the raw table into header-keyed row maps. Without a
// header row, columns are named column_1..column_n; blank header cells get the
// same positional names.
func toRowObjects(table [][]string, hasHeader bool) ([]string, []map[string]string) {
	if len(table) == 0 {
		return []string{}, []map[string]string{}
	}

	var headers []string
	start := 0
	if hasHeader {
		headers = make([]string, len(table[0]))
		for i, h := range table[0] {
			if trimmed := strings.TrimSpace(h); trimmed != "" {
				headers[i] = trimmed
			} else {
				headers[i] = fmt.Sprintf("column_%d", i+1)
			}
		}
		start = 1
	} else {
		cols := 0
		for _, row := range table {
			if len(row) > cols {
				cols = len(row)
			}
		}
		headers = make([]string, cols)
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	rows := make([]map[string]string, 0, len(table)-start)
	for _, record := range table[start:] {
		row := make(map[string]string, len(headers))
		for c, header := range headers {
			value := ""
			if c < len(record) {
				value = strings.TrimSpace(record[c])
			}
			row[header] = value
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// normalizeHeader lowercases, collapses whitespace, and strips everything but
// letters, digits, and spaces so header variants compare equal.
func normalizeHeader(header string) string {
	lower := strings.ToLower(strings.TrimSpace(header))
	lower = strings.Join(strings.Fields(lower), " ")
	var b strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// headerSynonyms drive the mapping guess; first exact match wins, then first
// substring match.
var headerSynonyms = map[string][]string{
	"full_name":     {"full name", "name", "contact name"},
	"first_name":    {"first name", "firstname", "given name", "given"},
	"last_name":     {"last name", "lastname", "surname", "family name", "family"},
	"primary_email": {"email", "email address", "e-mail", "e mail", "primary email"},
	"primary_phone": {"phone", "phone number", "mobile", "cell", "cell phone", "mobile phone"},
	"street":        {"address", "street", "street address", "address 1", "address1"},
	"street2":       {"address 2", "address2", "apt", "unit", "suite"},
	"city":          {"city", "town"},
	"state":         {"state", "province", "region"},
	"postal_code":   {"zip", "zipcode", "postal", "postal code"},
	"country":       {"country"},
	"company":       {"company", "employer", "business"},
	"title":         {"title", "job title"},
	"organization":  {"organization", "org"},
	"website":       {"website", "url"},
	"birthday":      {"birthday", "birthdate", "dob"},
	"middle_name":   {"middle name", "middlename"},
	"suffix":        {"suffix"},
}

// guessMapping proposes a canonical-field-to-header mapping from header names
// alone. Unmatched fields map to the empty string.
func guessMapping(headers []string) map[string]string {
	type normalized struct{ raw, norm string }
	norm := make([]normalized, len(headers))
	for i, h := range headers {
		norm[i] = normalized{raw: h, norm: normalizeHeader(h)}
	}

	pick := func(candidates []string) string {
		for _, cand := range candidates {
			n := normalizeHeader(cand)
			for _, h := range norm {
				if h.norm == n {
					return h.raw
				}
			}
			for _, h := range norm {
				if strings.Contains(h.norm, n) {
					return h.raw
				}
			}
		}
		return ""
	}

	mapping := make(map[string]string, len(canonicalFields))
	for _, field := range canonicalFields {
		mapping[field] = pick(headerSynonyms[field])
	}
	return mapping
}

// profileColumns summarizes each column over the sampled rows.
func profileColumns(rows []map[string]string, headers []string) map[string]ColumnProfile {
	profile := make(map[string]ColumnProfile, len(headers))
	for _, header := range headers {
		values := make([]string, 0, len(rows))
		seen := map[string]struct{}{}
		maxLen := 0
		for _, row := range rows {
			value := strings.TrimSpace(row[header])
			if value == "" {
				continue
			}
			values = append(values, value)
			seen[value] = struct{}{}
			if len(value) > maxLen {
				maxLen = len(value)
			}
		}
		example := values
		if len(example) > 3 {
			example = example[:3]
		}
		profile[header] = ColumnProfile{
			NonEmpty: len(values),
			Unique:   len(seen),
			Example:  example,
			MaxLen:   maxLen,
		}
	}
	return profile
}

// contactFromRow maps one CSV row through the column mapping, falling back to
// per-field defaults. Unmapped non-empty cells land in metadata custom_fields.
func contactFromRow(row map[string]string, mapping, defaults map[string]string) contacts.CreateRequest {
	get := func(field string) string {
		if col := mapping[field]; col != "" {
			if value := strings.TrimSpace(row[col]); value != "" {
				return value
			}
		}
		return defaults[field]
	}

	fullName := get("full_name")
	first := get("first_name")
	last := get("last_name")
	if fullName == "" {
		fullName = strings.TrimSpace(first + " " + last)
	}
	if fullName == "" {
		fullName = "(unknown)"
	}

	mapped := make(map[string]struct{}, len(mapping))
	for _, col := range mapping {
		if col != "" {
			mapped[col] = struct{}{}
		}
	}
	customFields := map[string]any{}
	for col, value := range row {
		if _, ok := mapped[col]; ok || value == "" {
			continue
		}
		customFields[col] = value
	}

	email := get("primary_email")
	phone := get("primary_phone")
	req := contacts.CreateRequest{
		FullName:     fullName,
		FirstName:    first,
		MiddleName:   get("middle_name"),
		LastName:     last,
		Suffix:       get("suffix"),
		PrimaryEmail: email,
		PrimaryPhone: phone,
		Street:       get("street"),
		Street2:      get("street2"),
		City:         get("city"),
		State:        get("state"),
		PostalCode:   get("postal_code"),
		Country:      get("country"),
		Company:      get("company"),
		Title:        get("title"),
		Organization: get("organization"),
		Website:      get("website"),
		Birthday:     get("birthday"),
		Metadata:     &contacts.Metadata{CustomFields: customFields},
	}
	if email != "" {
		req.Emails = []string{email}
	}
	if phone != "" {
		req.Phones = []string{phone}
	}
	return req
}
