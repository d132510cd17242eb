package importer

import (
	"time"

	"github.com/rolodexhq/rolodex/internal/contacts"
)

// Batch statuses.
const (
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchFailed     = "failed"
)

// canonicalFields are the contact columns a CSV column can be mapped onto.
var canonicalFields = []string{
	"full_name", "first_name", "middle_name", "last_name", "suffix",
	"primary_email", "primary_phone",
	"street", "street2", "city", "state", "postal_code", "country",
	"company", "title", "organization", "website", "birthday",
}

// PreviewRequest carries the uploaded file for a dry-run parse. The payload
// comes either inline or base64-encoded, one of the two.
type PreviewRequest struct {
	FileName       string `json:"file_name,omitempty"`
	CSVText        string `json:"csv_text,omitempty"`
	CSVBase64      string `json:"csv_base64,omitempty"`
	VCardText      string `json:"vcard_text,omitempty"`
	VCardBase64    string `json:"vcard_base64,omitempty"`
	Delimiter      string `json:"delimiter,omitempty"`
	HasHeader      *bool  `json:"has_header,omitempty"`
	MaxPreviewRows int    `json:"max_preview_rows,omitempty"`
}

// CommitRequest imports the file for real: a mapping from canonical field to
// CSV column, per-field default values, and provenance labels.
type CommitRequest struct {
	PreviewRequest
	SourceType  string            `json:"source_type,omitempty"`
	SourceLabel string            `json:"source_label"`
	Mapping     map[string]string `json:"mapping,omitempty"`
	Defaults    map[string]string `json:"defaults,omitempty"`
	CreatedBy   string            `json:"created_by,omitempty"`
}

// ColumnProfile summarizes one CSV column over the sampled rows.
type ColumnProfile struct {
	NonEmpty int      `json:"non_empty"`
	Unique   int      `json:"unique"`
	Example  []string `json:"example"`
	MaxLen   int      `json:"max_len"`
}

// CSVPreview is the dry-run response for a CSV upload.
type CSVPreview struct {
	FileName          string                   `json:"file_name,omitempty"`
	Delimiter         string                   `json:"delimiter"`
	HasHeader         bool                     `json:"has_header"`
	Headers           []string                 `json:"headers"`
	SampleRows        []map[string]string      `json:"sample_rows"`
	ColumnProfile     map[string]ColumnProfile `json:"column_profile"`
	MappingSuggestion map[string]string        `json:"mapping_suggestion"`
	CanonicalFields   []string                 `json:"supported_canonical_fields"`
	Warnings          []string                 `json:"warnings"`
}

// VCardSample is one parsed card in a vCard preview.
type VCardSample struct {
	FullName string `json:"fn,omitempty"`
	First    string `json:"first_name,omitempty"`
	Last     string `json:"last_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"tel,omitempty"`
	Org      string `json:"org,omitempty"`
	Title    string `json:"title,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
}

// VCardPreview is the dry-run response for a vCard upload.
type VCardPreview struct {
	FileName    string        `json:"file_name,omitempty"`
	CardCount   int           `json:"card_count"`
	SampleCards []VCardSample `json:"sample_cards"`
	MappingNote string        `json:"mapping_note"`
}

// Batch is one recorded import run.
type Batch struct {
	ID             string         `json:"id"`
	SourceType     string         `json:"source_type"`
	SourceLabel    string         `json:"source_label"`
	FileName       string         `json:"file_name,omitempty"`
	Status         string         `json:"status"`
	RecordCount    int            `json:"record_count"`
	ProcessedCount int            `json:"processed_count"`
	ErrorSummary   string         `json:"error_summary,omitempty"`
	Meta           map[string]any `json:"meta"`
	CreatedBy      string         `json:"created_by,omitempty"`
	CompletedAt    time.Time      `json:"completed_at,omitzero"`
	CreatedAt      time.Time      `json:"created_at"`
}

// CommitResult reports one committed import.
type CommitResult struct {
	BatchID                     string   `json:"batch_id"`
	Status                      string   `json:"status"`
	RecordCount                 int      `json:"record_count"`
	ProcessedCount              int      `json:"processed_count"`
	CreatedContactIDs           []string `json:"created_contact_ids"`
	CreatedContactsPreviewCount int      `json:"created_contacts_preview_count"`
}

// importRow pairs one parsed input record with its normalized contact and the
// fingerprint used to deduplicate re-imports of the same batch.
type importRow struct {
	raw         any
	normalized  contacts.CreateRequest
	fingerprint string
}
