package tags

import "time"

// Tag is a shared label assignable to contacts.
type Tag struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UpsertRequest creates or updates a tag by name.
type UpsertRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// AssignRequest attaches a set of tags to one contact.
type AssignRequest struct {
	TagIDs        []string `json:"tag_ids"`
	AssignedBy    string   `json:"assigned_by,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	ImportBatchID string   `json:"import_batch_id,omitempty"`
}
