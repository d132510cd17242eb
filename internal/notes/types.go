package notes

import "time"

// Note is a dated annotation attached to a contact.
type Note struct {
	ID            string    `json:"id"`
	ContactID     string    `json:"contact_id"`
	ImportBatchID string    `json:"import_batch_id,omitempty"`
	NoteType      string    `json:"note_type"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateRequest is the input for creating a note.
type CreateRequest struct {
	NoteType      string `json:"note_type,omitempty"`
	Body          string `json:"body"`
	ImportBatchID string `json:"import_batch_id,omitempty"`
}
