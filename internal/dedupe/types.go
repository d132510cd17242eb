package dedupe

import "time"

// Match types emitted by the detectors.
const (
	MatchTypeEmail    = "email"
	MatchTypePhone    = "phone"
	MatchTypeNameCity = "name_city"
)

// Suggestion statuses.
const (
	StatusOpen     = "open"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Detection scores per match type.
const (
	scoreEmail    = 0.98
	scorePhone    = 0.97
	scoreNameCity = 0.70
)

// suggestedBy identifies the detection engine on persisted suggestions.
const suggestedBy = "dedupe_v1"

// Candidate is one detector-emitted duplicate pair, not yet persisted.
type Candidate struct {
	ContactID                  string
	PossibleDuplicateContactID string
	MatchType                  string
	Score                      float64
	Reason                     string
	Evidence                   map[string]any
}

// Suggestion is a persisted, scored claim that two contacts are the same person.
type Suggestion struct {
	ID                         string         `json:"id"`
	ContactID                  string         `json:"contact_id"`
	PossibleDuplicateContactID string         `json:"possible_duplicate_contact_id"`
	MatchType                  string         `json:"match_type"`
	Score                      float64        `json:"score"`
	Reason                     string         `json:"reason"`
	Evidence                   map[string]any `json:"evidence"`
	Status                     string         `json:"status"`
	SuggestedBy                string         `json:"suggested_by"`
	ResolvedAt                 time.Time      `json:"resolved_at,omitzero"`
	ResolvedBy                 string         `json:"resolved_by,omitempty"`
	CreatedAt                  time.Time      `json:"created_at"`
	UpdatedAt                  time.Time      `json:"updated_at"`
}

// MergeRecord is one immutable merge audit row.
type MergeRecord struct {
	ID                string         `json:"id"`
	SurvivorContactID string         `json:"survivor_contact_id"`
	MergedContactID   string         `json:"merged_contact_id"`
	MergedBy          string         `json:"merged_by"`
	MergeReason       string         `json:"merge_reason"`
	MergePayload      map[string]any `json:"merge_payload"`
	CreatedAt         time.Time      `json:"created_at"`
}

// RunResult reports one detection run.
type RunResult struct {
	Ran                bool `json:"ran"`
	CreatedSuggestions int  `json:"created_suggestions"`
}

// MergeResult reports one completed merge.
type MergeResult struct {
	Merged            bool   `json:"merged"`
	SurvivorContactID string `json:"survivor_contact_id"`
	MergedContactID   string `json:"merged_contact_id"`
}

// MergeRequest is the input for merging two contacts.
type MergeRequest struct {
	SurvivorContactID string `json:"survivor_contact_id"`
	MergedContactID   string `json:"merged_contact_id"`
	SuggestionID      string `json:"suggestion_id,omitempty"`
	MergedBy          string `json:"merged_by,omitempty"`
}
