package contacts

import "time"

// Contact is the canonical identity record.
type Contact struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	FirstName    string    `json:"first_name,omitempty"`
	MiddleName   string    `json:"middle_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Suffix       string    `json:"suffix,omitempty"`
	PrimaryEmail string    `json:"primary_email,omitempty"`
	PrimaryPhone string    `json:"primary_phone,omitempty"`
	Emails       []string  `json:"emails"`
	Phones       []string  `json:"phones"`
	Street       string    `json:"street,omitempty"`
	Street2      string    `json:"street2,omitempty"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	PostalCode   string    `json:"postal_code,omitempty"`
	Country      string    `json:"country,omitempty"`
	Company      string    `json:"company,omitempty"`
	Title        string    `json:"title,omitempty"`
	Organization string    `json:"organization,omitempty"`
	Website      string    `json:"website,omitempty"`
	Birthday     string    `json:"birthday,omitempty"`
	Metadata     Metadata  `json:"metadata"`
	DeletedAt    time.Time `json:"deleted_at,omitzero"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Metadata is the structured metadata blob stored on every contact.
// All five sub-keys are always materialized; see Normalize.
type Metadata struct {
	AltNames     []string          `json:"alt_names"`
	Nicknames    []string          `json:"nicknames"`
	Socials      map[string]string `json:"socials"`
	CustomFields map[string]any    `json:"custom_fields"`
	Flags        Flags             `json:"flags"`
}

// Flags holds the review/contact-policy booleans inside Metadata.
type Flags struct {
	NeedsReview  bool `json:"needs_review"`
	DoNotContact bool `json:"do_not_contact"`
}

// Normalize fills missing sub-key containers so the stored blob always
// carries alt_names, nicknames, socials, custom_fields, and flags.
func (m Metadata) Normalize() Metadata {
	if m.AltNames == nil {
		m.AltNames = []string{}
	}
	if m.Nicknames == nil {
		m.Nicknames = []string{}
	}
	if m.Socials == nil {
		m.Socials = map[string]string{}
	}
	if m.CustomFields == nil {
		m.CustomFields = map[string]any{}
	}
	return m
}

// CreateRequest is the input for creating a contact.
type CreateRequest struct {
	FullName     string    `json:"full_name"`
	FirstName    string    `json:"first_name,omitempty"`
	MiddleName   string    `json:"middle_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Suffix       string    `json:"suffix,omitempty"`
	PrimaryEmail string    `json:"primary_email,omitempty"`
	PrimaryPhone string    `json:"primary_phone,omitempty"`
	Emails       []string  `json:"emails,omitempty"`
	Phones       []string  `json:"phones,omitempty"`
	Street       string    `json:"street,omitempty"`
	Street2      string    `json:"street2,omitempty"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	PostalCode   string    `json:"postal_code,omitempty"`
	Country      string    `json:"country,omitempty"`
	Company      string    `json:"company,omitempty"`
	Title        string    `json:"title,omitempty"`
	Organization string    `json:"organization,omitempty"`
	Website      string    `json:"website,omitempty"`
	Birthday     string    `json:"birthday,omitempty"`
	Metadata     *Metadata `json:"metadata,omitempty"`
}

// UpdateRequest is the input for a partial contact update.
// Nil fields are left unchanged.
type UpdateRequest struct {
	FullName     *string   `json:"full_name,omitempty"`
	FirstName    *string   `json:"first_name,omitempty"`
	MiddleName   *string   `json:"middle_name,omitempty"`
	LastName     *string   `json:"last_name,omitempty"`
	Suffix       *string   `json:"suffix,omitempty"`
	PrimaryEmail *string   `json:"primary_email,omitempty"`
	PrimaryPhone *string   `json:"primary_phone,omitempty"`
	Emails       *[]string `json:"emails,omitempty"`
	Phones       *[]string `json:"phones,omitempty"`
	Street       *string   `json:"street,omitempty"`
	Street2      *string   `json:"street2,omitempty"`
	City         *string   `json:"city,omitempty"`
	State        *string   `json:"state,omitempty"`
	PostalCode   *string   `json:"postal_code,omitempty"`
	Country      *string   `json:"country,omitempty"`
	Company      *string   `json:"company,omitempty"`
	Title        *string   `json:"title,omitempty"`
	Organization *string   `json:"organization,omitempty"`
	Website      *string   `json:"website,omitempty"`
	Birthday     *string   `json:"birthday,omitempty"`
	Metadata     *Metadata `json:"metadata,omitempty"`
}

// ListParams filter and page the contact list.
type ListParams struct {
	Query      string
	Tag        string
	SourceType string
	State      string
	Sort       string
	Order      string
	Page       int
	PageSize   int
}

// ListItem is the compact row returned by List.
type ListItem struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	PrimaryEmail string    `json:"primary_email,omitempty"`
	PrimaryPhone string    `json:"primary_phone,omitempty"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	TagNames     []string  `json:"tag_names"`
	SourceTypes  []string  `json:"source_types"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListResult is a page of contacts plus paging info.
type ListResult struct {
	Data     []ListItem `json:"data"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Total    int        `json:"total"`
}
