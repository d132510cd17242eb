package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-vcard"

	"github.com/rolodexhq/rolodex/internal/contacts"
)

// cardData is the subset of a parsed vCard this importer maps onto a contact.
// It doubles as the stored raw payload and the fingerprint input.
type cardData struct {
	FullName string   `json:"fn,omitempty"`
	First    string   `json:"first_name,omitempty"`
	Middle   string   `json:"middle_name,omitempty"`
	Last     string   `json:"last_name,omitempty"`
	Suffix   string   `json:"suffix,omitempty"`
	Emails   []string `json:"emails"`
	Phones   []string `json:"tels"`
	Org      string   `json:"org,omitempty"`
	Title    string   `json:"title,omitempty"`
	URL      string   `json:"url,omitempty"`
	Birthday string   `json:"bday,omitempty"`
	Street   string   `json:"street,omitempty"`
	City     string   `json:"city,omitempty"`
	Region   string   `json:"region,omitempty"`
	Postal   string   `json:"postal,omitempty"`
	Country  string   `json:"country,omitempty"`
	Note     string   `json:"note,omitempty"`
}

// parseVCards decodes every card in the input stream.
func parseVCards(text string) ([]cardData, error) {
	decoder := vcard.NewDecoder(strings.NewReader(text))
	cards := make([]cardData, 0)
	for {
		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse vcard: %w", err)
		}
		cards = append(cards, extractCard(card))
	}
	return cards, nil
}

func extractCard(card vcard.Card) cardData {
	data := cardData{
		FullName: strings.TrimSpace(card.PreferredValue(vcard.FieldFormattedName)),
		Org:      strings.TrimSpace(card.PreferredValue(vcard.FieldOrganization)),
		Title:    strings.TrimSpace(card.PreferredValue(vcard.FieldTitle)),
		URL:      strings.TrimSpace(card.PreferredValue(vcard.FieldURL)),
		Birthday: strings.TrimSpace(card.PreferredValue(vcard.FieldBirthday)),
		Note:     strings.TrimSpace(card.PreferredValue(vcard.FieldNote)),
		Emails:   []string{},
		Phones:   []string{},
	}
	if name := card.Name(); name != nil {
		data.First = strings.TrimSpace(name.GivenName)
		data.Middle = strings.TrimSpace(name.AdditionalName)
		data.Last = strings.TrimSpace(name.FamilyName)
		data.Suffix = strings.TrimSpace(name.HonorificSuffix)
	}
	for _, email := range card.Values(vcard.FieldEmail) {
		if trimmed := strings.TrimSpace(email); trimmed != "" {
			data.Emails = append(data.Emails, trimmed)
		}
	}
	for _, tel := range card.Values(vcard.FieldTelephone) {
		if trimmed := strings.TrimSpace(tel); trimmed != "" {
			data.Phones = append(data.Phones, trimmed)
		}
	}
	if addr := card.Address(); addr != nil {
		data.Street = strings.TrimSpace(addr.StreetAddress)
		data.City = strings.TrimSpace(addr.Locality)
		data.Region = strings.TrimSpace(addr.Region)
		data.Postal = strings.TrimSpace(addr.PostalCode)
		data.Country = strings.TrimSpace(addr.Country)
	}
	return data
}

// contactFromCard maps a parsed card onto a contact. NOTE text is kept in
// metadata custom_fields.
func contactFromCard(card cardData, defaults map[string]string) contacts.CreateRequest {
	fullName := card.FullName
	if fullName == "" {
		fullName = strings.TrimSpace(card.First + " " + card.Last)
	}
	if fullName == "" {
		fullName = "(unknown)"
	}

	country := card.Country
	if country == "" {
		country = defaults["country"]
	}

	customFields := map[string]any{}
	if card.Note != "" {
		customFields["note"] = card.Note
	}

	req := contacts.CreateRequest{
		FullName:     fullName,
		FirstName:    card.First,
		MiddleName:   card.Middle,
		LastName:     card.Last,
		Suffix:       card.Suffix,
		Emails:       card.Emails,
		Phones:       card.Phones,
		Street:       card.Street,
		City:         card.City,
		State:        card.Region,
		PostalCode:   card.Postal,
		Country:      country,
		Company:      card.Org,
		Title:        card.Title,
		Organization: card.Org,
		Website:      card.URL,
		Birthday:     card.Birthday,
		Metadata:     &contacts.Metadata{CustomFields: customFields},
	}
	if len(card.Emails) > 0 {
		req.PrimaryEmail = card.Emails[0]
	}
	if len(card.Phones) > 0 {
		req.PrimaryPhone = card.Phones[0]
	}
	return req
}
