package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVCards = "BEGIN:VCARD\r\n" +
	"VERSION:3.0\r\n" +
	"FN:Alice Smith\r\n" +
	"N:Smith;Alice;Jane;;Jr.\r\n" +
	"EMAIL;TYPE=WORK:alice@example.com\r\n" +
	"EMAIL:a.smith@home.net\r\n" +
	"TEL;TYPE=CELL:+1 555 0100\r\n" +
	"ORG:Acme Corp\r\n" +
	"TITLE:Engineer\r\n" +
	"URL:https://alice.example.com\r\n" +
	"BDAY:1990-06-15\r\n" +
	"ADR:;;100 Main St;Portland;OR;97201;USA\r\n" +
	"NOTE:Met at the conference\r\n" +
	" , follow up in June\r\n" +
	"END:VCARD\r\n" +
	"BEGIN:VCARD\r\n" +
	"VERSION:3.0\r\n" +
	"FN:Bob\r\n" +
	"END:VCARD\r\n"

func TestParseVCards(t *testing.T) {
	cards, err := parseVCards(sampleVCards)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	alice := cards[0]
	assert.Equal(t, "Alice Smith", alice.FullName)
	assert.Equal(t, "Alice", alice.First)
	assert.Equal(t, "Jane", alice.Middle)
	assert.Equal(t, "Smith", alice.Last)
	assert.Equal(t, "Jr.", alice.Suffix)
	assert.Equal(t, []string{"alice@example.com", "a.smith@home.net"}, alice.Emails)
	assert.Equal(t, []string{"+1 555 0100"}, alice.Phones)
	assert.Equal(t, "Acme Corp", alice.Org)
	assert.Equal(t, "Engineer", alice.Title)
	assert.Equal(t, "1990-06-15", alice.Birthday)
	assert.Equal(t, "100 Main St", alice.Street)
	assert.Equal(t, "Portland", alice.City)
	assert.Equal(t, "OR", alice.Region)
	assert.Equal(t, "97201", alice.Postal)
	assert.Equal(t, "USA", alice.Country)
	assert.Contains(t, alice.Note, "follow up in June", "folded lines are unfolded")

	bob := cards[1]
	assert.Equal(t, "Bob", bob.FullName)
	assert.Empty(t, bob.Emails)
	assert.Empty(t, bob.Phones)
}

func TestContactFromCard(t *testing.T) {
	card := cardData{
		First:  "Alice",
		Last:   "Smith",
		Emails: []string{"alice@example.com", "a.smith@home.net"},
		Phones: []string{"+1 555 0100"},
		Org:    "Acme Corp",
		City:   "Portland",
		Region: "OR",
		Note:   "important",
	}
	req := contactFromCard(card, map[string]string{"country": "USA"})

	assert.Equal(t, "Alice Smith", req.FullName, "missing FN falls back to first+last")
	assert.Equal(t, "alice@example.com", req.PrimaryEmail, "first email becomes primary")
	assert.Equal(t, "+1 555 0100", req.PrimaryPhone)
	assert.Equal(t, "OR", req.State, "ADR region maps to state")
	assert.Equal(t, "Acme Corp", req.Company)
	assert.Equal(t, "Acme Corp", req.Organization)
	assert.Equal(t, "USA", req.Country, "default country applies when ADR has none")
	assert.Equal(t, map[string]any{"note": "important"}, req.Metadata.CustomFields)
}

func TestContactFromCardUnknownName(t *testing.T) {
	req := contactFromCard(cardData{Phones: []string{"+1 555 0101"}}, nil)
	assert.Equal(t, "(unknown)", req.FullName)
	assert.Equal(t, "+1 555 0101", req.PrimaryPhone)
}
