package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rolodexhq/rolodex/internal/contacts"
)

func TestComputeMergedRecordUnionsListsAndKeepsSurvivorScalars(t *testing.T) {
	survivor := contacts.Contact{
		ID:           "survivor",
		FullName:     "Alice Smith",
		FirstName:    "Alice",
		PrimaryEmail: "alice@example.com",
		Emails:       []string{"alice@example.com", "a.smith@work.com"},
		Phones:       []string{"+1 555 0100"},
		City:         "Portland",
	}
	merged := contacts.Contact{
		ID:           "merged",
		FullName:     "A. Smith",
		LastName:     "Smith",
		PrimaryEmail: "asmith@old.com",
		PrimaryPhone: "+1 555 0111",
		Emails:       []string{"a.smith@work.com", "asmith@old.com"},
		Phones:       []string{"+1 555 0111"},
		Company:      "Acme",
	}

	out := computeMergedRecord(survivor, merged)

	assert.Equal(t, []string{"alice@example.com", "a.smith@work.com", "asmith@old.com"}, out.Emails,
		"emails must be the de-duplicated union, survivor's order first")
	assert.Equal(t, []string{"+1 555 0100", "+1 555 0111"}, out.Phones)

	assert.Equal(t, "Alice Smith", out.FullName, "survivor scalar wins when set")
	assert.Equal(t, "alice@example.com", out.PrimaryEmail)
	assert.Equal(t, "Portland", out.City)

	assert.Equal(t, "Smith", out.LastName, "merged value fills a blank survivor field")
	assert.Equal(t, "Acme", out.Company)
	assert.Equal(t, "+1 555 0100", out.PrimaryPhone, "survivor's primary phone wins over merged's")
}

func TestComputeMergedRecordPrimaryFallsBackToUnion(t *testing.T) {
	survivor := contacts.Contact{FullName: "X", Emails: []string{"only@example.com"}}
	merged := contacts.Contact{FullName: "Y"}

	out := computeMergedRecord(survivor, merged)
	assert.Equal(t, "only@example.com", out.PrimaryEmail)
	assert.Equal(t, "", out.PrimaryPhone)
}

func TestComputeMergedRecordCustomFields(t *testing.T) {
	survivor := contacts.Contact{
		FullName: "Alice Smith",
		Metadata: contacts.Metadata{
			CustomFields: map[string]any{
				"crm_id":   "s-1",
				"referrer": "",
				"score":    nil,
			},
		},
	}
	merged := contacts.Contact{
		FullName: "A. Smith",
		Metadata: contacts.Metadata{
			CustomFields: map[string]any{
				"crm_id":   "m-9",
				"referrer": "newsletter",
				"score":    42,
				"region":   "west",
			},
		},
	}

	out := computeMergedRecord(survivor, merged)

	fields := out.Metadata.CustomFields
	assert.Equal(t, "s-1", fields["crm_id"], "survivor key wins on conflict")
	assert.Equal(t, "newsletter", fields["referrer"], "empty string counts as absent")
	assert.Equal(t, 42, fields["score"], "nil counts as absent")
	assert.Equal(t, "west", fields["region"], "merged-only keys carry over")
}

func TestComputeMergedRecordMetadataSubKeysStayWithSurvivor(t *testing.T) {
	survivor := contacts.Contact{
		FullName: "Alice Smith",
		Metadata: contacts.Metadata{Nicknames: []string{"Ally"}},
	}
	merged := contacts.Contact{
		FullName: "A. Smith",
		Metadata: contacts.Metadata{
			AltNames:  []string{"Alicia Smith"},
			Nicknames: []string{"Al"},
			Socials:   map[string]string{"x": "@asmith"},
		},
	}

	out := computeMergedRecord(survivor, merged)

	assert.Equal(t, []string{"Ally"}, out.Metadata.Nicknames)
	assert.Empty(t, out.Metadata.AltNames, "only custom_fields are merged across contacts")
	assert.Empty(t, out.Metadata.Socials)
}

func TestMergeCustomFields(t *testing.T) {
	out := mergeCustomFields(nil, map[string]any{"k": "v"})
	assert.Equal(t, map[string]any{"k": "v"}, out)

	out = mergeCustomFields(map[string]any{"k": "a"}, nil)
	assert.Equal(t, map[string]any{"k": "a"}, out)

	out = mergeCustomFields(map[string]any{"k": 0}, map[string]any{"k": 1})
	assert.Equal(t, 0, out["k"], "zero is a real value, not absence")
}

func TestPickPrimary(t *testing.T) {
	assert.Equal(t, "s", pickPrimary("s", "m", []string{"u"}))
	assert.Equal(t, "m", pickPrimary("", "m", []string{"u"}))
	assert.Equal(t, "u", pickPrimary("", "", []string{"u"}))
	assert.Equal(t, "", pickPrimary("", "", nil))
}
