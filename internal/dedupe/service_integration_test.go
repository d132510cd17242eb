package dedupe_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolodexhq/rolodex/internal/contacts"
	"github.com/rolodexhq/rolodex/internal/dedupe"
	"github.com/rolodexhq/rolodex/internal/notes"
	"github.com/rolodexhq/rolodex/internal/tags"
)

type dedupeFixture struct {
	pool     *pgxpool.Pool
	contacts *contacts.Service
	tags     *tags.Service
	notes    *notes.Service
	dedupe   *dedupe.Service

	createdIDs []string
}

func setupDedupeIntegrationTest(t *testing.T) (*dedupeFixture, func()) {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skip integration test: database ping failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := &dedupeFixture{
		pool:     pool,
		contacts: contacts.NewService(logger, pool),
		tags:     tags.NewService(logger, pool),
		notes:    notes.NewService(logger, pool),
		dedupe:   dedupe.NewService(logger, pool),
	}
	cleanup := func() {
		for _, id := range f.createdIDs {
			_, _ = pool.Exec(ctx, `DELETE FROM merge_history WHERE survivor_contact_id = $1::uuid OR merged_contact_id = $1::uuid`, id)
			_, _ = pool.Exec(ctx, `DELETE FROM duplicate_suggestions WHERE contact_id = $1::uuid OR possible_duplicate_contact_id = $1::uuid`, id)
			_, _ = pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1::uuid`, id)
		}
		pool.Close()
	}
	return f, cleanup
}

func (f *dedupeFixture) createContact(t *testing.T, req contacts.CreateRequest) contacts.Contact {
	t.Helper()
	contact, err := f.contacts.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create contact failed: %v", err)
	}
	f.createdIDs = append(f.createdIDs, contact.ID)
	return contact
}

// suggestionBetween returns the suggestion pairing the two ids with the given
// match type, regardless of pair direction.
func suggestionBetween(suggestions []dedupe.Suggestion, idA, idB, matchType string) (dedupe.Suggestion, bool) {
	for _, s := range suggestions {
		if s.MatchType != matchType {
			continue
		}
		if (s.ContactID == idA && s.PossibleDuplicateContactID == idB) ||
			(s.ContactID == idB && s.PossibleDuplicateContactID == idA) {
			return s, true
		}
	}
	return dedupe.Suggestion{}, false
}

func TestIntegrationRunIsIdempotent(t *testing.T) {
	f, cleanup := setupDedupeIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	email := fmt.Sprintf("dup_%d@example.com", time.Now().UnixNano())
	a := f.createContact(t, contacts.CreateRequest{FullName: "Pat Doe", PrimaryEmail: email})
	b := f.createContact(t, contacts.CreateRequest{FullName: "Patricia Doe", Emails: []string{"  " + email + "  "}})

	if _, err := f.dedupe.Run(ctx, 500); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first, err := f.dedupe.ListForContact(ctx, a.ID)
	if err != nil {
		t.Fatalf("list suggestions failed: %v", err)
	}
	suggestion, ok := suggestionBetween(first, a.ID, b.ID, dedupe.MatchTypeEmail)
	if !ok {
		t.Fatalf("expected an email suggestion between %s and %s", a.ID, b.ID)
	}
	if suggestion.Score != 0.98 {
		t.Fatalf("expected email score 0.98, got %v", suggestion.Score)
	}
	if suggestion.Status != dedupe.StatusOpen {
		t.Fatalf("expected open status, got %s", suggestion.Status)
	}

	if _, err := f.dedupe.Run(ctx, 500); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	second, err := f.dedupe.ListForContact(ctx, a.ID)
	if err != nil {
		t.Fatalf("list suggestions after rerun failed: %v", err)
	}
	count := 0
	for _, s := range second {
		if s.MatchType == dedupe.MatchTypeEmail &&
			((s.ContactID == a.ID && s.PossibleDuplicateContactID == b.ID) ||
				(s.ContactID == b.ID && s.PossibleDuplicateContactID == a.ID)) {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one email suggestion for the pair after rerun, got %d", count)
	}
}

func TestIntegrationResolutionSurvivesRerun(t *testing.T) {
	f, cleanup := setupDedupeIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	phone := fmt.Sprintf("+1 (555) %07d", time.Now().UnixNano()%10000000)
	a := f.createContact(t, contacts.CreateRequest{FullName: "Sam Reyes", PrimaryPhone: phone})
	b := f.createContact(t, contacts.CreateRequest{FullName: "Samuel Reyes", Phones: []string{phone}})

	if _, err := f.dedupe.Run(ctx, 500); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	listed, err := f.dedupe.ListForContact(ctx, a.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	suggestion, ok := suggestionBetween(listed, a.ID, b.ID, dedupe.MatchTypePhone)
	if !ok {
		t.Fatal("expected a phone suggestion")
	}

	rejected, err := f.dedupe.Resolve(ctx, suggestion.ID, dedupe.StatusRejected, "tester")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if rejected.Status != dedupe.StatusRejected {
		t.Fatalf("expected rejected status, got %s", rejected.Status)
	}
	if rejected.ResolvedBy != "tester" {
		t.Fatalf("expected resolved_by tester, got %s", rejected.ResolvedBy)
	}

	if _, err := f.dedupe.Run(ctx, 500); err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	after, err := f.dedupe.ListForContact(ctx, a.ID)
	if err != nil {
		t.Fatalf("list after rerun failed: %v", err)
	}
	suggestion, ok = suggestionBetween(after, a.ID, b.ID, dedupe.MatchTypePhone)
	if !ok {
		t.Fatal("suggestion disappeared after rerun")
	}
	if suggestion.Status != dedupe.StatusRejected {
		t.Fatalf("rerun reopened a resolved suggestion: status %s", suggestion.Status)
	}
}

func TestIntegrationMergeMovesEverything(t *testing.T) {
	f, cleanup := setupDedupeIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	nonce := time.Now().UnixNano()
	survivor := f.createContact(t, contacts.CreateRequest{
		FullName:     "Jordan Lee",
		PrimaryEmail: fmt.Sprintf("jordan_%d@example.com", nonce),
		City:         "Portland",
	})
	merged := f.createContact(t, contacts.CreateRequest{
		FullName:     "J. Lee",
		PrimaryEmail: fmt.Sprintf("jlee_%d@old.com", nonce),
		PrimaryPhone: "+1 555 0142",
		Company:      "Acme",
	})

	tag, err := f.tags.Upsert(ctx, tags.UpsertRequest{Name: fmt.Sprintf("vip-%d", nonce)})
	if err != nil {
		t.Fatalf("upsert tag failed: %v", err)
	}
	if err := f.tags.Assign(ctx, merged.ID, tags.AssignRequest{TagIDs: []string{tag.ID}}); err != nil {
		t.Fatalf("assign tag failed: %v", err)
	}
	note, err := f.notes.Create(ctx, merged.ID, notes.CreateRequest{Body: "met at conference"})
	if err != nil {
		t.Fatalf("create note failed: %v", err)
	}

	result, err := f.dedupe.Merge(ctx, dedupe.MergeRequest{
		SurvivorContactID: survivor.ID,
		MergedContactID:   merged.ID,
		MergedBy:          "tester",
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if !result.Merged || result.SurvivorContactID != survivor.ID {
		t.Fatalf("unexpected merge result: %+v", result)
	}

	got, err := f.contacts.Get(ctx, survivor.ID)
	if err != nil {
		t.Fatalf("get survivor failed: %v", err)
	}
	if len(got.Emails) != 2 {
		t.Fatalf("expected union of 2 emails, got %v", got.Emails)
	}
	if got.PrimaryEmail != survivor.PrimaryEmail {
		t.Fatalf("survivor primary email changed to %s", got.PrimaryEmail)
	}
	if got.PrimaryPhone != "+1 555 0142" {
		t.Fatalf("merged phone did not fill blank survivor field: %q", got.PrimaryPhone)
	}
	if got.Company != "Acme" {
		t.Fatalf("merged company did not fill blank survivor field: %q", got.Company)
	}

	survivorTags, err := f.tags.ListForContact(ctx, survivor.ID)
	if err != nil {
		t.Fatalf("list survivor tags failed: %v", err)
	}
	found := false
	for _, tg := range survivorTags {
		if tg.ID == tag.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("tag was not moved to the survivor")
	}

	survivorNotes, err := f.notes.ListForContact(ctx, survivor.ID)
	if err != nil {
		t.Fatalf("list survivor notes failed: %v", err)
	}
	found = false
	for _, n := range survivorNotes {
		if n.ID == note.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("note was not moved to the survivor")
	}

	gone, err := f.contacts.Get(ctx, merged.ID)
	if err != nil {
		t.Fatalf("get merged contact failed: %v", err)
	}
	if gone.DeletedAt.IsZero() {
		t.Fatal("merged contact was not soft-deleted")
	}

	history, err := f.dedupe.HistoryForContact(ctx, survivor.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one merge history row, got %d", len(history))
	}
	if history[0].MergeReason != "manual_merge" {
		t.Fatalf("expected manual_merge reason, got %s", history[0].MergeReason)
	}
	if history[0].MergedBy != "tester" {
		t.Fatalf("expected merged_by tester, got %s", history[0].MergedBy)
	}
}

func TestIntegrationMergeAcceptsTriggeringSuggestion(t *testing.T) {
	f, cleanup := setupDedupeIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	email := fmt.Sprintf("pair_%d@example.com", time.Now().UnixNano())
	a := f.createContact(t, contacts.CreateRequest{FullName: "Robin Park", PrimaryEmail: email})
	b := f.createContact(t, contacts.CreateRequest{FullName: "R. Park", Emails: []string{email}})

	if _, err := f.dedupe.Run(ctx, 500); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	listed, err := f.dedupe.ListForContact(ctx, a.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	suggestion, ok := suggestionBetween(listed, a.ID, b.ID, dedupe.MatchTypeEmail)
	if !ok {
		t.Fatal("expected an email suggestion")
	}

	if _, err := f.dedupe.Merge(ctx, dedupe.MergeRequest{
		SurvivorContactID: a.ID,
		MergedContactID:   b.ID,
		SuggestionID:      suggestion.ID,
		MergedBy:          "tester",
	}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	after, err := f.dedupe.ListForContact(ctx, a.ID)
	if err != nil {
		t.Fatalf("list after merge failed: %v", err)
	}
	resolved, ok := suggestionBetween(after, a.ID, b.ID, dedupe.MatchTypeEmail)
	if !ok {
		t.Fatal("triggering suggestion disappeared")
	}
	if resolved.Status != dedupe.StatusAccepted {
		t.Fatalf("expected accepted status, got %s", resolved.Status)
	}

	history, err := f.dedupe.HistoryForContact(ctx, b.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 || history[0].MergeReason != "duplicate_suggestion" {
		t.Fatalf("expected one duplicate_suggestion history row, got %+v", history)
	}
}

// A failure between the dependent-record reassignment and the commit must
// roll the whole merge back: no half-moved notes, no audit row, merged
// contact untouched. The history insert is forced to fail with a constraint
// that rejects every new row (NOT VALID skips existing rows).
func TestIntegrationMergeRollsBackWhenHistoryWriteFails(t *testing.T) {
	f, cleanup := setupDedupeIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	nonce := time.Now().UnixNano()
	survivor := f.createContact(t, contacts.CreateRequest{
		FullName:     "Casey Morgan",
		PrimaryEmail: fmt.Sprintf("casey_%d@example.com", nonce),
	})
	merged := f.createContact(t, contacts.CreateRequest{
		FullName: "C. Morgan",
		Company:  "Initech",
	})

	tag, err := f.tags.Upsert(ctx, tags.UpsertRequest{Name: fmt.Sprintf("lead-%d", nonce)})
	if err != nil {
		t.Fatalf("upsert tag failed: %v", err)
	}
	if err := f.tags.Assign(ctx, merged.ID, tags.AssignRequest{TagIDs: []string{tag.ID}}); err != nil {
		t.Fatalf("assign tag failed: %v", err)
	}
	note, err := f.notes.Create(ctx, merged.ID, notes.CreateRequest{Body: "call back monday"})
	if err != nil {
		t.Fatalf("create note failed: %v", err)
	}

	if _, err := f.pool.Exec(ctx,
		`ALTER TABLE merge_history ADD CONSTRAINT merge_history_reject_inserts CHECK (false) NOT VALID`); err != nil {
		t.Fatalf("add blocking constraint failed: %v", err)
	}
	defer func() {
		_, _ = f.pool.Exec(ctx, `ALTER TABLE merge_history DROP CONSTRAINT IF EXISTS merge_history_reject_inserts`)
	}()

	if _, err := f.dedupe.Merge(ctx, dedupe.MergeRequest{
		SurvivorContactID: survivor.ID,
		MergedContactID:   merged.ID,
		MergedBy:          "tester",
	}); err == nil {
		t.Fatal("expected merge to fail while history inserts are blocked")
	}

	mergedNotes, err := f.notes.ListForContact(ctx, merged.ID)
	if err != nil {
		t.Fatalf("list merged notes failed: %v", err)
	}
	if len(mergedNotes) != 1 || mergedNotes[0].ID != note.ID {
		t.Fatalf("note did not stay on the merged contact: %+v", mergedNotes)
	}
	survivorNotes, err := f.notes.ListForContact(ctx, survivor.ID)
	if err != nil {
		t.Fatalf("list survivor notes failed: %v", err)
	}
	if len(survivorNotes) != 0 {
		t.Fatalf("notes leaked onto the survivor: %+v", survivorNotes)
	}

	mergedTags, err := f.tags.ListForContact(ctx, merged.ID)
	if err != nil {
		t.Fatalf("list merged tags failed: %v", err)
	}
	if len(mergedTags) != 1 || mergedTags[0].ID != tag.ID {
		t.Fatalf("tag did not stay on the merged contact: %+v", mergedTags)
	}

	still, err := f.contacts.Get(ctx, merged.ID)
	if err != nil {
		t.Fatalf("get merged contact failed: %v", err)
	}
	if !still.DeletedAt.IsZero() {
		t.Fatal("merged contact was soft-deleted despite the rollback")
	}
	untouched, err := f.contacts.Get(ctx, survivor.ID)
	if err != nil {
		t.Fatalf("get survivor failed: %v", err)
	}
	if untouched.Company != "" {
		t.Fatalf("survivor absorbed merged fields despite the rollback: company %q", untouched.Company)
	}

	history, err := f.dedupe.HistoryForContact(ctx, survivor.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected no merge history rows, got %d", len(history))
	}
}

func TestIntegrationMergeValidation(t *testing.T) {
	f, cleanup := setupDedupeIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	a := f.createContact(t, contacts.CreateRequest{FullName: "Solo Contact"})

	if _, err := f.dedupe.Merge(ctx, dedupe.MergeRequest{
		SurvivorContactID: a.ID,
		MergedContactID:   a.ID,
	}); err != dedupe.ErrSameContact {
		t.Fatalf("expected ErrSameContact, got %v", err)
	}

	missing := "00000000-0000-0000-0000-000000000000"
	if _, err := f.dedupe.Merge(ctx, dedupe.MergeRequest{
		SurvivorContactID: a.ID,
		MergedContactID:   missing,
	}); err != dedupe.ErrContactNotFound {
		t.Fatalf("expected ErrContactNotFound, got %v", err)
	}
}
