package importer_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rolodexhq/rolodex/internal/contacts"
	"github.com/rolodexhq/rolodex/internal/importer"
)

type importFixture struct {
	pool     *pgxpool.Pool
	importer *importer.Service
	contacts *contacts.Service

	batchIDs   []string
	contactIDs []string
}

func setupImportIntegrationTest(t *testing.T) (*importFixture, func()) {
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
	f := &importFixture{
		pool:     pool,
		importer: importer.NewService(logger, pool),
		contacts: contacts.NewService(logger, pool),
	}
	cleanup := func() {
		for _, id := range f.batchIDs {
			_, _ = pool.Exec(ctx, `DELETE FROM contact_sources WHERE import_batch_id = $1::uuid`, id)
		}
		for _, id := range f.contactIDs {
			_, _ = pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1::uuid`, id)
		}
		for _, id := range f.batchIDs {
			_, _ = pool.Exec(ctx, `DELETE FROM import_batches WHERE id = $1::uuid`, id)
		}
		pool.Close()
	}
	return f, cleanup
}

func (f *importFixture) track(result importer.CommitResult) {
	f.batchIDs = append(f.batchIDs, result.BatchID)
	f.contactIDs = append(f.contactIDs, result.CreatedContactIDs...)
}

func TestIntegrationCSVCommit(t *testing.T) {
	f, cleanup := setupImportIntegrationTest(t)
	defer cleanup()
	ctx := context.Background()

	csv := strings.Join([]string{
		"First Name,Last Name,Email,Company,Dept",
		"Ada,Lovelace,ada@example.com,Analytical Engines,Research",
		"Charles,Babbage,charles@example.com,Analytical Engines,Design",
	}, "\n")

	result, err := f.importer.CSVCommit(ctx, importer.CommitRequest{
		PreviewRequest: importer.PreviewRequest{
			FileName: "people.csv",
			CSVText:  csv,
		},
		SourceType:  "csv",
		SourceLabel: "people.csv",
		Mapping: map[string]string{
			"first_name":    "First Name",
			"last_name":     "Last Name",
			"primary_email": "Email",
			"company":       "Company",
		},
		CreatedBy: "tester",
	})
	if err != nil {
		t.Fatalf("csv commit failed: %v", err)
	}
	f.track(result)

	if result.Status != importer.BatchCompleted {
		t.Fatalf("expected status %q, got %q", importer.BatchCompleted, result.Status)
	}
	if result.RecordCount != 2 || result.ProcessedCount != 2 {
		t.Fatalf("expected 2/2 records, got %d/%d", result.RecordCount, result.ProcessedCount)
	}
	if len(result.CreatedContactIDs) != 2 {
		t.Fatalf("expected 2 created ids, got %d", len(result.CreatedContactIDs))
	}

	batch, err := f.importer.GetBatch(ctx, result.BatchID)
	if err != nil {
		t.Fatalf("get batch failed: %v", err)
	}
	if batch.Status != importer.BatchCompleted {
		t.Errorf("expected batch completed, got %q", batch.Status)
	}
	if batch.ProcessedCount != 2 {
		t.Errorf("expected processed_count 2, got %d", batch.ProcessedCount)
	}
	if batch.CreatedBy != "tester" {
		t.Errorf("expected created_by tester, got %q", batch.CreatedBy)
	}
	if batch.CompletedAt.IsZero() {
		t.Error("expected completed_at to be set")
	}

	contact, err := f.contacts.Get(ctx, result.CreatedContactIDs[0])
	if err != nil {
		t.Fatalf("get contact failed: %v", err)
	}
	if contact.FullName != "Ada Lovelace" {
		t.Errorf("expected full name from name parts, got %q", contact.FullName)
	}
	if contact.PrimaryEmail != "ada@example.com" {
		t.Errorf("expected mapped email, got %q", contact.PrimaryEmail)
	}
	if got := contact.Metadata.CustomFields["Dept"]; got != "Research" {
		t.Errorf("expected unmapped Dept column in custom_fields, got %v", got)
	}

	sources, err := f.contacts.ListSources(ctx, result.CreatedContactIDs[0])
	if err != nil {
		t.Fatalf("list sources failed: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("expected 1 provenance row, got %d", len(sources))
	}
	if sources[0].ImportBatchID != result.BatchID {
		t.Errorf("expected source batch %s, got %s", result.BatchID, sources[0].ImportBatchID)
	}
}

func TestIntegrationCSVCommitRejectsUnknownMappingHeader(t *testing.T) {
	f, cleanup := setupImportIntegrationTest(t)
	defer cleanup()

	_, err := f.importer.CSVCommit(context.Background(), importer.CommitRequest{
		PreviewRequest: importer.PreviewRequest{
			CSVText: "Name\nAda Lovelace",
		},
		SourceLabel: "bad.csv",
		Mapping:     map[string]string{"full_name": "No Such Column"},
	})
	if !errors.Is(err, importer.ErrUnknownMappingHeader) {
		t.Fatalf("expected ErrUnknownMappingHeader, got %v", err)
	}
}

func TestIntegrationVCardCommit(t *testing.T) {
	f, cleanup := setupImportIntegrationTest(t)
	defer cleanup()
	ctx := context.Background()

	vcf := strings.Join([]string{
		"BEGIN:VCARD",
		"VERSION:3.0",
		"FN:Grace Hopper",
		"N:Hopper;Grace;;;",
		"EMAIL:grace@example.com",
		"TEL:+1 555 0100",
		"ORG:US Navy",
		"END:VCARD",
	}, "\r\n") + "\r\n"

	result, err := f.importer.VCardCommit(ctx, importer.CommitRequest{
		PreviewRequest: importer.PreviewRequest{
			FileName:  "grace.vcf",
			VCardText: vcf,
		},
		SourceLabel: "grace.vcf",
	})
	if err != nil {
		t.Fatalf("vcard commit failed: %v", err)
	}
	f.track(result)

	if result.ProcessedCount != 1 {
		t.Fatalf("expected 1 processed card, got %d", result.ProcessedCount)
	}
	contact, err := f.contacts.Get(ctx, result.CreatedContactIDs[0])
	if err != nil {
		t.Fatalf("get contact failed: %v", err)
	}
	if contact.FullName != "Grace Hopper" {
		t.Errorf("expected FN as full name, got %q", contact.FullName)
	}
	if contact.PrimaryPhone != "+1 555 0100" {
		t.Errorf("expected TEL as primary phone, got %q", contact.PrimaryPhone)
	}
	if contact.Company != "US Navy" {
		t.Errorf("expected ORG as company, got %q", contact.Company)
	}
}
