package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestRefundsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_refunds")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS refunds",
		"CONSTRAINT ux_refunds_transaction_id UNIQUE (transaction_id)",
		"CONSTRAINT ux_refunds_reference UNIQUE (reference)",
		"FOREIGN KEY (transaction_id) REFERENCES transactions(id) ON DELETE CASCADE",
		"line_items_data jsonb NOT NULL",
		"restocked_quantities jsonb NOT NULL",
		"DROP TABLE IF EXISTS refunds",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationScopesUniqueIndexToTransactionEvents(t *testing.T) {
	content := readMigration(t, "create_outbox")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate",
		"WHERE event_type = 'refund_transaction_created'",
		"CREATE TABLE IF NOT EXISTS outbox_dlq",
		"payload_json jsonb NOT NULL",
		"DROP TABLE IF EXISTS outbox_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestTransactionsMigrationMatchesEnums(t *testing.T) {
	content := readMigration(t, "create_transactions")

	checks := []string{
		"CHECK (type IN ('authorize', 'capture', 'purchase', 'refund'))",
		"CHECK (status IN ('pending', 'redirect', 'success', 'failed', 'processing'))",
		"CHECK (gateway IN ('manual', 'square'))",
		"date_created timestamptz NOT NULL",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
