package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/packquote-backend/pkg/migrate"
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

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInventoryMigrationGuardsNonNegativeStock(t *testing.T) {
	assertContains(t, readMigration(t, "create_inventory"), []string{
		"CREATE TABLE IF NOT EXISTS inventory (",
		"CHECK (quantity_on_hand >= 0)",
		"CREATE TABLE IF NOT EXISTS inventory_transactions",
		"FOREIGN KEY (inventory_id) REFERENCES inventory(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS inventory_transactions",
		"DROP TABLE IF EXISTS inventory;",
	})
}

func TestQuotationMigrationEnforcesUniqueNumbers(t *testing.T) {
	assertContains(t, readMigration(t, "create_quotations"), []string{
		"CONSTRAINT ux_quotations_number UNIQUE (quotation_number)",
		"FOREIGN KEY (quotation_id) REFERENCES quotations(id) ON DELETE CASCADE",
		"'draft', 'sent', 'approved', 'rejected', 'expired', 'converted'",
		"specification JSONB NOT NULL",
		"DROP TABLE IF EXISTS quotation_items",
	})
}

func TestSampleMigrationBoundsItemQuantity(t *testing.T) {
	assertContains(t, readMigration(t, "create_sample_requests"), []string{
		"CONSTRAINT ux_sample_requests_number UNIQUE (request_number)",
		"CHECK (quantity BETWEEN 1 AND 10)",
		"DROP TABLE IF EXISTS sample_items",
	})
}

func TestCouponMigrationGuardsUsage(t *testing.T) {
	assertContains(t, readMigration(t, "create_coupons"), []string{
		"CONSTRAINT ux_coupons_code UNIQUE (code)",
		"current_uses <= max_uses",
		"CREATE TABLE IF NOT EXISTS coupon_usage",
	})
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}
