package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/superbazaar/storefront-api/pkg/migrate"
)

func TestInitMigrationContainsCoreTables(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_init_storefront_schema.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no init migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE orders",
		"order_number text NOT NULL UNIQUE",
		"CONSTRAINT idx_cart_items_cart_product UNIQUE (cart_id, product_id)",
		"CHECK (quantity > 0)",
		"order_id uuid NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
