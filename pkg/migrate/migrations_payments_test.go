package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quangtran/dinehub-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestPaymentAttemptsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_payment_attempts.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payment_attempts",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_attempts_txn_ref ON payment_attempts (txn_ref)",
		"CHECK (amount_vnd > 0)",
		"ix_payment_attempts_state_expires",
		"DROP TABLE IF EXISTS payment_attempts",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestVouchersMigrationContainsUsageUniqueness(t *testing.T) {
	content := readMigration(t, "*_create_vouchers.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS vouchers",
		"CREATE TABLE IF NOT EXISTS voucher_usages",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_voucher_usages_voucher_order ON voucher_usages (voucher_id, order_id)",
		"CHECK (max_uses >= 0)",
		"DROP TABLE IF EXISTS voucher_usages",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
