package repo_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/pkordes/nemt-dispatch/migrations"
	"github.com/pkordes/nemt-dispatch/testutil"
)

// TestMain migrates the shared test database once per test binary. Each
// repository test then works inside its own rolled-back transaction
// (testutil.NewTx). Without TEST_DATABASE_URL every test skips itself.
func TestMain(m *testing.M) {
	if dsn := os.Getenv(testutil.DSNEnv); dsn != "" {
		db := testutil.MustOpenSQLDB(dsn)
		_, err := migrations.Up(context.Background(), db)
		db.Close()
		if err != nil {
			log.Fatalf("repo_test: %v", err)
		}
	}
	os.Exit(m.Run())
}
