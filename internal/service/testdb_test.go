package service

import (
	"os"
	"testing"

	"github.com/ECeternalcat/simple-talk-client/internal/db"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// testDB connects to a local Postgres instance, skipping the test when
// the database is not reachable. Tests create their own users with
// unique names so they can share one database.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=simpletalk port=5432 sslmode=disable TimeZone=UTC"
	}
	gdb, err := db.Connect(dsn)
	if err != nil {
		t.Skipf("skip: db not available: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Skipf("skip: migrate failed: %v", err)
	}
	return gdb
}

func uniqueName(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}
