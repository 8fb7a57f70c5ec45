package db

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"
)

var testDBSeq atomic.Int64

// OpenTest opens a migrated in-memory SQLite database that lives for the test.
func OpenTest(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:pixstore_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), testDBSeq.Add(1))
	conn, errOpen := Open(dsn)
	if errOpen != nil {
		t.Fatalf("open test db: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate test db: %v", errMigrate)
	}
	t.Cleanup(func() { _ = Close(conn) })
	return conn
}
