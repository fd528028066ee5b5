package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/entrylog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupEntryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:entry-service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(dsn, db.WithLogLevel(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })

	if err := db.Migrate(context.Background(), gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

// fixedClock hands out strictly increasing timestamps one minute apart.
func fixedClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		current := next
		next = next.Add(time.Minute)
		return current
	}
}

func newTestServices(t *testing.T) (*EntryService, *QueryService, *gorm.DB) {
	t.Helper()
	gdb := setupEntryTestDB(t)
	entries := NewEntryService(gdb, nil).
		WithClock(fixedClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))
	return entries, NewQueryService(gdb), gdb
}

func mustCreate(t *testing.T, svc *EntryService, form EntryForm) *db.Entry {
	t.Helper()
	entry := NewEntry()
	if _, err := svc.Save(context.Background(), entry, form); err != nil {
		t.Fatalf("create %q: %v", form.Title, err)
	}
	return entry
}

func countRows(t *testing.T, gdb *gorm.DB) (entries, indexRows int64) {
	t.Helper()
	if err := gdb.Model(&db.Entry{}).Count(&entries).Error; err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if err := gdb.Model(&db.SearchIndexEntry{}).Count(&indexRows).Error; err != nil {
		t.Fatalf("count search index: %v", err)
	}
	return entries, indexRows
}

func indexedContent(t *testing.T, gdb *gorm.DB, id uint) (string, bool) {
	t.Helper()
	var rows []string
	if err := gdb.Raw("SELECT content FROM entry_search_index WHERE docid = ?", id).Scan(&rows).Error; err != nil {
		t.Fatalf("read search index: %v", err)
	}
	if len(rows) == 0 {
		return "", false
	}
	return rows[0], true
}

func strPtr(s string) *string { return &s }
