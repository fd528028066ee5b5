package service

import (
	"errors"
	"fmt"

	"github.com/entrylog/internal/db"
	"gorm.io/gorm"
)

// SearchIndexContent is the text indexed for an entry: title, newline, body.
func SearchIndexContent(entry *db.Entry) string {
	return entry.Title + "\n" + entry.Content
}

// UpdateSearchIndex upserts the shadow row of entry inside tx.
// 索引行的 docid 与 entries.id 一一对应；entry 必须已经持久化。
func UpdateSearchIndex(tx *gorm.DB, entry *db.Entry) error {
	if entry == nil || entry.ID == 0 {
		return errors.New("search index: entry has not been persisted")
	}

	content := SearchIndexContent(entry)

	var count int64
	if err := tx.Model(&db.SearchIndexEntry{}).Where("docid = ?", entry.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("search index lookup: %w", err)
	}

	if count > 0 {
		if err := tx.Model(&db.SearchIndexEntry{}).
			Where("docid = ?", entry.ID).
			Update("content", content).Error; err != nil {
			return fmt.Errorf("search index update: %w", err)
		}
		return nil
	}

	if err := tx.Create(&db.SearchIndexEntry{DocID: entry.ID, Content: content}).Error; err != nil {
		return fmt.Errorf("search index insert: %w", err)
	}
	return nil
}
