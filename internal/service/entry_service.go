package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrylog/internal/db"
	"github.com/entrylog/internal/logger"
	"github.com/entrylog/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Outcome describes how a save attempt ended.
type Outcome string

const (
	OutcomePublished     Outcome = "published"
	OutcomeDraft         Outcome = "draft"
	OutcomeUpdated       Outcome = "updated"
	OutcomeRejected      Outcome = "rejected"
	OutcomeDuplicateSlug Outcome = "duplicate_slug"
	OutcomeFailed        Outcome = "failed"
)

// EntryForm carries the editable fields of an entry.
// Slug 为 nil 时沿用已有 slug（新条目则由标题推导）；指向空串时重新推导。
type EntryForm struct {
	Title     string
	Content   string
	Published bool
	Slug      *string
}

// EntryService owns the create/edit lifecycle of entries.
type EntryService struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewEntryService creates an EntryService. A nil logger discards output.
func NewEntryService(gdb *gorm.DB, l *zap.Logger) *EntryService {
	if l == nil {
		l = zap.NewNop()
	}
	return &EntryService{
		db:     gdb,
		logger: l.Named("entries"),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock replaces the clock used to stamp new entries.
func (s *EntryService) WithClock(now func() time.Time) *EntryService {
	s.now = now
	return s
}

// NewEntry returns an unsaved entry with empty title and content.
func NewEntry() *db.Entry {
	return &db.Entry{}
}

// Save applies form to entry, validates it and persists it together with its
// search-index row. On any error nothing is written; on a duplicate slug the
// entry's slug and id are restored to their values before the attempt.
func (s *EntryService) Save(ctx context.Context, entry *db.Entry, form EntryForm) (Outcome, error) {
	created := entry.IsNew()
	previousSlug := entry.Slug

	entry.Title = form.Title
	entry.Content = form.Content
	entry.Published = form.Published
	if form.Slug != nil {
		entry.Slug = Slugify(*form.Slug)
	}

	if err := s.ValidateAndAssignSlug(entry); err != nil {
		s.record(ctx, OutcomeRejected, entry, err)
		return OutcomeRejected, err
	}

	if err := s.PersistAndReindex(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicateSlug) {
			entry.Slug = previousSlug
			s.record(ctx, OutcomeDuplicateSlug, entry, err)
			return OutcomeDuplicateSlug, err
		}
		s.record(ctx, OutcomeFailed, entry, err)
		return OutcomeFailed, err
	}

	outcome := OutcomeUpdated
	if created {
		outcome = OutcomeDraft
		if entry.Published {
			outcome = OutcomePublished
		}
	}
	s.record(ctx, outcome, entry, nil)
	return outcome, nil
}

// ValidateAndAssignSlug requires a non-empty title and content and, when the
// entry has no slug yet, derives it from the title. An existing slug is kept
// even if the title changed. Slugs owned by site pages are rejected.
func (s *EntryService) ValidateAndAssignSlug(entry *db.Entry) error {
	var missing []string
	if entry.Title == "" {
		missing = append(missing, FieldTitle)
	}
	if entry.Content == "" {
		missing = append(missing, FieldContent)
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}

	slug := entry.Slug
	if slug == "" {
		slug = Slugify(entry.Title)
	}
	if slug == "" {
		// 标题里没有任何字母或数字，无法生成 URL
		return &ValidationError{Fields: []string{FieldSlug}}
	}
	if IsReservedSlug(slug) {
		return &ValidationError{Fields: []string{FieldSlug}, ReservedSlug: slug}
	}
	entry.Slug = slug
	return nil
}

// PersistAndReindex writes entry and its search-index row in one transaction.
// A unique-slug violation is reported as ErrDuplicateSlug.
func (s *EntryService) PersistAndReindex(ctx context.Context, entry *db.Entry) error {
	created := entry.IsNew()
	stamped := false
	if created && entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
		stamped = true
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if created {
			err = tx.Create(entry).Error
		} else {
			err = tx.Save(entry).Error
		}
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ErrDuplicateSlug
			}
			return fmt.Errorf("persist entry: %w", err)
		}

		return UpdateSearchIndex(tx, entry)
	})
	if err != nil && created {
		// 事务已回滚，撤销 Create 回填的主键和时间戳
		entry.ID = 0
		if stamped {
			entry.Timestamp = time.Time{}
		}
	}
	return err
}

// RebuildSearchIndex drops every shadow row and re-indexes all entries.
func (s *EntryService) RebuildSearchIndex(ctx context.Context) (int, error) {
	indexed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM entry_search_index").Error; err != nil {
			return fmt.Errorf("clear search index: %w", err)
		}

		var batch []db.Entry
		return tx.Model(&db.Entry{}).FindInBatches(&batch, 100, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				if err := UpdateSearchIndex(tx, &batch[i]); err != nil {
					return err
				}
			}
			indexed += len(batch)
			return nil
		}).Error
	})
	if err != nil {
		return 0, err
	}

	s.logFor(ctx).Info("search index rebuilt", zap.Int("entries", indexed))
	return indexed, nil
}

func (s *EntryService) record(ctx context.Context, outcome Outcome, entry *db.Entry, err error) {
	metrics.EntrySavesTotal.WithLabelValues(string(outcome)).Inc()

	fields := []zap.Field{
		zap.String("outcome", string(outcome)),
		zap.Uint("entry_id", entry.ID),
		zap.String("slug", entry.Slug),
	}
	l := s.logFor(ctx)
	switch outcome {
	case OutcomeFailed:
		l.Error("entry save failed", append(fields, zap.Error(err))...)
	case OutcomeRejected, OutcomeDuplicateSlug:
		l.Info("entry save rejected", append(fields, zap.String("reason", err.Error()))...)
	default:
		l.Info("entry saved", fields...)
	}
}

func (s *EntryService) logFor(ctx context.Context) *zap.Logger {
	if l, ok := logger.Lookup(ctx); ok {
		return l.Named("entries")
	}
	return s.logger
}
