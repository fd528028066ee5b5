package service

import (
	"context"
	"errors"
	"strings"

	"github.com/entrylog/internal/db"
	"github.com/entrylog/internal/metrics"
	"gorm.io/gorm"
)

// DefaultPerPage 是列表页每页条目数的默认值。
const DefaultPerPage = 20

// QueryService builds composable entry queries. Public, Drafts and Search
// return *gorm.DB values that callers may further order, filter or page.
type QueryService struct {
	db *gorm.DB
}

// EntryPage is one page of a listing.
type EntryPage struct {
	Entries    []db.Entry
	Total      int64
	Page       int
	PerPage    int
	TotalPages int
}

// HasPrev reports whether a previous page exists.
func (p *EntryPage) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p *EntryPage) HasNext() bool { return p.Page < p.TotalPages }

// PrevPage returns the previous page number.
func (p *EntryPage) PrevPage() int { return p.Page - 1 }

// NextPage returns the following page number.
func (p *EntryPage) NextPage() int { return p.Page + 1 }

// NewQueryService creates a QueryService instance.
func NewQueryService(gdb *gorm.DB) *QueryService {
	return &QueryService{db: gdb}
}

func (s *QueryService) entries(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&db.Entry{})
}

// Public selects all published entries.
func (s *QueryService) Public(ctx context.Context) *gorm.DB {
	return s.entries(ctx).Where("entries.published = ?", true)
}

// Drafts selects all unpublished entries.
func (s *QueryService) Drafts(ctx context.Context) *gorm.DB {
	return s.entries(ctx).Where("entries.published = ?", false)
}

// SearchTerms splits query on whitespace and rejoins the non-empty words
// with single spaces. An empty result means "no search".
func SearchTerms(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// Search selects published entries matching the full-text query, most
// relevant first. Each row carries its relevance in Entry.Score.
// 查询没有任何词时返回一个恒为空的查询，不会触碰全文索引。
func (s *QueryService) Search(ctx context.Context, query string) *gorm.DB {
	terms := SearchTerms(query)
	if terms == "" {
		metrics.SearchesTotal.WithLabelValues("empty").Inc()
		return s.entries(ctx).Where("1 = 0")
	}

	metrics.SearchesTotal.WithLabelValues("executed").Inc()
	return s.entries(ctx).
		Select("entries.*, rank(matchinfo(entry_search_index, 'pcx')) AS score").
		Joins("JOIN entry_search_index ON entry_search_index.docid = entries.id").
		Where("entry_search_index MATCH ?", terms).
		Where("entries.published = ?", true).
		Order("score DESC")
}

// Latest orders q newest first.
func Latest(q *gorm.DB) *gorm.DB {
	return q.Order("entries.timestamp DESC").Order("entries.id DESC")
}

// GetBySlug finds an entry by slug. Drafts are only visible when includeDrafts is set.
func (s *QueryService) GetBySlug(ctx context.Context, slug string, includeDrafts bool) (*db.Entry, error) {
	q := s.entries(ctx)
	if !includeDrafts {
		q = s.Public(ctx)
	}

	var entry db.Entry
	if err := q.Where("entries.slug = ?", slug).Take(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// GetByID fetches an entry regardless of its published state.
func (s *QueryService) GetByID(ctx context.Context, id uint) (*db.Entry, error) {
	var entry db.Entry
	if err := s.entries(ctx).Where("entries.id = ?", id).Take(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Paginate executes q for the requested page. Pages past the end yield an
// empty Entries slice rather than an error.
func (s *QueryService) Paginate(ctx context.Context, q *gorm.DB, page, perPage int) (*EntryPage, error) {
	result := &EntryPage{Page: page, PerPage: perPage, Entries: []db.Entry{}}
	if result.Page <= 0 {
		result.Page = 1
	}
	if result.PerPage <= 0 {
		result.PerPage = DefaultPerPage
	}

	base := q.WithContext(ctx).Session(&gorm.Session{})

	if err := base.Count(&result.Total).Error; err != nil {
		return nil, translateQueryError(err)
	}

	if result.Total > 0 {
		offset := (result.Page - 1) * result.PerPage
		if err := base.Limit(result.PerPage).Offset(offset).Find(&result.Entries).Error; err != nil {
			return nil, translateQueryError(err)
		}
	}

	if result.Total == 0 {
		result.TotalPages = 1
	} else {
		result.TotalPages = int((result.Total + int64(result.PerPage) - 1) / int64(result.PerPage))
	}

	return result, nil
}

func translateQueryError(err error) error {
	if db.IsMalformedMatch(err) {
		return errors.Join(ErrMalformedSearch, err)
	}
	return err
}
