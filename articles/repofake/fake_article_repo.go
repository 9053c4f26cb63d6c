package articlerepofake

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pressline/go-content-server/articles"
)

var _ articles.Repo = (*FakeArticleRepo)(nil)

type FakeArticleRepo struct {
	articles map[string]*articles.Article
	lock     sync.RWMutex
}

func NewFakeArticleRepo() *FakeArticleRepo {
	return &FakeArticleRepo{
		articles: make(map[string]*articles.Article),
	}
}

func (ar *FakeArticleRepo) Create(a *articles.Article) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	cp := *a
	ar.articles[a.ID] = &cp
	return nil
}

func (ar *FakeArticleRepo) Update(a *articles.Article) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if _, ok := ar.articles[a.ID]; !ok {
		return articles.ErrNotFound
	}
	cp := *a
	ar.articles[a.ID] = &cp
	return nil
}

func (ar *FakeArticleRepo) GetByID(id string, includeDeleted bool) (*articles.Article, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	a, ok := ar.articles[id]
	if !ok || (!includeDeleted && a.IsDeleted()) {
		return nil, articles.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (ar *FakeArticleRepo) GetBySlug(slug string) (*articles.Article, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	for _, a := range ar.articles {
		if a.Slug == slug && !a.IsDeleted() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, articles.ErrNotFound
}

func (ar *FakeArticleRepo) SlugExists(slug string) (bool, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	for _, a := range ar.articles {
		if a.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (ar *FakeArticleRepo) Search(filters articles.SearchFilters, limit int, now time.Time) ([]*articles.Article, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	found := make([]*articles.Article, 0)
	for _, a := range ar.articles {
		if a.IsDeleted() || !matches(a, filters, now) {
			continue
		}
		cp := *a
		found = append(found, &cp)
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].CreatedAt.After(found[j].CreatedAt)
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func matches(a *articles.Article, filters articles.SearchFilters, now time.Time) bool {
	if filters.Category != "" && !containsFold(a.Categories, filters.Category) {
		return false
	}
	if filters.Label != "" && !containsFold(a.Labels, filters.Label) {
		return false
	}
	if filters.IsReviewed != nil && a.IsReviewed != *filters.IsReviewed {
		return false
	}
	switch filters.Status {
	case articles.StatusPublished:
		if !a.IsPublished(now) {
			return false
		}
	case articles.StatusDraft:
		if !a.IsDraft() {
			return false
		}
	}
	if filters.Search != "" {
		needle := strings.ToLower(filters.Search)
		if !strings.Contains(strings.ToLower(a.Title), needle) &&
			!strings.Contains(strings.ToLower(a.Content), needle) {
			return false
		}
	}
	return true
}

func containsFold(values []string, needle string) bool {
	needle = strings.ToLower(needle)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}
