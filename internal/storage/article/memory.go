package article

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tradingpro/pulse/internal/core"
)

// MemoryStore is an in-memory article store.
type MemoryStore struct {
	mu       sync.RWMutex
	articles map[string]*core.Article
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{articles: make(map[string]*core.Article)}
}

// Save upserts an article, assigning an ID when absent.
func (m *MemoryStore) Save(ctx context.Context, article *core.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	copied := *article
	m.articles[article.ID] = &copied
	return nil
}

// GetByID retrieves an article by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.articles[id]
	if !ok {
		return nil, core.ErrArticleNotFound
	}
	copied := *a
	return &copied, nil
}

// FindBySymbol matches the symbol as a case-sensitive substring over
// title, content and summary.
func (m *MemoryStore) FindBySymbol(ctx context.Context, symbol string, since time.Time, limit int) ([]*core.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*core.Article
	for _, a := range m.articles {
		if a.ScrapedAt.Before(since) {
			continue
		}
		if !strings.Contains(a.Title, symbol) &&
			!strings.Contains(a.Content, symbol) &&
			!strings.Contains(a.Summary, symbol) {
			continue
		}
		copied := *a
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ScrapedAt.After(result[j].ScrapedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
