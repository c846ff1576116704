package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"multidrive/models"
	"multidrive/providers"
)

// memKV ist ein KV-Speicher im Speicher mit steuerbarer Uhr.
type memKV struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  time.Time
	err  error
	sets int
}

type memEntry struct {
	value   string
	expires time.Time
}

func newMemKV() *memKV {
	return &memKV{data: map[string]memEntry{}, now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (m *memKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sets++
	m.data[key] = memEntry{value: value, expires: m.now.Add(ttl)}
	return nil
}

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	e, ok := m.data[key]
	if !ok || !m.now.Before(e.expires) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *memKV) advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// fakeMeta hält Metadaten pro Artikel.
type fakeMeta struct {
	articles map[uint]models.Article
	meta     map[uint]map[string]string
	err      error
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{articles: map[uint]models.Article{}, meta: map[uint]map[string]string{}}
}

func (f *fakeMeta) set(articleID uint, key, value string) {
	if f.meta[articleID] == nil {
		f.meta[articleID] = map[string]string{}
	}
	f.meta[articleID][key] = value
}

func (f *fakeMeta) GetMeta(_ context.Context, articleID uint, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.meta[articleID][key], nil
}

func (f *fakeMeta) GetArticle(_ context.Context, id uint) (*models.Article, error) {
	a, ok := f.articles[id]
	if !ok {
		return nil, ErrArticleNotFound
	}
	return &a, nil
}

func (f *fakeMeta) AllMeta(_ context.Context, articleID uint) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.meta[articleID] {
		out[k] = v
	}
	return out, nil
}

// fakeClicks sammelt angehängte Ereignisse.
type fakeClicks struct {
	events []models.ClickEvent
	err    error
}

func (f *fakeClicks) Append(_ context.Context, ev *models.ClickEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, *ev)
	return nil
}

var errStorage = errors.New("storage unavailable")

func testRegistry() *providers.Holder {
	reg, err := providers.NewRegistry([]providers.Provider{
		{Key: "baidu", Label: "Baidu Netdisk", Alias: "bd", SortOrder: 1},
		{Key: "aliyun", Label: "Aliyun Drive", Alias: "ali", SortOrder: 2},
		{Key: "quark", Label: "Quark Drive", SortOrder: 3},
		{Key: "mega", Label: "Mega", IsCustom: true, SortOrder: 10},
	})
	if err != nil {
		panic(err)
	}
	return providers.NewHolder(reg)
}
