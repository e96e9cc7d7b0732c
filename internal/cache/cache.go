// Package cache provides thread-safe generic caching and the render caches
// shared by the builder and the dev server.
package cache

import "sync"

type Cache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]V),
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.items[key]
	return val, ok
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]V)
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// RenderKey identifies one rendering of a markdown source. The same source
// renders differently per engine and per syntax theme.
type RenderKey struct {
	ContentHash string
	Engine      string
	SyntaxTheme string
}

// RenderedContent represents cached rendered markdown with HTML and extra data.
type RenderedContent struct {
	HTML  []byte
	Extra any
}

var renderedMarkdownCache = NewCache[RenderKey, *RenderedContent]()

func GetRenderedMarkdown(key RenderKey) (*RenderedContent, bool) {
	return renderedMarkdownCache.Get(key)
}

func SetRenderedMarkdown(key RenderKey, html []byte, extra any) {
	renderedMarkdownCache.Set(key, &RenderedContent{
		HTML:  html,
		Extra: extra,
	})
}

func ClearRenderedMarkdownCache() {
	renderedMarkdownCache.Clear()
}
