package preprocess

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Heironghuncheng/LLM-Based-Online-Test-Answerer/internal/agent/model"
)

// Cache remembers successful classifications keyed by normalised text.
// A nil *Cache is valid and never hits.
type Cache struct {
	lru *lru.Cache[string, model.PreprocessResult]
}

// NewCache returns nil when size is not positive.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, model.PreprocessResult](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

func (c *Cache) Get(raw string) (model.PreprocessResult, bool) {
	if c == nil {
		return model.PreprocessResult{}, false
	}
	res, ok := c.lru.Get(cacheKey(raw))
	if !ok {
		return model.PreprocessResult{}, false
	}
	return cloneResult(res), true
}

func (c *Cache) Add(raw string, res model.PreprocessResult) {
	if c == nil {
		return
	}
	c.lru.Add(cacheKey(raw), cloneResult(res))
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// cacheKey collapses whitespace so re-captures of the same screen share a key.
func cacheKey(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

func cloneResult(r model.PreprocessResult) model.PreprocessResult {
	r.Topics = append([]string(nil), r.Topics...)
	r.BackgroundKnowledge = append([]string(nil), r.BackgroundKnowledge...)
	r.Options = append([]model.Option(nil), r.Options...)
	return r
}
