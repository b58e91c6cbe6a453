package features

import "sync"

// featureCache 有界特征缓存
// 按图像主干名索引，重复写入覆盖旧条目，超出容量时淘汰最早的条目
type featureCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*Result
	order    []string
}

// newFeatureCache 创建缓存
func newFeatureCache(capacity int) *featureCache {
	return &featureCache{
		capacity: capacity,
		entries:  make(map[string]*Result),
	}
}

// Get 按主干名查询
func (c *featureCache) Get(stem string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[stem]
	return r, ok
}

// Put 写入条目，同名覆盖
func (c *featureCache) Put(stem string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[stem]; exists {
		c.entries[stem] = result
		return
	}

	for c.capacity > 0 && len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[stem] = result
	c.order = append(c.order, stem)
}

// Len 当前条目数
func (c *featureCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear 清空缓存
func (c *featureCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Result)
	c.order = nil
}
