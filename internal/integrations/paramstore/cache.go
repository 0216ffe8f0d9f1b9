package paramstore

import (
	"context"
	"errors"
	"sync"
)

// Cache memoizes successful parameter reads for the life of the process.
// Failed reads are not cached, so the next call retries.
type Cache struct {
	getter Getter

	mu     sync.Mutex
	values map[string]string
}

// NewCache wraps getter with a process-lifetime cache.
func NewCache(getter Getter) (*Cache, error) {
	if getter == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	return &Cache{getter: getter, values: make(map[string]string)}, nil
}

func (c *Cache) GetParameter(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	v, ok := c.values[name]
	c.mu.Unlock()
	if ok {
		return v, nil
	}

	v, err := c.getter.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.values[name] = v
	c.mu.Unlock()
	return v, nil
}
