package artifact

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"fraudml/pkg/model"
)

// Loaded is a decoded artifact together with its validated classifier.
type Loaded struct {
	Name       string
	Artifact   *model.Artifact
	Classifier model.Classifier
}

// Cache loads artifacts from a Store on first use and keeps them for the
// life of the process. Concurrent first requests for the same name share a
// single load.
type Cache struct {
	store  Store
	logger *slog.Logger

	mu    sync.RWMutex
	items map[string]*Loaded
	group singleflight.Group
}

func NewCache(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, logger: logger, items: make(map[string]*Loaded)}
}

// Get returns the named artifact, loading it if needed. Failed loads are not
// cached.
func (c *Cache) Get(ctx context.Context, name string) (*Loaded, error) {
	c.mu.RLock()
	l, ok := c.items[name]
	c.mu.RUnlock()
	if ok {
		return l, nil
	}

	v, err, _ := c.group.Do(name, func() (interface{}, error) {
		c.mu.RLock()
		l, ok := c.items[name]
		c.mu.RUnlock()
		if ok {
			return l, nil
		}

		a, err := c.store.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		clf, err := a.Classifier()
		if err != nil {
			return nil, err
		}
		l = &Loaded{Name: name, Artifact: a, Classifier: clf}

		c.mu.Lock()
		c.items[name] = l
		c.mu.Unlock()
		c.logger.Info("artifact loaded", "name", name, "family", a.Family, "run_id", a.Meta.RunID)
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Loaded), nil
}

// Names lists the names currently held in memory.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.items))
	for n := range c.items {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Available lists the names the underlying store can serve.
func (c *Cache) Available(ctx context.Context) ([]string, error) {
	return c.store.List(ctx)
}
