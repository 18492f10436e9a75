package history

import (
	"context"
	"errors"
	"sync"

	"github.com/estafette/estafette-ci-notifier/api"
)

// ErrBuildNotFound is returned when the history holds no build with the requested id
var ErrBuildNotFound = errors.New("Build not found in history")

// Client gives access to the build history owned by the host; predecessors are looked up by id
//go:generate mockgen -package=history -destination ./mock.go -source=client.go
type Client interface {
	GetBuild(ctx context.Context, id string) (api.BuildRecord, error)
	StoreBuild(ctx context.Context, build api.BuildRecord) error
	Close()
}

// NewMemoryClient returns a Client keeping at most maxBuilds builds in memory, evicting the oldest stored first
func NewMemoryClient(maxBuilds int) (Client, error) {
	if maxBuilds <= 0 {
		return nil, errors.New("Max builds for in-memory history should be larger than 0")
	}

	return &memoryClient{
		maxBuilds: maxBuilds,
		builds:    make(map[string]api.BuildRecord, maxBuilds),
		order:     make([]string, 0, maxBuilds),
	}, nil
}

type memoryClient struct {
	maxBuilds int
	builds    map[string]api.BuildRecord
	order     []string
	mutex     sync.RWMutex
}

func (c *memoryClient) GetBuild(ctx context.Context, id string) (build api.BuildRecord, err error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	build, ok := c.builds[id]
	if !ok {
		return build, ErrBuildNotFound
	}

	return build, nil
}

func (c *memoryClient) StoreBuild(ctx context.Context, build api.BuildRecord) error {
	if build.ID == "" {
		return errors.New("Cannot store build without id")
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.builds[build.ID]; !ok {
		if len(c.order) >= c.maxBuilds {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.builds, oldest)
		}
		c.order = append(c.order, build.ID)
	}

	c.builds[build.ID] = build

	return nil
}

func (c *memoryClient) Close() {
}
