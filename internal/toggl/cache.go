package toggl

import (
	"context"
	"fmt"
	"sync"
)

type projectKey struct {
	workspaceID int64
	projectID   int64
}

// ProjectCache remembers project names for the lifetime of one run.
// Failed lookups are not cached.
type ProjectCache struct {
	mu    sync.Mutex
	names map[projectKey]string
}

func NewProjectCache() *ProjectCache {
	return &ProjectCache{names: make(map[projectKey]string)}
}

// Lookup returns the cached name or resolves it with fetch.
func (c *ProjectCache) Lookup(
	ctx context.Context,
	workspaceID, projectID int64,
	fetch func(ctx context.Context, workspaceID, projectID int64) (string, error),
) (string, error) {
	key := projectKey{workspaceID: workspaceID, projectID: projectID}

	c.mu.Lock()
	name, ok := c.names[key]
	c.mu.Unlock()
	if ok {
		return name, nil
	}

	name, err := fetch(ctx, workspaceID, projectID)
	if err != nil {
		return "", fmt.Errorf("resolve project %d: %w", projectID, err)
	}

	c.mu.Lock()
	c.names[key] = name
	c.mu.Unlock()
	return name, nil
}

func (c *ProjectCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.names)
}
