package content

import (
	"context"
	"sync"
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/achievement"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/behavior"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG - domain-facing adapter over the API client
// ══════════════════════════════════════════════════════════════════════════════

// catalogTTL bounds how long task metadata is served from memory. Task
// definitions change rarely; a scored submission must not cost an HTTP
// round trip every time.
const catalogTTL = 5 * time.Minute

// Catalog adapts the content service client to the engine's catalog
// ports: task metadata for the completion flow and remediation resources
// for recommendations.
type Catalog struct {
	client *Client

	mu    sync.RWMutex
	tasks map[shared.TaskID]cachedTask
}

type cachedTask struct {
	difficulty achievement.Difficulty
	baseXP     int
	fetchedAt  time.Time
}

// NewCatalog creates a catalog backed by the given client.
func NewCatalog(client *Client) *Catalog {
	return &Catalog{
		client: client,
		tasks:  make(map[shared.TaskID]cachedTask),
	}
}

// TaskInfo returns the difficulty and base XP reward for a task.
func (c *Catalog) TaskInfo(ctx context.Context, taskID shared.TaskID) (achievement.Difficulty, int, error) {
	c.mu.RLock()
	cached, ok := c.tasks[taskID]
	c.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < catalogTTL {
		return cached.difficulty, cached.baseXP, nil
	}

	task, err := c.client.GetTask(ctx, taskID)
	if err != nil {
		return "", 0, err
	}

	difficulty := mapDifficulty(task.Difficulty)
	c.mu.Lock()
	c.tasks[taskID] = cachedTask{
		difficulty: difficulty,
		baseXP:     task.BaseXP,
		fetchedAt:  time.Now(),
	}
	c.mu.Unlock()

	return difficulty, task.BaseXP, nil
}

// Resources returns the candidate remediation resources for a workstation.
func (c *Catalog) Resources(ctx context.Context, workstationID shared.WorkstationID) ([]behavior.Resource, error) {
	dtos, err := c.client.ListResources(ctx, workstationID)
	if err != nil {
		return nil, err
	}

	resources := make([]behavior.Resource, 0, len(dtos))
	for _, dto := range dtos {
		resources = append(resources, behavior.Resource{
			ID:            dto.ID,
			Title:         dto.Title,
			URL:           dto.URL,
			Category:      behavior.ErrorCategory(dto.Category),
			WorkstationID: shared.WorkstationID(dto.WorkstationID),
			StageID:       dto.StageID,
		})
	}
	return resources, nil
}

// mapDifficulty normalizes the service's difficulty string. Unknown
// values fall back to intermediate rather than failing the flow.
func mapDifficulty(s string) achievement.Difficulty {
	switch achievement.Difficulty(s) {
	case achievement.DifficultyBeginner:
		return achievement.DifficultyBeginner
	case achievement.DifficultyAdvanced:
		return achievement.DifficultyAdvanced
	default:
		return achievement.DifficultyIntermediate
	}
}
