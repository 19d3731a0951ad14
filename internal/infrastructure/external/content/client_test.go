package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/achievement"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(DefaultClientConfig(server.URL))
}

func TestClient_GetTask(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/task-3", r.URL.Path)
		_ = json.NewEncoder(w).Encode(APIResponse[TaskDTO]{
			Success: true,
			Data: TaskDTO{
				ID:            "task-3",
				WorkstationID: "acid-bay",
				Difficulty:    "advanced",
				BaseXP:        150,
			},
		})
	})

	task, err := client.GetTask(context.Background(), "task-3")
	require.NoError(t, err)
	assert.Equal(t, "acid-bay", task.WorkstationID)
	assert.Equal(t, 150, task.BaseXP)
}

func TestClient_GetTaskNotFound(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var hits int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(APIErrorDTO{Code: "BAD_REQUEST", Message: "bad task id"})
	})

	_, err := client.GetTask(context.Background(), "task-3")
	require.Error(t, err)
	assert.Equal(t, 1, hits)
}

func TestCatalog_TaskInfoMapsAndCaches(t *testing.T) {
	var hits int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(APIResponse[TaskDTO]{
			Success: true,
			Data:    TaskDTO{ID: "task-3", Difficulty: "beginner", BaseXP: 100},
		})
	})
	catalog := NewCatalog(client)

	difficulty, baseXP, err := catalog.TaskInfo(context.Background(), "task-3")
	require.NoError(t, err)
	assert.Equal(t, achievement.DifficultyBeginner, difficulty)
	assert.Equal(t, 100, baseXP)

	// Second lookup is served from memory.
	_, _, err = catalog.TaskInfo(context.Background(), "task-3")
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func TestCatalog_UnknownDifficultyFallsBack(t *testing.T) {
	assert.Equal(t, achievement.DifficultyIntermediate, mapDifficulty("legendary"))
	assert.Equal(t, achievement.DifficultyAdvanced, mapDifficulty("advanced"))
}

func TestCatalog_ResourcesMapToDomain(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/workstations/acid-bay/resources", r.URL.Path)
		_ = json.NewEncoder(w).Encode(APIResponse[[]ResourceDTO]{
			Success: true,
			Data: []ResourceDTO{
				{ID: "res-1", Title: "Neutralization basics", Category: "concept", WorkstationID: "acid-bay"},
				{ID: "res-2", Title: "Unit conversion drills", Category: "calculation"},
			},
		})
	})
	catalog := NewCatalog(client)

	resources, err := catalog.Resources(context.Background(), "acid-bay")
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, shared.WorkstationID("acid-bay"), resources[0].WorkstationID)
	assert.Equal(t, "res-2", resources[1].ID)
}
