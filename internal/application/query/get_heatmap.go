package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/labsim-hub/labsim-progression-engine/config"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/behavior"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET HEATMAP QUERY
// Aggregates error events per stage into an instructor heatmap and,
// for the problem steps, suggests remediation resources.
// ══════════════════════════════════════════════════════════════════════════════

// ResourceCatalog supplies the remediation resources recommendations are
// drawn from.
type ResourceCatalog interface {
	// Resources returns the candidate resources for a workstation.
	Resources(ctx context.Context, workstationID shared.WorkstationID) ([]behavior.Resource, error)
}

// GetHeatmapQuery identifies the workstation to aggregate.
type GetHeatmapQuery struct {
	WorkstationID shared.WorkstationID

	// UserID - requesting instructor, used for feature gating.
	UserID shared.UserID

	// TotalStudents - cohort size, used to compute the affected share.
	TotalStudents int

	// IncludeRecommendations requests remediation resources for the
	// high-frequency steps.
	IncludeRecommendations bool
}

// Validate checks the query.
func (q GetHeatmapQuery) Validate() error {
	if q.WorkstationID == "" {
		return errors.New("get_heatmap: workstation ID is required")
	}
	if q.TotalStudents < 0 {
		return errors.New("get_heatmap: total students must be >= 0")
	}
	return nil
}

// StepRecommendations pairs a problem step with its suggested resources.
type StepRecommendations struct {
	StepID    string              `json:"step_id"`
	Resources []behavior.Resource `json:"resources"`
}

// GetHeatmapResult is the aggregated view.
type GetHeatmapResult struct {
	Heatmap         *behavior.Heatmap     `json:"heatmap"`
	Recommendations []StepRecommendations `json:"recommendations,omitempty"`
}

// GetHeatmapHandler serves heatmap reads.
type GetHeatmapHandler struct {
	repo      behavior.Repository
	catalog   ResourceCatalog
	flags     *config.FeatureFlags
	threshold float64
}

// NewGetHeatmapHandler creates the handler. threshold <= 0 falls back to
// behavior.DefaultCommonErrorThreshold.
func NewGetHeatmapHandler(
	repo behavior.Repository,
	catalog ResourceCatalog,
	flags *config.FeatureFlags,
	threshold float64,
) *GetHeatmapHandler {
	return &GetHeatmapHandler{
		repo:      repo,
		catalog:   catalog,
		flags:     flags,
		threshold: threshold,
	}
}

// Handle executes the query.
func (h *GetHeatmapHandler) Handle(ctx context.Context, query GetHeatmapQuery) (*GetHeatmapResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if !h.enabled(config.FeatureBehaviorHeatmap, query.UserID) {
		return nil, shared.ErrFeatureDisabled
	}

	stats, err := h.repo.CountErrorsByStep(ctx, query.WorkstationID)
	if err != nil {
		return nil, fmt.Errorf("get_heatmap: %w", err)
	}

	heatmap := behavior.BuildHeatmap(stats, query.TotalStudents, h.threshold)
	result := &GetHeatmapResult{Heatmap: heatmap}

	if query.IncludeRecommendations &&
		h.catalog != nil &&
		h.enabled(config.FeatureBehaviorRecommendations, query.UserID) {
		recs, err := h.recommend(ctx, query.WorkstationID, heatmap)
		if err != nil {
			return nil, fmt.Errorf("get_heatmap: %w", err)
		}
		result.Recommendations = recs
	}
	return result, nil
}

func (h *GetHeatmapHandler) recommend(ctx context.Context, workstationID shared.WorkstationID, heatmap *behavior.Heatmap) ([]StepRecommendations, error) {
	steps := heatmap.HighFrequencySteps()
	if len(steps) == 0 {
		return nil, nil
	}

	candidates, err := h.catalog.Resources(ctx, workstationID)
	if err != nil {
		return nil, err
	}

	recs := make([]StepRecommendations, 0, len(steps))
	for _, step := range steps {
		resources := behavior.Recommend(candidates, behavior.RecommendRequest{
			WorkstationID: workstationID,
			StageID:       step.StepID,
		})
		if len(resources) == 0 {
			continue
		}
		recs = append(recs, StepRecommendations{
			StepID:    step.StepID,
			Resources: resources,
		})
	}
	return recs, nil
}

func (h *GetHeatmapHandler) enabled(feature string, userID shared.UserID) bool {
	if h.flags == nil {
		return true
	}
	return h.flags.IsEnabled(feature, &config.FeatureContext{UserID: string(userID)})
}
