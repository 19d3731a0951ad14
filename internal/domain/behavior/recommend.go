package behavior

import (
	"sort"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
)

// Resource is a remedial learning resource that can be recommended to a
// learner after a classified error.
type Resource struct {
	// ID is the unique resource identifier.
	ID string `json:"id"`

	// Title is the display title.
	Title string `json:"title"`

	// Category is the error category the resource remediates.
	Category ErrorCategory `json:"category"`

	// WorkstationID binds the resource to one workstation (empty = generic).
	WorkstationID shared.WorkstationID `json:"workstation_id,omitempty"`

	// StageID binds the resource to one task stage (empty = any stage).
	StageID string `json:"stage_id,omitempty"`

	// URL points at the resource content.
	URL string `json:"url,omitempty"`
}

// RecommendRequest describes the context a recommendation is made in.
type RecommendRequest struct {
	WorkstationID shared.WorkstationID
	StageID       string
	Category      ErrorCategory
}

// MaxRecommendations caps the recommendation list.
const MaxRecommendations = 5

// Specificity tiers: workstation-specific beats category-default beats
// stage-specific.
const (
	tierWorkstation = 3
	tierCategory    = 2
	tierStage       = 1
)

// Recommend ranks candidate resources for the request and returns at most
// MaxRecommendations, deduplicated by ID. Candidates that match nothing in
// the request are dropped.
func Recommend(candidates []Resource, req RecommendRequest) []Resource {
	type ranked struct {
		resource Resource
		tier     int
	}

	var matched []ranked
	for _, r := range candidates {
		tier := specificity(r, req)
		if tier == 0 {
			continue
		}
		matched = append(matched, ranked{resource: r, tier: tier})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].tier > matched[j].tier
	})

	seen := make(map[string]bool)
	var out []Resource
	for _, m := range matched {
		if seen[m.resource.ID] {
			continue
		}
		seen[m.resource.ID] = true
		out = append(out, m.resource)
		if len(out) == MaxRecommendations {
			break
		}
	}
	return out
}

// specificity returns the match tier for a candidate, 0 for no match.
func specificity(r Resource, req RecommendRequest) int {
	switch {
	case r.WorkstationID != "" && r.WorkstationID == req.WorkstationID:
		return tierWorkstation
	case r.WorkstationID == "" && r.StageID == "" && r.Category == req.Category:
		return tierCategory
	case r.StageID != "" && r.StageID == req.StageID:
		return tierStage
	}
	return 0
}
