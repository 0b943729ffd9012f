package types

import "time"

// Link type constants. Each names the from → to direction of the edge.
const (
	LinkPlanCase       = "plan_case"       // plan → case; SortKey orders cases in the plan
	LinkCaseTag        = "case_tag"        // case → tag
	LinkPlanTag        = "plan_tag"        // plan → tag
	LinkRunTag         = "run_tag"         // run → tag
	LinkCaseComponent  = "case_component"  // case → component
	LinkPlanComponent  = "plan_component"  // plan → component
	LinkRunCC          = "run_cc"          // run → user
	LinkRunEnvValue    = "run_env_value"   // run → env value
	LinkPlanEnvGroup   = "plan_env_group"  // plan → env group
	LinkTrackerProduct = "tracker_product" // tracker → product
)

var validLinkTypes = map[string]bool{
	LinkPlanCase:       true,
	LinkCaseTag:        true,
	LinkPlanTag:        true,
	LinkRunTag:         true,
	LinkCaseComponent:  true,
	LinkPlanComponent:  true,
	LinkRunCC:          true,
	LinkRunEnvValue:    true,
	LinkPlanEnvGroup:   true,
	LinkTrackerProduct: true,
}

// ValidLinkType reports whether t is a known link type.
func ValidLinkType(t string) bool { return validLinkTypes[t] }

// Link represents a directed many-to-many edge between entities.
type Link struct {
	LinkID    string    `json:"link_id"`
	LinkType  string    `json:"link_type"`
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	SortKey   int       `json:"sort_key"`
	CreatedAt time.Time `json:"created_at"`
}
