package types

// CaseQuery selects cases for search. Zero-valued fields do not constrain.
type CaseQuery struct {
	Summary     string // Case-insensitive substring.
	Status      string
	Priority    string
	CategoryID  string
	AuthorID    string
	Tag         string // Tag name.
	PlanID      string
	IsAutomated *int
	Limit       int
}

// PlanQuery selects plans for search. Zero-valued fields do not constrain.
type PlanQuery struct {
	Name      string // Case-insensitive substring.
	ProductID string
	TypeID    string
	AuthorID  string
	OwnerID   string
	IsActive  *bool
	Tag       string // Tag name.
	Limit     int
}

// RunQuery selects runs for search. Zero-valued fields do not constrain.
type RunQuery struct {
	Summary   string // Case-insensitive substring.
	PlanID    string
	BuildID   string
	ManagerID string
	Running   *bool // true: no stop date; false: finished.
	Limit     int
}

// Querier answers the searches and aggregate counts that plain table
// equality filters cannot express.
type Querier interface {
	SearchCases(q CaseQuery) ([]*TestCase, error)
	SearchPlans(q PlanQuery) ([]*TestPlan, error)
	SearchRuns(q RunQuery) ([]*TestRun, error)

	// CaseRunStatusCounts returns run ID → status → count for the given runs.
	CaseRunStatusCounts(runIDs ...string) (map[string]map[string]int, error)
	// CaseStatusCounts returns case status → count over a plan's cases.
	CaseStatusCounts(planID string) (map[string]int, error)
	// AssigneeStatusCounts returns assignee ID → status → count for a run.
	// Unassigned case-runs are reported under the empty ID.
	AssigneeStatusCounts(runID string) (map[string]map[string]int, error)
	// MaxPlanSortKey returns the largest plan_case sort key of a plan, or 0.
	MaxPlanSortKey(planID string) (int, error)
}

// Store is the storage surface the service layer runs on.
type Store interface {
	GetTable(name string) (Table, error)
	Querier
}
