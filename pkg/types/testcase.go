package types

import "time"

// Case statuses.
const (
	CaseStatusProposed   = "PROPOSED"
	CaseStatusConfirmed  = "CONFIRMED"
	CaseStatusDisabled   = "DISABLED"
	CaseStatusNeedUpdate = "NEED_UPDATE"
)

// CaseStatuses lists case statuses in display order.
var CaseStatuses = []string{
	CaseStatusProposed,
	CaseStatusConfirmed,
	CaseStatusDisabled,
	CaseStatusNeedUpdate,
}

// Priorities lists valid case priorities, highest first.
var Priorities = []string{"P1", "P2", "P3", "P4", "P5"}

// Automation values for TestCase.IsAutomated.
const (
	AutomationManual    = 0
	AutomationAutomated = 1
	AutomationBoth      = 2
)

// ValidCaseStatus reports whether s is a known case status.
func ValidCaseStatus(s string) bool {
	for _, v := range CaseStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

// TestCase is a reusable test specification. Its step text lives in
// versioned CaseText rows.
type TestCase struct {
	CaseID              string    `json:"case_id"`
	Summary             string    `json:"summary"`
	Status              string    `json:"status"`
	CategoryID          string    `json:"category_id"`
	Priority            string    `json:"priority"`
	AuthorID            string    `json:"author_id"`
	DefaultTesterID     string    `json:"default_tester_id"`
	ReviewerID          string    `json:"reviewer_id"`
	IsAutomated         int       `json:"is_automated"`
	IsAutomatedProposed bool      `json:"is_automated_proposed"`
	Script              string    `json:"script"`
	Arguments           string    `json:"arguments"`
	ExtraLink           string    `json:"extra_link"`
	Requirement         string    `json:"requirement"`
	Alias               string    `json:"alias"`
	EstimatedTime       int64     `json:"estimated_time"`
	Notes               string    `json:"notes"`
	CreatedAt           time.Time `json:"created_at"`
}

// SetStatus changes the case status.
// Returns ErrInvalidStatus if the status is not recognized.
func (c *TestCase) SetStatus(status string) error {
	if !ValidCaseStatus(status) {
		return ErrInvalidStatus
	}
	c.Status = status
	return nil
}

// Validate checks the fields every persisted case must carry.
func (c *TestCase) Validate() error {
	if c.Summary == "" {
		return ErrInvalidName
	}
	if !ValidCaseStatus(c.Status) {
		return ErrInvalidStatus
	}
	if !ValidPriority(c.Priority) {
		return ErrInvalidPriority
	}
	if c.IsAutomated < AutomationManual || c.IsAutomated > AutomationBoth {
		return ErrInvalidAutomation
	}
	return nil
}

// CaseText is one version of a case's steps. Versions start at 1.
type CaseText struct {
	CaseTextID        string    `json:"case_text_id"`
	CaseID            string    `json:"case_id"`
	Version           int       `json:"version"`
	AuthorID          string    `json:"author_id"`
	Action            string    `json:"action"`
	Effect            string    `json:"effect"`
	Setup             string    `json:"setup"`
	Breakdown         string    `json:"breakdown"`
	ActionChecksum    string    `json:"action_checksum"`
	EffectChecksum    string    `json:"effect_checksum"`
	SetupChecksum     string    `json:"setup_checksum"`
	BreakdownChecksum string    `json:"breakdown_checksum"`
	CreatedAt         time.Time `json:"created_at"`
}

// ComputeChecksums fills the four checksum fields from the text fields.
func (t *CaseText) ComputeChecksums() {
	t.ActionChecksum = Checksum(t.Action)
	t.EffectChecksum = Checksum(t.Effect)
	t.SetupChecksum = Checksum(t.Setup)
	t.BreakdownChecksum = Checksum(t.Breakdown)
}

// SameContent reports whether t and other carry identical text, compared by
// checksum. Both sides must have their checksums computed.
func (t *CaseText) SameContent(other *CaseText) bool {
	if other == nil {
		return false
	}
	return t.ActionChecksum == other.ActionChecksum &&
		t.EffectChecksum == other.EffectChecksum &&
		t.SetupChecksum == other.SetupChecksum &&
		t.BreakdownChecksum == other.BreakdownChecksum
}
