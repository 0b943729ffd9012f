package types

import "time"

// Case-run statuses.
const (
	CaseRunIdle    = "IDLE"
	CaseRunRunning = "RUNNING"
	CaseRunPaused  = "PAUSED"
	CaseRunPassed  = "PASSED"
	CaseRunFailed  = "FAILED"
	CaseRunBlocked = "BLOCKED"
	CaseRunError   = "ERROR"
	CaseRunWaived  = "WAIVED"
)

// CaseRunStatuses lists every case-run status in display order.
var CaseRunStatuses = []string{
	CaseRunIdle,
	CaseRunRunning,
	CaseRunPaused,
	CaseRunPassed,
	CaseRunFailed,
	CaseRunBlocked,
	CaseRunError,
	CaseRunWaived,
}

var (
	completeStatuses = map[string]bool{
		CaseRunPassed:  true,
		CaseRunFailed:  true,
		CaseRunBlocked: true,
		CaseRunError:   true,
		CaseRunWaived:  true,
	}
	failureStatuses = map[string]bool{
		CaseRunFailed: true,
		CaseRunError:  true,
	}
)

// ValidCaseRunStatus reports whether s is a known case-run status.
func ValidCaseRunStatus(s string) bool {
	for _, v := range CaseRunStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsCompleteStatus reports whether s ends a case-run's execution.
func IsCompleteStatus(s string) bool { return completeStatuses[s] }

// IsFailureStatus reports whether s counts as a failure.
func IsFailureStatus(s string) bool { return failureStatuses[s] }

// CompleteStatuses returns the complete statuses in display order.
func CompleteStatuses() []string {
	var out []string
	for _, s := range CaseRunStatuses {
		if completeStatuses[s] {
			out = append(out, s)
		}
	}
	return out
}

// TestRun is one execution of a subset of a plan's cases against a build.
// A nil StopDate means the run is still running.
type TestRun struct {
	RunID               string     `json:"run_id"`
	Summary             string     `json:"summary"`
	PlanID              string     `json:"plan_id"`
	BuildID             string     `json:"build_id"`
	ProductVersionID    string     `json:"product_version_id"`
	ManagerID           string     `json:"manager_id"`
	DefaultTesterID     string     `json:"default_tester_id"`
	StartDate           time.Time  `json:"start_date"`
	StopDate            *time.Time `json:"stop_date"`
	EstimatedTime       int64      `json:"estimated_time"`
	Notes               string     `json:"notes"`
	AutoUpdateRunStatus bool       `json:"auto_update_run_status"`
}

// IsFinished reports whether the run has a stop date.
func (r *TestRun) IsFinished() bool { return r.StopDate != nil }

// Finish stamps the stop date. Idempotent: a finished run keeps its date.
func (r *TestRun) Finish(at time.Time) {
	if r.StopDate == nil {
		r.StopDate = &at
	}
}

// Reopen clears the stop date.
func (r *TestRun) Reopen() { r.StopDate = nil }

// CaseRun records one case's execution within one run.
type CaseRun struct {
	CaseRunID       string     `json:"case_run_id"`
	RunID           string     `json:"run_id"`
	CaseID          string     `json:"case_id"`
	CaseTextVersion int        `json:"case_text_version"`
	AssigneeID      string     `json:"assignee_id"`
	TestedByID      string     `json:"tested_by_id"`
	Status          string     `json:"status"`
	BuildID         string     `json:"build_id"`
	EnvironmentID   int        `json:"environment_id"`
	SortKey         int        `json:"sort_key"`
	CloseDate       *time.Time `json:"close_date"`
	Notes           string     `json:"notes"`
}

// SetStatus changes the status and records who tested it. Moving into a
// complete status stamps CloseDate; moving out of one clears it.
// Returns ErrInvalidStatus if the status is not recognized.
func (cr *CaseRun) SetStatus(status, testerID string, at time.Time) error {
	if !ValidCaseRunStatus(status) {
		return ErrInvalidStatus
	}
	cr.Status = status
	if testerID != "" {
		cr.TestedByID = testerID
	}
	if IsCompleteStatus(status) {
		cr.CloseDate = &at
	} else {
		cr.CloseDate = nil
	}
	return nil
}

// IsComplete reports whether the case-run has reached a complete status.
func (cr *CaseRun) IsComplete() bool { return IsCompleteStatus(cr.Status) }
