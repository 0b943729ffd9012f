package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCaseRunSetStatus(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		initial   string
		target    string
		wantErr   error
		wantClose bool
	}{
		{name: "idle to running leaves close date unset", initial: CaseRunIdle, target: CaseRunRunning},
		{name: "running to passed stamps close date", initial: CaseRunRunning, target: CaseRunPassed, wantClose: true},
		{name: "idle to failed stamps close date", initial: CaseRunIdle, target: CaseRunFailed, wantClose: true},
		{name: "blocked is complete", initial: CaseRunIdle, target: CaseRunBlocked, wantClose: true},
		{name: "waived is complete", initial: CaseRunIdle, target: CaseRunWaived, wantClose: true},
		{name: "passed back to idle clears close date", initial: CaseRunPassed, target: CaseRunIdle},
		{name: "paused is not complete", initial: CaseRunRunning, target: CaseRunPaused},
		{name: "unknown status rejected", initial: CaseRunIdle, target: "DONE", wantErr: ErrInvalidStatus},
		{name: "empty status rejected", initial: CaseRunIdle, target: "", wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr := &CaseRun{CaseRunID: "cr", Status: tt.initial}
			if IsCompleteStatus(tt.initial) {
				earlier := at.Add(-time.Hour)
				cr.CloseDate = &earlier
			}
			err := cr.SetStatus(tt.target, "tester", at)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.initial, cr.Status, "status should not change on error")
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.target, cr.Status)
			assert.Equal(t, "tester", cr.TestedByID)
			if tt.wantClose {
				if assert.NotNil(t, cr.CloseDate) {
					assert.Equal(t, at, *cr.CloseDate)
				}
			} else {
				assert.Nil(t, cr.CloseDate)
			}
		})
	}
}

func TestCaseRunSetStatusKeepsTesterWhenEmpty(t *testing.T) {
	cr := &CaseRun{Status: CaseRunIdle, TestedByID: "alice"}
	assert.NoError(t, cr.SetStatus(CaseRunRunning, "", time.Now()))
	assert.Equal(t, "alice", cr.TestedByID)
}

func TestStatusClassification(t *testing.T) {
	assert.Equal(t,
		[]string{CaseRunPassed, CaseRunFailed, CaseRunBlocked, CaseRunError, CaseRunWaived},
		CompleteStatuses())
	assert.True(t, IsFailureStatus(CaseRunFailed))
	assert.True(t, IsFailureStatus(CaseRunError))
	assert.False(t, IsFailureStatus(CaseRunBlocked))
	assert.False(t, IsCompleteStatus(CaseRunIdle))
}

func TestTestRunFinishReopen(t *testing.T) {
	r := &TestRun{RunID: "r"}
	assert.False(t, r.IsFinished())

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.Finish(first)
	assert.True(t, r.IsFinished())

	r.Finish(first.Add(time.Hour))
	assert.Equal(t, first, *r.StopDate, "finish is idempotent")

	r.Reopen()
	assert.False(t, r.IsFinished())
}
