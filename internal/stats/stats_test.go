package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// fakeQuerier returns canned counts.
type fakeQuerier struct {
	types.Querier
	runCounts      map[string]map[string]int
	caseCounts     map[string]int
	assigneeCounts map[string]map[string]int
	err            error
}

func (f *fakeQuerier) CaseRunStatusCounts(runIDs ...string) (map[string]map[string]int, error) {
	return f.runCounts, f.err
}

func (f *fakeQuerier) CaseStatusCounts(string) (map[string]int, error) {
	return f.caseCounts, f.err
}

func (f *fakeQuerier) AssigneeStatusCounts(string) (map[string]map[string]int, error) {
	return f.assigneeCounts, f.err
}

func TestPercent(t *testing.T) {
	tests := []struct {
		n, total int
		want     float64
	}{
		{0, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{3, 3, 100},
		{1, 8, 12.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.n, tt.total), "%d/%d", tt.n, tt.total)
	}
}

func TestRunStatusSummary(t *testing.T) {
	q := &fakeQuerier{runCounts: map[string]map[string]int{
		"r1": {types.CaseRunPassed: 2, types.CaseRunFailed: 1, types.CaseRunIdle: 1},
	}}

	s, err := RunStatusSummary(q, "r1")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 3, s.Complete)
	assert.Equal(t, 1, s.Failure)
	assert.Equal(t, 75.0, s.CompletePercent)
	assert.Equal(t, 33.3, s.FailurePercentInComplete)
	assert.Equal(t, 25.0, s.FailurePercentInTotal)
	assert.Len(t, s.Counts, len(types.CaseRunStatuses), "every status is reported")
	assert.Equal(t, 0, s.Counts[types.CaseRunWaived])
	assert.Equal(t, 50.0, s.Percents[types.CaseRunPassed])
}

func TestRunsStatusSummary_EmptyRun(t *testing.T) {
	q := &fakeQuerier{runCounts: map[string]map[string]int{}}

	all, err := RunsStatusSummary(q, "r1", "r2")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Zero(t, all["r2"].Total)
	assert.Zero(t, all["r2"].CompletePercent)
}

func TestRunsStatusSummary_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := RunsStatusSummary(&fakeQuerier{err: boom}, "r1")
	assert.ErrorIs(t, err, boom)
}

func TestPlanCaseStatusCounts(t *testing.T) {
	q := &fakeQuerier{caseCounts: map[string]int{types.CaseStatusConfirmed: 4}}

	got, err := PlanCaseStatusCounts(q, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		types.CaseStatusProposed:   0,
		types.CaseStatusConfirmed:  4,
		types.CaseStatusDisabled:   0,
		types.CaseStatusNeedUpdate: 0,
	}, got)
}

func TestAssigneeProgress(t *testing.T) {
	q := &fakeQuerier{assigneeCounts: map[string]map[string]int{
		"bob":   {types.CaseRunPassed: 1, types.CaseRunRunning: 1},
		"alice": {types.CaseRunBlocked: 2},
		"":      {types.CaseRunIdle: 3},
	}}

	got, err := AssigneeProgress(q, "r1")
	require.NoError(t, err)
	assert.Equal(t, []Progress{
		{AssigneeID: "", Total: 3, Complete: 0, Percent: 0},
		{AssigneeID: "alice", Total: 2, Complete: 2, Percent: 100},
		{AssigneeID: "bob", Total: 2, Complete: 1, Percent: 50},
	}, got)
}

func TestGroupByPercent(t *testing.T) {
	got := GroupByPercent(map[string]int{"a": 1, "b": 3}, 4)
	assert.Equal(t, map[string]float64{"a": 25, "b": 75}, got)
}
