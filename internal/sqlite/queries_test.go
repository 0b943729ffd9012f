package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func TestSearchCases(t *testing.T) {
	b := attachedBackend(t)
	f := newFixture(t, b)
	planID := f.plan(t, b, "Regression")
	login := f.testCase(t, b, "Login with password")
	logout := f.testCase(t, b, "Logout")
	f.testCase(t, b, "Reset 100% of settings")

	_, err := mustTable(t, b, types.TableLinks).Set("", &types.Link{LinkType: types.LinkPlanCase, FromID: planID, ToID: logout})
	require.NoError(t, err)
	tagID, err := mustTable(t, b, types.TableTags).Set("", &types.Tag{Name: "auth"})
	require.NoError(t, err)
	_, err = mustTable(t, b, types.TableLinks).Set("", &types.Link{LinkType: types.LinkCaseTag, FromID: login, ToID: tagID})
	require.NoError(t, err)

	manual := types.AutomationManual
	tests := []struct {
		name  string
		query types.CaseQuery
		want  int
	}{
		{"all", types.CaseQuery{}, 3},
		{"summary substring ignores case", types.CaseQuery{Summary: "LOG"}, 2},
		{"percent is literal", types.CaseQuery{Summary: "100%"}, 1},
		{"by tag", types.CaseQuery{Tag: "auth"}, 1},
		{"by plan", types.CaseQuery{PlanID: planID}, 1},
		{"by status", types.CaseQuery{Status: types.CaseStatusConfirmed}, 0},
		{"by automation", types.CaseQuery{IsAutomated: &manual}, 3},
		{"limit", types.CaseQuery{Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.SearchCases(tt.query)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestSearchRuns_Running(t *testing.T) {
	b := attachedBackend(t)
	f := newFixture(t, b)
	planID := f.plan(t, b, "p")
	runs := mustTable(t, b, types.TableRuns)

	stop := time.Now().UTC()
	_, err := runs.Set("", &types.TestRun{Summary: "open", PlanID: planID, BuildID: f.buildID, ProductVersionID: f.versionID, ManagerID: f.userID})
	require.NoError(t, err)
	_, err = runs.Set("", &types.TestRun{Summary: "closed", PlanID: planID, BuildID: f.buildID, ProductVersionID: f.versionID, ManagerID: f.userID, StopDate: &stop})
	require.NoError(t, err)

	running := true
	got, err := b.SearchRuns(types.RunQuery{Running: &running})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "open", got[0].Summary)

	finished := false
	got, err = b.SearchRuns(types.RunQuery{Running: &finished, PlanID: planID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "closed", got[0].Summary)
}

func TestSearchPlans(t *testing.T) {
	b := attachedBackend(t)
	f := newFixture(t, b)
	f.plan(t, b, "Release 1.0")
	id := f.plan(t, b, "Nightly")

	plan, err := mustTable(t, b, types.TablePlans).Get(id)
	require.NoError(t, err)
	p := plan.(*types.TestPlan)
	p.IsActive = false
	_, err = mustTable(t, b, types.TablePlans).Set(id, p)
	require.NoError(t, err)

	active := true
	got, err := b.SearchPlans(types.PlanQuery{IsActive: &active, ProductID: f.productID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Release 1.0", got[0].Name)
}

func TestStatusCounts(t *testing.T) {
	b := attachedBackend(t)
	f := newFixture(t, b)
	planID := f.plan(t, b, "p")
	runs := mustTable(t, b, types.TableRuns)
	caseRuns := mustTable(t, b, types.TableCaseRuns)
	links := mustTable(t, b, types.TableLinks)

	run1, err := runs.Set("", &types.TestRun{Summary: "r1", PlanID: planID, BuildID: f.buildID, ProductVersionID: f.versionID, ManagerID: f.userID})
	require.NoError(t, err)
	run2, err := runs.Set("", &types.TestRun{Summary: "r2", PlanID: planID, BuildID: f.buildID, ProductVersionID: f.versionID, ManagerID: f.userID})
	require.NoError(t, err)

	statuses := []string{types.CaseRunPassed, types.CaseRunPassed, types.CaseRunFailed}
	for i, st := range statuses {
		caseID := f.testCase(t, b, "c")
		_, err := links.Set("", &types.Link{LinkType: types.LinkPlanCase, FromID: planID, ToID: caseID, SortKey: (i + 1) * 10})
		require.NoError(t, err)
		assignee := ""
		if i == 0 {
			assignee = f.userID
		}
		_, err = caseRuns.Set("", &types.CaseRun{RunID: run1, CaseID: caseID, BuildID: f.buildID, Status: st, AssigneeID: assignee})
		require.NoError(t, err)
		_, err = caseRuns.Set("", &types.CaseRun{RunID: run2, CaseID: caseID, BuildID: f.buildID})
		require.NoError(t, err)
	}

	counts, err := b.CaseRunStatusCounts(run1, run2)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]int{
		run1: {types.CaseRunPassed: 2, types.CaseRunFailed: 1},
		run2: {types.CaseRunIdle: 3},
	}, counts)

	empty, err := b.CaseRunStatusCounts()
	require.NoError(t, err)
	assert.Empty(t, empty)

	byCase, err := b.CaseStatusCounts(planID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{types.CaseStatusProposed: 3}, byCase)

	byAssignee, err := b.AssigneeStatusCounts(run1)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]int{
		f.userID: {types.CaseRunPassed: 1},
		"":       {types.CaseRunPassed: 1, types.CaseRunFailed: 1},
	}, byAssignee)

	maxKey, err := b.MaxPlanSortKey(planID)
	require.NoError(t, err)
	assert.Equal(t, 30, maxKey)

	none, err := b.MaxPlanSortKey("missing")
	require.NoError(t, err)
	assert.Zero(t, none)
}
