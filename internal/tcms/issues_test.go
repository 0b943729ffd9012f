package tcms

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/internal/tracker"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func (e *testEnv) bugzilla(t *testing.T, name string, productIDs ...string) *types.IssueTracker {
	t.Helper()
	tr, err := e.svc.CreateTracker(e.ctx, &types.IssueTracker{
		Name:                name,
		ServiceURL:          "https://bugzilla.example.com/",
		IssueReportEndpoint: "/enter_bug.cgi",
		IssueURLFmt:         "https://bugzilla.example.com/show_bug.cgi?id={issue_key}",
		ValidateRegex:       `^\d+$`,
		ClassPath:           types.TrackerClassBugzilla,
		IssueReportParams:   "keywords: Regression",
		IssueReportTempl:    "{case_text}",
	}, productIDs...)
	require.NoError(t, err)
	return tr
}

func TestCreateTracker_Invalid(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.svc.CreateTracker(e.ctx, &types.IssueTracker{
		Name: "x", ServiceURL: "https://x", IssueURLFmt: "https://x/{issue_key}", ClassPath: "redmine",
	})
	assert.ErrorIs(t, err, tracker.ErrUnknownService)

	_, err = e.svc.CreateTracker(e.ctx, &types.IssueTracker{
		Name: "y", ServiceURL: "https://y", IssueURLFmt: "https://y/{issue_key}", ValidateRegex: "(",
	})
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestAttachIssue(t *testing.T) {
	e := newTestEnv(t)
	p := e.plan(t, "p")
	a := e.confirmedCase(t, "a", p.PlanID)
	b := e.confirmedCase(t, "b", p.PlanID)
	r := e.run(t, p.PlanID, false, a.CaseID, b.CaseID)
	crs, err := e.svc.RunCaseRuns(r.RunID)
	require.NoError(t, err)
	bz := e.bugzilla(t, "Bugzilla", e.product.ProductID)
	unbound := e.bugzilla(t, "Unbound")

	issue, err := e.svc.AttachIssue(e.ctx, NewIssue{TrackerID: bz.TrackerID, IssueKey: "1234", CaseRunID: crs[0].CaseRunID, ActorID: e.user.UserID})
	require.NoError(t, err)
	assert.Equal(t, a.CaseID, issue.CaseID, "the case comes from the case-run")
	ev := e.lastEvent()
	assert.Equal(t, signals.IssueAttached, ev.Signal)
	assert.Equal(t, types.ObjectCaseRun, ev.ObjectType)

	u, err := e.svc.IssueURL(issue)
	require.NoError(t, err)
	assert.Equal(t, "https://bugzilla.example.com/show_bug.cgi?id=1234", u)

	tests := []struct {
		name    string
		ni      NewIssue
		wantErr error
	}{
		{"key fails regex", NewIssue{TrackerID: bz.TrackerID, IssueKey: "BZ-1", CaseID: a.CaseID}, tracker.ErrInvalidKey},
		{"duplicate", NewIssue{TrackerID: bz.TrackerID, IssueKey: "1234", CaseRunID: crs[0].CaseRunID}, ErrDuplicateIssue},
		{"tracker not bound", NewIssue{TrackerID: unbound.TrackerID, IssueKey: "1", CaseID: a.CaseID}, ErrTrackerNotBound},
		{"case-run of another case", NewIssue{TrackerID: bz.TrackerID, IssueKey: "1", CaseID: a.CaseID, CaseRunID: crs[1].CaseRunID}, types.ErrInvalidReference},
		{"unknown tracker", NewIssue{TrackerID: "nope", IssueKey: "1", CaseID: a.CaseID}, types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.AttachIssue(e.ctx, tt.ni)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = e.svc.AttachIssue(e.ctx, NewIssue{TrackerID: bz.TrackerID, IssueKey: "1234", CaseID: a.CaseID})
	require.NoError(t, err, "the same key on the case itself is a separate attachment")

	byRun, err := e.svc.ListIssues("", crs[0].CaseRunID)
	require.NoError(t, err)
	assert.Len(t, byRun, 1)
	byCase, err := e.svc.ListIssues(a.CaseID, "")
	require.NoError(t, err)
	assert.Len(t, byCase, 2)

	require.NoError(t, e.svc.DetachIssue(e.ctx, a.CaseID, "1234"))
	byCase, err = e.svc.ListIssues(a.CaseID, "")
	require.NoError(t, err)
	assert.Empty(t, byCase)
	assert.ErrorIs(t, e.svc.DetachIssue(e.ctx, a.CaseID, "1234"), types.ErrNotFound)
}

func TestReportIssueURL(t *testing.T) {
	e := newTestEnv(t)
	p := e.plan(t, "p")
	a := e.confirmedCase(t, "login", p.PlanID)
	r := e.run(t, p.PlanID, false, a.CaseID)
	crs, err := e.svc.RunCaseRuns(r.RunID)
	require.NoError(t, err)
	bz := e.bugzilla(t, "Bugzilla", e.product.ProductID)

	raw, err := e.svc.ReportIssueURL(crs[0].CaseRunID, bz.TrackerID)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/enter_bug.cgi", u.Path)
	q := u.Query()
	assert.Equal(t, "Widget", q.Get("product"))
	assert.Equal(t, "1.0", q.Get("version"))
	assert.Equal(t, "Regression", q.Get("keywords"))
	assert.Equal(t, "do login", q.Get("comment"))
}
