package tcms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func TestComments(t *testing.T) {
	e := newTestEnv(t)
	p := e.plan(t, "p")
	bob, err := e.svc.CreateUser(e.ctx, "bob", "", "", false)
	require.NoError(t, err)
	moderator, err := e.svc.CreateUser(e.ctx, "mod", "", "", false)
	require.NoError(t, err)
	moderator, err = e.svc.Grant(e.ctx, moderator.UserID, types.PermDeleteComment)
	require.NoError(t, err)

	first, err := e.svc.PostComment(e.ctx, types.ObjectPlan, p.PlanID, e.user.UserID, "looks good")
	require.NoError(t, err)
	assert.Equal(t, signals.CommentPosted, e.lastEvent().Signal)
	second, err := e.svc.PostComment(e.ctx, types.ObjectPlan, p.PlanID, bob.UserID, "agreed")
	require.NoError(t, err)

	list, err := e.svc.ListComments(types.ObjectPlan, p.PlanID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.CommentID, list[0].CommentID, "oldest first")

	assert.ErrorIs(t, e.svc.RemoveComment(e.ctx, first.CommentID, bob), types.ErrPermissionDenied)
	assert.ErrorIs(t, e.svc.RemoveComment(e.ctx, first.CommentID, nil), types.ErrPermissionDenied)
	require.NoError(t, e.svc.RemoveComment(e.ctx, first.CommentID, e.user), "authors remove their own")
	require.NoError(t, e.svc.RemoveComment(e.ctx, second.CommentID, moderator))

	list, err = e.svc.ListComments(types.ObjectPlan, p.PlanID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPostComment_Invalid(t *testing.T) {
	e := newTestEnv(t)
	p := e.plan(t, "p")

	tests := []struct {
		name       string
		objectType string
		objectID   string
		text       string
		wantErr    error
	}{
		{"blank text", types.ObjectPlan, p.PlanID, "  ", types.ErrInvalidContent},
		{"unknown object type", "build", p.PlanID, "hi", types.ErrInvalidObjectType},
		{"missing object", types.ObjectRun, "nope", "hi", types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.PostComment(e.ctx, tt.objectType, tt.objectID, e.user.UserID, tt.text)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLinkReferences(t *testing.T) {
	e := newTestEnv(t)
	p := e.plan(t, "p")
	a := e.confirmedCase(t, "a", p.PlanID)
	r := e.run(t, p.PlanID, false, a.CaseID)
	crs, err := e.svc.RunCaseRuns(r.RunID)
	require.NoError(t, err)
	crID := crs[0].CaseRunID

	l, err := e.svc.AddLinkReference(e.ctx, types.ObjectCaseRun, crID, "console log", "https://ci.example.com/42/log")
	require.NoError(t, err)
	assert.Equal(t, "console log", l.Name)

	for _, bad := range []string{"ftp://x/y", "/relative", "https://", "not a url"} {
		_, err := e.svc.AddLinkReference(e.ctx, types.ObjectCaseRun, crID, "log", bad)
		assert.ErrorIs(t, err, types.ErrInvalidURL, bad)
	}
	_, err = e.svc.AddLinkReference(e.ctx, types.ObjectCaseRun, crID, "", "https://ci.example.com")
	assert.ErrorIs(t, err, types.ErrInvalidName)

	links, err := e.svc.ListLinkReferences(types.ObjectCaseRun, crID)
	require.NoError(t, err)
	require.Len(t, links, 1)

	require.NoError(t, e.svc.RemoveLinkReference(e.ctx, l.LinkID))
	assert.ErrorIs(t, e.svc.RemoveLinkReference(e.ctx, l.LinkID), types.ErrNotFound)
}
