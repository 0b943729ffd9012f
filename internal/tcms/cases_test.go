package tcms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func TestCreateCase(t *testing.T) {
	e := newTestEnv(t)
	p := e.plan(t, "p")
	ui, err := e.svc.AddComponent(e.ctx, e.product.ProductID, "ui", "", "")
	require.NoError(t, err)

	c, err := e.svc.CreateCase(e.ctx, NewCase{
		Summary:      "login",
		CategoryID:   e.category.CategoryID,
		AuthorID:     e.user.UserID,
		Text:         CaseTextInput{Action: "log in", Effect: "dashboard"},
		PlanIDs:      []string{p.PlanID},
		Tags:         []string{"smoke"},
		ComponentIDs: []string{ui.ComponentID},
	})
	require.NoError(t, err)
	assert.Equal(t, types.CaseStatusProposed, c.Status)
	assert.Equal(t, "P3", c.Priority)
	assert.Contains(t, e.signalsSent(), signals.CaseCreated)

	text, err := e.svc.LatestCaseText(c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, 1, text.Version)
	assert.Equal(t, types.Checksum("log in"), text.ActionChecksum)

	plans, err := e.svc.CasePlans(c.CaseID)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, p.PlanID, plans[0].PlanID)

	tags, err := e.svc.CaseTags(c.CaseID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "smoke", tags[0].Name)

	comps, err := e.svc.CaseComponents(c.CaseID)
	require.NoError(t, err)
	require.Len(t, comps, 1)
}

func TestCreateCase_Invalid(t *testing.T) {
	e := newTestEnv(t)
	other, err := e.svc.CreateProduct(e.ctx, "Gadget", "", "")
	require.NoError(t, err)
	foreign, err := e.svc.AddComponent(e.ctx, other.ProductID, "api", "", "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		nc      NewCase
		wantErr error
	}{
		{"missing summary", NewCase{CategoryID: e.category.CategoryID, AuthorID: e.user.UserID}, types.ErrInvalidName},
		{"unknown category", NewCase{Summary: "s", CategoryID: "nope", AuthorID: e.user.UserID}, types.ErrNotFound},
		{"bad priority", NewCase{Summary: "s", Priority: "P0", CategoryID: e.category.CategoryID, AuthorID: e.user.UserID}, types.ErrInvalidPriority},
		{"unknown plan", NewCase{Summary: "s", CategoryID: e.category.CategoryID, AuthorID: e.user.UserID, PlanIDs: []string{"nope"}}, types.ErrNotFound},
		{"foreign component", NewCase{Summary: "s", CategoryID: e.category.CategoryID, AuthorID: e.user.UserID, ComponentIDs: []string{foreign.ComponentID}}, types.ErrInvalidReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.CreateCase(e.ctx, tt.nc)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	all, err := e.svc.ListCases(nil)
	require.NoError(t, err)
	assert.Empty(t, all, "failed creates leave no cases behind")
}

func TestStoreCaseText_Versions(t *testing.T) {
	e := newTestEnv(t)
	c := e.confirmedCase(t, "a")

	same := CaseTextInput{Action: "do a", Effect: "it works"}
	got, created, err := e.svc.StoreCaseText(e.ctx, c.CaseID, e.user.UserID, same)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, got.Version)

	got, created, err = e.svc.StoreCaseText(e.ctx, c.CaseID, e.user.UserID, CaseTextInput{Action: "do a", Effect: "it works", Setup: "boot"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, got.Version)

	v1, err := e.svc.CaseText(c.CaseID, 1)
	require.NoError(t, err)
	assert.Empty(t, v1.Setup)
	latest, err := e.svc.CaseText(c.CaseID, 0)
	require.NoError(t, err)
	assert.Equal(t, "boot", latest.Setup)

	_, _, err = e.svc.StoreCaseText(e.ctx, "missing", e.user.UserID, same)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpdateCaseAndStatus(t *testing.T) {
	e := newTestEnv(t)
	c := e.confirmedCase(t, "a")

	got, err := e.svc.UpdateCase(e.ctx, c.CaseID, func(c *types.TestCase) error {
		c.Priority = "P1"
		c.Script = "run.sh"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "P1", got.Priority)

	_, err = e.svc.SetCaseStatus(e.ctx, c.CaseID, "BROKEN")
	assert.ErrorIs(t, err, types.ErrInvalidStatus)
	got, err = e.svc.SetCaseStatus(e.ctx, c.CaseID, types.CaseStatusDisabled)
	require.NoError(t, err)
	assert.Equal(t, types.CaseStatusDisabled, got.Status)

	_, err = e.svc.UpdateCase(e.ctx, c.CaseID, func(c *types.TestCase) error {
		c.Priority = "P9"
		return nil
	})
	assert.ErrorIs(t, err, types.ErrInvalidPriority)
}

func TestCloneCase(t *testing.T) {
	e := newTestEnv(t)
	p1 := e.plan(t, "p1")
	p2 := e.plan(t, "p2")
	src := e.confirmedCase(t, "a", p1.PlanID)
	require.NoError(t, e.svc.AddCaseTag(e.ctx, src.CaseID, "smoke"))
	bob, err := e.svc.CreateUser(e.ctx, "bob", "", "", false)
	require.NoError(t, err)

	c, err := e.svc.CloneCase(e.ctx, src.CaseID, CloneCaseOptions{AuthorID: bob.UserID, PlanIDs: []string{p2.PlanID}})
	require.NoError(t, err)
	assert.NotEqual(t, src.CaseID, c.CaseID)
	assert.Equal(t, bob.UserID, c.AuthorID)
	assert.Equal(t, src.Status, c.Status)

	plans, err := e.svc.CasePlans(c.CaseID)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, p2.PlanID, plans[0].PlanID)
	tags, err := e.svc.CaseTags(c.CaseID)
	require.NoError(t, err)
	require.Len(t, tags, 1)

	t.Run("into another product", func(t *testing.T) {
		other, err := e.svc.CreateProduct(e.ctx, "Gadget", "", "")
		require.NoError(t, err)
		c, err := e.svc.CloneCase(e.ctx, src.CaseID, CloneCaseOptions{ProductID: other.ProductID})
		require.NoError(t, err)
		cat, err := e.svc.CategoryByName(other.ProductID, types.DefaultCategoryName)
		require.NoError(t, err)
		assert.Equal(t, cat.CategoryID, c.CategoryID)
	})
}

func TestLinkUnlinkPlan(t *testing.T) {
	e := newTestEnv(t)
	p := e.plan(t, "p")
	c := e.confirmedCase(t, "a")

	require.NoError(t, e.svc.LinkPlan(e.ctx, c.CaseID, p.PlanID))
	plans, err := e.svc.CasePlans(c.CaseID)
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	require.NoError(t, e.svc.UnlinkPlan(e.ctx, c.CaseID, p.PlanID))
	assert.ErrorIs(t, e.svc.UnlinkPlan(e.ctx, c.CaseID, p.PlanID), ErrNotLinked)
}

func TestCaseTagsAndComponents(t *testing.T) {
	e := newTestEnv(t)
	c := e.confirmedCase(t, "a")

	require.NoError(t, e.svc.AddCaseTag(e.ctx, c.CaseID, "smoke"))
	assert.ErrorIs(t, e.svc.AddCaseTag(e.ctx, "missing", "smoke"), types.ErrNotFound)
	require.NoError(t, e.svc.RemoveCaseTag(e.ctx, c.CaseID, "smoke"))
	tags, err := e.svc.CaseTags(c.CaseID)
	require.NoError(t, err)
	assert.Empty(t, tags)

	ui, err := e.svc.AddComponent(e.ctx, e.product.ProductID, "ui", "", "")
	require.NoError(t, err)
	require.NoError(t, e.svc.AddCaseComponent(e.ctx, c.CaseID, ui.ComponentID))
	require.NoError(t, e.svc.RemoveCaseComponent(e.ctx, c.CaseID, ui.ComponentID))
	assert.ErrorIs(t, e.svc.RemoveCaseComponent(e.ctx, c.CaseID, ui.ComponentID), ErrNotLinked)
}
