package tcms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

func TestCreatePlan(t *testing.T) {
	e := newTestEnv(t)

	p, err := e.svc.CreatePlan(e.ctx, NewPlan{
		Name:             "Release 1.0",
		ProductID:        e.product.ProductID,
		ProductVersionID: e.version.VersionID,
		TypeID:           e.planType.PlanTypeID,
		AuthorID:         e.user.UserID,
		Text:             "Scope: everything",
	})
	require.NoError(t, err)
	assert.True(t, p.IsActive)
	assert.Equal(t, []signals.Signal{signals.PlanCreated}, e.signalsSent())
	assert.Equal(t, p.PlanID, e.lastEvent().ObjectID)

	text, err := e.svc.LatestPlanText(p.PlanID)
	require.NoError(t, err)
	assert.Equal(t, 1, text.Version)
	assert.Equal(t, "Scope: everything", text.Text)
}

func TestCreatePlan_VersionOfOtherProduct(t *testing.T) {
	e := newTestEnv(t)
	other, err := e.svc.CreateProduct(e.ctx, "Gadget", "", "")
	require.NoError(t, err)
	otherVersion, err := e.svc.AddVersion(e.ctx, other.ProductID, "9.0")
	require.NoError(t, err)

	_, err = e.svc.CreatePlan(e.ctx, NewPlan{
		Name: "p", ProductID: e.product.ProductID, ProductVersionID: otherVersion.VersionID,
		TypeID: e.planType.PlanTypeID, AuthorID: e.user.UserID,
	})
	assert.ErrorIs(t, err, types.ErrInvalidReference)
}

func TestUpdatePlan(t *testing.T) {
	e := newTestEnv(t)
	p := e.plan(t, "p")

	got, err := e.svc.UpdatePlan(e.ctx, p.PlanID, func(p *types.TestPlan) error {
		p.Name = "renamed"
		p.IsActive = false
		p.PlanID = "hijacked"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, p.PlanID, got.PlanID)

	stored, err := e.svc.GetPlan(p.PlanID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Name)
	assert.False(t, stored.IsActive)

	_, err = e.svc.UpdatePlan(e.ctx, p.PlanID, func(p *types.TestPlan) error {
		p.ParentID = p.PlanID
		return nil
	})
	assert.ErrorIs(t, err, types.ErrInvalidReference)
}

func TestStorePlanText_Versions(t *testing.T) {
	e := newTestEnv(t)
	p := e.plan(t, "p")

	_, err := e.svc.LatestPlanText(p.PlanID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	steps := []struct {
		text        string
		wantVersion int
		wantCreated bool
	}{
		{"v1", 1, true},
		{"v1", 1, false},
		{"v2", 2, true},
		{"v1", 3, true},
	}
	for _, step := range steps {
		pt, created, err := e.svc.StorePlanText(e.ctx, p.PlanID, e.user.UserID, step.text)
		require.NoError(t, err)
		assert.Equal(t, step.wantVersion, pt.Version, step.text)
		assert.Equal(t, step.wantCreated, created, step.text)
	}

	old, err := e.svc.PlanText(p.PlanID, 2)
	require.NoError(t, err)
	assert.Equal(t, "v2", old.Text)
	_, err = e.svc.PlanText(p.PlanID, 7)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAddCasesToPlan_SortKeys(t *testing.T) {
	e := newTestEnv(t)
	p := e.plan(t, "p")
	a := e.confirmedCase(t, "a")
	b := e.confirmedCase(t, "b")
	c := e.confirmedCase(t, "c")

	require.NoError(t, e.svc.AddCasesToPlan(e.ctx, p.PlanID, a.CaseID, b.CaseID))
	require.NoError(t, e.svc.AddCasesToPlan(e.ctx, p.PlanID, b.CaseID, c.CaseID))

	pcs, err := e.svc.PlanCases(p.PlanID)
	require.NoError(t, err)
	require.Len(t, pcs, 3)
	for i, want := range []struct {
		id  string
		key int
	}{{a.CaseID, 10}, {b.CaseID, 20}, {c.CaseID, 30}} {
		assert.Equal(t, want.id, pcs[i].Case.CaseID)
		assert.Equal(t, want.key, pcs[i].SortKey)
	}

	require.NoError(t, e.svc.SetSortKey(e.ctx, p.PlanID, c.CaseID, 5))
	pcs, err = e.svc.PlanCases(p.PlanID)
	require.NoError(t, err)
	assert.Equal(t, c.CaseID, pcs[0].Case.CaseID)

	require.NoError(t, e.svc.RemoveCaseFromPlan(e.ctx, p.PlanID, a.CaseID))
	assert.ErrorIs(t, e.svc.RemoveCaseFromPlan(e.ctx, p.PlanID, a.CaseID), ErrNotLinked)
	assert.ErrorIs(t, e.svc.AddCasesToPlan(e.ctx, p.PlanID, "missing"), types.ErrNotFound)
}

func TestPlanTagsAndComponents(t *testing.T) {
	e := newTestEnv(t)
	p := e.plan(t, "p")

	require.NoError(t, e.svc.AddPlanTag(e.ctx, p.PlanID, "release"))
	require.NoError(t, e.svc.AddPlanTag(e.ctx, p.PlanID, "nightly"))
	require.NoError(t, e.svc.AddPlanTag(e.ctx, p.PlanID, "release"))
	tags, err := e.svc.PlanTags(p.PlanID)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "nightly", tags[0].Name)

	require.NoError(t, e.svc.RemovePlanTag(e.ctx, p.PlanID, "nightly"))
	assert.ErrorIs(t, e.svc.RemovePlanTag(e.ctx, p.PlanID, "unknown"), types.ErrNotFound)
	tags, err = e.svc.PlanTags(p.PlanID)
	require.NoError(t, err)
	assert.Len(t, tags, 1)

	ui, err := e.svc.AddComponent(e.ctx, e.product.ProductID, "ui", e.user.UserID, "")
	require.NoError(t, err)
	require.NoError(t, e.svc.AddPlanComponent(e.ctx, p.PlanID, ui.ComponentID))
	comps, err := e.svc.PlanComponents(p.PlanID)
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.Equal(t, "ui", comps[0].Name)

	other, err := e.svc.CreateProduct(e.ctx, "Gadget", "", "")
	require.NoError(t, err)
	foreign, err := e.svc.AddComponent(e.ctx, other.ProductID, "api", "", "")
	require.NoError(t, err)
	assert.ErrorIs(t, e.svc.AddPlanComponent(e.ctx, p.PlanID, foreign.ComponentID), types.ErrInvalidReference)

	require.NoError(t, e.svc.RemovePlanComponent(e.ctx, p.PlanID, ui.ComponentID))
	comps, err = e.svc.PlanComponents(p.PlanID)
	require.NoError(t, err)
	assert.Empty(t, comps)
}

func TestClonePlan(t *testing.T) {
	e := newTestEnv(t)
	src := e.plan(t, "source")
	_, _, err := e.svc.StorePlanText(e.ctx, src.PlanID, e.user.UserID, "doc")
	require.NoError(t, err)
	require.NoError(t, e.svc.AddPlanTag(e.ctx, src.PlanID, "release"))
	a := e.confirmedCase(t, "a", src.PlanID)
	b := e.confirmedCase(t, "b", src.PlanID)

	t.Run("links cases", func(t *testing.T) {
		dst, err := e.svc.ClonePlan(e.ctx, src.PlanID, ClonePlanOptions{SetParent: true})
		require.NoError(t, err)
		assert.Equal(t, "Copy of source", dst.Name)
		assert.Equal(t, src.PlanID, dst.ParentID)

		text, err := e.svc.LatestPlanText(dst.PlanID)
		require.NoError(t, err)
		assert.Equal(t, "doc", text.Text)
		tags, err := e.svc.PlanTags(dst.PlanID)
		require.NoError(t, err)
		require.Len(t, tags, 1)

		pcs, err := e.svc.PlanCases(dst.PlanID)
		require.NoError(t, err)
		require.Len(t, pcs, 2)
		assert.Equal(t, a.CaseID, pcs[0].Case.CaseID)
		assert.Equal(t, b.CaseID, pcs[1].Case.CaseID)

		children, err := e.svc.ChildPlans(src.PlanID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, dst.PlanID, children[0].PlanID)
	})

	t.Run("copies cases", func(t *testing.T) {
		dst, err := e.svc.ClonePlan(e.ctx, src.PlanID, ClonePlanOptions{Name: "deep", CopyCases: true})
		require.NoError(t, err)
		pcs, err := e.svc.PlanCases(dst.PlanID)
		require.NoError(t, err)
		require.Len(t, pcs, 2)
		assert.NotEqual(t, a.CaseID, pcs[0].Case.CaseID)
		assert.Equal(t, "a", pcs[0].Case.Summary)

		text, err := e.svc.LatestCaseText(pcs[0].Case.CaseID)
		require.NoError(t, err)
		assert.Equal(t, "do a", text.Action)
	})
}
