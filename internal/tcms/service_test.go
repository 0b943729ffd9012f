package tcms

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/nitrate/internal/signals"
	"github.com/mesh-intelligence/nitrate/internal/sqlite"
	"github.com/mesh-intelligence/nitrate/pkg/types"
)

// testEnv is a service on a fresh database with one user, product, version,
// build and the default category.
type testEnv struct {
	svc      *Service
	ctx      context.Context
	user     *types.User
	product  *types.Product
	version  *types.Version
	build    *types.Build
	category *types.Category
	planType *types.PlanType

	mu     sync.Mutex
	events []signals.Event
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })

	e := &testEnv{ctx: context.Background()}
	bus := signals.NewBus(zap.NewNop())
	bus.ConnectAll(func(_ context.Context, ev signals.Event) error {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.events = append(e.events, ev)
		return nil
	})
	e.svc = New(b, Options{Bus: bus, Logger: zap.NewNop(), BaseURL: "https://tcms.example.com/"})

	var err error
	e.user, err = e.svc.CreateUser(e.ctx, "alice", "alice@example.com", "s3cret", false)
	require.NoError(t, err)
	e.product, err = e.svc.CreateProduct(e.ctx, "Widget", "", "the widget")
	require.NoError(t, err)
	e.version, err = e.svc.AddVersion(e.ctx, e.product.ProductID, "1.0")
	require.NoError(t, err)
	e.build, err = e.svc.AddBuild(e.ctx, e.product.ProductID, "b1", "")
	require.NoError(t, err)
	e.category, err = e.svc.CategoryByName(e.product.ProductID, types.DefaultCategoryName)
	require.NoError(t, err)
	e.planType, err = e.svc.PlanTypeByName("Function")
	require.NoError(t, err)
	return e
}

func (e *testEnv) signalsSent() []signals.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]signals.Signal, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Signal
	}
	return out
}

func (e *testEnv) lastEvent() signals.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events[len(e.events)-1]
}

func (e *testEnv) plan(t *testing.T, name string) *types.TestPlan {
	t.Helper()
	p, err := e.svc.CreatePlan(e.ctx, NewPlan{
		Name:             name,
		ProductID:        e.product.ProductID,
		ProductVersionID: e.version.VersionID,
		TypeID:           e.planType.PlanTypeID,
		AuthorID:         e.user.UserID,
	})
	require.NoError(t, err)
	return p
}

// confirmedCase creates a CONFIRMED case with one text version in the
// given plans.
func (e *testEnv) confirmedCase(t *testing.T, summary string, planIDs ...string) *types.TestCase {
	t.Helper()
	c, err := e.svc.CreateCase(e.ctx, NewCase{
		Summary:    summary,
		CategoryID: e.category.CategoryID,
		Status:     types.CaseStatusConfirmed,
		AuthorID:   e.user.UserID,
		Text:       CaseTextInput{Action: "do " + summary, Effect: "it works"},
		PlanIDs:    planIDs,
	})
	require.NoError(t, err)
	return c
}

func TestCreateProduct_Defaults(t *testing.T) {
	e := newTestEnv(t)

	cats, err := e.svc.ListCategories(e.product.ProductID)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, types.DefaultCategoryName, cats[0].Name)

	versions, err := e.svc.ListVersions(e.product.ProductID)
	require.NoError(t, err)
	var values []string
	for _, v := range versions {
		values = append(values, v.Value)
	}
	assert.ElementsMatch(t, []string{"1.0", types.UnspecifiedVersion}, values)

	builds, err := e.svc.ListBuilds(e.product.ProductID, true)
	require.NoError(t, err)
	var names []string
	for _, b := range builds {
		names = append(names, b.Name)
	}
	assert.ElementsMatch(t, []string{"b1", types.UnspecifiedBuild}, names)

	_, err = e.svc.CreateProduct(e.ctx, "Widget", "", "")
	assert.ErrorIs(t, err, types.ErrDuplicateName)

	got, err := e.svc.ProductByName("Widget")
	require.NoError(t, err)
	assert.Equal(t, e.product.ProductID, got.ProductID)
}

func TestProductChildren_UnknownProduct(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.svc.AddVersion(e.ctx, "missing", "2.0")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = e.svc.AddBuild(e.ctx, "missing", "b", "")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = e.svc.AddComponent(e.ctx, "missing", "ui", "", "")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = e.svc.AddCategory(e.ctx, "missing", "regression", "")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAuthenticate(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.svc.CreateUser(e.ctx, "nopass", "", "", false)
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"valid", "alice", "s3cret", nil},
		{"wrong password", "alice", "guess", types.ErrBadCredentials},
		{"unknown user", "mallory", "s3cret", types.ErrBadCredentials},
		{"account without password", "nopass", "", types.ErrBadCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := e.svc.Authenticate(tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, e.user.UserID, u.UserID)
		})
	}
}

func TestGrantAndHasPerm(t *testing.T) {
	e := newTestEnv(t)

	ok, err := e.svc.HasPerm(e.user.UserID, types.PermAddPlan)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.svc.Grant(e.ctx, e.user.UserID, types.PermAddPlan, types.PermAddPlan)
	require.NoError(t, err)
	ok, err = e.svc.HasPerm(e.user.UserID, types.PermAddPlan)
	require.NoError(t, err)
	assert.True(t, ok)

	u, err := e.svc.GetUser(e.user.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{types.PermAddPlan}, u.Permissions)

	root, err := e.svc.CreateUser(e.ctx, "root", "", "pw", true)
	require.NoError(t, err)
	ok, err = e.svc.HasPerm(root.UserID, types.PermDeleteComment)
	require.NoError(t, err)
	assert.True(t, ok, "superusers hold every permission")
}

func TestSetPassword(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.svc.SetPassword(e.ctx, e.user.UserID, "changed"))

	_, err := e.svc.Authenticate("alice", "s3cret")
	assert.ErrorIs(t, err, types.ErrBadCredentials)
	_, err = e.svc.Authenticate("alice", "changed")
	assert.NoError(t, err)
}

func TestUserByName(t *testing.T) {
	e := newTestEnv(t)

	u, err := e.svc.UserByName("alice")
	require.NoError(t, err)
	assert.Equal(t, e.user.UserID, u.UserID)

	u, err = e.svc.UserByName("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, e.user.UserID, u.UserID)

	_, err = e.svc.UserByName("bob")
	assert.ErrorIs(t, err, types.ErrNotFound)
}
