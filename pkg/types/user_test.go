package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserHasPerm(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.HasPerm(""))

	u := &User{Username: "tester"}
	assert.True(t, u.HasPerm(""), "empty permission only needs a user")
	assert.False(t, u.HasPerm(PermAddPlan))

	u.Grant(PermAddPlan)
	u.Grant(PermAddPlan)
	assert.Equal(t, []string{PermAddPlan}, u.Permissions)
	assert.True(t, u.HasPerm(PermAddPlan))

	admin := &User{Username: "root", IsSuperuser: true}
	assert.True(t, admin.HasPerm(PermDeleteComment))
}

func TestValidPermission(t *testing.T) {
	assert.True(t, ValidPermission(PermChangeCaseRun))
	assert.False(t, ValidPermission("testruns.launch_rockets"))
	assert.Len(t, AllPermissions, 24)
}
