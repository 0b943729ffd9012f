package types

import (
	"slices"
	"time"
)

// User is an account that authors plans and cases, manages runs and executes
// case-runs. Permissions are dotted codenames such as "testplans.add_testplan".
type User struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsSuperuser  bool      `json:"is_superuser"`
	Permissions  []string  `json:"permissions"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasPerm reports whether the user holds perm. Superusers hold every
// permission and an empty perm only requires an authenticated user.
func (u *User) HasPerm(perm string) bool {
	if u == nil {
		return false
	}
	if perm == "" || u.IsSuperuser {
		return true
	}
	return slices.Contains(u.Permissions, perm)
}

// Grant adds perm to the user's permission set. Idempotent.
func (u *User) Grant(perm string) {
	if !slices.Contains(u.Permissions, perm) {
		u.Permissions = append(u.Permissions, perm)
	}
}

// Permission codenames checked by the API layers.
const (
	PermAddProduct     = "management.add_product"
	PermChangeProduct  = "management.change_product"
	PermAddPlan        = "testplans.add_testplan"
	PermChangePlan     = "testplans.change_testplan"
	PermAddPlanTag     = "testplans.add_testplantag"
	PermDeletePlanTag  = "testplans.delete_testplantag"
	PermAddCase        = "testcases.add_testcase"
	PermChangeCase     = "testcases.change_testcase"
	PermAddCaseTag     = "testcases.add_testcasetag"
	PermDeleteCaseTag  = "testcases.delete_testcasetag"
	PermAddCasePlan    = "testcases.add_testcaseplan"
	PermDeleteCasePlan = "testcases.delete_testcaseplan"
	PermAddIssue       = "issuetracker.add_issue"
	PermDeleteIssue    = "issuetracker.delete_issue"
	PermAddRun         = "testruns.add_testrun"
	PermChangeRun      = "testruns.change_testrun"
	PermAddCaseRun     = "testruns.add_testcaserun"
	PermChangeCaseRun  = "testruns.change_testcaserun"
	PermDeleteCaseRun  = "testruns.delete_testcaserun"
	PermAddRunTag      = "testruns.add_testruntag"
	PermAddLink        = "linkreference.add_linkreference"
	PermDeleteLink     = "linkreference.delete_linkreference"
	PermAddComment     = "comments.add_comment"
	PermDeleteComment  = "comments.delete_comment"
)

// AllPermissions lists every permission codename.
var AllPermissions = []string{
	PermAddProduct, PermChangeProduct,
	PermAddPlan, PermChangePlan, PermAddPlanTag, PermDeletePlanTag,
	PermAddCase, PermChangeCase, PermAddCaseTag, PermDeleteCaseTag,
	PermAddCasePlan, PermDeleteCasePlan,
	PermAddIssue, PermDeleteIssue,
	PermAddRun, PermChangeRun, PermAddCaseRun, PermChangeCaseRun,
	PermDeleteCaseRun, PermAddRunTag,
	PermAddLink, PermDeleteLink,
	PermAddComment, PermDeleteComment,
}

// ValidPermission reports whether perm is a known codename.
func ValidPermission(perm string) bool {
	return slices.Contains(AllPermissions, perm)
}
