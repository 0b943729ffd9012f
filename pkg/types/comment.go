package types

import "time"

// Object types that comments and link references can attach to.
const (
	ObjectCaseRun = "caserun"
	ObjectCase    = "case"
	ObjectPlan    = "plan"
	ObjectRun     = "run"
)

// ValidObjectType reports whether t names an object comments can attach to.
func ValidObjectType(t string) bool {
	switch t {
	case ObjectCaseRun, ObjectCase, ObjectPlan, ObjectRun:
		return true
	}
	return false
}

// Comment is free text a user posts on a case-run, case, plan or run.
// Removal is soft: IsRemoved hides the comment from listings.
type Comment struct {
	CommentID   string    `json:"comment_id"`
	ObjectType  string    `json:"object_type"`
	ObjectID    string    `json:"object_id"`
	UserID      string    `json:"user_id"`
	Text        string    `json:"text"`
	SubmittedAt time.Time `json:"submitted_at"`
	IsRemoved   bool      `json:"is_removed"`
}

// LinkReference is a named URL attached to an object, typically a log link
// on a case-run.
type LinkReference struct {
	LinkID     string    `json:"link_id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	ObjectType string    `json:"object_type"`
	ObjectID   string    `json:"object_id"`
	CreatedAt  time.Time `json:"created_at"`
}
