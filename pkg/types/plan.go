package types

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// TestPlan is a named container of test cases for a product version.
// Case membership is stored as plan_case links whose sort key orders the
// cases within the plan.
type TestPlan struct {
	PlanID           string    `json:"plan_id"`
	Name             string    `json:"name"`
	ProductID        string    `json:"product_id"`
	ProductVersionID string    `json:"product_version_id"`
	TypeID           string    `json:"type_id"`
	AuthorID         string    `json:"author_id"`
	OwnerID          string    `json:"owner_id"`
	ParentID         string    `json:"parent_id"`
	IsActive         bool      `json:"is_active"`
	ExtraLink        string    `json:"extra_link"`
	CreatedAt        time.Time `json:"created_at"`
}

// PlanText is one version of a plan's document. Versions start at 1.
type PlanText struct {
	PlanTextID string    `json:"plan_text_id"`
	PlanID     string    `json:"plan_id"`
	Version    int       `json:"version"`
	AuthorID   string    `json:"author_id"`
	Text       string    `json:"text"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
}

// Checksum returns the hex MD5 digest used to detect unchanged text.
func Checksum(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
