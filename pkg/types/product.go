package types

import "time"

// Default names created alongside every new product.
const (
	DefaultCategoryName = "--default--"
	UnspecifiedVersion  = "unspecified"
	UnspecifiedBuild    = "unspecified"
)

// Classification groups products.
type Classification struct {
	ClassificationID string `json:"classification_id"`
	Name             string `json:"name"`
}

// Product is the thing under test. Versions, builds, components and
// categories all belong to exactly one product.
type Product struct {
	ProductID        string    `json:"product_id"`
	Name             string    `json:"name"`
	ClassificationID string    `json:"classification_id"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"created_at"`
}

// Version is a product release line that plans and runs target.
type Version struct {
	VersionID string `json:"version_id"`
	ProductID string `json:"product_id"`
	Value     string `json:"value"`
}

// Build is a concrete deliverable a run executes against.
type Build struct {
	BuildID     string `json:"build_id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// Component is a product area that plans and cases can be filed under.
type Component struct {
	ComponentID    string `json:"component_id"`
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	InitialOwnerID string `json:"initial_owner_id"`
	Description    string `json:"description"`
}

// Category classifies test cases within a product.
type Category struct {
	CategoryID  string `json:"category_id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PlanType is the kind of testing a plan describes.
type PlanType struct {
	PlanTypeID  string `json:"plan_type_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
