// This file seeds the built-in plan types on attach.
package sqlite

import (
	"database/sql"
	"fmt"
)

// builtInPlanType describes a plan type seeded on first startup.
type builtInPlanType struct {
	name        string
	description string
}

// builtInPlanTypes are the plan types every installation starts with.
var builtInPlanTypes = []builtInPlanType{
	{"Unit", "Tests of individual units of code"},
	{"Integration", "Tests of combined components"},
	{"Function", "Functional tests against requirements"},
	{"System", "End-to-end tests of the complete system"},
	{"Acceptance", "Customer acceptance tests"},
	{"Installation", "Install, upgrade and removal tests"},
	{"Performance", "Load, stress and benchmark tests"},
	{"Product", "Product-level test plans"},
	{"Interoperability", "Tests against other systems"},
	{"Smoke", "Quick sanity checks of a build"},
	{"Regression", "Tests guarding previously fixed behavior"},
}

// seedPlanTypes creates the built-in plan types if the plan_types table is
// empty. Seeding is idempotent: it only runs on first startup or after every
// plan type was deleted.
func seedPlanTypes(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM plan_types").Scan(&count); err != nil {
		return fmt.Errorf("counting plan types: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, pt := range builtInPlanTypes {
		_, err := tx.Exec(
			"INSERT INTO plan_types (plan_type_id, name, description) VALUES (?, ?, ?)",
			newUUID(), pt.name, pt.description,
		)
		if err != nil {
			return fmt.Errorf("seeding plan type %s: %w", pt.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}
	return nil
}
